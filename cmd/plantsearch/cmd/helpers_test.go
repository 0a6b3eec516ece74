package cmd

import (
	"bytes"
	"database/sql"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/plantsearch/internal/store"
)

const testProjectConfig = `store:
  path: plants.db
locales:
  - code: nl
    label: Dutch
  - code: en
    label: English
`

// setupProject creates a project directory with a seeded plant database
// and a project config indexing nl and en. Home and user config point into
// temp directories so nothing outside the test is read or written.
func setupProject(t *testing.T) string {
	t.Helper()

	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("NO_COLOR", "1")

	dir := t.TempDir()
	db, err := sql.Open("sqlite3", filepath.Join(dir, "plants.db"))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(store.Schema)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO plant (id, identifier, names, images) VALUES
		(1, 'malus', '["Malus domestica","Appel"]', '["apple.jpg"]'),
		(2, 'buddleja', '["Buddleja davidii"]', '[]'),
		(3, 'hedera', '["Hedera helix"]', '[]')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO property (plant_id, locale, name, "values", type) VALUES
		(1, 'nl', 'vrucht', '["eetbaar"]', 'check'),
		(1, 'nl', 'gebruik', '["bijenplant"]', 'check'),
		(1, 'en', 'fruit', '["edible"]', 'check'),
		(2, 'en', 'use', '["butterfly host plant"]', 'check')`)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".plantsearch.yaml"), []byte(testProjectConfig), 0o644))
	return dir
}

// run executes the root command with args and returns its stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

// refreshProject builds the index of dir.
func refreshProject(t *testing.T, dir string) string {
	t.Helper()
	out, err := run(t, "--dir", dir, "refresh", "--no-tui")
	require.NoError(t, err)
	return out
}

func indexOf(s, sub string) int {
	return strings.Index(s, sub)
}

// sortedLines sorts the lines of s, for output whose order is not fixed.
func sortedLines(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	sort.Strings(lines)
	return strings.Join(lines, "\n") + "\n"
}
