package cmd

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amerrors "github.com/Aman-CERP/plantsearch/internal/errors"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := NewRootCmd()

	for _, name := range []string{"refresh", "search", "values", "check", "serve", "config", "version"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := root.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestRootCmd_RefreshAliases(t *testing.T) {
	root := NewRootCmd()

	for _, alias := range []string{"index:refresh", "index"} {
		sub, _, err := root.Find([]string{alias})
		require.NoError(t, err)
		assert.Equal(t, "refresh", sub.Name())
	}
}

func TestRootCmd_PersistentFlags(t *testing.T) {
	root := NewRootCmd()

	assert.NotNil(t, root.PersistentFlags().Lookup("debug"))
	dir := root.PersistentFlags().Lookup("dir")
	require.NotNil(t, dir)
	assert.Equal(t, ".", dir.DefValue)
	assert.Equal(t, "C", dir.Shorthand)
}

func TestPrintError(t *testing.T) {
	t.Run("structured error", func(t *testing.T) {
		buf := &bytes.Buffer{}
		printError(buf, amerrors.IndexError(amerrors.ErrCodeIndexLocked, "another refresh holds the index lock", nil).
			WithSuggestion("Wait for the running refresh to finish"))

		assert.Contains(t, buf.String(), "Error: another refresh holds the index lock")
		assert.Contains(t, buf.String(), "Hint: Wait for the running refresh to finish")
		assert.Contains(t, buf.String(), "Code: ERR_304_INDEX_LOCKED")
	})

	t.Run("plain error", func(t *testing.T) {
		buf := &bytes.Buffer{}
		printError(buf, errors.New("boom"))

		assert.Contains(t, buf.String(), "Error: boom")
		assert.Contains(t, buf.String(), amerrors.ErrCodeInternal)
	})
}
