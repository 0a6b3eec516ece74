package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns the log directory (~/.plantsearch/logs/).
// Falls back to the temp directory when there is no home directory.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".plantsearch", "logs")
	}
	return filepath.Join(home, ".plantsearch", "logs")
}

// DefaultLogPath returns the CLI log file path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "plantsearch.log")
}
