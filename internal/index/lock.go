package index

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// RefreshLock keeps two processes from rebuilding the same index at once.
// The lock file sits next to the index directory: <index>.lock.
type RefreshLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewRefreshLock creates the lock guarding indexDir.
func NewRefreshLock(indexDir string) *RefreshLock {
	path := filepath.Clean(indexDir) + ".lock"
	return &RefreshLock{path: path, flock: flock.New(path)}
}

// TryLock acquires the lock without blocking. It reports false when another
// process holds it.
func (l *RefreshLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	l.locked = acquired
	return acquired, nil
}

// Unlock releases the lock. Unlocking an unheld lock is a no-op.
func (l *RefreshLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *RefreshLock) Path() string { return l.path }

// IsLocked reports whether this handle holds the lock.
func (l *RefreshLock) IsLocked() bool { return l.locked }
