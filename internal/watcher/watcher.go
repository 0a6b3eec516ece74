// Package watcher reports changes to the plant database so a full refresh
// can be rerun.
//
// The watcher observes the directory holding the database rather than the
// file itself: tools that rewrite a SQLite file often replace it by rename,
// which drops a watch on the old inode. Events for the database and its
// -wal and -journal sidecars are coalesced over a debounce window into a
// single signal on Changes.
//
// FollowIndex uses the same machinery on the pointer file of an on-disk
// index, so a server picks up generations promoted by another process.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Aman-CERP/plantsearch/internal/logging"
)

// DefaultDebounce is the quiet period after the last write before a change
// is reported.
const DefaultDebounce = 2 * time.Second

// Options configures a StoreWatcher.
type Options struct {
	// Debounce defaults to DefaultDebounce.
	Debounce time.Duration
	Logger   *slog.Logger
}

// StoreWatcher watches one database file.
type StoreWatcher struct {
	path     string
	names    map[string]bool
	debounce time.Duration
	fsw      *fsnotify.Watcher
	changes  chan struct{}
	logger   *slog.Logger

	mu    sync.Mutex
	timer *time.Timer
}

// New creates a watcher for the database at path. Call Run to start it.
func New(path string, opts Options) (*StoreWatcher, error) {
	return newWatcher(path, []string{"", "-wal", "-journal"}, opts)
}

// newWatcher watches path and the sidecar files named by appending each
// suffix to it.
func newWatcher(path string, suffixes []string, opts Options) (*StoreWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve absolute path: %w", err)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	base := filepath.Base(abs)
	names := make(map[string]bool, len(suffixes))
	for _, suffix := range suffixes {
		names[base+suffix] = true
	}
	return &StoreWatcher{
		path:     abs,
		names:    names,
		debounce: opts.Debounce,
		fsw:      fsw,
		changes:  make(chan struct{}, 1),
		logger:   logging.Component(opts.Logger, "watcher"),
	}, nil
}

// Changes delivers one value per debounced burst of changes. A change that
// arrives while the previous one is still unread is merged into it.
func (w *StoreWatcher) Changes() <-chan struct{} {
	return w.changes
}

// Run processes file events until ctx is done, then closes the watcher.
func (w *StoreWatcher) Run(ctx context.Context) error {
	defer w.stop()

	w.logger.Info("watch_started", slog.String("path", w.path))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch_error", slog.String("error", err.Error()))
		}
	}
}

func (w *StoreWatcher) handle(event fsnotify.Event) {
	if !w.names[filepath.Base(event.Name)] {
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
		return
	}
	w.logger.Debug("file_event", slog.String("file", event.Name), slog.String("op", event.Op.String()))

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.emit)
}

func (w *StoreWatcher) emit() {
	select {
	case w.changes <- struct{}{}:
		w.logger.Info("file_changed", slog.String("path", w.path))
	default:
	}
}

func (w *StoreWatcher) stop() {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	_ = w.fsw.Close()
}
