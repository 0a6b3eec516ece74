package watcher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	amerrors "github.com/Aman-CERP/plantsearch/internal/errors"
	"github.com/Aman-CERP/plantsearch/internal/logging"
)

// DefaultFollowDebounce is the quiet period after the index pointer changes
// before the index is reloaded.
const DefaultFollowDebounce = 250 * time.Millisecond

// Reloader is an index that can move to the generation its pointer file
// names. *store.BleveIndex implements it.
type Reloader interface {
	// PointerPath is empty for indexes that live in memory.
	PointerPath() string
	Reload(ctx context.Context) (bool, error)
}

// FollowIndex reloads idx whenever its pointer file changes, until ctx is
// done. An in-memory index has nothing to follow and FollowIndex just waits.
// A generation that is still being written is retried on the next change,
// which the writer produces when it seals the generation.
func FollowIndex(ctx context.Context, idx Reloader, opts Options) error {
	pointer := idx.PointerPath()
	if pointer == "" {
		<-ctx.Done()
		return ctx.Err()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultFollowDebounce
	}
	logger := logging.Component(opts.Logger, "follow")

	w, err := newWatcher(pointer, []string{""}, opts)
	if err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// A promotion between opening the index and starting the watch would
	// otherwise go unnoticed.
	reload(ctx, idx, logger)

	for {
		select {
		case <-ctx.Done():
			<-done
			return ctx.Err()
		case err := <-done:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err == nil {
				err = errors.New("index pointer watcher stopped")
			}
			return err
		case <-w.Changes():
			reload(ctx, idx, logger)
		}
	}
}

func reload(ctx context.Context, idx Reloader, logger *slog.Logger) {
	changed, err := idx.Reload(ctx)
	switch {
	case amerrors.HasCode(err, amerrors.ErrCodeIndexLocked):
		logger.Debug("index_reload_deferred", slog.String("error", err.Error()))
	case err != nil:
		logger.Warn("index_reload_failed", amerrors.FormatForLog(err)...)
	case changed:
		logger.Info("index_followed")
	}
}
