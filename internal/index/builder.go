// Package index rebuilds the plant search index from the relational store.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Aman-CERP/plantsearch/internal/config"
	"github.com/Aman-CERP/plantsearch/internal/derive"
	amerrors "github.com/Aman-CERP/plantsearch/internal/errors"
	"github.com/Aman-CERP/plantsearch/internal/locale"
	"github.com/Aman-CERP/plantsearch/internal/logging"
	"github.com/Aman-CERP/plantsearch/internal/store"
	"github.com/Aman-CERP/plantsearch/internal/ui"
)

// State is the position of a refresh in its linear lifecycle.
type State int32

const (
	StateIdle State = iota
	StateIndexDropped
	StateIndexCreated
	StateMappingSet
	StateIndexing
	StatePromoted
	StateDone
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateIndexDropped:
		return "index_dropped"
	case StateIndexCreated:
		return "index_created"
	case StateMappingSet:
		return "mapping_set"
	case StateIndexing:
		return "indexing"
	case StatePromoted:
		return "promoted"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// LocaleStats counts the documents written for one locale.
type LocaleStats struct {
	Code     string
	Label    string
	Records  int // CountRecords at the start of the locale
	Full     int
	Fallback int
}

// Stats summarizes a refresh run.
type Stats struct {
	RunID     string
	Documents int
	Full      int
	Fallback  int
	Locales   []LocaleStats
	Duration  time.Duration
	Rebuild   string
	Flush     string
}

// BuilderDependencies contains the injected dependencies for Builder.
type BuilderDependencies struct {
	// Store is the read-only plant source (required).
	Store store.PlantStore

	// Index is the index being rebuilt (required). Shadow rebuilds need a
	// store.ShadowIndex.
	Index store.SearchIndex

	// Mapper resolves locale field names (required).
	Mapper *locale.Mapper

	// Engine computes derived flags (required).
	Engine *derive.Engine

	// Config supplies locales, paging, flush and rebuild settings (required).
	Config *config.Config

	// Renderer displays progress. Defaults to ui.NopRenderer.
	Renderer ui.Renderer

	// Lock guards against concurrent refreshes. Nil disables locking.
	Lock *RefreshLock

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Builder runs index refreshes. A Builder runs one refresh at a time.
type Builder struct {
	store     store.PlantStore
	index     store.SearchIndex
	mapper    *locale.Mapper
	assembler *Assembler
	cfg       *config.Config
	renderer  ui.Renderer
	lock      *RefreshLock
	logger    *slog.Logger

	state   atomic.Int32
	running atomic.Bool
}

// NewBuilder creates a Builder with injected dependencies.
func NewBuilder(deps BuilderDependencies) (*Builder, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("plant store is required")
	}
	if deps.Index == nil {
		return nil, fmt.Errorf("search index is required")
	}
	if deps.Mapper == nil {
		return nil, fmt.Errorf("locale mapper is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("derived attribute engine is required")
	}
	if deps.Config == nil {
		return nil, fmt.Errorf("config is required")
	}

	renderer := deps.Renderer
	if renderer == nil {
		renderer = ui.NopRenderer{}
	}

	return &Builder{
		store:     deps.Store,
		index:     deps.Index,
		mapper:    deps.Mapper,
		assembler: NewAssembler(deps.Mapper, deps.Engine),
		cfg:       deps.Config,
		renderer:  renderer,
		lock:      deps.Lock,
		logger:    logging.Component(deps.Logger, "index"),
	}, nil
}

// State returns the current lifecycle state. After a failure it stays at
// the state the run reached.
func (b *Builder) State() State {
	return State(b.state.Load())
}

func (b *Builder) setState(s State) {
	b.state.Store(int32(s))
}

// run carries the mutable state of one refresh.
type run struct {
	id      string
	log     *slog.Logger
	target  store.SearchIndex
	nextID  int64
	stats   Stats
	started time.Time
}

// Refresh drops and rebuilds the index: one document per plant and
// configured locale, in locale order. Any store or index error aborts the
// run and leaves already written documents in place.
func (b *Builder) Refresh(ctx context.Context) (*Stats, error) {
	if !b.running.CompareAndSwap(false, true) {
		return nil, amerrors.IndexError(amerrors.ErrCodeIndexLocked, "a refresh is already running", nil)
	}
	defer b.running.Store(false)

	r := &run{
		id:      uuid.NewString(),
		started: time.Now(),
	}
	r.log = logging.WithRun(b.logger, r.id)
	r.stats = Stats{RunID: r.id, Rebuild: b.cfg.Index.Rebuild, Flush: b.cfg.Index.Flush}
	b.setState(StateIdle)

	if b.lock != nil {
		acquired, err := b.lock.TryLock()
		if err != nil {
			return nil, amerrors.IndexError(amerrors.ErrCodeIndexUnavailable, "acquire refresh lock", err)
		}
		if !acquired {
			return nil, amerrors.IndexError(amerrors.ErrCodeIndexLocked, "another refresh holds the index lock", nil).
				WithDetail("lock", b.lock.Path()).
				WithSuggestion("Wait for the running refresh to finish")
		}
		defer func() { _ = b.lock.Unlock() }()
	}

	r.log.Info("refresh_started",
		slog.String("rebuild", b.cfg.Index.Rebuild),
		slog.String("flush", b.cfg.Index.Flush),
		slog.Int("locales", len(b.cfg.Locales)),
		slog.Int("page_size", b.cfg.Index.PageSize))

	stats, err := b.refresh(ctx, r)
	if err != nil {
		b.renderer.AddError(ui.ErrorEvent{Err: err})
		r.log.Error("refresh_failed",
			append([]any{slog.String("state", b.State().String())}, amerrors.FormatForLog(err)...)...)
		return nil, err
	}

	r.log.Info("refresh_completed",
		slog.Int("documents", stats.Documents),
		slog.Int("full", stats.Full),
		slog.Int("fallback", stats.Fallback),
		slog.Duration("duration", stats.Duration))
	b.renderer.Complete(completionStats(stats))
	return stats, nil
}

func (b *Builder) refresh(ctx context.Context, r *run) (*Stats, error) {
	shadowMode := b.cfg.Index.Rebuild == config.RebuildShadow

	b.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StagePreparing, Message: "rebuilding index " + b.cfg.Index.Name})

	var live store.ShadowIndex
	if shadowMode {
		si, ok := b.index.(store.ShadowIndex)
		if !ok {
			return nil, amerrors.ConfigError("index does not support shadow rebuilds", nil).
				WithSuggestion("Set index.rebuild to in_place")
		}
		shadow, err := si.Shadow(ctx)
		if err != nil {
			return nil, err
		}
		// Closing an unpromoted shadow discards it; after Promote it is a no-op.
		defer func() { _ = shadow.Close() }()
		live, r.target = si, shadow
	} else {
		r.target = b.index
		exists, err := r.target.Exists(ctx)
		if err != nil {
			return nil, err
		}
		if exists {
			if err := r.target.Delete(ctx); err != nil {
				return nil, err
			}
			r.log.Info("index_dropped", slog.String("name", b.cfg.Index.Name))
		}
		b.setState(StateIndexDropped)
	}

	settings := store.Settings{
		Analyzer:  store.PlantAnalyzerName,
		Tokenizer: store.PlantTokenizerName,
		MinGram:   b.cfg.Index.MinGram,
		MaxGram:   b.cfg.Index.MaxGram,
	}
	if err := r.target.Create(ctx, settings); err != nil {
		return nil, err
	}
	b.setState(StateIndexCreated)

	specs, err := b.mapper.BuildIndexMapping()
	if err != nil {
		return nil, err
	}
	if err := r.target.SetMapping(ctx, specs); err != nil {
		return nil, err
	}
	b.setState(StateMappingSet)
	r.log.Debug("mapping_set", slog.Int("fields", len(specs)))

	b.setState(StateIndexing)
	for _, loc := range b.cfg.Locales {
		ls, err := b.indexLocale(ctx, r, loc)
		r.stats.Locales = append(r.stats.Locales, ls)
		if err != nil {
			return nil, err
		}
	}

	if err := r.target.Refresh(ctx); err != nil {
		return nil, err
	}
	if sealer, ok := r.target.(store.Sealer); ok && !shadowMode {
		if err := sealer.Seal(ctx); err != nil {
			return nil, err
		}
	}

	if shadowMode {
		b.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StagePromoting, Message: "swapping in rebuilt index"})
		if err := live.Promote(ctx, r.target); err != nil {
			return nil, err
		}
		b.setState(StatePromoted)
	}

	b.setState(StateDone)
	r.stats.Duration = time.Since(r.started)
	return &r.stats, nil
}

// indexLocale pages through every plant and writes one document each.
func (b *Builder) indexLocale(ctx context.Context, r *run, loc config.LocaleConfig) (LocaleStats, error) {
	ls := LocaleStats{Code: loc.Code, Label: loc.Label}

	count, err := b.store.CountRecords(ctx, loc.Code)
	if err != nil {
		return ls, err
	}
	ls.Records = count
	b.renderer.BeginLocale(loc.Code, loc.Label, count)
	r.log.Info("locale_started",
		slog.String("locale", loc.Code),
		slog.Int("count", count))

	pageSize := b.cfg.Index.PageSize
	done := 0
	for offset := 0; offset < count; offset += pageSize {
		page, err := b.store.FetchRecordsPage(ctx, pageSize, offset, loc.Code)
		if err != nil {
			return ls, err
		}
		if len(page) == 0 {
			break
		}

		for _, rec := range page {
			if err := ctx.Err(); err != nil {
				return ls, amerrors.New(amerrors.ErrCodeCanceled, "refresh canceled", err)
			}

			full, err := b.writeDocument(ctx, r, rec, loc.Code)
			if err != nil {
				return ls, err
			}
			if full {
				ls.Full++
			} else {
				ls.Fallback++
			}

			done++
			b.renderer.UpdateProgress(ui.ProgressEvent{
				Stage:   ui.StageIndexing,
				Locale:  loc.Code,
				Current: done,
				Total:   count,
			})
		}

		if b.cfg.Index.Flush == config.FlushBatch {
			if err := r.target.Refresh(ctx); err != nil {
				return ls, err
			}
		}
	}

	r.log.Info("locale_completed",
		slog.String("locale", loc.Code),
		slog.Int("full", ls.Full),
		slog.Int("fallback", ls.Fallback))
	return ls, nil
}

// writeDocument assembles, writes and, under the document flush policy,
// refreshes one document. It reports whether the document was full.
func (b *Builder) writeDocument(ctx context.Context, r *run, rec store.RecordWithProperties, loc string) (bool, error) {
	doc, err := b.assembler.Assemble(r.nextID, rec, loc)
	if err != nil {
		if pe, ok := amerrors.As(err); ok {
			pe.WithDetail("plant_id", fmt.Sprint(rec.Record.ID)).WithDetail("locale", loc)
		}
		return false, err
	}

	if err := r.target.AddDocument(ctx, doc.ID, doc.Fields); err != nil {
		return false, err
	}
	if b.cfg.Index.Flush == config.FlushDocument {
		if err := r.target.Refresh(ctx); err != nil {
			return false, err
		}
	}

	r.log.Debug("document_written",
		slog.String("doc_id", doc.ID),
		slog.Int64("plant_id", rec.Record.ID),
		slog.String("locale", loc),
		slog.Bool("full", doc.Full))

	r.nextID++
	r.stats.Documents++
	if doc.Full {
		r.stats.Full++
	} else {
		r.stats.Fallback++
	}
	return doc.Full, nil
}

func completionStats(s *Stats) ui.CompletionStats {
	out := ui.CompletionStats{
		RunID:     s.RunID,
		Documents: s.Documents,
		Duration:  s.Duration,
		Rebuild:   s.Rebuild,
	}
	for _, l := range s.Locales {
		out.Locales = append(out.Locales, ui.LocaleStats{Code: l.Code, Label: l.Label, Full: l.Full, Fallback: l.Fallback})
	}
	return out
}
