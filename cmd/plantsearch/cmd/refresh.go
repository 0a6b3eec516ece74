package cmd

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/plantsearch/internal/config"
	"github.com/Aman-CERP/plantsearch/internal/derive"
	amerrors "github.com/Aman-CERP/plantsearch/internal/errors"
	"github.com/Aman-CERP/plantsearch/internal/index"
	"github.com/Aman-CERP/plantsearch/internal/locale"
	"github.com/Aman-CERP/plantsearch/internal/output"
	"github.com/Aman-CERP/plantsearch/internal/profiling"
	"github.com/Aman-CERP/plantsearch/internal/store"
	"github.com/Aman-CERP/plantsearch/internal/ui"
	"github.com/Aman-CERP/plantsearch/internal/watcher"
)

type refreshOptions struct {
	flush    string
	rebuild  string
	pageSize int
	locales  string
	noTUI    bool
	profile  string
	watch    bool
	debounce time.Duration
}

func newRefreshCmd() *cobra.Command {
	var opts refreshOptions

	cmd := &cobra.Command{
		Use:     "refresh",
		Aliases: []string{"index:refresh", "index"},
		Short:   "Rebuild the plant search index",
		Long: `Drop the plant index and rebuild it from the plant database.

Every plant is written once per configured locale, in locale order. A plant
without properties in a locale gets a minimal document with only its id,
identifier, locale and images flag.

Flush policies (--flush):
  document   refresh after every document, searchable immediately (default)
  batch      refresh after every page
  run        refresh once at the end

Rebuild modes (--rebuild):
  in_place   delete the index first; searches fail or see partial results
             until the refresh completes (default)
  shadow     build next to the live index and swap it in when complete`,
		Example: `  plantsearch refresh
  plantsearch refresh --rebuild shadow --flush run
  plantsearch refresh --locales nl:Dutch,en:English --no-tui
  plantsearch refresh --profile ./profiles
  plantsearch refresh --watch --rebuild shadow`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRefresh(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.flush, "flush", "", "Flush policy: document, batch or run")
	cmd.Flags().StringVar(&opts.rebuild, "rebuild", "", "Rebuild mode: in_place or shadow")
	cmd.Flags().IntVar(&opts.pageSize, "page-size", 0, "Plants fetched per store query")
	cmd.Flags().StringVar(&opts.locales, "locales", "", "Locales to index, e.g. nl:Dutch,en:English")
	cmd.Flags().BoolVar(&opts.noTUI, "no-tui", false, "Disable TUI mode, use plain text output")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Refresh again whenever the plant database changes")
	cmd.Flags().DurationVar(&opts.debounce, "watch-debounce", watcher.DefaultDebounce, "Quiet period after a database write before refreshing")
	cmd.Flags().StringVar(&opts.profile, "profile", "", "Write CPU, trace and heap profiles of the run to this directory")

	return cmd
}

// applyRefreshFlags overrides configuration with the flags that were set.
func applyRefreshFlags(cfg *config.Config, opts refreshOptions) error {
	if opts.flush != "" {
		cfg.Index.Flush = opts.flush
	}
	if opts.rebuild != "" {
		cfg.Index.Rebuild = opts.rebuild
	}
	if opts.pageSize != 0 {
		cfg.Index.PageSize = opts.pageSize
	}
	if opts.locales != "" {
		locales, err := config.ParseLocales(opts.locales)
		if err != nil {
			return err
		}
		cfg.Locales = locales
	}
	return cfg.Validate()
}

func runRefresh(ctx context.Context, cmd *cobra.Command, opts refreshOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyRefreshFlags(cfg, opts); err != nil {
		return err
	}

	cleanup := startLogging(cfg)
	defer cleanup()

	slog.Info("refresh_command",
		slog.String("store", cfg.Store.Path),
		slog.String("index", cfg.Index.Path),
		slog.Any("locales", cfg.LocaleCodes()))

	vocab, err := loadVocabulary(cfg)
	if err != nil {
		return err
	}

	if opts.profile != "" {
		session, err := profiling.Start(opts.profile)
		if err != nil {
			return err
		}
		defer func() {
			if err := session.Stop(); err != nil {
				slog.Warn("failed to write profiles", slog.String("error", err.Error()))
			}
		}()
	}

	idx, err := store.OpenBleveIndex(cfg.Index.Path, cfg.Index.Name)
	if err != nil {
		return err
	}
	defer func() { _ = idx.Close() }()

	// The TUI owns the terminal for one run only.
	uiCfg := ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(opts.noTUI || opts.watch),
		ui.WithNoColor(ui.DetectNoColor()),
		ui.WithIndexName(cfg.Index.Name))
	renderer := ui.NewRenderer(uiCfg)
	if err := renderer.Start(ctx); err != nil {
		slog.Warn("failed to start progress renderer", slog.String("error", err.Error()))
		renderer = ui.NewPlainRenderer(uiCfg)
		_ = renderer.Start(ctx)
	}
	defer func() { _ = renderer.Stop() }()

	r := &refresher{
		cfg:      cfg,
		index:    idx,
		mapper:   locale.NewMapper(vocab, cfg.LocaleCodes()),
		engine:   derive.NewEngine(vocab),
		renderer: renderer,
		lock:     index.NewRefreshLock(cfg.Index.Path),
	}

	if !opts.watch {
		return r.refresh(ctx)
	}
	return watchStore(ctx, cmd, r, opts.debounce)
}

// refresher runs one full refresh per call, reopening the plant store each
// time so a replaced database file is picked up.
type refresher struct {
	cfg      *config.Config
	index    store.SearchIndex
	mapper   *locale.Mapper
	engine   *derive.Engine
	renderer ui.Renderer
	lock     *index.RefreshLock
}

func (r *refresher) refresh(ctx context.Context) error {
	plants, err := store.OpenPlantStore(r.cfg.Store.Path)
	if err != nil {
		return err
	}
	defer func() { _ = plants.Close() }()

	builder, err := index.NewBuilder(index.BuilderDependencies{
		Store:    plants,
		Index:    r.index,
		Mapper:   r.mapper,
		Engine:   r.engine,
		Config:   r.cfg,
		Renderer: r.renderer,
		Lock:     r.lock,
		Logger:   slog.Default(),
	})
	if err != nil {
		return err
	}

	_, err = builder.Refresh(ctx)
	return err
}

// changeSource reports debounced changes to the plant database.
type changeSource interface {
	Changes() <-chan struct{}
	Run(ctx context.Context) error
}

// watchStore refreshes once, then again after every change to the plant
// database, until ctx is canceled. A failed refresh is reported and the
// watch continues.
func watchStore(ctx context.Context, cmd *cobra.Command, r *refresher, debounce time.Duration) error {
	w, err := watcher.New(r.cfg.Store.Path, watcher.Options{Debounce: debounce, Logger: slog.Default()})
	if err != nil {
		return err
	}
	return watchLoop(ctx, output.New(cmd.OutOrStdout()), r.cfg.Store.Path, r.refresh, w)
}

// watchLoop stops with the watcher's error if the watcher dies before ctx
// is canceled.
func watchLoop(ctx context.Context, out *output.Writer, path string, refresh func(context.Context) error, src changeSource) error {
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx) }()

	for {
		if err := refresh(ctx); err != nil && ctx.Err() == nil {
			out.Warning(err.Error())
		}
		out.Statusf("", "Watching %s for changes (Ctrl+C to stop)", path)

		select {
		case <-ctx.Done():
			<-done
			return nil
		case err := <-done:
			if ctx.Err() != nil {
				return nil
			}
			if err == nil {
				err = errors.New("store watcher stopped")
			}
			return amerrors.InternalError("watch "+path, err)
		case <-src.Changes():
		}
	}
}
