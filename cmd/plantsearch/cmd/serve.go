package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	amerrors "github.com/Aman-CERP/plantsearch/internal/errors"
	"github.com/Aman-CERP/plantsearch/internal/locale"
	"github.com/Aman-CERP/plantsearch/internal/mcp"
	"github.com/Aman-CERP/plantsearch/internal/search"
	"github.com/Aman-CERP/plantsearch/internal/store"
	"github.com/Aman-CERP/plantsearch/internal/watcher"
)

func newServeCmd() *cobra.Command {
	var httpAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the plant index over MCP",
		Long: `Serve the plant index to MCP clients.

By default the server speaks JSON-RPC over stdin/stdout, the way MCP
clients launch local servers. With --http it serves the streamable HTTP
transport on the given address instead.

The index must exist; run 'plantsearch refresh' first. Refreshes run
while the server is up are picked up as soon as they finish. The plant database
is optional: without it get_plant and property_values fail and search
results carry the names stored in the index.`,
		Example: `  plantsearch serve
  plantsearch serve --http 127.0.0.1:8811`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), httpAddr)
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http", "", "Serve streamable HTTP on this address instead of stdio")
	return cmd
}

// runServe writes nothing to stdout: in stdio mode it belongs to the
// JSON-RPC stream.
func runServe(ctx context.Context, httpAddr string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cleanup := startLogging(cfg)
	defer cleanup()

	vocab, err := loadVocabulary(cfg)
	if err != nil {
		return err
	}
	mapper := locale.NewMapper(vocab, cfg.LocaleCodes())

	idx, err := store.OpenBleveIndex(cfg.Index.Path, cfg.Index.Name)
	if err != nil {
		return err
	}
	defer func() { _ = idx.Close() }()

	// A refresh run from another process promotes a new generation; follow
	// it until the server stops.
	followCtx, stopFollow := context.WithCancel(ctx)
	followed := make(chan error, 1)
	go func() { followed <- watcher.FollowIndex(followCtx, idx, watcher.Options{Logger: slog.Default()}) }()
	defer func() {
		stopFollow()
		if err := <-followed; err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("index_follow_stopped", slog.String("error", err.Error()))
		}
	}()

	deps := mcp.ServerDependencies{
		Finder: search.NewFinder(idx, mapper,
			search.WithDefaultLimit(cfg.Search.DefaultLimit),
			search.WithLogger(slog.Default())),
		Index:        idx,
		Mapper:       mapper,
		DefaultLimit: cfg.Search.DefaultLimit,
		Logger:       slog.Default(),
	}

	plants, err := store.OpenPlantStore(cfg.Store.Path)
	if err != nil {
		slog.Warn("plant_store_unavailable", amerrors.FormatForLog(err)...)
	} else {
		defer func() { _ = plants.Close() }()
		deps.Store = plants
		deps.Resolver = search.NewResolver(plants, cfg.Search.CacheSize, slog.Default())
	}

	srv, err := mcp.NewServer(deps)
	if err != nil {
		return err
	}

	slog.Info("serve_started",
		slog.String("index", cfg.Index.Path),
		slog.String("http", httpAddr))
	if httpAddr != "" {
		return srv.RunHTTP(ctx, httpAddr)
	}
	return srv.Run(ctx)
}
