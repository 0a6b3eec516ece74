package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/plantsearch/internal/config"
	amerrors "github.com/Aman-CERP/plantsearch/internal/errors"
	"github.com/Aman-CERP/plantsearch/internal/locale"
	"github.com/Aman-CERP/plantsearch/internal/output"
	"github.com/Aman-CERP/plantsearch/internal/plant"
	"github.com/Aman-CERP/plantsearch/internal/search"
	"github.com/Aman-CERP/plantsearch/internal/store"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	locale     string
	limit      int
	offset     int
	or         bool
	require    []string
	ids        bool
	jsonOutput bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the plant index",
		Long: `Search the plant index with a query string.

The query uses bleve query string syntax: bare words match any field
partially, field:value restricts to one field, +word requires and -word
excludes a term. An empty query lists every plant of the locale.

Results are restricted to --locale; the query and the locale must both
match unless --or is given.`,
		Example: `  plantsearch search appel --locale nl
  plantsearch search "gebruik:bijenplant" --locale nl --require edible
  plantsearch search lavender --ids --offset 20 --limit 20
  plantsearch search --locale en --require sustainable --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.locale, "locale", "l", "", "Locale to search (default: all locales)")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default: search.default_limit)")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "Number of results to skip")
	cmd.Flags().BoolVar(&opts.or, "or", false, "Match the query OR the locale instead of both")
	cmd.Flags().StringSliceVarP(&opts.require, "require", "r", nil, "Derived flags that must be set: edible, sustainable")
	cmd.Flags().BoolVar(&opts.ids, "ids", false, "Print only plant ids, skipping plants without a document in any locale")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, expr string, opts searchOptions) error {
	err := executeSearch(ctx, cmd, expr, opts)
	if err != nil && opts.jsonOutput {
		if data, jerr := amerrors.FormatJSON(err); jerr == nil {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		}
	}
	return err
}

func executeSearch(ctx context.Context, cmd *cobra.Command, expr string, opts searchOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cleanup := startLogging(cfg)
	defer cleanup()

	slog.Info("search_started",
		slog.String("query", expr),
		slog.String("locale", opts.locale),
		slog.Int("limit", opts.limit))

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

	finder := search.NewFinder(idx, mapper,
		search.WithDefaultLimit(cfg.Search.DefaultLimit),
		search.WithLogger(slog.Default()))

	if opts.ids {
		limit := opts.limit
		if limit == 0 {
			limit = min(cfg.Search.DefaultLimit, search.MaxLimit)
		}
		ids, err := finder.FindPaginated(ctx, expr, opts.offset, limit)
		if err != nil {
			return err
		}
		return printIDs(cmd, ids, opts.jsonOutput)
	}

	combinator := search.CombineAnd
	if opts.or {
		combinator = search.CombineOr
	}
	res, err := finder.Search(ctx, expr, opts.locale, search.SearchOptions{
		Limit:      opts.limit,
		Offset:     opts.offset,
		Combinator: combinator,
		Require:    opts.require,
	})
	if err != nil {
		return err
	}

	proxies := resolveHits(ctx, cfg, res)
	rows := make([]hitView, len(res.Hits))
	for i, h := range res.Hits {
		rows[i] = newHitView(h, proxies[proxyKey{h.PlantID, h.Locale}], mapper)
	}

	if opts.jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(searchJSON{Query: expr, Locale: opts.locale, Total: res.Total, Hits: rows})
	}

	out := output.NewStyled(cmd.OutOrStdout(), false)
	if len(rows) == 0 {
		out.Warning("No plants found")
		return nil
	}
	plantRows := make([]output.PlantRow, len(rows))
	for i, r := range rows {
		plantRows[i] = output.PlantRow{
			Locale:   r.Locale,
			Name:     r.Name,
			Score:    r.Score,
			Flags:    r.Flags,
			Fallback: r.PlantID == nil,
		}
		if r.PlantID != nil {
			plantRows[i].PlantID = *r.PlantID
		}
	}
	out.Plants(plantRows)
	out.Newline()
	out.Statusf("", "%d of %d results", len(rows), res.Total)
	return nil
}

func printIDs(cmd *cobra.Command, ids []int64, asJSON bool) error {
	if asJSON {
		if ids == nil {
			ids = []int64{}
		}
		return json.NewEncoder(cmd.OutOrStdout()).Encode(ids)
	}
	for _, id := range ids {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), id)
	}
	return nil
}

type proxyKey struct {
	id     int64
	locale string
}

// resolveHits loads the plants behind the hits, per locale. The store is
// optional for searching: when it cannot be opened the stored document
// fields are shown instead.
func resolveHits(ctx context.Context, cfg *config.Config, res *search.Result) map[proxyKey]*plant.Proxy {
	byLocale := make(map[string][]int64)
	for _, h := range res.Hits {
		if h.HasPlantID {
			byLocale[h.Locale] = append(byLocale[h.Locale], h.PlantID)
		}
	}
	out := make(map[proxyKey]*plant.Proxy)
	if len(byLocale) == 0 {
		return out
	}

	plants, err := store.OpenPlantStore(cfg.Store.Path)
	if err != nil {
		slog.Warn("plant_store_unavailable", amerrors.FormatForLog(err)...)
		return out
	}
	defer func() { _ = plants.Close() }()

	resolver := search.NewResolver(plants, cfg.Search.CacheSize, slog.Default())
	resolved, err := resolver.PlantsByLocale(ctx, byLocale, len(byLocale))
	if err != nil {
		slog.Warn("plant_resolve_failed", amerrors.FormatForLog(err)...)
		return out
	}
	for loc, proxies := range resolved {
		for _, p := range proxies {
			out[proxyKey{p.ID(), loc}] = p
		}
	}
	return out
}

// hitView is one search result as printed.
type hitView struct {
	DocID      string         `json:"doc_id"`
	PlantID    *int64         `json:"plant_id,omitempty"`
	Locale     string         `json:"locale"`
	Identifier string         `json:"identifier,omitempty"`
	Name       string         `json:"name,omitempty"`
	Score      float64        `json:"score"`
	Flags      []string       `json:"flags,omitempty"`
	Fields     map[string]any `json:"fields,omitempty"`
}

type searchJSON struct {
	Query  string    `json:"query"`
	Locale string    `json:"locale,omitempty"`
	Total  uint64    `json:"total"`
	Hits   []hitView `json:"hits"`
}

func newHitView(h search.Hit, p *plant.Proxy, mapper *locale.Mapper) hitView {
	v := hitView{
		DocID:      h.DocID,
		Locale:     h.Locale,
		Identifier: h.Identifier,
		Score:      h.Score,
		Fields:     h.Fields,
	}
	if h.HasPlantID {
		id := h.PlantID
		v.PlantID = &id
	}
	if p != nil {
		v.Name = p.Name()
	} else {
		v.Name = h.Name()
	}
	v.Flags = h.Flags(mapper)
	return v
}
