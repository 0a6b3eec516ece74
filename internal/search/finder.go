package search

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	amerrors "github.com/Aman-CERP/plantsearch/internal/errors"
	"github.com/Aman-CERP/plantsearch/internal/locale"
	"github.com/Aman-CERP/plantsearch/internal/logging"
	"github.com/Aman-CERP/plantsearch/internal/store"
)

// Finder runs searches against the plant index.
type Finder struct {
	index        store.SearchIndex
	mapper       *locale.Mapper
	defaultLimit int
	logger       *slog.Logger
}

// FinderOption configures a Finder.
type FinderOption func(*Finder)

// WithDefaultLimit sets the page size used when SearchOptions.Limit is zero.
func WithDefaultLimit(n int) FinderOption {
	return func(f *Finder) {
		if n > 0 {
			f.defaultLimit = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) FinderOption {
	return func(f *Finder) {
		f.logger = logging.Component(l, "search")
	}
}

// NewFinder creates a Finder over idx. The mapper resolves derived concept
// filters to locale field names.
func NewFinder(idx store.SearchIndex, mapper *locale.Mapper, opts ...FinderOption) *Finder {
	f := &Finder{
		index:        idx,
		mapper:       mapper,
		defaultLimit: DefaultLimit,
		logger:       logging.Component(nil, "search"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Search runs expr, a bleve query string, against the documents of loc.
// An empty expr matches every document and an empty loc searches all
// locales.
func (f *Finder) Search(ctx context.Context, expr, loc string, opts SearchOptions) (*Result, error) {
	opts, err := applyDefaults(opts, f.defaultLimit)
	if err != nil {
		return nil, err
	}

	q, err := f.buildQuery(expr, loc, opts)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := f.index.Search(ctx, q, store.SearchOptions{From: opts.Offset, Size: opts.Limit})
	if err != nil {
		return nil, err
	}

	out := &Result{Total: res.Total, Hits: make([]Hit, 0, len(res.Hits))}
	for _, h := range res.Hits {
		out.Hits = append(out.Hits, toHit(h))
	}

	f.logger.Debug("search_completed",
		slog.String("query", expr),
		slog.String("locale", loc),
		slog.String("combinator", opts.Combinator.String()),
		slog.Int("hits", len(out.Hits)),
		slog.Uint64("total", out.Total),
		slog.Duration("took", time.Since(start)))
	return out, nil
}

// FindPaginated runs expr across all locales and returns the plant id of
// each hit in hit order. Fallback documents carry no plant id and are
// skipped, so a page may hold fewer ids than limit. limit must be between
// 1 and MaxLimit.
func (f *Finder) FindPaginated(ctx context.Context, expr string, offset, limit int) ([]int64, error) {
	if offset < 0 {
		return nil, amerrors.ValidationError(fmt.Sprintf("offset must not be negative, got %d", offset), nil)
	}
	if limit <= 0 {
		return nil, amerrors.ValidationError(fmt.Sprintf("limit must be positive, got %d", limit), nil)
	}

	res, err := f.Search(ctx, expr, "", SearchOptions{Offset: offset, Limit: limit})
	if err != nil {
		return nil, err
	}
	return res.PlantIDs(), nil
}

func (f *Finder) buildQuery(expr, loc string, opts SearchOptions) (query.Query, error) {
	var q query.Query
	if strings.TrimSpace(expr) == "" {
		q = bleve.NewMatchAllQuery()
	} else {
		qs := bleve.NewQueryStringQuery(expr)
		if _, err := qs.Parse(); err != nil {
			return nil, amerrors.New(amerrors.ErrCodeInvalidQuery, "invalid query: "+expr, err).
				WithSuggestion("Quote phrases and escape special characters such as : + - with a backslash")
		}
		q = qs
	}

	if loc != "" {
		lq := bleve.NewTermQuery(loc)
		lq.SetField(locale.FieldLocale)
		switch opts.Combinator {
		case CombineOr:
			q = bleve.NewDisjunctionQuery(q, lq)
		default:
			q = bleve.NewConjunctionQuery(q, lq)
		}
	}

	if len(opts.Require) == 0 {
		return q, nil
	}

	must := []query.Query{q}
	for _, concept := range opts.Require {
		fq, err := f.conceptQuery(concept, loc)
		if err != nil {
			return nil, err
		}
		must = append(must, fq)
	}
	return bleve.NewConjunctionQuery(must...), nil
}

// conceptQuery matches documents whose derived flag for concept is true.
// Without a locale the flag may be set under any configured locale's name.
func (f *Finder) conceptQuery(concept, loc string) (query.Query, error) {
	if !f.knownConcept(concept) {
		return nil, amerrors.ValidationError("unknown derived attribute "+concept, nil).
			WithDetail("concept", concept).
			WithSuggestion("Use one of: " + strings.Join(f.mapper.DerivedConcepts(), ", "))
	}

	locales := []string{loc}
	if loc == "" {
		locales = f.mapper.Locales()
	}

	seen := make(map[string]bool, len(locales))
	var alts []query.Query
	for _, l := range locales {
		field := f.mapper.FieldNameFor(concept, l)
		if seen[field] {
			continue
		}
		seen[field] = true
		bq := bleve.NewBoolFieldQuery(true)
		bq.SetField(field)
		alts = append(alts, bq)
	}
	if len(alts) == 1 {
		return alts[0], nil
	}
	return bleve.NewDisjunctionQuery(alts...), nil
}

func (f *Finder) knownConcept(concept string) bool {
	for _, c := range f.mapper.DerivedConcepts() {
		if c == concept {
			return true
		}
	}
	return false
}

func toHit(h store.Hit) Hit {
	hit := Hit{DocID: h.ID, Score: h.Score, Fields: h.Fields}
	hit.PlantID, hit.HasPlantID = plantID(h.Fields[locale.FieldPlantID])
	if s, ok := h.Fields[locale.FieldIdentifier].(string); ok {
		hit.Identifier = s
	}
	if s, ok := h.Fields[locale.FieldLocale].(string); ok {
		hit.Locale = s
	}
	return hit
}

// plantID reads a stored plantid. Bleve returns numeric fields as float64.
func plantID(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case string:
		id, err := strconv.ParseInt(n, 10, 64)
		return id, err == nil
	default:
		return 0, false
	}
}
