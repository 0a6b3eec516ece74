package search

import (
	"context"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/plantsearch/internal/logging"
	"github.com/Aman-CERP/plantsearch/internal/plant"
	"github.com/Aman-CERP/plantsearch/internal/store"
)

// DefaultResolverCacheSize is the number of (plant, locale) proxies kept.
const DefaultResolverCacheSize = 256

type cacheKey struct {
	id     int64
	locale string
}

// Resolver loads plants by id for display after a search. Resolved proxies
// are cached per locale and shared between callers, who must not modify
// them.
type Resolver struct {
	store  store.PlantStore
	cache  *lru.Cache[cacheKey, *plant.Proxy]
	logger *slog.Logger
}

// NewResolver creates a resolver over st. A non-positive cacheSize uses
// DefaultResolverCacheSize.
func NewResolver(st store.PlantStore, cacheSize int, logger *slog.Logger) *Resolver {
	if cacheSize <= 0 {
		cacheSize = DefaultResolverCacheSize
	}
	cache, _ := lru.New[cacheKey, *plant.Proxy](cacheSize)
	return &Resolver{
		store:  st,
		cache:  cache,
		logger: logging.Component(logger, "resolver"),
	}
}

// Plants returns the proxies of ids in loc, in the order requested. Ids
// without a plant are dropped and a repeated id is returned once.
func (r *Resolver) Plants(ctx context.Context, ids []int64, loc string) ([]*plant.Proxy, error) {
	found := make(map[int64]*plant.Proxy, len(ids))
	var misses []int64
	for _, id := range ids {
		if _, done := found[id]; done {
			continue
		}
		if p, ok := r.cache.Get(cacheKey{id: id, locale: loc}); ok {
			found[id] = p
			continue
		}
		found[id] = nil
		misses = append(misses, id)
	}

	if len(misses) > 0 {
		records, err := r.store.GetPlantsByID(ctx, misses, loc)
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			p, err := plant.FromRecord(rec.Record, rec.Properties, loc)
			if err != nil {
				return nil, err
			}
			found[rec.Record.ID] = p
			r.cache.Add(cacheKey{id: rec.Record.ID, locale: loc}, p)
		}
		r.logger.Debug("plants_resolved",
			slog.String("locale", loc),
			slog.Int("requested", len(ids)),
			slog.Int("loaded", len(records)),
			slog.Int("missing", len(misses)-len(records)))
	}

	out := make([]*plant.Proxy, 0, len(found))
	seen := make(map[int64]bool, len(found))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if p := found[id]; p != nil {
			out = append(out, p)
		}
	}
	return out, nil
}

// PlantsByLocale resolves several locales at once, one goroutine per
// locale with at most parallelism running. The first error cancels the
// rest.
func (r *Resolver) PlantsByLocale(ctx context.Context, ids map[string][]int64, parallelism int) (map[string][]*plant.Proxy, error) {
	if parallelism <= 0 {
		parallelism = 1
	}

	var mu sync.Mutex
	out := make(map[string][]*plant.Proxy, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for loc, locIDs := range ids {
		g.Go(func() error {
			proxies, err := r.Plants(gctx, locIDs, loc)
			if err != nil {
				return err
			}
			mu.Lock()
			out[loc] = proxies
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Purge empties the cache, e.g. after the store was replaced.
func (r *Resolver) Purge() {
	r.cache.Purge()
}

// Len returns the number of cached proxies.
func (r *Resolver) Len() int {
	return r.cache.Len()
}
