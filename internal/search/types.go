// Package search is the read path over the plant index. It runs query
// string searches restricted to a locale and translates hits back to plant
// ids, which the Resolver turns into plant records.
package search

import "github.com/Aman-CERP/plantsearch/internal/locale"

// Combinator joins the caller's query with the locale filter.
type Combinator int

const (
	// CombineAnd requires both the query and the locale to match.
	CombineAnd Combinator = iota
	// CombineOr matches documents satisfying either. Every document of the
	// locale matches regardless of the query, so this is only useful for
	// reproducing old result sets.
	CombineOr
)

// String returns "and" or "or".
func (c Combinator) String() string {
	if c == CombineOr {
		return "or"
	}
	return "and"
}

// ParseCombinator accepts "and", "or" or the empty string (and).
func ParseCombinator(s string) (Combinator, bool) {
	switch s {
	case "", "and", "AND":
		return CombineAnd, true
	case "or", "OR":
		return CombineOr, true
	default:
		return CombineAnd, false
	}
}

// SearchOptions configures a search query.
type SearchOptions struct {
	// Limit is the maximum number of hits (default: the finder's default
	// limit). Limits above MaxLimit are rejected.
	Limit int

	// Offset skips the first hits.
	Offset int

	// Combinator joins the query and the locale filter. Zero is CombineAnd.
	Combinator Combinator

	// Require lists derived concepts (e.g. "edible") that must be true. The
	// concept is resolved to its field name in the searched locale.
	Require []string
}

// Hit is one matching document.
type Hit struct {
	// DocID is the synthetic document id.
	DocID string

	// PlantID is the source plant id; zero when HasPlantID is false.
	PlantID    int64
	HasPlantID bool

	Identifier string
	Locale     string
	Score      float64

	// Fields are all stored fields of the document.
	Fields map[string]any
}

// Name returns the first stored plant name. Fallback documents have none.
func (h Hit) Name() string {
	return firstName(h.Fields[locale.FieldNames])
}

// Flags returns the derived fields of the hit's locale that are true, in
// vocabulary order.
func (h Hit) Flags(mapper *locale.Mapper) []string {
	var flags []string
	for _, field := range mapper.DerivedFieldNames(h.Locale) {
		if set, _ := h.Fields[field].(bool); set {
			flags = append(flags, field)
		}
	}
	return flags
}

// firstName reads the first entry of a stored names field, which bleve
// returns as a string for one value and a list for several.
func firstName(v any) string {
	switch names := v.(type) {
	case string:
		return names
	case []any:
		if len(names) > 0 {
			s, _ := names[0].(string)
			return s
		}
	}
	return ""
}

// Result is an ordered page of hits.
type Result struct {
	Hits  []Hit
	Total uint64
}

// PlantIDs returns the plant id of each hit in hit order, skipping hits
// without one.
func (r *Result) PlantIDs() []int64 {
	ids := make([]int64, 0, len(r.Hits))
	for _, h := range r.Hits {
		if h.HasPlantID {
			ids = append(ids, h.PlantID)
		}
	}
	return ids
}
