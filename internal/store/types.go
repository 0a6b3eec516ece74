// Package store provides the two collaborators of the index refresh: the
// read-only relational plant store (SQLite) and the full-text search index
// (Bleve).
package store

import (
	"context"

	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/Aman-CERP/plantsearch/internal/plant"
)

// RecordWithProperties is one plant with its property rows for a locale.
type RecordWithProperties struct {
	Record     plant.Record
	Properties []plant.PropertyRow
}

// PlantStore is the relational source of plant records. It is read-only.
type PlantStore interface {
	// CountRecords returns the number of plants, used for progress only.
	CountRecords(ctx context.Context, locale string) (int, error)

	// FetchRecordsPage returns up to limit plants ordered by id, starting at
	// offset, each with its property rows for locale.
	FetchRecordsPage(ctx context.Context, limit, offset int, locale string) ([]RecordWithProperties, error)

	// GetPlantsByID returns the requested plants that exist, in ascending id
	// order, with their property rows for locale.
	GetPlantsByID(ctx context.Context, ids []int64, locale string) ([]RecordWithProperties, error)

	// PropertyValues returns the distinct decoded values of a property
	// across all plants and locales, sorted.
	PropertyValues(ctx context.Context, name string) ([]string, error)

	Close() error
}

// FieldKind selects how a document field is indexed.
type FieldKind string

const (
	// FieldAnalyzed runs the n-gram analyzer for partial-word matching.
	FieldAnalyzed FieldKind = "analyzed"
	// FieldKeyword indexes the value verbatim for exact matching.
	FieldKeyword FieldKind = "keyword"
	// FieldBoolean indexes a boolean flag.
	FieldBoolean FieldKind = "boolean"
	// FieldNumeric indexes a number.
	FieldNumeric FieldKind = "numeric"
)

// FieldSpec maps one document field to its indexing treatment.
type FieldSpec struct {
	Name string
	Kind FieldKind
}

// Settings configures analysis when an index is created.
type Settings struct {
	// Analyzer is the name of the n-gram + lowercase analyzer.
	Analyzer string
	// Tokenizer is the name of the n-gram tokenizer.
	Tokenizer string
	MinGram   int
	MaxGram   int
}

// DefaultSettings returns the plant_analyzer / plant_ngram (2..3) settings.
func DefaultSettings() Settings {
	return Settings{
		Analyzer:  PlantAnalyzerName,
		Tokenizer: PlantTokenizerName,
		MinGram:   2,
		MaxGram:   3,
	}
}

// SearchOptions controls paging and the stored fields returned per hit.
type SearchOptions struct {
	From   int
	Size   int
	Fields []string
}

// Hit is one search result with its stored fields.
type Hit struct {
	ID     string
	Score  float64
	Fields map[string]any
}

// SearchResult is an ordered page of hits.
type SearchResult struct {
	Hits  []Hit
	Total uint64
}

// SearchIndex is the full-text index written by the refresh and read by
// the finder.
type SearchIndex interface {
	Exists(ctx context.Context) (bool, error)
	Delete(ctx context.Context) error
	// Create prepares an index with the analysis settings. Documents can be
	// added once SetMapping has been applied.
	Create(ctx context.Context, settings Settings) error
	SetMapping(ctx context.Context, fields []FieldSpec) error

	AddDocument(ctx context.Context, id string, fields map[string]any) error
	// Refresh makes every document added so far searchable.
	Refresh(ctx context.Context) error

	Search(ctx context.Context, q query.Query, opts SearchOptions) (*SearchResult, error)
	DocCount(ctx context.Context) (uint64, error)
	Close() error
}

// ShadowIndex is a SearchIndex that can be rebuilt next to the live copy and
// swapped in once complete.
type ShadowIndex interface {
	SearchIndex
	// Shadow returns an empty index that does not serve searches yet.
	Shadow(ctx context.Context) (SearchIndex, error)
	// Promote atomically replaces the live index with shadow.
	Promote(ctx context.Context, shadow SearchIndex) error
}

// Sealer is implemented by indexes whose finished generation must be
// reopened read-only before other processes can open it.
type Sealer interface {
	Seal(ctx context.Context) error
}
