package index

import (
	"strconv"

	"github.com/Aman-CERP/plantsearch/internal/derive"
	"github.com/Aman-CERP/plantsearch/internal/locale"
	"github.com/Aman-CERP/plantsearch/internal/plant"
	"github.com/Aman-CERP/plantsearch/internal/store"
)

// Document is one search document for a (plant, locale) pair.
type Document struct {
	// ID is the synthetic document id, the run-wide counter as a string.
	ID     string
	Fields map[string]any
	// Full is false for fallback documents of plants without properties in
	// the locale.
	Full bool
}

// Assembler turns store records into search documents.
type Assembler struct {
	mapper *locale.Mapper
	engine *derive.Engine
}

// NewAssembler creates an assembler over the mapper's vocabulary.
func NewAssembler(mapper *locale.Mapper, engine *derive.Engine) *Assembler {
	return &Assembler{mapper: mapper, engine: engine}
}

// Assemble builds the document for rec in loc with synthetic id docID.
// A record with at least one property row in loc yields a full document;
// otherwise a fallback document with only id, identifier, locale and an
// images flag.
func (a *Assembler) Assemble(docID int64, rec store.RecordWithProperties, loc string) (Document, error) {
	rows := plant.RowsForLocale(rec.Properties, loc)
	if len(rows) == 0 {
		return Document{
			ID: strconv.FormatInt(docID, 10),
			Fields: map[string]any{
				locale.FieldID:         docID,
				locale.FieldIdentifier: rec.Record.Identifier,
				locale.FieldLocale:     loc,
				locale.FieldImages:     rec.Record.HasImages(),
			},
		}, nil
	}

	proxy, err := plant.FromRecord(rec.Record, rows, loc)
	if err != nil {
		return Document{}, err
	}
	derived, err := a.engine.Evaluate(rows, loc)
	if err != nil {
		return Document{}, err
	}

	fields := map[string]any{
		locale.FieldID:         docID,
		locale.FieldPlantID:    rec.Record.ID,
		locale.FieldIdentifier: proxy.Identifier(),
		locale.FieldLocale:     loc,
		locale.FieldNames:      proxy.Names(),
	}
	if rec.Record.HasImages() {
		fields[locale.FieldImages] = true
	}

	reserved := a.reservedNames(loc)
	for _, prop := range proxy.Properties() {
		if reserved[prop.Name] {
			continue
		}
		switch len(prop.Values) {
		case 0:
		case 1:
			fields[prop.Name] = prop.Values[0]
		default:
			fields[prop.Name] = prop.Values
		}
	}

	for _, concept := range a.mapper.DerivedConcepts() {
		fields[a.mapper.FieldNameFor(concept, loc)] = derived[concept]
	}

	return Document{ID: strconv.FormatInt(docID, 10), Fields: fields, Full: true}, nil
}

// reservedNames are never copied from raw properties: the fixed fields and
// every name a derived flag may use in loc.
func (a *Assembler) reservedNames(loc string) map[string]bool {
	reserved := map[string]bool{
		locale.FieldID:         true,
		locale.FieldPlantID:    true,
		locale.FieldIdentifier: true,
		locale.FieldLocale:     true,
		locale.FieldNames:      true,
		locale.FieldImages:     true,
	}
	for _, c := range a.mapper.DerivedConcepts() {
		reserved[c] = true
	}
	for _, f := range a.mapper.DerivedFieldNames(loc) {
		reserved[f] = true
	}
	return reserved
}
