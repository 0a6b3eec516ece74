package locale

import (
	"fmt"
	"slices"

	amerrors "github.com/Aman-CERP/plantsearch/internal/errors"
	"github.com/Aman-CERP/plantsearch/internal/store"
)

// Fixed document fields written for every plant.
const (
	FieldID         = "id"
	FieldPlantID    = "plantid"
	FieldIdentifier = "identifier"
	FieldLocale     = "locale"
	FieldNames      = "names"
	FieldImages     = "images"
)

// Mapper answers locale field name lookups over a Vocabulary.
type Mapper struct {
	vocab   *Vocabulary
	locales []string
}

// NewMapper creates a mapper for the configured locales. Index mappings
// cover these locales plus every locale named in the vocabulary.
func NewMapper(vocab *Vocabulary, locales []string) *Mapper {
	return &Mapper{vocab: vocab, locales: slices.Clone(locales)}
}

// Vocabulary returns the underlying tables.
func (m *Mapper) Vocabulary() *Vocabulary { return m.vocab }

// Locales returns the configured locales in order.
func (m *Mapper) Locales() []string { return slices.Clone(m.locales) }

// FieldNameFor returns the search field name of a derived concept in
// locale. Unknown locales use the default locale's name and unknown
// concepts are returned unchanged.
func (m *Mapper) FieldNameFor(concept, locale string) string {
	rule, ok := m.vocab.Rule(concept)
	if !ok {
		return concept
	}
	return rule.FieldFor(locale, m.vocab.DefaultLocale)
}

// Translate returns the field name of a canonical property in locale.
func (m *Mapper) Translate(canonical, locale string) string {
	return m.vocab.Translate(canonical, locale)
}

// DerivedFieldNames returns the derived field names used in locale.
func (m *Mapper) DerivedFieldNames(locale string) []string {
	names := make([]string, 0, len(m.vocab.Derived))
	for _, rule := range m.vocab.Derived {
		names = append(names, rule.FieldFor(locale, m.vocab.DefaultLocale))
	}
	return names
}

// DerivedConcepts returns the derived concept names in configuration order.
func (m *Mapper) DerivedConcepts() []string {
	concepts := make([]string, 0, len(m.vocab.Derived))
	for _, rule := range m.vocab.Derived {
		concepts = append(concepts, rule.Concept)
	}
	return concepts
}

// BuildIndexMapping resolves every locale's field name for the mapped
// canonical properties. Analyzed names come first, then keywords, then the
// derived booleans and the fixed identifier fields. A field name that would
// need two different treatments is a mapping conflict.
func (m *Mapper) BuildIndexMapping() ([]store.FieldSpec, error) {
	locales := m.allLocales()
	var specs []store.FieldSpec
	kinds := make(map[string]store.FieldKind)

	add := func(name string, kind store.FieldKind) error {
		if prev, ok := kinds[name]; ok {
			if prev != kind {
				return amerrors.IndexError(amerrors.ErrCodeMappingConflict,
					fmt.Sprintf("field %s would be indexed as both %s and %s", name, prev, kind), nil).
					WithSuggestion("Give the property a distinct name per treatment in the vocabulary")
			}
			return nil
		}
		kinds[name] = kind
		specs = append(specs, store.FieldSpec{Name: name, Kind: kind})
		return nil
	}
	addTranslated := func(canonicals []string, kind store.FieldKind) error {
		for _, canonical := range canonicals {
			for _, loc := range locales {
				if err := add(m.vocab.Translate(canonical, loc), kind); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := addTranslated(m.vocab.Mapping.Analyzed, store.FieldAnalyzed); err != nil {
		return nil, err
	}
	if err := addTranslated(m.vocab.Mapping.Keyword, store.FieldKeyword); err != nil {
		return nil, err
	}
	if err := add(FieldLocale, store.FieldKeyword); err != nil {
		return nil, err
	}
	for _, rule := range m.vocab.Derived {
		for _, loc := range locales {
			if err := add(rule.FieldFor(loc, m.vocab.DefaultLocale), store.FieldBoolean); err != nil {
				return nil, err
			}
		}
	}
	for _, f := range []store.FieldSpec{
		{Name: FieldIdentifier, Kind: store.FieldKeyword},
		{Name: FieldImages, Kind: store.FieldBoolean},
		{Name: FieldPlantID, Kind: store.FieldNumeric},
		{Name: FieldID, Kind: store.FieldNumeric},
	} {
		if err := add(f.Name, f.Kind); err != nil {
			return nil, err
		}
	}
	return specs, nil
}

// allLocales returns the configured locales followed by any other locale
// the vocabulary names, sorted, so mappings are deterministic.
func (m *Mapper) allLocales() []string {
	out := slices.Clone(m.locales)
	seen := make(map[string]bool, len(out))
	for _, l := range out {
		seen[l] = true
	}

	var extra []string
	note := func(l string) {
		if !seen[l] {
			seen[l] = true
			extra = append(extra, l)
		}
	}
	note(m.vocab.DefaultLocale)
	for _, byLocale := range m.vocab.Properties {
		for l := range byLocale {
			note(l)
		}
	}
	for _, rule := range m.vocab.Derived {
		for l := range rule.Fields {
			note(l)
		}
	}
	slices.Sort(extra)
	return append(out, extra...)
}
