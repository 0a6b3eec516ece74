// Package derive computes the boolean attributes of a plant that are not
// stored at the source, such as edibility, from its raw property values.
package derive

import (
	"golang.org/x/text/unicode/norm"

	"github.com/Aman-CERP/plantsearch/internal/locale"
	"github.com/Aman-CERP/plantsearch/internal/plant"
)

// Concept names with dedicated accessors on Result.
const (
	ConceptEdible      = "edible"
	ConceptSustainable = "sustainable"
)

// Result holds one flag per derived concept.
type Result map[string]bool

// Edible reports the edible flag.
func (r Result) Edible() bool { return r[ConceptEdible] }

// Sustainable reports the sustainable flag.
func (r Result) Sustainable() bool { return r[ConceptSustainable] }

// Engine evaluates the vocabulary's derived rules. It holds no per-plant
// state and is safe for concurrent use.
type Engine struct {
	vocab    *locale.Vocabulary
	keywords map[string]map[string]map[string]struct{} // concept -> locale -> NFC keyword set
}

// NewEngine prepares the keyword set of every rule for each locale the rule
// names, plus the default locale.
func NewEngine(vocab *locale.Vocabulary) *Engine {
	e := &Engine{
		vocab:    vocab,
		keywords: make(map[string]map[string]map[string]struct{}, len(vocab.Derived)),
	}
	for _, rule := range vocab.Derived {
		byLocale := make(map[string]map[string]struct{}, len(rule.Keywords)+1)
		byLocale[vocab.DefaultLocale] = keywordSet(rule.KeywordsFor(vocab.DefaultLocale, vocab.DefaultLocale))
		for loc := range rule.Keywords {
			byLocale[loc] = keywordSet(rule.KeywordsFor(loc, vocab.DefaultLocale))
		}
		e.keywords[rule.Concept] = byLocale
	}
	return e
}

func keywordSet(kws []string) map[string]struct{} {
	set := make(map[string]struct{}, len(kws))
	for _, kw := range kws {
		set[norm.NFC.String(kw)] = struct{}{}
	}
	return set
}

// Evaluate computes every derived concept for one plant in locale. rows
// may include other locales; only rows of locale are consulted. A concept
// is true when the rule's source property is present and any of its
// values equals one of the locale's keywords.
func (e *Engine) Evaluate(rows []plant.PropertyRow, loc string) (Result, error) {
	result := make(Result, len(e.vocab.Derived))
	for _, rule := range e.vocab.Derived {
		source := e.vocab.Translate(rule.Source, loc)

		row, ok := findRow(rows, source, loc)
		if !ok {
			result[rule.Concept] = false
			continue
		}

		values, err := plant.DecodeValues(row.EncodedValues)
		if err != nil {
			return nil, err
		}
		result[rule.Concept] = e.matches(rule.Concept, loc, values)
	}
	return result, nil
}

// matches looks up the prepared set of loc. Locales no rule names share
// the default locale's set.
func (e *Engine) matches(concept, loc string, values []string) bool {
	byLocale := e.keywords[concept]
	set, ok := byLocale[loc]
	if !ok {
		set = byLocale[e.vocab.DefaultLocale]
	}
	for _, v := range values {
		if _, hit := set[norm.NFC.String(v)]; hit {
			return true
		}
	}
	return false
}

// findRow returns the first row named name in locale.
func findRow(rows []plant.PropertyRow, name, loc string) (plant.PropertyRow, bool) {
	for _, row := range rows {
		if row.Name == name && row.Locale == loc {
			return row, true
		}
	}
	return plant.PropertyRow{}, false
}
