// Package locale maps language-neutral property and concept names to the
// field names used per locale, and derives the search index field mapping
// from that vocabulary.
package locale

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/plantsearch/configs"
	amerrors "github.com/Aman-CERP/plantsearch/internal/errors"
)

// Vocabulary is the locale table set loaded from YAML.
type Vocabulary struct {
	// DefaultLocale is consulted when a table has no entry for a locale.
	DefaultLocale string `yaml:"default_locale"`

	// Properties maps canonical property name -> locale -> field name.
	Properties map[string]map[string]string `yaml:"properties"`

	// Derived lists the boolean attributes computed at index time.
	Derived []DerivedRule `yaml:"derived"`

	// Mapping lists the canonical names indexed as analyzed text or keywords.
	Mapping MappingSpec `yaml:"mapping"`
}

// DerivedRule describes one derived boolean concept.
type DerivedRule struct {
	Concept  string              `yaml:"concept"`
	Source   string              `yaml:"source"`
	Fields   map[string]string   `yaml:"fields"`
	Keywords map[string][]string `yaml:"keywords"`
}

// MappingSpec groups canonical names by indexing treatment.
type MappingSpec struct {
	Analyzed []string `yaml:"analyzed"`
	Keyword  []string `yaml:"keyword"`
}

// DefaultVocabulary returns the embedded vocabulary.
func DefaultVocabulary() (*Vocabulary, error) {
	return ParseVocabulary(configs.Vocabulary)
}

// LoadVocabulary reads a vocabulary file.
func LoadVocabulary(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, amerrors.New(amerrors.ErrCodeConfigNotFound, "read vocabulary "+path, err)
	}
	return ParseVocabulary(data)
}

// ParseVocabulary decodes and validates vocabulary YAML.
func ParseVocabulary(data []byte) (*Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, amerrors.New(amerrors.ErrCodeVocabularyInvalid, "parse vocabulary", err)
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return &v, nil
}

// Validate checks that every table can answer for the default locale.
func (v *Vocabulary) Validate() error {
	if v.DefaultLocale == "" {
		return invalid("default_locale is required")
	}
	for canonical, byLocale := range v.Properties {
		if len(byLocale) == 0 {
			return invalid(fmt.Sprintf("property %s has no translations", canonical))
		}
	}

	seen := make(map[string]bool, len(v.Derived))
	for i, rule := range v.Derived {
		switch {
		case rule.Concept == "":
			return invalid(fmt.Sprintf("derived[%d]: concept is required", i))
		case seen[rule.Concept]:
			return invalid(fmt.Sprintf("derived concept %s defined twice", rule.Concept))
		case rule.Source == "":
			return invalid(fmt.Sprintf("derived %s: source is required", rule.Concept))
		case rule.Fields[v.DefaultLocale] == "":
			return invalid(fmt.Sprintf("derived %s: no field name for default locale %s", rule.Concept, v.DefaultLocale))
		case len(rule.Keywords[v.DefaultLocale]) == 0:
			return invalid(fmt.Sprintf("derived %s: no keywords for default locale %s", rule.Concept, v.DefaultLocale))
		}
		seen[rule.Concept] = true
	}

	if len(v.Mapping.Analyzed) == 0 {
		return invalid("mapping.analyzed must name at least one field")
	}
	return nil
}

// Translate returns the field name of a canonical property in locale. It
// falls back to the default locale and then to the canonical name.
func (v *Vocabulary) Translate(canonical, locale string) string {
	byLocale, ok := v.Properties[canonical]
	if !ok {
		return canonical
	}
	if name := byLocale[locale]; name != "" {
		return name
	}
	if name := byLocale[v.DefaultLocale]; name != "" {
		return name
	}
	return canonical
}

// Rule returns the derived rule for concept.
func (v *Vocabulary) Rule(concept string) (DerivedRule, bool) {
	for _, r := range v.Derived {
		if r.Concept == concept {
			return r, true
		}
	}
	return DerivedRule{}, false
}

// FieldFor returns the rule's field name in locale, falling back to the
// default locale.
func (r DerivedRule) FieldFor(locale, defaultLocale string) string {
	if name := r.Fields[locale]; name != "" {
		return name
	}
	return r.Fields[defaultLocale]
}

// KeywordsFor returns the rule's keywords in locale, falling back to the
// default locale.
func (r DerivedRule) KeywordsFor(locale, defaultLocale string) []string {
	if kw, ok := r.Keywords[locale]; ok && len(kw) > 0 {
		return kw
	}
	return r.Keywords[defaultLocale]
}

func invalid(msg string) error {
	return amerrors.New(amerrors.ErrCodeVocabularyInvalid, "vocabulary: "+msg, nil)
}
