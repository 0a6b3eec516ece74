package store

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/token/ngram"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/character"
	"github.com/blevesearch/bleve/v2/registry"
)

// NgramTokenizerType is the registered Bleve tokenizer type that emits
// character n-grams for every word of the input.
const NgramTokenizerType = "plant_word_ngram"

func init() {
	_ = registry.RegisterTokenizer(NgramTokenizerType, ngramTokenizerConstructor)
}

// ngramTokenizer splits input into words (runs of letters and digits) and
// emits every rune n-gram of length min..max per word, shortest first at
// each starting rune. Each gram spans its whole word.
//
// Words shorter than min are emitted whole. The ngram filter alone drops
// them, which would leave plants named with short words such as "Ui" or
// a two-letter cultivar code unsearchable.
type ngramTokenizer struct {
	min, max int
	words    *character.CharacterTokenizer
	grams    *ngram.NgramFilter
}

func newNgramTokenizer(minGram, maxGram int) *ngramTokenizer {
	return &ngramTokenizer{
		min:   minGram,
		max:   maxGram,
		words: character.NewCharacterTokenizer(isWordRune),
		grams: ngram.NewNgramFilter(minGram, maxGram),
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Tokenize implements analysis.Tokenizer. Positions count grams, so
// neighbouring grams of one word are adjacent for phrase queries.
func (t *ngramTokenizer) Tokenize(input []byte) analysis.TokenStream {
	words := t.words.Tokenize(input)
	stream := make(analysis.TokenStream, 0, len(words)*(t.max-t.min+1)*4)
	for _, w := range words {
		if utf8.RuneCount(w.Term) < t.min {
			stream = append(stream, w)
			continue
		}
		stream = append(stream, t.grams.Filter(analysis.TokenStream{w})...)
	}
	for i, token := range stream {
		token.Position = i + 1
	}
	return stream
}

// ngramTokenizerConstructor builds the tokenizer from its mapping config.
// Gram sizes arrive as int when set in code and float64 after the mapping
// has been read back from disk.
func ngramTokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	minGram, err := intFromConfig(config, "min_gram", 2)
	if err != nil {
		return nil, err
	}
	maxGram, err := intFromConfig(config, "max_gram", 3)
	if err != nil {
		return nil, err
	}
	if minGram < 1 || maxGram < minGram {
		return nil, fmt.Errorf("invalid n-gram range %d..%d", minGram, maxGram)
	}
	return newNgramTokenizer(minGram, maxGram), nil
}

func intFromConfig(config map[string]interface{}, key string, def int) (int, error) {
	v, ok := config[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("%s must be a number, got %T", key, v)
	}
}
