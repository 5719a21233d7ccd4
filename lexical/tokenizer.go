package lexical

import (
	"strings"
	"unicode"
)

// defaultStopwords is the built-in english stopword set. The set is
// configurable at runtime via AddStopword/RemoveStopword.
var defaultStopwords = []string{
	"a", "an", "and", "are", "as", "at", "be", "but", "by", "for", "if",
	"in", "into", "is", "it", "no", "not", "of", "on", "or", "such",
	"that", "the", "their", "then", "there", "these", "they", "this",
	"to", "was", "will", "with",
}

// TokenizerOptions configures a Tokenizer.
type TokenizerOptions struct {
	// Stopwords is the initial stopword set. Defaults to a small english set.
	Stopwords []string

	// MinTokenLength drops tokens shorter than this many runes. Default 2.
	MinTokenLength int
}

// Tokenizer lowercases text, splits on non-alphanumeric boundaries and
// drops short tokens and stopwords.
type Tokenizer struct {
	stopwords map[string]struct{}
	minLen    int
}

// NewTokenizer creates a Tokenizer.
func NewTokenizer(optFns ...func(o *TokenizerOptions)) *Tokenizer {
	opts := TokenizerOptions{
		Stopwords:      defaultStopwords,
		MinTokenLength: 2,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	stopwords := make(map[string]struct{}, len(opts.Stopwords))
	for _, w := range opts.Stopwords {
		stopwords[strings.ToLower(w)] = struct{}{}
	}

	return &Tokenizer{
		stopwords: stopwords,
		minLen:    opts.MinTokenLength,
	}
}

// AddStopword adds a word to the stopword set.
func (t *Tokenizer) AddStopword(w string) {
	t.stopwords[strings.ToLower(w)] = struct{}{}
}

// RemoveStopword removes a word from the stopword set.
func (t *Tokenizer) RemoveStopword(w string) {
	delete(t.stopwords, strings.ToLower(w))
}

// IsStopword reports whether w is in the stopword set.
func (t *Tokenizer) IsStopword(w string) bool {
	_, ok := t.stopwords[strings.ToLower(w)]
	return ok
}

// Tokenize splits text into normalized tokens.
func (t *Tokenizer) Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	tokens := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) < t.minLen {
			continue
		}
		if _, ok := t.stopwords[f]; ok {
			continue
		}
		tokens = append(tokens, f)
	}

	return tokens
}
