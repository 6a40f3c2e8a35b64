// Package tokenizer turns raw text into normalized index terms. Text is
// segmented into words (UAX #29), NFKC-normalized, case folded and stemmed
// with the Snowball English stemmer. Stop-word and digit filters are
// optional pre-filters applied before normalization.
package tokenizer

import (
	"bufio"
	"fmt"
	"iter"
	"os"
	"strings"
	"unicode"

	"github.com/clipperhouse/uax29/v2/words"
	"github.com/kljensen/snowball/english"
	"golang.org/x/text/unicode/norm"
)

var defaultStopWords = []string{
	"a", "an", "and", "are", "as", "at",
	"be", "by", "for", "from", "has", "he",
	"in", "is", "it", "its", "of", "on",
	"or", "that", "the", "to", "was", "were",
	"will", "with", "this", "but", "they",
	"have", "had", "what", "when", "where",
	"who", "which", "their", "if", "each",
	"do", "not", "no", "so", "can",
}

// Options selects the optional pre-filters.
type Options struct {
	// StopWords are dropped before normalization. Keys are lower case and
	// words are lower-cased before the lookup, so "The" matches "the" even
	// though stemming has not run yet. Nil disables the filter.
	StopWords map[string]struct{}
	// RemoveNumbers drops every word containing a digit.
	RemoveNumbers bool
}

// Tokenizer produces normalized terms. It holds no mutable state and is
// safe for concurrent use.
type Tokenizer struct {
	stopWords     map[string]struct{}
	removeNumbers bool
}

func New(opts Options) *Tokenizer {
	return &Tokenizer{
		stopWords:     opts.StopWords,
		removeNumbers: opts.RemoveNumbers,
	}
}

// Terms lazily yields the normalized terms of text. The sequence can be
// ranged over any number of times.
func (t *Tokenizer) Terms(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		segments := words.FromString(text)
		for segments.Next() {
			word := segments.Value()
			if !isWord(word) || t.filtered(word) {
				continue
			}
			if !yield(Normalize(word)) {
				return
			}
		}
	}
}

// Term normalizes a single query word. Filters are not applied.
func (t *Tokenizer) Term(word string) string {
	return Normalize(word)
}

// Normalize case folds and stems one word.
func Normalize(word string) string {
	folded := strings.ToLower(norm.NFKC.String(word))
	return english.Stem(folded, true)
}

func (t *Tokenizer) filtered(word string) bool {
	if t.stopWords != nil {
		if _, stop := t.stopWords[strings.ToLower(word)]; stop {
			return true
		}
	}
	return t.removeNumbers && strings.IndexFunc(word, unicode.IsDigit) >= 0
}

// isWord reports whether a segment carries any letter or digit; whitespace
// and punctuation segments are not terms.
func isWord(segment string) bool {
	return strings.IndexFunc(segment, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}) >= 0
}

// DefaultStopWords returns a small built-in English stop-word set.
func DefaultStopWords() map[string]struct{} {
	m := make(map[string]struct{}, len(defaultStopWords))
	for _, w := range defaultStopWords {
		m[w] = struct{}{}
	}
	return m
}

// LoadStopWords reads one stop word per line.
func LoadStopWords(path string) (map[string]struct{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening stop-word file: %w", err)
	}
	defer f.Close()
	m := make(map[string]struct{})
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if w := strings.TrimSpace(sc.Text()); w != "" {
			m[strings.ToLower(w)] = struct{}{}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading stop-word file: %w", err)
	}
	return m, nil
}
