// Package normalizer turns raw text into the set of stemmed, stop-word
// filtered tokens used as inverted index keys. Indexing and querying share a
// single Normalizer so the two sides always agree on token form.
package normalizer

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/clipperhouse/uax29/v2/words"
	"github.com/kljensen/snowball"
)

// DefaultLanguage is the Snowball algorithm used when none is configured.
const DefaultLanguage = "english"

const punctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// Stemmer reduces a lower-cased word to its stem.
type Stemmer interface {
	Stem(word string) string
}

// SnowballStemmer stems with the Snowball algorithm for one language. Words
// on the language's own stop list are returned unstemmed so they still match
// the stop-word filter afterwards.
type SnowballStemmer struct {
	language string
}

// NewSnowballStemmer validates language against the algorithms the snowball
// package ships.
func NewSnowballStemmer(language string) (*SnowballStemmer, error) {
	if language == "" {
		language = DefaultLanguage
	}
	if _, err := snowball.Stem("probe", language, false); err != nil {
		return nil, fmt.Errorf("snowball language %q: %w", language, err)
	}
	return &SnowballStemmer{language: language}, nil
}

func (s *SnowballStemmer) Stem(word string) string {
	stemmed, err := snowball.Stem(word, s.language, false)
	if err != nil {
		return word
	}
	return stemmed
}

func (s *SnowballStemmer) Language() string { return s.language }

// Config carries the process-scoped collaborators of a Normalizer.
type Config struct {
	StopWords StopWords
	Stemmer   Stemmer
}

// Normalizer is safe for concurrent use; it holds no mutable state.
type Normalizer struct {
	stopWords StopWords
	stemmer   Stemmer
	strip     func(rune) rune
}

// New builds a Normalizer. A nil Stemmer defaults to English Snowball and a
// nil stop-word set disables stop-word removal.
func New(cfg Config) (*Normalizer, error) {
	stemmer := cfg.Stemmer
	if stemmer == nil {
		s, err := NewSnowballStemmer(DefaultLanguage)
		if err != nil {
			return nil, err
		}
		stemmer = s
	}
	return &Normalizer{
		stopWords: cfg.StopWords,
		stemmer:   stemmer,
		strip: func(r rune) rune {
			if r < unicode.MaxASCII && strings.ContainsRune(punctuation, r) {
				return -1
			}
			return r
		},
	}, nil
}

// Normalize strips ASCII punctuation, lower-cases, segments on Unicode word
// boundaries, stems each word and drops stems found in the stop list.
func (n *Normalizer) Normalize(text string) TokenSet {
	set := make(TokenSet)
	if text == "" {
		return set
	}
	text = strings.ToLower(strings.Map(n.strip, text))

	segments := words.FromString(text)
	for segments.Next() {
		word := segments.Value()
		if !isWord(word) {
			continue
		}
		token := n.stemmer.Stem(word)
		if n.stopWords.Contains(token) {
			continue
		}
		set.Add(token)
	}
	return set
}

// isWord filters out whitespace and symbol segments, which UAX#29 reports
// as segments of their own.
func isWord(segment string) bool {
	for _, r := range segment {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
