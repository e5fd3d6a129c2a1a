package normalizer

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
)

//go:embed stopwords/english.txt
var englishStopWords string

// StopWords is an immutable set of words excluded from the index.
type StopWords map[string]struct{}

func (s StopWords) Contains(word string) bool {
	_, ok := s[word]
	return ok
}

func (s StopWords) Len() int { return len(s) }

// DefaultStopWords returns the built-in English list.
func DefaultStopWords() StopWords {
	sw, _ := ParseStopWords(strings.NewReader(englishStopWords))
	return sw
}

// LoadStopWords reads one word per line from path. Blank lines and lines
// starting with '#' are ignored.
func LoadStopWords(path string) (StopWords, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening stop words %s: %w", path, err)
	}
	defer f.Close()
	return ParseStopWords(f)
}

func ParseStopWords(r io.Reader) (StopWords, error) {
	sw := make(StopWords)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		word := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if word == "" || strings.HasPrefix(word, "#") {
			continue
		}
		sw[word] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading stop words: %w", err)
	}
	return sw, nil
}

// StopWordsFor picks the stop list for an indexer: an explicit file wins,
// otherwise English gets the built-in list and other languages get none.
func StopWordsFor(language, path string) (StopWords, error) {
	if path != "" {
		return LoadStopWords(path)
	}
	if language == "" || language == DefaultLanguage {
		return DefaultStopWords(), nil
	}
	return StopWords{}, nil
}

func NewStopWords(words ...string) StopWords {
	sw := make(StopWords, len(words))
	for _, w := range words {
		sw[w] = struct{}{}
	}
	return sw
}
