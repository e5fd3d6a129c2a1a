package index

import (
	"maps"
	"slices"
)

// Store holds raw line content keyed by document then line, so a whole
// document can be dropped without scanning other documents.
type Store struct {
	docs  map[string]map[int]string
	lines int
}

func NewStore() *Store {
	return &Store{docs: make(map[string]map[int]string)}
}

// Put inserts or overwrites the content of a line.
func (s *Store) Put(doc string, line int, content string) {
	lines, ok := s.docs[doc]
	if !ok {
		lines = make(map[int]string)
		s.docs[doc] = lines
	}
	if _, exists := lines[line]; !exists {
		s.lines++
	}
	lines[line] = content
}

// Get reports false when the key is unknown. Stored content is never empty.
func (s *Store) Get(doc string, line int) (string, bool) {
	content, ok := s.docs[doc][line]
	return content, ok
}

// Remove deletes every line of doc and returns how many were removed.
func (s *Store) Remove(doc string) int {
	n := len(s.docs[doc])
	delete(s.docs, doc)
	s.lines -= n
	return n
}

func (s *Store) Documents() []string {
	return slices.Sorted(maps.Keys(s.docs))
}

// Each visits lines in (document, line) order until fn returns false.
func (s *Store) Each(fn func(doc string, line int, content string) bool) {
	for _, doc := range s.Documents() {
		lines := s.docs[doc]
		for _, line := range slices.Sorted(maps.Keys(lines)) {
			if !fn(doc, line, lines[line]) {
				return
			}
		}
	}
}

func (s *Store) Len() int { return s.lines }
