package normalizer

import "slices"

// TokenSet holds each normalized token of a text once.
type TokenSet map[string]struct{}

func NewTokenSet(tokens ...string) TokenSet {
	s := make(TokenSet, len(tokens))
	for _, t := range tokens {
		s.Add(t)
	}
	return s
}

func (s TokenSet) Add(token string) { s[token] = struct{}{} }

func (s TokenSet) Contains(token string) bool {
	_, ok := s[token]
	return ok
}

func (s TokenSet) Len() int { return len(s) }

// Sorted returns the tokens in ascending order.
func (s TokenSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}
