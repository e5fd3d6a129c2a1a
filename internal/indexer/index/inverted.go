package index

import (
	"maps"
	"slices"
)

// Inverted maps a token to the lines it occurs on.
type Inverted struct {
	postings map[string]PostingList
	total    int
}

func NewInverted() *Inverted {
	return &Inverted{postings: make(map[string]PostingList)}
}

func (inv *Inverted) Append(token string, p Posting) {
	inv.postings[token] = append(inv.postings[token], p)
	inv.total++
}

// Lookup returns the token's postings, or nil when the token is unknown.
// The returned slice is shared and must not be modified.
func (inv *Inverted) Lookup(token string) PostingList {
	return inv.postings[token]
}

// Set replaces the postings of a token wholesale; used when loading a
// snapshot.
func (inv *Inverted) Set(token string, list PostingList) {
	inv.total += len(list) - len(inv.postings[token])
	if len(list) == 0 {
		delete(inv.postings, token)
		return
	}
	inv.postings[token] = list
}

func (inv *Inverted) Terms() []string {
	return slices.Sorted(maps.Keys(inv.postings))
}

// Entries returns every term with its postings, sorted by term.
func (inv *Inverted) Entries() []TermEntry {
	terms := inv.Terms()
	entries := make([]TermEntry, 0, len(terms))
	for _, term := range terms {
		entries = append(entries, TermEntry{Term: term, Postings: inv.postings[term]})
	}
	return entries
}

func (inv *Inverted) Len() int { return len(inv.postings) }

func (inv *Inverted) PostingCount() int { return inv.total }

// removeDocument drops every posting of doc, deleting terms left empty.
func (inv *Inverted) removeDocument(doc string) int {
	removed := 0
	for term, list := range inv.postings {
		kept := slices.DeleteFunc(slices.Clone(list), func(p Posting) bool { return p.DocID == doc })
		if len(kept) == len(list) {
			continue
		}
		removed += len(list) - len(kept)
		if len(kept) == 0 {
			delete(inv.postings, term)
		} else {
			inv.postings[term] = kept
		}
	}
	inv.total -= removed
	return removed
}
