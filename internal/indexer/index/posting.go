package index

import (
	"cmp"
	"strings"
)

// Posting identifies exactly one stored line.
type Posting struct {
	DocID  string `json:"doc_id"`
	LineID int    `json:"line_id"`
}

// Compare orders postings by document id lexicographically, then line id
// numerically.
func (p Posting) Compare(o Posting) int {
	if c := strings.Compare(p.DocID, o.DocID); c != 0 {
		return c
	}
	return cmp.Compare(p.LineID, o.LineID)
}

// PostingList keeps postings in corpus-build order.
type PostingList []Posting

type TermEntry struct {
	Term     string      `json:"term"`
	Postings PostingList `json:"postings"`
}

type Stats struct {
	Documents int `json:"documents"`
	Lines     int `json:"lines"`
	Terms     int `json:"terms"`
	Postings  int `json:"postings"`
}
