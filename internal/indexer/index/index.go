// Package index holds the inverted index and the line store it points into.
// An Index is built once and then only read; callers serialize rebuilds
// against readers.
package index

import (
	"fmt"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/normalizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/linesearch/pkg/errors"
)

type Index struct {
	inverted *Inverted
	store    *Store
}

func New() *Index {
	return &Index{inverted: NewInverted(), store: NewStore()}
}

// Assemble pairs a loaded inverted index with its store and rejects the pair
// if any posting lacks content.
func Assemble(inv *Inverted, store *Store) (*Index, error) {
	idx := &Index{inverted: inv, store: store}
	if err := idx.Verify(); err != nil {
		return nil, err
	}
	return idx, nil
}

// Record stores a line and appends one posting per token. Content is stored
// even when tokens is empty.
func (idx *Index) Record(p Posting, content string, tokens normalizer.TokenSet) {
	idx.store.Put(p.DocID, p.LineID, content)
	for token := range tokens {
		idx.inverted.Append(token, p)
	}
}

func (idx *Index) Lookup(token string) PostingList {
	return idx.inverted.Lookup(token)
}

func (idx *Index) Content(p Posting) (string, bool) {
	return idx.store.Get(p.DocID, p.LineID)
}

// RemoveDocument drops a document's lines and postings together.
func (idx *Index) RemoveDocument(doc string) (lines, postings int) {
	postings = idx.inverted.removeDocument(doc)
	lines = idx.store.Remove(doc)
	return lines, postings
}

// Verify checks that every posting has stored content and that no posting
// list holds the same line twice.
func (idx *Index) Verify() error {
	for _, term := range idx.inverted.Terms() {
		seen := make(map[Posting]struct{})
		for _, p := range idx.inverted.Lookup(term) {
			if _, dup := seen[p]; dup {
				return apperrors.Newf(apperrors.ErrIndexCorrupt, http.StatusInternalServerError,
					"term %q lists posting %s/%d twice", term, p.DocID, p.LineID)
			}
			seen[p] = struct{}{}
			if _, ok := idx.store.Get(p.DocID, p.LineID); !ok {
				return apperrors.Newf(apperrors.ErrIndexCorrupt, http.StatusInternalServerError,
					"term %q posting %s/%d has no content", term, p.DocID, p.LineID)
			}
		}
	}
	return nil
}

func (idx *Index) Stats() Stats {
	return Stats{
		Documents: len(idx.store.docs),
		Lines:     idx.store.Len(),
		Terms:     idx.inverted.Len(),
		Postings:  idx.inverted.PostingCount(),
	}
}

func (idx *Index) Inverted() *Inverted { return idx.inverted }

func (idx *Index) Store() *Store { return idx.store }

func (idx *Index) String() string {
	s := idx.Stats()
	return fmt.Sprintf("index{docs=%d lines=%d terms=%d postings=%d}", s.Documents, s.Lines, s.Terms, s.Postings)
}
