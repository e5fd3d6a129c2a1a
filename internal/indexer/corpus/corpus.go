// Package corpus enumerates the line-delimited documents an index is built
// from and watches their directory for changes.
package corpus

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/linesearch/pkg/errors"
)

// Document is one source file. Lines keeps blank lines; the builder decides
// which lines get ids.
type Document struct {
	ID    string
	Lines []string
}

// Source yields the whole corpus for a build.
type Source interface {
	Documents(ctx context.Context) ([]Document, error)
}

// DirSource reads every regular, non-hidden file directly under Dir. The
// file name is the document id.
type DirSource struct {
	Dir string
}

func NewDirSource(dir string) *DirSource {
	return &DirSource{Dir: dir}
}

func (s *DirSource) Documents(ctx context.Context) ([]Document, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("listing corpus %s: %w", s.Dir, err)
	}
	docs := make([]Document, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.Dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrDocumentUnreadable, entry.Name(), err)
		}
		docs = append(docs, Document{ID: entry.Name(), Lines: SplitLines(string(data))})
	}
	return docs, nil
}

// StaticSource serves a fixed in-memory corpus.
type StaticSource []Document

func (s StaticSource) Documents(ctx context.Context) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slices.Clone(s), nil
}

// SplitLines splits on '\n' and drops a trailing '\r' from each line. A final
// line terminator does not start an extra line.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.TrimSuffix(text, "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// IsBlank reports whether a line is skipped by indexing.
func IsBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}
