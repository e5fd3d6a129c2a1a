package executor

import (
	"context"
	"log/slog"
	"net/http"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/highlight"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/linesearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/metrics"
)

// MatchedLine is one result line. Rendered carries the locator prefix and the
// highlighted content.
type MatchedLine struct {
	DocID    string `json:"doc_id"`
	LineID   int    `json:"line_id"`
	Content  string `json:"content"`
	Rendered string `json:"rendered"`
}

type SearchResult struct {
	Query      string        `json:"query"`
	Tokens     []string      `json:"tokens"`
	Generation string        `json:"generation"`
	TotalHits  int           `json:"total_hits"`
	Results    []MatchedLine `json:"results"`
}

// IndexReader exposes the installed index for the duration of fn.
type IndexReader interface {
	View(fn func(idx *index.Index, generation string) error) error
}

type Executor struct {
	reader      IndexReader
	highlighter *highlight.Highlighter
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// New builds an Executor. m may be nil.
func New(reader IndexReader, h *highlight.Highlighter, m *metrics.Metrics) *Executor {
	if h == nil {
		h = highlight.New(nil)
	}
	return &Executor{
		reader:      reader,
		highlighter: h,
		metrics:     m,
		logger:      slog.Default().With("component", "query-executor"),
	}
}

// Execute returns every line matching at least one plan token, once each,
// ordered by document id then line id. A posting without stored content
// fails the whole query with ErrIndexCorrupt.
func (e *Executor) Execute(ctx context.Context, plan *parser.QueryPlan) (*SearchResult, error) {
	result := &SearchResult{
		Query:   plan.RawQuery,
		Tokens:  plan.Tokens,
		Results: []MatchedLine{},
	}
	err := e.reader.View(func(idx *index.Index, generation string) error {
		result.Generation = generation
		if plan.Empty() {
			return nil
		}

		seen := make(map[index.Posting]struct{})
		var postings []index.Posting
		for _, token := range plan.Tokens {
			for _, p := range idx.Lookup(token) {
				if _, dup := seen[p]; dup {
					continue
				}
				seen[p] = struct{}{}
				postings = append(postings, p)
			}
		}
		slices.SortFunc(postings, index.Posting.Compare)

		matcher := e.highlighter.Compile(plan.Tokens)
		result.Results = make([]MatchedLine, 0, len(postings))
		for i, p := range postings {
			if i%1024 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			content, ok := idx.Content(p)
			if !ok {
				return apperrors.Newf(apperrors.ErrIndexCorrupt, http.StatusInternalServerError,
					"posting %s/%d has no stored line", p.DocID, p.LineID)
			}
			result.Results = append(result.Results, MatchedLine{
				DocID:    p.DocID,
				LineID:   p.LineID,
				Content:  content,
				Rendered: highlight.Locate(p.DocID, p.LineID) + matcher.Apply(content),
			})
		}
		return nil
	})
	if err != nil {
		e.record("error", 0)
		e.logger.Error("query failed", "query", plan.RawQuery, "error", err)
		return nil, err
	}
	result.TotalHits = len(result.Results)

	switch {
	case plan.Empty():
		e.record("empty_query", 0)
	case result.TotalHits == 0:
		e.record("zero_result", 0)
	default:
		e.record("hit", result.TotalHits)
	}
	e.logger.Debug("query executed",
		"query", plan.RawQuery,
		"tokens", plan.Tokens,
		"results", result.TotalHits,
	)
	return result, nil
}

func (e *Executor) record(resultType string, hits int) {
	if e.metrics == nil {
		return
	}
	e.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	if resultType != "error" {
		e.metrics.SearchResultsCount.Observe(float64(hits))
	}
}
