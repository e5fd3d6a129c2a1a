package executor

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/normalizer"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/highlight"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/linesearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/metrics"
)

type fixture struct {
	engine *indexer.Engine
	parser *parser.Parser
	exec   *Executor
	m      *metrics.Metrics
}

func newFixture(t *testing.T, docs corpus.StaticSource) *fixture {
	t.Helper()
	norm, err := normalizer.New(normalizer.Config{StopWords: normalizer.DefaultStopWords()})
	if err != nil {
		t.Fatal(err)
	}
	engine, err := indexer.NewEngine(indexer.Options{Source: docs, Normalizer: norm, Workers: 2})
	if err != nil {
		t.Fatal(err)
	}
	if err := engine.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	m := metrics.New()
	return &fixture{
		engine: engine,
		parser: parser.New(norm),
		exec:   New(engine, highlight.New(highlight.Wrap("[", "]")), m),
		m:      m,
	}
}

func (f *fixture) search(t *testing.T, query string) *SearchResult {
	t.Helper()
	res, err := f.exec.Execute(context.Background(), f.parser.Parse(query))
	if err != nil {
		t.Fatalf("Execute(%q): %v", query, err)
	}
	return res
}

var doc1 = corpus.StaticSource{
	{ID: "doc1", Lines: []string{"The quick fox jumps", "", "A slow turtle"}},
}

func TestSymmetryExample(t *testing.T) {
	f := newFixture(t, doc1)

	fox := f.search(t, "fox")
	want := []MatchedLine{{
		DocID:    "doc1",
		LineID:   0,
		Content:  "The quick fox jumps",
		Rendered: "- document doc1| row 0: The quick [fox] jumps",
	}}
	if diff := cmp.Diff(want, fox.Results); diff != "" {
		t.Errorf("fox mismatch (-want +got):\n%s", diff)
	}

	turtle := f.search(t, "turtle")
	want = []MatchedLine{{
		DocID:    "doc1",
		LineID:   1,
		Content:  "A slow turtle",
		Rendered: "- document doc1| row 1: A slow [turtl]e",
	}}
	if diff := cmp.Diff(want, turtle.Results); diff != "" {
		t.Errorf("turtle mismatch (-want +got):\n%s", diff)
	}

	if the := f.search(t, "the"); len(the.Results) != 0 {
		t.Errorf("stop-word query returned %d results", len(the.Results))
	}
}

// The stem is highlighted literally, so an inflected surface form is only
// partly marked.
func TestHighlightUsesStemLiterally(t *testing.T) {
	f := newFixture(t, doc1)
	res := f.search(t, "jumping")
	if len(res.Results) != 1 {
		t.Fatalf("results = %d, want 1", len(res.Results))
	}
	if got, want := res.Results[0].Rendered, "- document doc1| row 0: The quick fox [jump]s"; got != want {
		t.Errorf("Rendered = %q, want %q", got, want)
	}
}

func TestDeduplicatesLinesMatchingSeveralTokens(t *testing.T) {
	f := newFixture(t, doc1)
	res := f.search(t, "quick fox jumps")
	if res.TotalHits != 1 {
		t.Fatalf("TotalHits = %d, want 1", res.TotalHits)
	}
	if got, want := res.Results[0].Rendered, "- document doc1| row 0: The [quick] [fox] [jump]s"; got != want {
		t.Errorf("Rendered = %q, want %q", got, want)
	}
}

func TestOrdering(t *testing.T) {
	docs := corpus.StaticSource{
		{ID: "b", Lines: []string{"fox one"}},
		{ID: "a10", Lines: []string{"fox"}},
		{ID: "a", Lines: make([]string, 0, 12)},
	}
	for i := range 12 {
		docs[2].Lines = append(docs[2].Lines, fmt.Sprintf("turtle %d", i))
	}
	docs[2].Lines[10] = "fox ten"
	docs[2].Lines[2] = "fox two"

	f := newFixture(t, docs)
	res := f.search(t, "fox turtle")
	var got []string
	for _, r := range res.Results {
		got = append(got, fmt.Sprintf("%s/%d", r.DocID, r.LineID))
	}
	want := []string{"a/0", "a/1", "a/2", "a/3", "a/4", "a/5", "a/6", "a/7", "a/8", "a/9", "a/10", "a/11", "a10/0", "b/0"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	for i := 1; i < len(res.Results); i++ {
		prev := index.Posting{DocID: res.Results[i-1].DocID, LineID: res.Results[i-1].LineID}
		cur := index.Posting{DocID: res.Results[i].DocID, LineID: res.Results[i].LineID}
		if prev.Compare(cur) >= 0 {
			t.Errorf("results %d and %d not strictly ascending", i-1, i)
		}
	}
}

func TestMissingTokenAndEmptyQuery(t *testing.T) {
	f := newFixture(t, doc1)
	if res := f.search(t, "xyzzy"); res.TotalHits != 0 || res.Results == nil {
		t.Errorf("xyzzy = %+v, want empty non-nil results", res)
	}
	if res := f.search(t, "the a of"); res.TotalHits != 0 {
		t.Errorf("stop words returned %d results", res.TotalHits)
	}
	if got := testutil.ToFloat64(f.m.SearchQueriesTotal.WithLabelValues("zero_result")); got != 1 {
		t.Errorf("zero_result = %v, want 1", got)
	}
	if got := testutil.ToFloat64(f.m.SearchQueriesTotal.WithLabelValues("empty_query")); got != 1 {
		t.Errorf("empty_query = %v, want 1", got)
	}
}

func TestIdempotentRebuild(t *testing.T) {
	f := newFixture(t, doc1)
	before := f.search(t, "fox turtle")
	if err := f.engine.Rebuild(context.Background()); err != nil {
		t.Fatal(err)
	}
	after := f.search(t, "fox turtle")
	if before.Generation == after.Generation {
		t.Error("expected a new generation after rebuild")
	}
	if diff := cmp.Diff(before.Results, after.Results); diff != "" {
		t.Errorf("results changed across rebuild (-before +after):\n%s", diff)
	}
}

type corruptReader struct{ idx *index.Index }

func (r corruptReader) View(fn func(*index.Index, string) error) error {
	return fn(r.idx, "gen")
}

func TestMissingContentIsCorruption(t *testing.T) {
	// drop the line behind the posting's back
	idx := index.New()
	idx.Record(index.Posting{DocID: "doc1", LineID: 4}, "fox", normalizer.NewTokenSet("fox"))
	idx.Store().Remove("doc1")

	norm, _ := normalizer.New(normalizer.Config{})
	m := metrics.New()
	exec := New(corruptReader{idx: idx}, nil, m)
	_, err := exec.Execute(context.Background(), parser.New(norm).Parse("fox"))
	if !errors.Is(err, apperrors.ErrIndexCorrupt) {
		t.Fatalf("err = %v, want ErrIndexCorrupt", err)
	}
	if got := testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("error queries = %v, want 1", got)
	}
}

func TestNotReady(t *testing.T) {
	norm, _ := normalizer.New(normalizer.Config{})
	engine, err := indexer.NewEngine(indexer.Options{Source: doc1, Normalizer: norm})
	if err != nil {
		t.Fatal(err)
	}
	_, err = New(engine, nil, nil).Execute(context.Background(), parser.New(norm).Parse("fox"))
	if !errors.Is(err, apperrors.ErrIndexNotReady) {
		t.Fatalf("err = %v, want ErrIndexNotReady", err)
	}
}
