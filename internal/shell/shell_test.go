package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/executor"
)

type fakeSearcher struct {
	results map[string]*executor.SearchResult
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, q string) (*executor.SearchResult, string, error) {
	f.queries = append(f.queries, q)
	if q == "broken" {
		return nil, "", errors.New("index corrupt")
	}
	if res, ok := f.results[q]; ok {
		return res, "disabled", nil
	}
	return &executor.SearchResult{Query: q, Results: []executor.MatchedLine{}}, "disabled", nil
}

func result(n int) *executor.SearchResult {
	res := &executor.SearchResult{TotalHits: n}
	for i := range n {
		res.Results = append(res.Results, executor.MatchedLine{Rendered: fmt.Sprintf("line-%d", i)})
	}
	return res
}

func TestRunQuits(t *testing.T) {
	fs := &fakeSearcher{}
	var out bytes.Buffer
	sh := New(fs, Config{In: strings.NewReader("q\nfox\n"), Out: &out})
	if err := sh.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(fs.queries) != 0 {
		t.Errorf("queries = %v, want none", fs.queries)
	}
	if !strings.Contains(out.String(), "Enter your sentence to search or (q) to quit: ") {
		t.Errorf("missing prompt in %q", out.String())
	}
}

func TestRunPrintsResultsAndPages(t *testing.T) {
	fs := &fakeSearcher{results: map[string]*executor.SearchResult{"fox": result(5)}}
	var out bytes.Buffer
	// query, Enter for page 2, Enter for page 3, any key to continue, quit
	in := "fox\n\n\nx\nq\n"
	sh := New(fs, Config{In: strings.NewReader(in), Out: &out, PageSize: 2})
	if err := sh.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "5 results\n") {
		t.Errorf("missing count in %q", got)
	}
	if n := strings.Count(got, "Press Enter to see the next 2 results"); n != 2 {
		t.Errorf("page prompts = %d, want 2", n)
	}
	for i := range 5 {
		if !strings.Contains(got, fmt.Sprintf("line-%d\n", i)) {
			t.Errorf("missing line-%d", i)
		}
	}
	if !strings.Contains(got, continueMsg) {
		t.Error("missing continue prompt")
	}
	if strings.Index(got, "line-4") < strings.LastIndex(got, "Press Enter") {
		t.Error("last page printed before the final page prompt")
	}
}

func TestRunExactPageHasNoTrailingPrompt(t *testing.T) {
	fs := &fakeSearcher{results: map[string]*executor.SearchResult{"fox": result(100)}}
	var out bytes.Buffer
	sh := New(fs, Config{In: strings.NewReader("fox\nx\nq\n"), Out: &out})
	if err := sh.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out.String(), "Press Enter") {
		t.Error("single full page should not prompt for more")
	}
}

func TestRunReportsErrorsAndContinues(t *testing.T) {
	fs := &fakeSearcher{}
	var out bytes.Buffer
	sh := New(fs, Config{In: strings.NewReader("broken\nfox\nx\nq\n"), Out: &out})
	if err := sh.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "search failed: index corrupt") {
		t.Errorf("missing error in %q", out.String())
	}
	if len(fs.queries) != 2 {
		t.Errorf("queries = %v", fs.queries)
	}
}

func TestRunEndOfInput(t *testing.T) {
	fs := &fakeSearcher{results: map[string]*executor.SearchResult{"fox": result(3)}}
	var out bytes.Buffer
	sh := New(fs, Config{In: strings.NewReader("fox"), Out: &out, PageSize: 1})
	if err := sh.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(fs.queries) != 1 {
		t.Errorf("unterminated last line should still be searched, queries = %v", fs.queries)
	}
}

func TestCustomQuitInput(t *testing.T) {
	fs := &fakeSearcher{}
	var out bytes.Buffer
	sh := New(fs, Config{In: strings.NewReader("q\nx\nexit\n"), Out: &out, QuitInput: "exit"})
	if err := sh.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(fs.queries) != 1 || fs.queries[0] != "q" {
		t.Errorf("queries = %v, want [q]", fs.queries)
	}
}

func TestPrint(t *testing.T) {
	var out bytes.Buffer
	Print(&out, result(2))
	rule := strings.Repeat("-", ruleWidth)
	want := rule + "\n2 results\n" + rule + "\nline-0\nline-1\n"
	if out.String() != want {
		t.Errorf("Print = %q, want %q", out.String(), want)
	}
}

func TestRunCancelledWhileWaiting(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	ctx, cancel := context.WithCancel(context.Background())
	sh := New(&fakeSearcher{}, Config{In: pr, Out: io.Discard})

	done := make(chan error, 1)
	go func() { done <- sh.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
