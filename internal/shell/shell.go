// Package shell runs the interactive query loop: read a sentence, print the
// match count and the highlighted lines a page at a time, repeat until the
// quit input.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/pager"
)

const (
	ruleWidth   = 150
	prompt      = "Enter your sentence to search or (%s) to quit: "
	nextPage    = "Press Enter to see the next %d results"
	continueMsg = "Enter any button to continue..."
)

type Searcher interface {
	Search(ctx context.Context, query string) (*executor.SearchResult, string, error)
}

type Config struct {
	In        io.Reader
	Out       io.Writer
	PageSize  int
	QuitInput string
}

type Shell struct {
	searcher Searcher
	in       *bufio.Reader
	lines    chan readResult
	out      io.Writer
	pageSize int
	quit     string
	logger   *slog.Logger
}

func New(s Searcher, cfg Config) *Shell {
	if cfg.PageSize <= 0 {
		cfg.PageSize = pager.DefaultPageSize
	}
	if cfg.QuitInput == "" {
		cfg.QuitInput = "q"
	}
	return &Shell{
		searcher: s,
		in:       bufio.NewReader(cfg.In),
		out:      cfg.Out,
		pageSize: cfg.PageSize,
		quit:     cfg.QuitInput,
		logger:   slog.Default().With("component", "shell"),
	}
}

type readResult struct {
	line string
	err  error
}

// Run returns nil on the quit input or end of input, and ctx.Err() if ctx is
// cancelled while waiting for input.
func (s *Shell) Run(ctx context.Context) error {
	s.lines = make(chan readResult)
	go s.readLoop(ctx)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprintln(s.out, strings.Repeat("*", ruleWidth))
		fmt.Fprintf(s.out, prompt, s.quit)
		query, err := s.readLine(ctx)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(err, io.EOF) && query == "" {
			fmt.Fprintln(s.out)
			return nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("reading query: %w", err)
		}
		if query == s.quit {
			return nil
		}

		res, _, err := s.searcher.Search(ctx, query)
		if err != nil {
			s.logger.Error("search failed", "query", query, "error", err)
			fmt.Fprintf(s.out, "search failed: %v\n", err)
			continue
		}
		if done := s.page(ctx, res); done {
			return ctx.Err()
		}
		fmt.Fprintln(s.out, continueMsg)
		if _, err := s.readLine(ctx); err != nil {
			return ignoreEOF(err)
		}
	}
}

// page prints the result, pausing between pages. It reports true when input
// ended or ctx was cancelled while paused.
func (s *Shell) page(ctx context.Context, res *executor.SearchResult) bool {
	printHeader(s.out, res)
	p := pager.New(res.Results, s.pageSize)
	for lines, ok := p.Next(); ok; lines, ok = p.Next() {
		for _, line := range lines {
			fmt.Fprintln(s.out, line.Rendered)
		}
		if !p.HasNext() {
			break
		}
		fmt.Fprintf(s.out, nextPage+"\n", s.pageSize)
		if _, err := s.readLine(ctx); err != nil {
			return true
		}
	}
	return false
}

// readLoop feeds lines to readLine so a blocked read never holds up
// cancellation.
func (s *Shell) readLoop(ctx context.Context) {
	defer close(s.lines)
	for {
		line, err := s.in.ReadString('\n')
		select {
		case s.lines <- readResult{line: strings.TrimRight(line, "\r\n"), err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

func (s *Shell) readLine(ctx context.Context) (string, error) {
	select {
	case r, ok := <-s.lines:
		if !ok {
			return "", io.EOF
		}
		return r.line, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func ignoreEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// Print writes a whole result without pausing.
func Print(w io.Writer, res *executor.SearchResult) {
	printHeader(w, res)
	for _, line := range res.Results {
		fmt.Fprintln(w, line.Rendered)
	}
}

func printHeader(w io.Writer, res *executor.SearchResult) {
	rule := strings.Repeat("-", ruleWidth)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "%d results\n", res.TotalHits)
	fmt.Fprintln(w, rule)
}
