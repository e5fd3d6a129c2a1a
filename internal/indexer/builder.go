package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/normalizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/linesearch/pkg/errors"
)

// linesPerTask bounds how many lines one worker normalizes per task.
const linesPerTask = 512

type lineJob struct {
	posting index.Posting
	content string
}

// Builder turns a corpus into an index. Lines are normalized in parallel and
// merged in corpus order, so the postings order does not depend on the
// worker count.
type Builder struct {
	norm    *normalizer.Normalizer
	workers int
	logger  *slog.Logger
}

func NewBuilder(norm *normalizer.Normalizer, workers int) *Builder {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Builder{
		norm:    norm,
		workers: workers,
		logger:  slog.Default().With("component", "builder"),
	}
}

// Build indexes every non-blank line. Line ids count non-blank lines only.
// Any error discards the partial index.
func (b *Builder) Build(ctx context.Context, docs []corpus.Document) (*index.Index, error) {
	jobs, err := planLines(docs)
	if err != nil {
		return nil, err
	}

	tokens := make([]normalizer.TokenSet, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for start := 0; start < len(jobs); start += linesPerTask {
		end := min(start+linesPerTask, len(jobs))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				tokens[i] = b.norm.Normalize(jobs[i].content)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("normalizing lines: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	idx := index.New()
	for i, job := range jobs {
		idx.Record(job.posting, job.content, tokens[i])
	}
	b.logger.Debug("corpus indexed",
		"documents", len(docs),
		"lines", len(jobs),
		"workers", b.workers,
	)
	return idx, nil
}

func planLines(docs []corpus.Document) ([]lineJob, error) {
	seen := make(map[string]struct{}, len(docs))
	var jobs []lineJob
	for _, doc := range docs {
		if _, dup := seen[doc.ID]; dup {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrDuplicateDocument, doc.ID)
		}
		seen[doc.ID] = struct{}{}
		lineID := 0
		for _, line := range doc.Lines {
			if corpus.IsBlank(line) {
				continue
			}
			jobs = append(jobs, lineJob{
				posting: index.Posting{DocID: doc.ID, LineID: lineID},
				content: line,
			})
			lineID++
		}
	}
	return jobs, nil
}
