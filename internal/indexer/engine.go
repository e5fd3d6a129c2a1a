// Package indexer owns the lifecycle of the installed index: building it
// from the corpus, persisting and restoring snapshots, and swapping in
// rebuilds while queries keep running against the previous build.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/normalizer"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/snapshot"
	apperrors "github.com/Adithya-Monish-Kumar-K/linesearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/resilience"
)

type Options struct {
	Source     corpus.Source
	Normalizer *normalizer.Normalizer
	// Gateway may be nil, in which case every Open builds from the corpus.
	Gateway snapshot.Gateway
	Workers int
	Retry   resilience.RetryConfig
	Metrics *metrics.Metrics
}

// Status describes the installed build.
type Status struct {
	Ready      bool        `json:"ready"`
	Generation string      `json:"generation"`
	BuiltAt    time.Time   `json:"built_at"`
	Origin     string      `json:"origin"`
	Stats      index.Stats `json:"stats"`
}

const (
	originBuild    = "build"
	originSnapshot = "snapshot"
)

// Engine guards the installed index with a single-writer, many-reader lock.
// Rebuilds are serialized and run outside the lock; only the swap is
// exclusive.
type Engine struct {
	source  corpus.Source
	norm    *normalizer.Normalizer
	gateway snapshot.Gateway
	builder *Builder
	retry   resilience.RetryConfig
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu         sync.RWMutex
	idx        *index.Index
	generation string
	builtAt    time.Time
	origin     string

	rebuildMu sync.Mutex

	hooksMu sync.Mutex
	hooks   []func(generation string)
}

func NewEngine(opts Options) (*Engine, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("corpus source is required")
	}
	if opts.Normalizer == nil {
		return nil, fmt.Errorf("normalizer is required")
	}
	return &Engine{
		source:  opts.Source,
		norm:    opts.Normalizer,
		gateway: opts.Gateway,
		builder: NewBuilder(opts.Normalizer, opts.Workers),
		retry:   opts.Retry,
		metrics: opts.Metrics,
		logger:  slog.Default().With("component", "indexer"),
	}, nil
}

// Open installs the saved snapshot if one loads cleanly and otherwise builds
// from the corpus and saves the result. A failed save is logged, not
// returned, since the index is already usable.
func (e *Engine) Open(ctx context.Context) error {
	e.rebuildMu.Lock()
	defer e.rebuildMu.Unlock()

	if e.gateway != nil {
		snap, err := e.gateway.Load(ctx)
		switch {
		case err == nil:
			e.recordSnapshotOp("load", "success")
			e.install(snap.Index, snap.Generation, snap.CreatedAt, originSnapshot)
			e.logger.Info("snapshot loaded",
				"generation", snap.Generation,
				"created_at", snap.CreatedAt,
				"lines", snap.Index.Stats().Lines,
			)
			return nil
		case errors.Is(err, apperrors.ErrSnapshotNotFound):
			e.recordSnapshotOp("load", "not_found")
			e.logger.Info("no snapshot, building from corpus")
		default:
			e.recordSnapshotOp("load", "error")
			e.logger.Warn("snapshot unusable, building from corpus", "error", err)
		}
	}

	snap, err := e.buildAndInstall(ctx)
	if err != nil {
		return err
	}
	if err := e.persist(ctx, snap); err != nil {
		e.logger.Error("saving snapshot failed", "error", err)
	}
	return nil
}

// Rebuild builds a fresh index from the corpus, installs it and saves it.
// Concurrent calls queue behind each other. If only the save fails, the new
// index stays installed and the save error is returned.
func (e *Engine) Rebuild(ctx context.Context) error {
	e.rebuildMu.Lock()
	defer e.rebuildMu.Unlock()
	return e.rebuildLocked(ctx)
}

// TryRebuild is Rebuild that fails with ErrRebuildInProgress instead of
// waiting for a running rebuild.
func (e *Engine) TryRebuild(ctx context.Context) error {
	if !e.rebuildMu.TryLock() {
		return apperrors.ErrRebuildInProgress
	}
	defer e.rebuildMu.Unlock()
	return e.rebuildLocked(ctx)
}

func (e *Engine) rebuildLocked(ctx context.Context) error {
	snap, err := e.buildAndInstall(ctx)
	if err != nil {
		return err
	}
	if err := e.persist(ctx, snap); err != nil {
		return fmt.Errorf("index rebuilt but not saved: %w", err)
	}
	return nil
}

func (e *Engine) buildAndInstall(ctx context.Context) (snapshot.Snapshot, error) {
	start := time.Now()
	docs, err := e.source.Documents(ctx)
	if err != nil {
		e.recordBuild("error", start)
		return snapshot.Snapshot{}, fmt.Errorf("reading corpus: %w", err)
	}
	idx, err := e.builder.Build(ctx, docs)
	if err != nil {
		e.recordBuild("error", start)
		return snapshot.Snapshot{}, fmt.Errorf("building index: %w", err)
	}
	snap := snapshot.Snapshot{
		Index:      idx,
		Generation: uuid.NewString(),
		CreatedAt:  time.Now(),
	}
	e.install(snap.Index, snap.Generation, snap.CreatedAt, originBuild)
	e.recordBuild("success", start)

	stats := idx.Stats()
	if e.metrics != nil {
		e.metrics.DocsIndexedTotal.Add(float64(stats.Documents))
		e.metrics.LinesIndexedTotal.Add(float64(stats.Lines))
	}
	e.logger.Info("index built",
		"generation", snap.Generation,
		"documents", stats.Documents,
		"lines", stats.Lines,
		"terms", stats.Terms,
		"duration", time.Since(start),
	)
	return snap, nil
}

func (e *Engine) persist(ctx context.Context, snap snapshot.Snapshot) error {
	if e.gateway == nil {
		return nil
	}
	err := resilience.Retry(ctx, "snapshot-save", e.retry, func() error {
		return resilience.WithTimeout(ctx, e.retry.AttemptTimeout, "snapshot-save", func(ctx context.Context) error {
			err := e.gateway.Save(ctx, snap)
			if errors.Is(err, apperrors.ErrInvalidInput) {
				return resilience.Permanent(err)
			}
			return err
		})
	})
	if err != nil {
		e.recordSnapshotOp("save", "error")
		return err
	}
	e.recordSnapshotOp("save", "success")
	e.logger.Info("snapshot saved", "generation", snap.Generation)
	return nil
}

func (e *Engine) install(idx *index.Index, generation string, builtAt time.Time, origin string) {
	e.mu.Lock()
	e.idx = idx
	e.generation = generation
	e.builtAt = builtAt
	e.origin = origin
	e.mu.Unlock()

	if e.metrics != nil {
		stats := idx.Stats()
		e.metrics.IndexTerms.Set(float64(stats.Terms))
		e.metrics.IndexLines.Set(float64(stats.Lines))
	}

	e.hooksMu.Lock()
	hooks := append([]func(string){}, e.hooks...)
	e.hooksMu.Unlock()
	for _, hook := range hooks {
		hook(generation)
	}
}

// View runs fn against the installed index while holding the read lock. The
// index must not be retained after fn returns.
func (e *Engine) View(fn func(idx *index.Index, generation string) error) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.idx == nil {
		return apperrors.ErrIndexNotReady
	}
	return fn(e.idx, e.generation)
}

// Generation identifies the installed build; empty before the first install.
func (e *Engine) Generation() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.generation
}

func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.idx == nil {
		return Status{}
	}
	return Status{
		Ready:      true,
		Generation: e.generation,
		BuiltAt:    e.builtAt,
		Origin:     e.origin,
		Stats:      e.idx.Stats(),
	}
}

// OnRebuild registers fn to run after every install with the new generation.
func (e *Engine) OnRebuild(fn func(generation string)) {
	e.hooksMu.Lock()
	defer e.hooksMu.Unlock()
	e.hooks = append(e.hooks, fn)
}

func (e *Engine) Normalizer() *normalizer.Normalizer { return e.norm }

func (e *Engine) Close() error {
	if e.gateway == nil {
		return nil
	}
	return e.gateway.Close()
}

func (e *Engine) recordBuild(status string, start time.Time) {
	if e.metrics == nil {
		return
	}
	e.metrics.BuildsTotal.WithLabelValues(status).Inc()
	if status == "success" {
		e.metrics.BuildDuration.Observe(time.Since(start).Seconds())
	}
}

func (e *Engine) recordSnapshotOp(op, status string) {
	if e.metrics == nil {
		return
	}
	e.metrics.SnapshotOpsTotal.WithLabelValues(op, status).Inc()
}
