package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/normalizer"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/snapshot"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/highlight"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/linesearch/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/resilience"
)

// runtime is everything a command needs to answer queries.
type runtime struct {
	cfg     *config.Config
	engine  *indexer.Engine
	service *searcher.Service
	cache   *cache.QueryCache
	redis   *pkgredis.Client
	metrics *metrics.Metrics
}

// newRuntime wires the index engine and the query path. mark renders
// highlighted matches.
func newRuntime(ctx context.Context, cfg *config.Config, mark highlight.MarkFunc) (*runtime, error) {
	stemmer, err := normalizer.NewSnowballStemmer(cfg.Indexer.Language)
	if err != nil {
		return nil, err
	}
	stopWords, err := normalizer.StopWordsFor(cfg.Indexer.Language, cfg.Indexer.StopWordsFile)
	if err != nil {
		return nil, err
	}
	norm, err := normalizer.New(normalizer.Config{StopWords: stopWords, Stemmer: stemmer})
	if err != nil {
		return nil, err
	}

	gateway, err := snapshot.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot backend %s: %w", cfg.Snapshot.Backend, err)
	}

	m := metrics.New()
	engine, err := indexer.NewEngine(indexer.Options{
		Source:     corpus.NewDirSource(cfg.Corpus.Dir),
		Normalizer: norm,
		Gateway:    gateway,
		Workers:    cfg.Indexer.Workers,
		Retry:      resilience.FromConfig(cfg.Retry),
		Metrics:    m,
	})
	if err != nil {
		if gateway != nil {
			gateway.Close()
		}
		return nil, err
	}

	rt := &runtime{cfg: cfg, engine: engine, metrics: m}
	if cfg.Redis.Enabled {
		client, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			rt.redis = client
			rt.cache = cache.New(client, cfg.Redis.CacheTTL, m)
			engine.OnRebuild(rt.invalidateCache)
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	exec := executor.New(engine, highlight.New(mark), m)
	rt.service = searcher.NewService(parser.New(norm), exec, rt.cache, engine, m)
	return rt, nil
}

// invalidateCache frees the entries of the generation this process served
// before generation; they are already unreachable by key. Entries of other
// processes sharing the Redis instance are left to their TTL.
func (rt *runtime) invalidateCache(generation string) {
	replaced := rt.cache.Advance(generation)
	if replaced == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := rt.cache.InvalidateGeneration(ctx, replaced); err != nil {
			slog.Warn("dropping stale cache entries failed", "generation", replaced, "error", err)
		}
	}()
}

// watch rebuilds on corpus changes until ctx is done, if enabled.
func (rt *runtime) watch(ctx context.Context) {
	if !rt.cfg.Corpus.Watch {
		return
	}
	w, err := corpus.NewWatcher(corpus.WatcherConfig{
		Dir:      rt.cfg.Corpus.Dir,
		Debounce: rt.cfg.Corpus.Debounce,
		OnChange: rt.engine.Rebuild,
	})
	if err != nil {
		slog.Error("corpus watcher not started", "error", err)
		return
	}
	go func() {
		if err := w.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("corpus watcher stopped", "error", err)
		}
	}()
}

// serveMetrics exposes the scrape endpoint on metrics.port, if set.
func (rt *runtime) serveMetrics() (shutdown func()) {
	if !rt.cfg.Metrics.Enabled || rt.cfg.Metrics.Port <= 0 {
		return func() {}
	}
	stop := rt.metrics.StartServer(rt.cfg.Metrics.Port)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := stop(ctx); err != nil {
			slog.Error("metrics server shutdown error", "error", err)
		}
	}
}

func (rt *runtime) Close() {
	if err := rt.engine.Close(); err != nil {
		slog.Error("closing snapshot backend", "error", err)
	}
	if rt.redis != nil {
		rt.redis.Close()
	}
}

// terminalMark picks how matches are marked on stdout.
func terminalMark(cfg config.SearchConfig, out *os.File) highlight.MarkFunc {
	switch cfg.Color {
	case config.ColorAlways:
		return highlight.ANSI()
	case config.ColorNever:
		return highlight.Wrap(cfg.MarkerOpen, cfg.MarkerClose)
	}
	if isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd()) {
		return highlight.Style(highlight.DefaultStyle())
	}
	return highlight.Wrap(cfg.MarkerOpen, cfg.MarkerClose)
}
