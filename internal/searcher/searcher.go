// Package searcher answers free-text queries against the installed index,
// going through the query cache when one is configured.
package searcher

import (
	"context"
	"time"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/metrics"
)

// Generationer reports the installed index build.
type Generationer interface {
	Generation() string
}

// Cache status labels for the search latency histogram.
const (
	CacheHit      = "hit"
	CacheMiss     = "miss"
	CacheDisabled = "disabled"
)

type Service struct {
	parser   *parser.Parser
	executor *executor.Executor
	cache    *cache.QueryCache
	index    Generationer
	metrics  *metrics.Metrics
}

// NewService wires a query path. queryCache and m may be nil.
func NewService(p *parser.Parser, exec *executor.Executor, queryCache *cache.QueryCache, index Generationer, m *metrics.Metrics) *Service {
	return &Service{parser: p, executor: exec, cache: queryCache, index: index, metrics: m}
}

// Search returns the result and the cache status it was served with.
func (s *Service) Search(ctx context.Context, query string) (*executor.SearchResult, string, error) {
	start := time.Now()
	plan := s.parser.Parse(query)

	var (
		result *executor.SearchResult
		status = CacheDisabled
		err    error
	)
	if s.cache != nil && !plan.Empty() {
		var hit bool
		result, hit, err = s.cache.GetOrCompute(ctx, s.index.Generation(), plan, func() (*executor.SearchResult, error) {
			return s.executor.Execute(ctx, plan)
		})
		status = CacheMiss
		if hit {
			status = CacheHit
		}
	} else {
		result, err = s.executor.Execute(ctx, plan)
	}
	if err != nil {
		return nil, status, err
	}
	if result.Query != query {
		copied := *result
		copied.Query = query
		result = &copied
	}
	if s.metrics != nil {
		s.metrics.SearchLatency.WithLabelValues(status).Observe(time.Since(start).Seconds())
	}
	return result, status, nil
}

func (s *Service) Cache() *cache.QueryCache { return s.cache }
