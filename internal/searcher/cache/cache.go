// Package cache keeps finished search results in Redis. Keys carry the index
// generation, so a rebuild makes every earlier entry unreachable.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/linesearch/pkg/redis"
)

const keyPrefix = "linesearch:q:"

// Store is the subset of the Redis client the cache uses.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type QueryCache struct {
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64

	genMu   sync.Mutex
	current string
}

// New builds a cache over store. m may be nil.
func New(store Store, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache) Get(ctx context.Context, generation string, plan *parser.QueryPlan) (*executor.SearchResult, bool) {
	result, ok := c.lookup(ctx, generation, plan)
	if !ok {
		c.miss()
		return nil, false
	}
	c.hit()
	c.logger.Debug("cache hit", "query", plan.RawQuery)
	return result, true
}

func (c *QueryCache) lookup(ctx context.Context, generation string, plan *parser.QueryPlan) (*executor.SearchResult, bool) {
	key := BuildKey(generation, plan)
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		return nil, false
	}
	// the entry may have been filled by a query with other surface words
	// for the same tokens
	result.Query = plan.RawQuery
	return &result, true
}

func (c *QueryCache) Set(ctx context.Context, generation string, plan *parser.QueryPlan, result *executor.SearchResult) {
	key := BuildKey(generation, plan)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns a cached result or runs computeFn once per key,
// however many callers ask concurrently. Results are only stored under the
// generation they were computed against.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	generation string,
	plan *parser.QueryPlan,
	computeFn func() (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	if result, ok := c.Get(ctx, generation, plan); ok {
		return result, true, nil
	}
	key := BuildKey(generation, plan)
	val, err, _ := c.group.Do(key, func() (any, error) {
		if result, ok := c.lookup(ctx, generation, plan); ok {
			return result, nil
		}
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		if result.Generation == generation {
			c.Set(ctx, generation, plan, result)
		}
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*executor.SearchResult), false, nil
}

// Invalidate deletes every cached result of every generation.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

// InvalidateGeneration deletes the cached results of one generation.
func (c *QueryCache) InvalidateGeneration(ctx context.Context, generation string) (int64, error) {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+generation+":*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating generation %s: %w", generation, err)
	}
	c.logger.Debug("generation invalidated", "generation", generation, "keys_deleted", deleted)
	return deleted, nil
}

// Advance records generation as the one this process serves and returns the
// generation it replaces. It returns "" for the first generation and for a
// repeat of the current one.
func (c *QueryCache) Advance(generation string) (replaced string) {
	c.genMu.Lock()
	defer c.genMu.Unlock()
	if c.current == generation {
		return ""
	}
	replaced, c.current = c.current, generation
	return replaced
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// BuildKey hashes the sorted token set, so queries that normalize alike
// share an entry.
func BuildKey(generation string, plan *parser.QueryPlan) string {
	hash := sha256.Sum256([]byte(plan.Key()))
	return fmt.Sprintf("%s%s:%x", keyPrefix, generation, hash[:16])
}
