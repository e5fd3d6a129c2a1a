package searcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/normalizer"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/metrics"
)

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return nil, redis.Nil
	}
	return v, nil
}

func (s *memStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *memStore) FlushByPattern(context.Context, string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.data))
	clear(s.data)
	return n, nil
}

func TestServiceCachesPerGeneration(t *testing.T) {
	ctx := context.Background()
	norm, err := normalizer.New(normalizer.Config{StopWords: normalizer.DefaultStopWords()})
	if err != nil {
		t.Fatal(err)
	}
	docs := corpus.StaticSource{{ID: "doc1", Lines: []string{"The quick fox jumps", "", "A slow turtle"}}}
	engine, err := indexer.NewEngine(indexer.Options{Source: docs, Normalizer: norm})
	if err != nil {
		t.Fatal(err)
	}
	if err := engine.Open(ctx); err != nil {
		t.Fatal(err)
	}
	m := metrics.New()
	qc := cache.New(&memStore{data: map[string][]byte{}}, time.Minute, m)
	svc := NewService(parser.New(norm), executor.New(engine, nil, m), qc, engine, m)

	search := func(q string) (*executor.SearchResult, string) {
		t.Helper()
		res, status, err := svc.Search(ctx, q)
		if err != nil {
			t.Fatalf("Search(%q): %v", q, err)
		}
		return res, status
	}

	if _, status := search("fox"); status != CacheMiss {
		t.Errorf("first status = %q, want miss", status)
	}
	res, status := search("FOXES")
	if status != CacheHit {
		t.Errorf("second status = %q, want hit", status)
	}
	if res.Query != "FOXES" || res.TotalHits != 1 {
		t.Errorf("cached result = %+v", res)
	}

	if err := engine.Rebuild(ctx); err != nil {
		t.Fatal(err)
	}
	if _, status := search("fox"); status != CacheMiss {
		t.Errorf("after rebuild status = %q, want miss", status)
	}

	if _, status := search("the"); status != CacheDisabled {
		t.Errorf("empty query status = %q, want disabled", status)
	}
	if got := testutil.ToFloat64(m.CacheHitsTotal); got != 1 {
		t.Errorf("cache hits = %v, want 1", got)
	}
}
