package indexer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/snapshot"
	apperrors "github.com/Adithya-Monish-Kumar-K/linesearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/resilience"
)

var fastRetry = resilience.RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}

var sampleCorpus = corpus.StaticSource{
	{ID: "doc1", Lines: []string{"The quick fox jumps", "", "A slow turtle"}},
	{ID: "doc2", Lines: []string{"turtles all the way down"}},
}

func newTestEngine(t *testing.T, src corpus.Source, gw snapshot.Gateway) *Engine {
	t.Helper()
	e, err := NewEngine(Options{
		Source:     src,
		Normalizer: testNormalizer(t),
		Gateway:    gw,
		Workers:    2,
		Retry:      fastRetry,
		Metrics:    metrics.New(),
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func lookup(t *testing.T, e *Engine, token string) index.PostingList {
	t.Helper()
	var out index.PostingList
	if err := e.View(func(idx *index.Index, _ string) error {
		out = idx.Lookup(token)
		return nil
	}); err != nil {
		t.Fatalf("View: %v", err)
	}
	return out
}

func TestViewBeforeOpen(t *testing.T) {
	e := newTestEngine(t, sampleCorpus, nil)
	err := e.View(func(*index.Index, string) error { return nil })
	if !errors.Is(err, apperrors.ErrIndexNotReady) {
		t.Fatalf("err = %v, want ErrIndexNotReady", err)
	}
	if e.Status().Ready {
		t.Error("status should not be ready")
	}
}

func TestOpenWithoutGatewayBuilds(t *testing.T) {
	e := newTestEngine(t, sampleCorpus, nil)
	if err := e.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	st := e.Status()
	if !st.Ready || st.Origin != originBuild || st.Generation == "" {
		t.Errorf("status = %+v", st)
	}
	if st.Stats.Lines != 3 || st.Stats.Documents != 2 {
		t.Errorf("stats = %+v", st.Stats)
	}
	if got := len(lookup(t, e, "turtl")); got != 2 {
		t.Errorf("turtl postings = %d, want 2", got)
	}
	if got := testutil.ToFloat64(e.metrics.BuildsTotal.WithLabelValues("success")); got != 1 {
		t.Errorf("successful builds = %v, want 1", got)
	}
}

func TestOpenRestoresSnapshot(t *testing.T) {
	ctx := context.Background()
	gw := snapshot.NewFileGateway(t.TempDir())

	first := newTestEngine(t, sampleCorpus, gw)
	if err := first.Open(ctx); err != nil {
		t.Fatalf("first Open: %v", err)
	}

	// the second engine must not need the corpus at all
	second := newTestEngine(t, corpus.StaticSource{}, gw)
	if err := second.Open(ctx); err != nil {
		t.Fatalf("second Open: %v", err)
	}
	st := second.Status()
	if st.Origin != originSnapshot {
		t.Errorf("origin = %q, want %q", st.Origin, originSnapshot)
	}
	if st.Generation != first.Generation() {
		t.Errorf("generation = %q, want %q", st.Generation, first.Generation())
	}
	if got := len(lookup(t, second, "fox")); got != 1 {
		t.Errorf("fox postings = %d, want 1", got)
	}
}

func TestOpenFallsBackOnCorruptSnapshot(t *testing.T) {
	ctx := context.Background()
	gw := &stubGateway{loadErr: apperrors.ErrSnapshotCorrupt}
	e := newTestEngine(t, sampleCorpus, gw)
	if err := e.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if e.Status().Origin != originBuild {
		t.Errorf("origin = %q, want build", e.Status().Origin)
	}
	if gw.saves != 1 {
		t.Errorf("saves = %d, want 1", gw.saves)
	}
}

func TestOpenToleratesSaveFailure(t *testing.T) {
	gw := &stubGateway{loadErr: apperrors.ErrSnapshotNotFound, saveErr: errors.New("disk full")}
	e := newTestEngine(t, sampleCorpus, gw)
	if err := e.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !e.Status().Ready {
		t.Error("index should be installed despite failed save")
	}
	if gw.saves != fastRetry.MaxAttempts {
		t.Errorf("save attempts = %d, want %d", gw.saves, fastRetry.MaxAttempts)
	}
}

func TestSaveDoesNotRetryInvalidSnapshot(t *testing.T) {
	gw := &stubGateway{
		loadErr: apperrors.ErrSnapshotNotFound,
		saveErr: fmt.Errorf("%w: snapshot has no generation", apperrors.ErrInvalidInput),
	}
	e := newTestEngine(t, sampleCorpus, gw)
	if err := e.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if gw.saves != 1 {
		t.Errorf("save attempts = %d, want 1", gw.saves)
	}
}

func TestRebuildSaveFailureKeepsNewIndex(t *testing.T) {
	ctx := context.Background()
	gw := &stubGateway{loadErr: apperrors.ErrSnapshotNotFound}
	e := newTestEngine(t, sampleCorpus, gw)
	if err := e.Open(ctx); err != nil {
		t.Fatal(err)
	}
	before := e.Generation()

	gw.saveErr = errors.New("disk full")
	err := e.Rebuild(ctx)
	if err == nil {
		t.Fatal("expected save error from Rebuild")
	}
	if e.Generation() == before {
		t.Error("rebuilt index should be installed even though the save failed")
	}
}

func TestRebuildFailureKeepsPreviousIndex(t *testing.T) {
	ctx := context.Background()
	src := &switchSource{docs: sampleCorpus}
	e := newTestEngine(t, src, nil)
	if err := e.Open(ctx); err != nil {
		t.Fatal(err)
	}
	before := e.Generation()

	src.err = apperrors.ErrDocumentUnreadable
	if err := e.Rebuild(ctx); !errors.Is(err, apperrors.ErrDocumentUnreadable) {
		t.Fatalf("err = %v, want ErrDocumentUnreadable", err)
	}
	if e.Generation() != before {
		t.Error("failed rebuild must leave the previous index installed")
	}
	if got := len(lookup(t, e, "fox")); got != 1 {
		t.Errorf("fox postings = %d, want 1", got)
	}
}

func TestTryRebuildWhileRebuilding(t *testing.T) {
	ctx := context.Background()
	src := &blockingSource{docs: sampleCorpus, entered: make(chan struct{}), release: make(chan struct{})}
	e := newTestEngine(t, src, nil)

	done := make(chan error, 1)
	go func() { done <- e.Rebuild(ctx) }()
	<-src.entered

	if err := e.TryRebuild(ctx); !errors.Is(err, apperrors.ErrRebuildInProgress) {
		t.Errorf("TryRebuild err = %v, want ErrRebuildInProgress", err)
	}
	close(src.release)
	if err := <-done; err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if err := e.TryRebuild(ctx); err != nil {
		t.Fatalf("TryRebuild after completion: %v", err)
	}
}

func TestOnRebuildHook(t *testing.T) {
	e := newTestEngine(t, sampleCorpus, nil)
	var got []string
	e.OnRebuild(func(gen string) { got = append(got, gen) })
	ctx := context.Background()
	if err := e.Open(ctx); err != nil {
		t.Fatal(err)
	}
	if err := e.Rebuild(ctx); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[1] != e.Generation() || got[0] == got[1] {
		t.Errorf("hook generations = %v, current %q", got, e.Generation())
	}
}

func TestConcurrentViewsDuringRebuild(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, sampleCorpus, nil)
	if err := e.Open(ctx); err != nil {
		t.Fatal(err)
	}
	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			for range 50 {
				if got := len(lookup(t, e, "fox")); got != 1 {
					t.Errorf("fox postings = %d, want 1", got)
					return
				}
			}
		})
	}
	for range 5 {
		if err := e.Rebuild(ctx); err != nil {
			t.Fatal(err)
		}
	}
	wg.Wait()
}

type stubGateway struct {
	mu      sync.Mutex
	loadErr error
	saveErr error
	saves   int
}

func (g *stubGateway) Save(context.Context, snapshot.Snapshot) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.saves++
	return g.saveErr
}

func (g *stubGateway) Load(context.Context) (snapshot.Snapshot, error) {
	return snapshot.Snapshot{}, g.loadErr
}

func (g *stubGateway) Close() error { return nil }

type switchSource struct {
	docs corpus.StaticSource
	err  error
}

func (s *switchSource) Documents(ctx context.Context) ([]corpus.Document, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.docs.Documents(ctx)
}

type blockingSource struct {
	docs    corpus.StaticSource
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *blockingSource) Documents(ctx context.Context) ([]corpus.Document, error) {
	s.once.Do(func() {
		close(s.entered)
		<-s.release
	})
	return s.docs.Documents(ctx)
}

func TestOpenUsesFileSnapshotPath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "output")
	e := newTestEngine(t, sampleCorpus, snapshot.NewFileGateway(dir))
	if err := e.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := snapshot.NewFileGateway(dir).Load(context.Background()); err != nil {
		t.Errorf("snapshot not written to %s: %v", dir, err)
	}
}
