package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewIsolatedRegistries(t *testing.T) {
	a := New()
	b := New()
	a.DocsIndexedTotal.Add(3)
	if got := testutil.ToFloat64(b.DocsIndexedTotal); got != 0 {
		t.Errorf("second registry saw %v docs, want 0", got)
	}
	if got := testutil.ToFloat64(a.DocsIndexedTotal); got != 3 {
		t.Errorf("docs indexed = %v, want 3", got)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.SearchQueriesTotal.WithLabelValues("hit").Inc()
	m.BuildsTotal.WithLabelValues("success").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, name := range []string{"search_queries_total", "index_builds_total"} {
		if !strings.Contains(string(body), name) {
			t.Errorf("scrape output missing %s", name)
		}
	}
}
