package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestHTTPMiddlewareCountsRequests(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	handler := m.Middleware("api", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/search?q=x", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/random/path/123", nil))

	out := scrape(t, m.Handler())
	if !strings.Contains(out, `egodata_http_requests_total{method="GET",path="/v1/search",service="api",status="418"} 1`) {
		t.Fatalf("missing request counter:\n%s", out)
	}
	if !strings.Contains(out, `path="other"`) {
		t.Fatalf("expected unknown paths collapsed:\n%s", out)
	}
}

func TestRecordSearchOutcomes(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	m.RecordSearch("api", "semantic", 0, 0, time.Millisecond, nil)
	m.RecordSearch("api", "semantic", 4, 2, time.Millisecond, nil)
	m.RecordSearch("api", "", 0, 0, time.Millisecond, errors.New("502"))

	out := scrape(t, m.Handler())
	for _, want := range []string{
		`egodata_search_requests_total{mode="semantic",outcome="empty",service="api"} 1`,
		`egodata_search_requests_total{mode="semantic",outcome="hit",service="api"} 1`,
		`egodata_search_requests_total{mode="unknown",outcome="error",service="api"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %s in:\n%s", want, out)
		}
	}
}

func TestBreakerObserver(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	observe := m.BreakerObserver("api")
	observe("search_api", "open")

	out := scrape(t, m.Handler())
	if !strings.Contains(out, `egodata_resilience_breaker_open{operation="search_api",service="api"} 1`) {
		t.Fatalf("missing breaker gauge:\n%s", out)
	}
	observe("search_api", "closed")
	out = scrape(t, m.Handler())
	if !strings.Contains(out, `egodata_resilience_breaker_open{operation="search_api",service="api"} 0`) {
		t.Fatalf("breaker gauge not reset:\n%s", out)
	}
}

func TestWorkerMetrics(t *testing.T) {
	m := NewWorkerMetrics("worker")
	m.StartSubmission()
	m.FinishSubmission("worker", time.Second, errors.New("relay down"))
	m.RecordRequeued("worker", 3)

	out := scrape(t, m.Handler())
	for _, want := range []string{
		`egodata_worker_submission_forward_total{service="worker",status="error"} 1`,
		`egodata_worker_submission_forward_in_flight{service="worker"} 0`,
		`egodata_worker_submission_requeued_total{service="worker"} 3`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %s in:\n%s", want, out)
		}
	}
}
