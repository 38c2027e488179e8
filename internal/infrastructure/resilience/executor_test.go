package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/asimovlabs/egodata-portal/internal/core/domain"
)

func fastRetryConfig() Config {
	return Config{
		Retry: RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, Multiplier: 2},
	}
}

func TestExecuteRetriesServerErrors(t *testing.T) {
	exec := NewExecutor(fastRetryConfig())

	attempts := 0
	err := exec.Execute(context.Background(), "fetch_object", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return &HTTPStatusError{Service: "s3", Operation: "get", StatusCode: http.StatusServiceUnavailable, Status: "503 Service Unavailable"}
		}
		return nil
	}, ClassifyHTTPError)
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteDoesNotRetryClientErrors(t *testing.T) {
	exec := NewExecutor(fastRetryConfig())

	attempts := 0
	forbidden := &HTTPStatusError{Service: "s3", Operation: "get", StatusCode: http.StatusForbidden, Status: "403 Forbidden"}
	err := exec.Execute(context.Background(), "fetch_object", func(context.Context) error {
		attempts++
		return forbidden
	}, ClassifyHTTPError)
	if !errors.Is(err, forbidden) {
		t.Fatalf("expected forbidden error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestWithoutRetryMakesSingleAttempt(t *testing.T) {
	exec := NewExecutor(fastRetryConfig().WithoutRetry())

	attempts := 0
	err := exec.Execute(context.Background(), "search", func(context.Context) error {
		attempts++
		return &domain.SearchRequestError{StatusCode: http.StatusInternalServerError, Status: "500 Internal Server Error"}
	}, ClassifyHTTPError)
	if err == nil {
		t.Fatalf("expected error")
	}
	if attempts != 1 {
		t.Fatalf("expected a single attempt, got %d", attempts)
	}
}

func TestDoReturnsValue(t *testing.T) {
	exec := NewExecutor(fastRetryConfig())

	calls := 0
	got, err := Do(context.Background(), exec, "list", func(context.Context) ([]string, error) {
		calls++
		if calls == 1 {
			return nil, &HTTPStatusError{StatusCode: http.StatusBadGateway, Status: "502 Bad Gateway"}
		}
		return []string{"a", "b"}, nil
	}, ClassifyHTTPError)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || calls != 2 {
		t.Fatalf("unexpected result %v after %d calls", got, calls)
	}
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
	var mu sync.Mutex
	var states []string
	exec := NewExecutor(Config{
		Retry: RetryPolicy{MaxAttempts: 1},
		Breaker: BreakerPolicy{
			Enabled:          true,
			MinRequests:      2,
			FailureRatio:     0.5,
			OpenTimeout:      50 * time.Millisecond,
			HalfOpenMaxCalls: 1,
		},
	}, WithStateObserver(func(_ string, state string) {
		mu.Lock()
		states = append(states, state)
		mu.Unlock()
	}))

	errDown := errors.New("connection refused")
	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "search", func(context.Context) error {
			return errDown
		}, ClassifyHTTPError)
		if !errors.Is(err, errDown) {
			t.Fatalf("expected connection error on iteration %d, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "search", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	}, ClassifyHTTPError)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open state error, got %v", err)
	}
	if !IsCircuitOpen(err) {
		t.Fatalf("expected IsCircuitOpen to report true")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(states) != 1 || states[0] != gobreaker.StateOpen.String() {
		t.Fatalf("expected one transition to open, got %v", states)
	}
}

func TestRetryPolicyBackoff(t *testing.T) {
	p := RetryPolicy{InitialBackoff: 100 * time.Millisecond, MaxBackoff: 300 * time.Millisecond, Multiplier: 2}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond, 300 * time.Millisecond}
	for i, w := range want {
		if got := p.Backoff(i + 1); got != w {
			t.Fatalf("attempt %d: expected %v, got %v", i+1, w, got)
		}
	}
}

func TestNormalizeFillsDefaults(t *testing.T) {
	cfg := Config{Retry: RetryPolicy{InitialBackoff: time.Second}}.normalize()
	if cfg.Retry.MaxAttempts != 3 || cfg.Retry.MaxBackoff != time.Second || cfg.Retry.Multiplier != 2 {
		t.Fatalf("unexpected retry policy %+v", cfg.Retry)
	}
	if cfg.Breaker.Enabled {
		t.Fatalf("breaker must stay disabled unless enabled explicitly")
	}
	if cfg.Breaker.MinRequests != 10 || cfg.Breaker.OpenTimeout != 30*time.Second {
		t.Fatalf("unexpected breaker policy %+v", cfg.Breaker)
	}
}

func TestClassifyHTTPError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		retry  bool
		record bool
	}{
		{"canceled", context.Canceled, false, false},
		{"not found", &HTTPStatusError{StatusCode: http.StatusNotFound}, false, false},
		{"rate limited", &HTTPStatusError{StatusCode: http.StatusTooManyRequests}, true, true},
		{"search 500", fmt.Errorf("dispatch: %w", &domain.SearchRequestError{StatusCode: 500}), true, true},
		{"too large", domain.WrapError(domain.ErrTooLarge, "fetch", errors.New("cap")), false, false},
		{"unknown", errors.New("boom"), false, true},
	}
	for _, tc := range cases {
		class := ClassifyHTTPError(tc.err)
		if class.Retryable != tc.retry || class.RecordFailure != tc.record {
			t.Fatalf("%s: got %+v", tc.name, class)
		}
	}
}

func TestWrapTemporaryIfNeeded(t *testing.T) {
	err := WrapTemporaryIfNeeded("fetch", &HTTPStatusError{StatusCode: http.StatusServiceUnavailable})
	if !domain.IsKind(err, domain.ErrTemporary) || !domain.IsKind(err, domain.ErrUpstream) {
		t.Fatalf("expected temporary upstream error, got %v", err)
	}
	err = WrapTemporaryIfNeeded("fetch", &HTTPStatusError{StatusCode: http.StatusForbidden})
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("client errors must not be temporary")
	}
}
