package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/asimovlabs/egodata-portal/internal/core/domain"
	"github.com/asimovlabs/egodata-portal/internal/infrastructure/resilience"
)

// Fetcher downloads demonstration files into memory.
type Fetcher struct {
	httpClient *http.Client
	exec       *resilience.Executor
}

func New(timeout time.Duration, exec *resilience.Executor) *Fetcher {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	if exec == nil {
		// a failed file aborts the export; it is reported, not retried
		exec = resilience.NewExecutor(resilience.DefaultConfig().WithoutRetry())
	}
	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
		exec:       exec,
	}
}

func (f *Fetcher) Fetch(ctx context.Context, url string, maxBytes int64) ([]byte, error) {
	data, err := resilience.Do(ctx, f.exec, "object_fetch", func(ctx context.Context) ([]byte, error) {
		return f.fetch(ctx, url, maxBytes)
	}, resilience.ClassifyHTTPError)
	if err != nil {
		return nil, resilience.WrapTemporaryIfNeeded("fetch object", err)
	}
	return data, nil
}

func (f *Fetcher) fetch(ctx context.Context, url string, maxBytes int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create fetch request: %w", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resilience.NewHTTPStatusError("object", "fetch", resp)
	}
	if maxBytes > 0 && resp.ContentLength > maxBytes {
		return nil, tooLarge(maxBytes)
	}

	reader := io.Reader(resp.Body)
	if maxBytes > 0 {
		reader = io.LimitReader(resp.Body, maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read fetch body: %w", err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, tooLarge(maxBytes)
	}
	return data, nil
}

func tooLarge(maxBytes int64) error {
	return domain.WrapError(domain.ErrTooLarge, "fetch object", fmt.Errorf("file exceeds %d bytes", maxBytes))
}
