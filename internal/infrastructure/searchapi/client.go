package searchapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/asimovlabs/egodata-portal/internal/core/domain"
	"github.com/asimovlabs/egodata-portal/internal/infrastructure/resilience"
)

const (
	DefaultBaseURL   = "http://54.82.72.60:8000"
	maxResponseBytes = 32 << 20
	errorBodyBytes   = 2048
)

// Client issues queries to the demonstration search service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	exec       *resilience.Executor
}

func New(baseURL string, timeout time.Duration, exec *resilience.Executor) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if exec == nil {
		exec = resilience.NewExecutor(resilience.DefaultConfig().WithoutRetry())
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		exec:       exec,
	}
}

func (c *Client) Search(ctx context.Context, query domain.SearchQuery) ([]domain.RawResult, error) {
	results, err := resilience.Do(ctx, c.exec, "search_api", func(ctx context.Context) ([]domain.RawResult, error) {
		return c.search(ctx, query)
	}, resilience.ClassifyHTTPError)
	if err != nil {
		if resilience.IsCircuitOpen(err) {
			return nil, domain.WrapError(domain.ErrUpstream, "search", err)
		}
		return nil, err
	}
	return results, nil
}

func (c *Client) search(ctx context.Context, query domain.SearchQuery) ([]domain.RawResult, error) {
	params := url.Values{}
	params.Set("q", query.Text)
	params.Set("k", strconv.Itoa(query.K))
	params.Set("mode", string(query.Mode))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.WrapError(domain.ErrUpstream, "search request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyBytes))
		return nil, &domain.SearchRequestError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}

	var results []domain.RawResult
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&results); err != nil {
		return nil, domain.WrapError(domain.ErrUpstream, "decode search response", err)
	}
	if results == nil {
		results = []domain.RawResult{}
	}
	return results, nil
}
