package formspree

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/asimovlabs/egodata-portal/internal/core/domain"
	"github.com/asimovlabs/egodata-portal/internal/infrastructure/resilience"
)

// Client relays stored submissions to a Formspree form endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	exec       *resilience.Executor
}

func New(endpoint string, timeout time.Duration, exec *resilience.Executor) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("formspree endpoint is required")
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if exec == nil {
		exec = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		exec:       exec,
	}, nil
}

func (c *Client) Forward(ctx context.Context, sub *domain.Submission) error {
	if sub == nil || len(sub.Payload) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "forward submission", errors.New("empty payload"))
	}
	err := c.exec.Execute(ctx, "formspree_submit", func(ctx context.Context) error {
		return c.post(ctx, sub.Payload)
	}, resilience.ClassifyHTTPError)
	return resilience.WrapTemporaryIfNeeded("forward submission", err)
}

func (c *Client) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create formspree request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("formspree request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resilience.NewHTTPStatusError("formspree", "submit", resp)
	}
	return nil
}
