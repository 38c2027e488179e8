package s3

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/asimovlabs/egodata-portal/internal/core/domain"
	"github.com/asimovlabs/egodata-portal/internal/infrastructure/resilience"
)

const maxListPages = 100

type listBucketResult struct {
	XMLName               xml.Name `xml:"ListBucketResult"`
	IsTruncated           bool     `xml:"IsTruncated"`
	NextContinuationToken string   `xml:"NextContinuationToken"`
	Contents              []struct {
		Key          string    `xml:"Key"`
		Size         int64     `xml:"Size"`
		LastModified time.Time `xml:"LastModified"`
	} `xml:"Contents"`
}

// Lister reads a publicly listable bucket with anonymous ListObjectsV2 calls.
type Lister struct {
	bucket     string
	region     string
	endpoint   string
	httpClient *http.Client
	exec       *resilience.Executor
}

type ListerOption func(*Lister)

// WithEndpoint points the lister at a custom base URL, e.g. a local S3 mock.
func WithEndpoint(endpoint string) ListerOption {
	return func(l *Lister) {
		l.endpoint = strings.TrimRight(endpoint, "/")
	}
}

func WithHTTPClient(client *http.Client) ListerOption {
	return func(l *Lister) {
		if client != nil {
			l.httpClient = client
		}
	}
}

func NewLister(bucket, region string, exec *resilience.Executor, opts ...ListerOption) *Lister {
	if region == "" {
		region = DefaultRegion
	}
	if exec == nil {
		exec = resilience.NewExecutor(resilience.DefaultConfig())
	}
	l := &Lister{
		bucket:     bucket,
		region:     region,
		endpoint:   fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		exec:       exec,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Lister) ObjectURL(key string) string {
	return l.endpoint + "/" + domain.EscapeKey(key)
}

func (l *Lister) List(ctx context.Context, prefix string) ([]domain.StoredObject, error) {
	var (
		objects []domain.StoredObject
		token   string
	)
	for page := 0; page < maxListPages; page++ {
		result, err := resilience.Do(ctx, l.exec, "s3_list_objects", func(ctx context.Context) (*listBucketResult, error) {
			return l.listPage(ctx, prefix, token)
		}, resilience.ClassifyHTTPError)
		if err != nil {
			return nil, resilience.WrapTemporaryIfNeeded("list bucket objects", err)
		}

		for _, c := range result.Contents {
			objects = append(objects, domain.StoredObject{
				Key:          c.Key,
				Size:         c.Size,
				LastModified: c.LastModified,
			})
		}
		if !result.IsTruncated || result.NextContinuationToken == "" {
			return objects, nil
		}
		token = result.NextContinuationToken
	}
	return objects, fmt.Errorf("list bucket objects: more than %d pages under %q", maxListPages, prefix)
}

func (l *Lister) listPage(ctx context.Context, prefix, token string) (*listBucketResult, error) {
	query := url.Values{}
	query.Set("list-type", "2")
	if prefix != "" {
		query.Set("prefix", prefix)
	}
	if token != "" {
		query.Set("continuation-token", token)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.endpoint+"/?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create list request: %w", err)
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("s3 list request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, resilience.NewHTTPStatusError("s3", "list", resp)
	}

	var result listBucketResult
	if err := xml.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode list response: %w", err)
	}
	return &result, nil
}
