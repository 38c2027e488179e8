package s3

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/asimovlabs/egodata-portal/internal/core/domain"
)

const (
	DefaultRegion = "us-east-1"
	uriScheme     = "s3://"
)

var (
	errMissingKey = errors.New("missing key path")
	errEmptyPart  = errors.New("empty bucket or key")
)

// ToHTTPS converts s3://bucket/key into the virtual-hosted HTTPS address of
// the object. HTTP(S) input is returned unchanged.
func ToHTTPS(ref, region string) (string, error) {
	if strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "http://") {
		return ref, nil
	}
	if !strings.HasPrefix(ref, uriScheme) {
		return ref, fmt.Errorf("unsupported reference scheme in %q", ref)
	}
	if region == "" {
		region = DefaultRegion
	}

	rest := strings.TrimPrefix(ref, uriScheme)
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok {
		return ref, errMissingKey
	}
	if bucket == "" || key == "" {
		return ref, errEmptyPart
	}
	return ObjectURL(bucket, region, key), nil
}

// ObjectURL is the HTTPS address of key in bucket.
func ObjectURL(bucket, region, key string) string {
	if region == "" {
		region = DefaultRegion
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, region, domain.EscapeKey(key))
}

// Normalizer rewrites result references for the browser. Malformed input is
// returned unchanged and logged.
type Normalizer struct {
	region string
	logger *slog.Logger
}

func NewNormalizer(region string, logger *slog.Logger) *Normalizer {
	if region == "" {
		region = DefaultRegion
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{region: region, logger: logger}
}

func (n *Normalizer) Normalize(ref string) string {
	out, err := ToHTTPS(ref, n.region)
	if err != nil {
		n.logger.Warn("storage_ref_malformed", "ref", ref, "error", err)
		return ref
	}
	return out
}
