package ports

import (
	"context"
	"io"
	"time"

	"github.com/asimovlabs/egodata-portal/internal/core/domain"
)

// SearchEndpoint issues one query to the external search API.
type SearchEndpoint interface {
	Search(ctx context.Context, query domain.SearchQuery) ([]domain.RawResult, error)
}

// RefNormalizer rewrites storage references into browser-fetchable URLs.
type RefNormalizer interface {
	Normalize(ref string) string
}

// ObjectFetcher downloads one file, failing when it exceeds maxBytes.
type ObjectFetcher interface {
	Fetch(ctx context.Context, url string, maxBytes int64) ([]byte, error)
}

type ArchiveFile struct {
	Name string
	Data []byte
}

// ArchiveBuilder serializes files, in order, into one compressed archive.
type ArchiveBuilder interface {
	Build(files []ArchiveFile) ([]byte, error)
}

// ObjectLister lists keys under a prefix of one bucket.
type ObjectLister interface {
	List(ctx context.Context, prefix string) ([]domain.StoredObject, error)
	ObjectURL(key string) string
}

// DatasetCatalog is a static source of explore datasets.
type DatasetCatalog interface {
	Datasets(ctx context.Context) ([]domain.Dataset, error)
}

// SubmissionRepository persists form submissions.
type SubmissionRepository interface {
	Create(ctx context.Context, sub *domain.Submission) error
	GetByID(ctx context.Context, id string) (*domain.Submission, error)
	UpdateStatus(ctx context.Context, id string, status domain.SubmissionStatus, errMessage string) error
	// ListStale returns ids still in status received created before olderThan.
	ListStale(ctx context.Context, olderThan time.Time, limit int) ([]string, error)
}

// SubmissionQueue publishes/consumes accepted submission ids.
type SubmissionQueue interface {
	PublishSubmission(ctx context.Context, submissionID string) error
	SubscribeSubmissions(ctx context.Context, handler func(context.Context, string) error) error
}

// SubmissionForwarder relays a submission to the form inbox.
type SubmissionForwarder interface {
	Forward(ctx context.Context, sub *domain.Submission) error
}

// FileStorage stores downloaded archives on the local machine.
type FileStorage interface {
	Save(ctx context.Context, key string, data io.Reader) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}
