package ports

import (
	"context"
	"time"

	"github.com/asimovlabs/egodata-portal/internal/core/domain"
)

// SearchService runs the dispatch, normalize, invert and group pipeline.
type SearchService interface {
	Search(ctx context.Context, query domain.SearchQuery) (*domain.SearchOutcome, error)
}

// BundleExporter fetches demonstration files and packs them into one archive.
type BundleExporter interface {
	Export(ctx context.Context, req domain.ExportRequest) (*domain.Archive, error)
}

// CatalogExplorer lists datasets for the explore viewer.
type CatalogExplorer interface {
	ListDatasets(ctx context.Context) ([]domain.Dataset, error)
	ViewerURL(rrdURL string) (string, error)
}

// ExploreGate issues and checks explore sessions behind the shared password.
type ExploreGate interface {
	Open(password string) (*domain.ExploreSession, error)
	Authorize(token string) error
}

// SubmissionIntake validates and accepts form submissions.
type SubmissionIntake interface {
	SubmitInterest(ctx context.Context, form domain.InterestForm) (*domain.Submission, error)
	SubmitDataRequest(ctx context.Context, req domain.DataRequest) (*domain.Submission, error)
}

// SubmissionProcessor forwards one stored submission; used by the worker.
type SubmissionProcessor interface {
	ProcessByID(ctx context.Context, submissionID string) error
}

// SubmissionRequeuer republishes submissions that were stored but never forwarded.
type SubmissionRequeuer interface {
	RequeueStale(ctx context.Context, olderThan time.Duration) (int, error)
}
