package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/asimovlabs/egodata-portal/internal/core/domain"
	"github.com/asimovlabs/egodata-portal/internal/core/ports"
)

const (
	noResultsMessage     = "No results found for your query"
	searchFailureMessage = "Failed to fetch search results. Please try again."
)

type SearchUseCase struct {
	endpoint   ports.SearchEndpoint
	normalizer ports.RefNormalizer
	logger     *slog.Logger
}

func NewSearchUseCase(endpoint ports.SearchEndpoint, normalizer ports.RefNormalizer, logger *slog.Logger) *SearchUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchUseCase{
		endpoint:   endpoint,
		normalizer: normalizer,
		logger:     logger,
	}
}

func (uc *SearchUseCase) Search(ctx context.Context, query domain.SearchQuery) (*domain.SearchOutcome, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	raw, err := uc.endpoint.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("dispatch search: %w", err)
	}

	normalized := make([]domain.RawResult, 0, len(raw))
	for _, r := range raw {
		if r.Score < 0 || r.Score > 1 {
			uc.logger.Debug("search_score_out_of_range", "task", r.Task, "score", r.Score)
		}
		normalized = append(normalized, NormalizeResult(uc.normalizer, r))
	}

	groups := GroupResults(InvertScores(normalized))
	return &domain.SearchOutcome{
		Query:  query,
		Count:  len(raw),
		Groups: groups,
		Notice: SearchNotice(len(raw)),
	}, nil
}

// SearchNotice is the message shown after a successful search returning n rows.
func SearchNotice(n int) domain.Notice {
	if n == 0 {
		return domain.Notice{Level: domain.NoticeInfo, Message: noResultsMessage}
	}
	return domain.Notice{Level: domain.NoticeSuccess, Message: fmt.Sprintf("Found %d %s", n, resultNoun(n))}
}

func SearchFailureNotice() domain.Notice {
	return domain.Notice{Level: domain.NoticeError, Message: searchFailureMessage}
}

// NormalizeResult rewrites the file references of one row into fetchable URLs.
func NormalizeResult(n ports.RefNormalizer, r domain.RawResult) domain.RawResult {
	r.MP4 = n.Normalize(r.MP4)
	r.HDF5 = n.Normalize(r.HDF5)
	return r
}
