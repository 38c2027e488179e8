package usecase

import (
	"context"
	"sync"

	"github.com/asimovlabs/egodata-portal/internal/core/domain"
	"github.com/asimovlabs/egodata-portal/internal/core/ports"
)

// ViewState is a copy of what a results view currently displays.
type ViewState struct {
	Seq         uint64
	Loading     bool
	HasSearched bool
	Query       domain.SearchQuery
	Groups      []domain.GroupedResult
	Notice      domain.Notice
}

// SearchView owns the displayed result set of one client. Every search takes
// a sequence token from Begin; a response is applied only if no newer search
// started since, so overlapping searches cannot overwrite each other.
type SearchView struct {
	mu    sync.Mutex
	state ViewState
}

func NewSearchView() *SearchView {
	return &SearchView{}
}

func (v *SearchView) Begin(query domain.SearchQuery) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.state.Seq++
	v.state.Loading = true
	v.state.HasSearched = true
	v.state.Query = query
	return v.state.Seq
}

// Apply replaces the displayed groups. It reports false for a stale token.
func (v *SearchView) Apply(seq uint64, outcome *domain.SearchOutcome) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if seq != v.state.Seq {
		return false
	}
	v.state.Loading = false
	v.state.Groups = outcome.Groups
	v.state.Notice = outcome.Notice
	return true
}

// Fail clears the displayed groups after a failed search.
func (v *SearchView) Fail(seq uint64) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if seq != v.state.Seq {
		return false
	}
	v.state.Loading = false
	v.state.Groups = []domain.GroupedResult{}
	v.state.Notice = SearchFailureNotice()
	return true
}

// Reset clears the view and invalidates any search still in flight.
func (v *SearchView) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.state = ViewState{Seq: v.state.Seq + 1}
}

func (v *SearchView) Snapshot() ViewState {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := v.state
	out.Groups = append([]domain.GroupedResult(nil), v.state.Groups...)
	return out
}

// Run executes one search against svc and applies its outcome. applied is
// false when a newer search superseded this one.
func (v *SearchView) Run(ctx context.Context, svc ports.SearchService, query domain.SearchQuery) (outcome *domain.SearchOutcome, applied bool, err error) {
	seq := v.Begin(query)
	outcome, err = svc.Search(ctx, query)
	if err != nil {
		return nil, v.Fail(seq), err
	}
	return outcome, v.Apply(seq, outcome), nil
}
