package usecase

import (
	"sort"

	"github.com/asimovlabs/egodata-portal/internal/core/domain"
)

// InvertScore turns an endpoint distance into a similarity. Values outside
// [0,1] are not clamped.
func InvertScore(distance float64) float64 {
	return 1 - distance
}

func InvertScores(results []domain.RawResult) []domain.RawResult {
	out := make([]domain.RawResult, len(results))
	for i, r := range results {
		r.Score = InvertScore(r.Score)
		out[i] = r
	}
	return out
}

// Grouper accumulates raw results into one group per exact description.
type Grouper struct {
	index  map[string]int
	groups []domain.GroupedResult
}

func NewGrouper(sizeHint int) *Grouper {
	return &Grouper{
		index:  make(map[string]int, sizeHint),
		groups: make([]domain.GroupedResult, 0, sizeHint),
	}
}

// Add appends the result's files to its group and returns the updated group.
func (g *Grouper) Add(r domain.RawResult) domain.GroupedResult {
	file := domain.FileRef{MP4: r.MP4, HDF5: r.HDF5, Score: r.Score}

	i, ok := g.index[r.Description]
	if !ok {
		g.index[r.Description] = len(g.groups)
		g.groups = append(g.groups, domain.GroupedResult{
			Task:        r.Task,
			Description: r.Description,
			AvgScore:    r.Score,
			Files:       []domain.FileRef{file},
		})
		return g.groups[len(g.groups)-1]
	}

	group := &g.groups[i]
	group.Files = append(group.Files, file)
	group.AvgScore = meanScore(group.Files)
	return *group
}

// Groups returns the groups sorted by descending average score; equal scores
// keep the order in which their description first appeared.
func (g *Grouper) Groups() []domain.GroupedResult {
	out := make([]domain.GroupedResult, len(g.groups))
	copy(out, g.groups)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AvgScore > out[j].AvgScore
	})
	return out
}

func GroupResults(results []domain.RawResult) []domain.GroupedResult {
	grouper := NewGrouper(len(results))
	for _, r := range results {
		grouper.Add(r)
	}
	return grouper.Groups()
}

func meanScore(files []domain.FileRef) float64 {
	if len(files) == 0 {
		return 0
	}
	var sum float64
	for _, f := range files {
		sum += f.Score
	}
	return sum / float64(len(files))
}
