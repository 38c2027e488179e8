package httpadapter

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/oapi-codegen/runtime"

	"github.com/asimovlabs/egodata-portal/internal/adapters/report"
	"github.com/asimovlabs/egodata-portal/internal/core/domain"
	"github.com/asimovlabs/egodata-portal/internal/core/usecase"
)

type fileResponse struct {
	MP4   string  `json:"mp4"`
	HDF5  string  `json:"hdf5"`
	Score float64 `json:"score"`
}

type groupResponse struct {
	Task        string         `json:"task"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	AvgScore    float64        `json:"avg_score"`
	Match       string         `json:"match"`
	Files       []fileResponse `json:"files"`
}

type searchResponse struct {
	Query          string          `json:"query"`
	K              int             `json:"k"`
	Mode           string          `json:"mode"`
	Count          int             `json:"count"`
	Error          string          `json:"error,omitempty"`
	UpstreamStatus int             `json:"upstream_status,omitempty"`
	Groups         []groupResponse `json:"groups"`
	Notice         domain.Notice   `json:"notice"`
}

func newGroupResponses(groups []domain.GroupedResult) []groupResponse {
	out := make([]groupResponse, 0, len(groups))
	for _, g := range groups {
		files := make([]fileResponse, 0, len(g.Files))
		for _, f := range g.Files {
			files = append(files, fileResponse{MP4: f.MP4, HDF5: f.HDF5, Score: f.Score})
		}
		out = append(out, groupResponse{
			Task:        g.Task,
			Title:       usecase.FormatTaskName(g.Task),
			Description: g.Description,
			AvgScore:    g.AvgScore,
			Match:       usecase.FormatScore(g.AvgScore),
			Files:       files,
		})
	}
	return out
}

// bindSearchQuery reads q, k and mode, filling defaults from config.
func (rt *Router) bindSearchQuery(r *http.Request) (domain.SearchQuery, error) {
	const op = "bind search query"
	params := r.URL.Query()

	var text *string
	if err := runtime.BindQueryParameter("form", true, false, "q", params, &text); err != nil {
		return domain.SearchQuery{}, domain.WrapError(domain.ErrInvalidInput, op, err)
	}
	var k *int
	if err := runtime.BindQueryParameter("form", true, false, "k", params, &k); err != nil {
		return domain.SearchQuery{}, domain.WrapError(domain.ErrInvalidInput, op, err)
	}
	var mode *string
	if err := runtime.BindQueryParameter("form", true, false, "mode", params, &mode); err != nil {
		return domain.SearchQuery{}, domain.WrapError(domain.ErrInvalidInput, op, err)
	}

	query := domain.SearchQuery{K: rt.cfg.SearchDefaultK, Mode: domain.SearchMode(rt.cfg.SearchDefaultMode)}
	if text != nil {
		query.Text = *text
	}
	if k != nil {
		query.K = *k
	}
	if mode != nil && *mode != "" {
		parsed, err := domain.ParseSearchMode(*mode)
		if err != nil {
			return domain.SearchQuery{}, err
		}
		query.Mode = parsed
	}
	if rt.cfg.SearchMaxK > 0 && query.K > rt.cfg.SearchMaxK {
		return domain.SearchQuery{}, domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("k must not exceed %d", rt.cfg.SearchMaxK))
	}
	if err := query.Validate(); err != nil {
		return domain.SearchQuery{}, err
	}
	return query, nil
}

func (rt *Router) runSearch(r *http.Request) (domain.SearchQuery, *domain.SearchOutcome, error) {
	query, err := rt.bindSearchQuery(r)
	if err != nil {
		return query, nil, err
	}

	start := time.Now()
	outcome, err := rt.svc.Search.Search(r.Context(), query)
	raw, groups := 0, 0
	if outcome != nil {
		raw, groups = outcome.Count, len(outcome.Groups)
	}
	rt.metrics.RecordSearch(serviceName, string(query.Mode), raw, groups, time.Since(start), err)
	return query, outcome, err
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	query, outcome, err := rt.runSearch(r)
	if err != nil {
		rt.writeSearchFailure(w, r, query, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Query:  outcome.Query.Text,
		K:      outcome.Query.K,
		Mode:   string(outcome.Query.Mode),
		Count:  outcome.Count,
		Groups: newGroupResponses(outcome.Groups),
		Notice: outcome.Notice,
	})
}

// writeSearchFailure reports a failed search with an empty result list so a
// client never keeps showing groups from an earlier query.
func (rt *Router) writeSearchFailure(w http.ResponseWriter, r *http.Request, query domain.SearchQuery, err error) {
	if domain.IsKind(err, domain.ErrInvalidInput) {
		writeError(w, err)
		return
	}

	status := mapErrorToHTTPStatus(err)
	if status == http.StatusInternalServerError {
		status = http.StatusBadGateway
	}
	rt.logger.Warn("search_failed",
		"request_id", requestIDFromContext(r.Context()),
		"query", query.Text,
		"mode", query.Mode,
		"error", err,
	)
	writeJSON(w, status, searchResponse{
		Query:          query.Text,
		K:              query.K,
		Mode:           string(query.Mode),
		Error:          err.Error(),
		UpstreamStatus: upstreamStatus(err),
		Groups:         []groupResponse{},
		Notice:         usecase.SearchFailureNotice(),
	})
}

func (rt *Router) searchReport(w http.ResponseWriter, r *http.Request) {
	query, outcome, err := rt.runSearch(r)
	if err != nil {
		rt.writeSearchFailure(w, r, query, err)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteXLSX(&buf, outcome); err != nil {
		rt.logger.Error("search_report_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="search_report.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
