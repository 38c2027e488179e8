package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/asimovlabs/egodata-portal/internal/config"
	"github.com/asimovlabs/egodata-portal/internal/core/domain"
	"github.com/asimovlabs/egodata-portal/internal/core/usecase"
)

type searchServiceFake struct {
	outcome *domain.SearchOutcome
	err     error
	calls   []domain.SearchQuery
}

func (f *searchServiceFake) Search(_ context.Context, query domain.SearchQuery) (*domain.SearchOutcome, error) {
	f.calls = append(f.calls, query)
	if f.err != nil {
		return nil, f.err
	}
	out := *f.outcome
	out.Query = query
	return &out, nil
}

type exporterFake struct {
	archive *domain.Archive
	err     error
	got     domain.ExportRequest
}

func (f *exporterFake) Export(_ context.Context, req domain.ExportRequest) (*domain.Archive, error) {
	f.got = req
	return f.archive, f.err
}

type explorerFake struct {
	datasets []domain.Dataset
}

func (f *explorerFake) ListDatasets(context.Context) ([]domain.Dataset, error) {
	return f.datasets, nil
}

func (f *explorerFake) ViewerURL(rrdURL string) (string, error) {
	if !strings.HasPrefix(rrdURL, "https://") {
		return "", domain.WrapError(domain.ErrInvalidInput, "viewer url", errors.New("bad url"))
	}
	return "https://app.rerun.io/version/0.27.2/index.html?url=x", nil
}

type intakeFake struct {
	err       error
	interests []domain.InterestForm
	requests  []domain.DataRequest
}

func (f *intakeFake) SubmitInterest(_ context.Context, form domain.InterestForm) (*domain.Submission, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.interests = append(f.interests, form)
	return &domain.Submission{ID: "sub-1", Kind: domain.KindInterest, Status: domain.SubmissionReceived}, nil
}

func (f *intakeFake) SubmitDataRequest(_ context.Context, req domain.DataRequest) (*domain.Submission, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.requests = append(f.requests, req)
	return &domain.Submission{ID: "sub-2", Kind: domain.KindDataRequest, Status: domain.SubmissionReceived}, nil
}

func testConfig() config.Config {
	return config.Config{
		SearchDefaultK:    10,
		SearchMaxK:        100,
		SearchDefaultMode: "semantic",
	}
}

func foldTowelOutcome() *domain.SearchOutcome {
	return &domain.SearchOutcome{
		Count: 2,
		Groups: []domain.GroupedResult{{
			Task:        "fold_towel",
			Description: "Fold the towel",
			AvgScore:    0.7,
			Files: []domain.FileRef{
				{MP4: "https://b.s3.us-east-1.amazonaws.com/1.mp4", HDF5: "https://b.s3.us-east-1.amazonaws.com/1.hdf5", Score: 0.8},
				{MP4: "https://b.s3.us-east-1.amazonaws.com/2.mp4", HDF5: "https://b.s3.us-east-1.amazonaws.com/2.hdf5", Score: 0.6},
			},
		}},
		Notice: usecase.SearchNotice(2),
	}
}

func newTestHandler(t *testing.T, cfg config.Config, svc Services) http.Handler {
	t.Helper()
	if svc.Search == nil {
		svc.Search = &searchServiceFake{outcome: foldTowelOutcome()}
	}
	if svc.Exporter == nil {
		svc.Exporter = &exporterFake{}
	}
	if svc.Explorer == nil {
		svc.Explorer = &explorerFake{}
	}
	if svc.Gate == nil {
		svc.Gate = usecase.NewSessionGate("", 0)
	}
	if svc.Intake == nil {
		svc.Intake = &intakeFake{}
	}
	router, err := NewRouter(context.Background(), cfg, svc, nil, nil)
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	return router.Handler()
}

func doRequest(handler http.Handler, method, target string, body []byte, header map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestHealthzAndRequestID(t *testing.T) {
	handler := newTestHandler(t, testConfig(), Services{})

	res := doRequest(handler, http.MethodGet, "/healthz", nil, map[string]string{requestIDHeader: "req-42"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if got := res.Header().Get(requestIDHeader); got != "req-42" {
		t.Fatalf("expected request id echoed, got %q", got)
	}

	res = doRequest(handler, http.MethodGet, "/healthz", nil, nil)
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected generated request id")
	}
}

func TestSearchReturnsGroupedResults(t *testing.T) {
	search := &searchServiceFake{outcome: foldTowelOutcome()}
	handler := newTestHandler(t, testConfig(), Services{Search: search})

	res := doRequest(handler, http.MethodGet, "/v1/search?q=fold+towel&mode=hybrid", nil, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if len(search.calls) != 1 || search.calls[0].K != 10 || search.calls[0].Mode != domain.ModeHybrid {
		t.Fatalf("unexpected dispatched query %+v", search.calls)
	}

	var resp searchResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Query != "fold towel" || resp.Count != 2 {
		t.Fatalf("unexpected response header fields %+v", resp)
	}
	if len(resp.Groups) != 1 || resp.Groups[0].Title != "Fold Towel" || resp.Groups[0].Match != "70%" {
		t.Fatalf("unexpected groups %+v", resp.Groups)
	}
	if len(resp.Groups[0].Files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(resp.Groups[0].Files))
	}
	if resp.Notice.Level != domain.NoticeSuccess || resp.Notice.Message != "Found 2 results" {
		t.Fatalf("unexpected notice %+v", resp.Notice)
	}
}

func TestSearchUpstreamFailureReturnsEmptyGroups(t *testing.T) {
	search := &searchServiceFake{err: &domain.SearchRequestError{StatusCode: 500, Status: "500 Internal Server Error"}}
	handler := newTestHandler(t, testConfig(), Services{Search: search})

	res := doRequest(handler, http.MethodGet, "/v1/search?q=fold", nil, nil)
	if res.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), `"groups":[]`) {
		t.Fatalf("expected empty groups list, got %s", res.Body.String())
	}

	var resp searchResponse
	if err := json.Unmarshal(res.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.UpstreamStatus != 500 {
		t.Fatalf("expected upstream status 500, got %d", resp.UpstreamStatus)
	}
	if resp.Notice.Level != domain.NoticeError || resp.Notice.Message != "Failed to fetch search results. Please try again." {
		t.Fatalf("unexpected notice %+v", resp.Notice)
	}
}

func TestSearchRejectsInvalidParameters(t *testing.T) {
	search := &searchServiceFake{outcome: foldTowelOutcome()}
	handler := newTestHandler(t, testConfig(), Services{Search: search})

	for _, target := range []string{
		"/v1/search",
		"/v1/search?q=%20%20",
		"/v1/search?q=fold&k=abc",
		"/v1/search?q=fold&k=0",
		"/v1/search?q=fold&k=101",
		"/v1/search?q=fold&mode=vector",
	} {
		res := doRequest(handler, http.MethodGet, target, nil, nil)
		if res.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, res.Code)
		}
	}
	if len(search.calls) != 0 {
		t.Fatalf("invalid queries must not be dispatched, got %d calls", len(search.calls))
	}
}

func TestSearchReportReturnsWorkbook(t *testing.T) {
	handler := newTestHandler(t, testConfig(), Services{})

	res := doRequest(handler, http.MethodGet, "/v1/search/report.xlsx?q=fold", nil, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if !strings.Contains(res.Header().Get("Content-Disposition"), "search_report.xlsx") {
		t.Fatalf("unexpected disposition %q", res.Header().Get("Content-Disposition"))
	}

	book, err := excelize.OpenReader(bytes.NewReader(res.Body.Bytes()))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer book.Close()
	title, err := book.GetCellValue("Results", "C2")
	if err != nil {
		t.Fatalf("read cell: %v", err)
	}
	if title != "Fold Towel" {
		t.Fatalf("expected Fold Towel, got %q", title)
	}
}

func TestExportReturnsArchive(t *testing.T) {
	exporter := &exporterFake{archive: &domain.Archive{
		Name:    "fold_towel_all.zip",
		Entries: []domain.ArchiveEntry{{Name: "fold_towel_1.mp4"}, {Name: "fold_towel_1.hdf5"}},
		Data:    []byte("PK-zip"),
	}}
	handler := newTestHandler(t, testConfig(), Services{Exporter: exporter})

	body := []byte(`{"prefix":"fold_towel","files":[{"mp4":"https://b/1.mp4","hdf5":"https://b/1.hdf5"}]}`)
	res := doRequest(handler, http.MethodPost, "/v1/exports", body, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if res.Header().Get("Content-Type") != "application/zip" {
		t.Fatalf("unexpected content type %q", res.Header().Get("Content-Type"))
	}
	if !strings.Contains(res.Header().Get("Content-Disposition"), `"fold_towel_all.zip"`) {
		t.Fatalf("unexpected disposition %q", res.Header().Get("Content-Disposition"))
	}
	if res.Body.String() != "PK-zip" {
		t.Fatalf("unexpected body %q", res.Body.String())
	}
	if exporter.got.Prefix != "fold_towel" || len(exporter.got.Pairs) != 1 {
		t.Fatalf("unexpected export request %+v", exporter.got)
	}
}

func TestExportFailureReportsOneFile(t *testing.T) {
	exporter := &exporterFake{err: &domain.ExportError{
		Filename: "task_2.mp4",
		URL:      "https://b/2.mp4",
		Err:      errors.New("403 Forbidden"),
	}}
	handler := newTestHandler(t, testConfig(), Services{Exporter: exporter})

	body := []byte(`{"prefix":"task","files":[{"mp4":"https://b/1.mp4","hdf5":"https://b/1.hdf5"},{"mp4":"https://b/2.mp4","hdf5":"https://b/2.hdf5"}]}`)
	res := doRequest(handler, http.MethodPost, "/v1/exports", body, nil)
	if res.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", res.Code)
	}
	var resp exportFailureResponse
	if err := json.Unmarshal(res.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.File != "task_2.mp4" || resp.Notice.Level != domain.NoticeError {
		t.Fatalf("unexpected failure response %+v", resp)
	}
}

func TestExportRejectsBodiesOutsideSchema(t *testing.T) {
	exporter := &exporterFake{}
	handler := newTestHandler(t, testConfig(), Services{Exporter: exporter})

	for _, body := range []string{
		`not json`,
		`{"prefix":"p","files":[]}`,
		`{"prefix":"p","files":[{"mp4":"https://b/1.mp4"}]}`,
		`{"prefix":"p","files":[{"mp4":"a","hdf5":"b"}],"extra":true}`,
	} {
		res := doRequest(handler, http.MethodPost, "/v1/exports", []byte(body), nil)
		if res.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", body, res.Code)
		}
	}
	if exporter.got.Prefix != "" {
		t.Fatalf("invalid bodies must not reach the exporter")
	}
}

func TestExploreRequiresSession(t *testing.T) {
	gate := usecase.NewSessionGate("letmein", time.Hour)
	explorer := &explorerFake{datasets: []domain.Dataset{{ID: "1", Name: "kitchen"}}}
	handler := newTestHandler(t, testConfig(), Services{Gate: gate, Explorer: explorer})

	res := doRequest(handler, http.MethodGet, "/v1/explore/datasets", nil, nil)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", res.Code)
	}

	res = doRequest(handler, http.MethodPost, "/v1/explore/sessions", []byte(`{"password":"nope"}`), nil)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", res.Code)
	}

	res = doRequest(handler, http.MethodPost, "/v1/explore/sessions", []byte(`{"password":"letmein"}`), nil)
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", res.Code)
	}
	var session domain.ExploreSession
	if err := json.Unmarshal(res.Body.Bytes(), &session); err != nil || session.Token == "" {
		t.Fatalf("expected session token, got %s (%v)", res.Body.String(), err)
	}

	auth := map[string]string{"Authorization": "Bearer " + session.Token}
	res = doRequest(handler, http.MethodGet, "/v1/explore/datasets", nil, auth)
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), `"kitchen"`) {
		t.Fatalf("expected datasets, got %d %s", res.Code, res.Body.String())
	}

	res = doRequest(handler, http.MethodGet, "/v1/explore/viewer?url=s3://b/a.rrd", nil, auth)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-https recording, got %d", res.Code)
	}
}

func TestSubmitDataRequestAccepted(t *testing.T) {
	intake := &intakeFake{}
	handler := newTestHandler(t, testConfig(), Services{Intake: intake})

	body := []byte(`{"name":"Ada","email":"ada@lab.io","company":"Lab","dataNeeds":"kitchen"}`)
	res := doRequest(handler, http.MethodPost, "/v1/data-requests", body, nil)
	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if len(intake.requests) != 1 || intake.requests[0].DataNeeds != "kitchen" {
		t.Fatalf("unexpected intake %+v", intake.requests)
	}
}

func TestSubmitInterestMapsValidationErrors(t *testing.T) {
	intake := &intakeFake{err: domain.WrapError(domain.ErrInvalidInput, "validate", errors.New("please select at least one modality"))}
	handler := newTestHandler(t, testConfig(), Services{Intake: intake})

	res := doRequest(handler, http.MethodPost, "/v1/interest", []byte(`{"fullName":"Ada"}`), nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "at least one modality") {
		t.Fatalf("expected validation message, got %s", res.Body.String())
	}

	res = doRequest(handler, http.MethodPost, "/v1/interest", []byte(`{"fullName":42}`), nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for schema violation, got %d", res.Code)
	}
}

func TestFormOptions(t *testing.T) {
	handler := newTestHandler(t, testConfig(), Services{})

	res := doRequest(handler, http.MethodGet, "/v1/forms/options", nil, nil)
	var options map[string][]domain.Option
	if err := json.Unmarshal(res.Body.Bytes(), &options); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(options["modalities"]) != len(domain.ModalityOptions) || len(options["budgets"]) != len(domain.BudgetOptions) {
		t.Fatalf("unexpected options %+v", options)
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.WrapError(domain.ErrInvalidInput, "op", errors.New("x")), http.StatusBadRequest},
		{domain.WrapError(domain.ErrUnauthorized, "op", errors.New("x")), http.StatusUnauthorized},
		{domain.WrapError(domain.ErrNotFound, "op", errors.New("x")), http.StatusNotFound},
		{domain.WrapError(domain.ErrTooLarge, "op", errors.New("x")), http.StatusRequestEntityTooLarge},
		{domain.WrapError(domain.ErrTemporary, "op", errors.New("x")), http.StatusServiceUnavailable},
		{&domain.SearchRequestError{StatusCode: 404}, http.StatusBadGateway},
		{&domain.ExportError{Filename: "a.mp4", Err: errors.New("x")}, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := mapErrorToHTTPStatus(tc.err); got != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, got)
		}
	}
}
