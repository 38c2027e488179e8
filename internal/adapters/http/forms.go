package httpadapter

import (
	"net/http"

	"github.com/asimovlabs/egodata-portal/internal/core/domain"
)

type submissionResponse struct {
	ID     string                  `json:"id"`
	Status domain.SubmissionStatus `json:"status"`
	Notice domain.Notice           `json:"notice"`
}

func (rt *Router) formOptions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]domain.Option{
		"modalities": domain.ModalityOptions,
		"timeframes": domain.TimeframeOptions,
		"budgets":    domain.BudgetOptions,
	})
}

func (rt *Router) submitInterest(w http.ResponseWriter, r *http.Request) {
	var form domain.InterestForm
	if err := rt.validator.decode(w, r, "InterestForm", &form); err != nil {
		rt.metrics.RecordSubmission(serviceName, string(domain.KindInterest), err)
		writeError(w, err)
		return
	}

	sub, err := rt.svc.Intake.SubmitInterest(r.Context(), form)
	rt.metrics.RecordSubmission(serviceName, string(domain.KindInterest), err)
	if err != nil {
		rt.writeSubmissionFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, submissionResponse{
		ID:     sub.ID,
		Status: sub.Status,
		Notice: domain.Notice{Level: domain.NoticeSuccess, Message: "Thanks, we'll be in touch!"},
	})
}

func (rt *Router) submitDataRequest(w http.ResponseWriter, r *http.Request) {
	var req domain.DataRequest
	if err := rt.validator.decode(w, r, "DataRequest", &req); err != nil {
		rt.metrics.RecordSubmission(serviceName, string(domain.KindDataRequest), err)
		writeError(w, err)
		return
	}

	sub, err := rt.svc.Intake.SubmitDataRequest(r.Context(), req)
	rt.metrics.RecordSubmission(serviceName, string(domain.KindDataRequest), err)
	if err != nil {
		rt.writeSubmissionFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, submissionResponse{
		ID:     sub.ID,
		Status: sub.Status,
		Notice: domain.Notice{Level: domain.NoticeSuccess, Message: "Thanks, we'll be in touch soon."},
	})
}

func (rt *Router) writeSubmissionFailure(w http.ResponseWriter, r *http.Request, err error) {
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		rt.logger.Error("submission_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
	}
	writeError(w, err)
}
