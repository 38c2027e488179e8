package httpadapter

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/asimovlabs/egodata-portal/internal/core/domain"
)

type exportFailureResponse struct {
	Error  string        `json:"error"`
	File   string        `json:"file,omitempty"`
	Notice domain.Notice `json:"notice"`
}

func (rt *Router) export(w http.ResponseWriter, r *http.Request) {
	var req domain.ExportRequest
	if err := rt.validator.decode(w, r, "ExportRequest", &req); err != nil {
		writeError(w, err)
		return
	}

	archive, err := rt.svc.Exporter.Export(r.Context(), req)
	if err != nil {
		rt.metrics.RecordExport(serviceName, 0, 0, err)
		rt.writeExportFailure(w, r, err)
		return
	}
	rt.metrics.RecordExport(serviceName, len(archive.Entries), len(archive.Data), nil)

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", archive.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(archive.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive.Data)
}

func (rt *Router) writeExportFailure(w http.ResponseWriter, r *http.Request, err error) {
	var exportErr *domain.ExportError
	if !errors.As(err, &exportErr) {
		writeError(w, err)
		return
	}

	rt.logger.Warn("export_failed",
		"request_id", requestIDFromContext(r.Context()),
		"file", exportErr.Filename,
		"url", exportErr.URL,
		"error", exportErr.Err,
	)
	status := mapErrorToHTTPStatus(err)
	if status == http.StatusInternalServerError {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, exportFailureResponse{
		Error: err.Error(),
		File:  exportErr.Filename,
		Notice: domain.Notice{
			Level:   domain.NoticeError,
			Message: "Failed to download files",
		},
	})
}
