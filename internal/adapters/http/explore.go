package httpadapter

import (
	"net/http"
	"strings"

	"github.com/asimovlabs/egodata-portal/internal/core/domain"
)

func (rt *Router) openExploreSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := rt.validator.decode(w, r, "ExploreSessionRequest", &req); err != nil {
		writeError(w, err)
		return
	}

	session, err := rt.svc.Gate.Open(req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (rt *Router) requireExploreSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := rt.svc.Gate.Authorize(bearerToken(r.Header.Get("Authorization"))); err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, err)
			return
		}
		next(w, r)
	}
}

func bearerToken(headerValue string) string {
	headerValue = strings.TrimSpace(headerValue)
	const bearerPrefix = "Bearer "
	if len(headerValue) < len(bearerPrefix) || !strings.EqualFold(headerValue[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(headerValue[len(bearerPrefix):])
}

func (rt *Router) listDatasets(w http.ResponseWriter, r *http.Request) {
	datasets, err := rt.svc.Explorer.ListDatasets(r.Context())
	if err != nil {
		rt.logger.Error("list_datasets_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		writeError(w, err)
		return
	}
	if datasets == nil {
		datasets = []domain.Dataset{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"datasets": datasets})
}

func (rt *Router) viewerURL(w http.ResponseWriter, r *http.Request) {
	viewer, err := rt.svc.Explorer.ViewerURL(r.URL.Query().Get("url"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"viewer_url": viewer})
}
