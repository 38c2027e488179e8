package httpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/asimovlabs/egodata-portal/internal/config"
	"github.com/asimovlabs/egodata-portal/internal/core/ports"
	"github.com/asimovlabs/egodata-portal/internal/observability/metrics"
)

const serviceName = "api"

// Services are the inbound ports served over HTTP.
type Services struct {
	Search   ports.SearchService
	Exporter ports.BundleExporter
	Explorer ports.CatalogExplorer
	Gate     ports.ExploreGate
	Intake   ports.SubmissionIntake
}

type Router struct {
	cfg       config.Config
	svc       Services
	validator *bodyValidator
	metrics   *metrics.HTTPServerMetrics
	logger    *slog.Logger
}

func NewRouter(
	ctx context.Context,
	cfg config.Config,
	svc Services,
	httpMetrics *metrics.HTTPServerMetrics,
	logger *slog.Logger,
) (*Router, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if httpMetrics == nil {
		httpMetrics = metrics.NewHTTPServerMetrics(serviceName)
	}
	validator, err := newBodyValidator(ctx)
	if err != nil {
		return nil, fmt.Errorf("init request validator: %w", err)
	}
	return &Router{
		cfg:       cfg,
		svc:       svc,
		validator: validator,
		metrics:   httpMetrics,
		logger:    logger,
	}, nil
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /v1/search", rt.search)
	api.HandleFunc("GET /v1/search/report.xlsx", rt.searchReport)
	api.HandleFunc("POST /v1/exports", rt.export)
	api.HandleFunc("POST /v1/explore/sessions", rt.openExploreSession)
	api.HandleFunc("GET /v1/explore/datasets", rt.requireExploreSession(rt.listDatasets))
	api.HandleFunc("GET /v1/explore/viewer", rt.requireExploreSession(rt.viewerURL))
	api.HandleFunc("GET /v1/forms/options", rt.formOptions)
	api.HandleFunc("POST /v1/interest", rt.submitInterest)
	api.HandleFunc("POST /v1/data-requests", rt.submitDataRequest)
	api.Handle("/mcp", newMCPHandler(rt.svc.Search, rt.cfg, rt.logger))

	limited := rateLimitMiddleware(api, newRateLimiter(rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst))
	limited = backpressureMiddleware(limited, rt.cfg.APIMaxInFlight, rt.cfg.APIBackpressureWait)

	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", rt.healthz)
	root.HandleFunc("GET /openapi.yaml", rt.openAPIDocument)
	root.Handle("GET /metrics", rt.metrics.Handler())
	root.Handle("/", limited)

	var handler http.Handler = root
	handler = rt.metrics.Middleware(serviceName, handler)
	handler = recoverMiddleware(rt.logger, handler)
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
