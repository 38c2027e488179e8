package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	httpadapter "github.com/asimovlabs/egodata-portal/internal/adapters/http"
	"github.com/asimovlabs/egodata-portal/internal/config"
	"github.com/asimovlabs/egodata-portal/internal/core/ports"
	"github.com/asimovlabs/egodata-portal/internal/core/usecase"
	"github.com/asimovlabs/egodata-portal/internal/infrastructure/archive"
	"github.com/asimovlabs/egodata-portal/internal/infrastructure/catalog/yamlcatalog"
	"github.com/asimovlabs/egodata-portal/internal/infrastructure/fetch"
	"github.com/asimovlabs/egodata-portal/internal/infrastructure/forwarder/formspree"
	"github.com/asimovlabs/egodata-portal/internal/infrastructure/objectstore/s3"
	"github.com/asimovlabs/egodata-portal/internal/infrastructure/queue/nats"
	"github.com/asimovlabs/egodata-portal/internal/infrastructure/repository/postgres"
	"github.com/asimovlabs/egodata-portal/internal/infrastructure/resilience"
	"github.com/asimovlabs/egodata-portal/internal/infrastructure/searchapi"
	"github.com/asimovlabs/egodata-portal/internal/infrastructure/storage/localfs"
	"github.com/asimovlabs/egodata-portal/internal/observability/metrics"
)

// Search bundles what a search client needs: dispatch, normalization and
// bundle export. It holds no network connections beyond HTTP clients.
type Search struct {
	SearchUC *usecase.SearchUseCase
	ExportUC *usecase.ExportUseCase
}

type API struct {
	Search
	Services httpadapter.Services
	Metrics  *metrics.HTTPServerMetrics

	closeFn func()
}

type Worker struct {
	Queue     ports.SubmissionQueue
	ProcessUC ports.SubmissionProcessor
	RequeueUC ports.SubmissionRequeuer

	closeFn func()
}

type Client struct {
	Search
	Storage ports.FileStorage
}

func resilienceConfig(cfg config.Config) resilience.Config {
	return resilience.Config{
		Retry: resilience.RetryPolicy{
			MaxAttempts:    cfg.RetryMaxAttempts,
			InitialBackoff: cfg.RetryInitialBackoff,
			MaxBackoff:     cfg.RetryMaxBackoff,
			Multiplier:     2,
		},
		Breaker: resilience.BreakerPolicy{
			Enabled:          cfg.BreakerEnabled,
			MinRequests:      uint32(max(cfg.BreakerMinRequests, 0)),
			FailureRatio:     cfg.BreakerFailureRatio,
			OpenTimeout:      cfg.BreakerOpenTimeout,
			HalfOpenMaxCalls: uint32(max(cfg.BreakerHalfOpenMaxCalls, 0)),
		},
	}
}

func newSearch(cfg config.Config, logger *slog.Logger, opts ...resilience.Option) Search {
	opts = append(opts, resilience.WithLogger(logger))
	base := resilienceConfig(cfg)

	// user-triggered calls are never retried; a failure is shown once
	searchExec := resilience.NewExecutor(base.WithoutRetry(), opts...)
	fetchExec := resilience.NewExecutor(base.WithoutRetry(), opts...)

	normalizer := s3.NewNormalizer(cfg.S3Region, logger)
	searchClient := searchapi.New(cfg.SearchAPIURL, cfg.SearchTimeout, searchExec)
	fetcher := fetch.New(cfg.FetchTimeout, fetchExec)

	return Search{
		SearchUC: usecase.NewSearchUseCase(searchClient, normalizer, logger),
		ExportUC: usecase.NewExportUseCase(fetcher, archive.NewZipBuilder(), normalizer, usecase.ExportLimits{
			MaxParallel:         cfg.ExportMaxParallel,
			MaxPairs:            cfg.ExportMaxPairs,
			MaxFileBytes:        cfg.ExportMaxFileBytes,
			MaxArchiveBytes:     cfg.ExportMaxArchiveBytes,
			AllowedHostSuffixes: cfg.ExportAllowedHostSuffixes,
		}, logger),
	}
}

func openSubmissions(ctx context.Context, cfg config.Config, clientName string, exec *resilience.Executor, logger *slog.Logger) (*sql.DB, *postgres.SubmissionRepository, *nats.Queue, error) {
	db, err := postgres.OpenDB(ctx, cfg.PostgresDSN, postgres.PoolConfig{
		MaxOpenConns: cfg.PostgresMaxOpen,
		MaxIdleConns: cfg.PostgresMaxIdle,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewSubmissionRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, nil, fmt.Errorf("ensure schema: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.SubmissionsSubject, nats.Options{
		ClientName:         clientName,
		QueueGroup:         cfg.NATSQueueGroup,
		ResilienceExecutor: exec,
		Logger:             logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, nil, nil, fmt.Errorf("init message queue: %w", err)
	}
	return db, repo, queue, nil
}

func NewAPI(ctx context.Context, cfg config.Config, logger *slog.Logger) (*API, error) {
	httpMetrics := metrics.NewHTTPServerMetrics("api")
	observer := resilience.WithStateObserver(httpMetrics.BreakerObserver("api"))

	search := newSearch(cfg, logger, observer)

	lister := s3.NewLister(cfg.ExploreBucket, cfg.S3Region,
		resilience.NewExecutor(resilienceConfig(cfg), observer, resilience.WithLogger(logger)))
	var catalog ports.DatasetCatalog
	if cfg.ExploreCatalogFile != "" {
		c, err := yamlcatalog.Load(cfg.ExploreCatalogFile)
		if err != nil {
			return nil, fmt.Errorf("load explore catalog: %w", err)
		}
		catalog = c
	}
	exploreUC := usecase.NewExploreUseCase(lister, catalog, cfg.ExplorePrefix, cfg.RerunVersion, logger)
	gate := usecase.NewSessionGate(cfg.ExplorePassword, cfg.ExploreSessionTTL)
	if !gate.Enabled() {
		logger.Warn("explore_gate_disabled", "reason", "EXPLORE_PASSWORD is empty")
	}

	queueExec := resilience.NewExecutor(resilienceConfig(cfg), observer, resilience.WithLogger(logger))
	db, repo, queue, err := openSubmissions(ctx, cfg, "egodata-api", queueExec, logger)
	if err != nil {
		return nil, err
	}

	return &API{
		Search: search,
		Services: httpadapter.Services{
			Search:   search.SearchUC,
			Exporter: search.ExportUC,
			Explorer: exploreUC,
			Gate:     gate,
			Intake:   usecase.NewSubmissionIntakeUseCase(repo, queue),
		},
		Metrics: httpMetrics,
		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func NewWorker(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Worker, error) {
	exec := resilience.NewExecutor(resilienceConfig(cfg), resilience.WithLogger(logger))

	forwarder, err := formspree.New(cfg.FormspreeEndpoint, cfg.FormspreeTimeout, exec)
	if err != nil {
		return nil, fmt.Errorf("init forwarder: %w", err)
	}

	db, repo, queue, err := openSubmissions(ctx, cfg, "egodata-worker", exec, logger)
	if err != nil {
		return nil, err
	}

	return &Worker{
		Queue:     queue,
		ProcessUC: usecase.NewForwardSubmissionUseCase(repo, forwarder),
		RequeueUC: usecase.NewRequeueSubmissionsUseCase(repo, queue),
		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

// NewClient wires the terminal client: search, export and local downloads.
func NewClient(cfg config.Config, logger *slog.Logger) (*Client, error) {
	storage, err := localfs.New(cfg.DownloadDir)
	if err != nil {
		return nil, fmt.Errorf("init download storage: %w", err)
	}
	return &Client{
		Search:  newSearch(cfg, logger),
		Storage: storage,
	}, nil
}

func (a *API) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func (w *Worker) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}
