package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/asimovlabs/egodata-portal/internal/bootstrap"
	"github.com/asimovlabs/egodata-portal/internal/config"
	"github.com/asimovlabs/egodata-portal/internal/observability/logging"
	"github.com/asimovlabs/egodata-portal/internal/observability/metrics"
)

const serviceName = "worker"

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewWorker(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)

	requeued, err := app.RequeueUC.RequeueStale(ctx, cfg.RequeueStaleAfter)
	workerMetrics.RecordRequeued(serviceName, requeued)
	if err != nil {
		logger.Warn("requeue_stale_failed", "requeued", requeued, "error", err)
	} else if requeued > 0 {
		logger.Info("requeue_stale_done", "requeued", requeued)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", workerMetrics.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		logger.Info("worker_subscribed", "subject", cfg.SubmissionsSubject, "queue_group", cfg.NATSQueueGroup)
		return app.Queue.SubscribeSubmissions(gctx, func(handlerCtx context.Context, submissionID string) error {
			processCtx, cancel := context.WithTimeout(handlerCtx, time.Minute)
			defer cancel()

			start := time.Now()
			workerMetrics.StartSubmission()
			err := app.ProcessUC.ProcessByID(processCtx, submissionID)
			workerMetrics.FinishSubmission(serviceName, time.Since(start), err)
			if err == nil {
				logger.Info("submission_forwarded", "submission_id", submissionID, "duration_ms", time.Since(start).Milliseconds())
			}
			return err
		})
	})

	if err := g.Wait(); err != nil {
		logger.Error("worker_stopped", "error", err)
		os.Exit(1)
	}
}
