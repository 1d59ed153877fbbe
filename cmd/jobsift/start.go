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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/amishk599/jobsift/internal/metrics"
	"github.com/amishk599/jobsift/internal/model"
	"github.com/amishk599/jobsift/internal/pipeline"
	"github.com/amishk599/jobsift/internal/queue"
	"github.com/amishk599/jobsift/internal/scheduler"
	"github.com/amishk599/jobsift/internal/store"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the pipeline daemon",
	Long:  "Start the queue worker and cron scheduler; blocks until SIGINT/SIGTERM.",
	RunE:  runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("config loaded",
		"db", cfg.DBPath,
		"timezone", cfg.Schedule.Timezone,
		"scan_window", cfg.Schedule.ScanStartHour,
		"scan_window_end", cfg.Schedule.ScanEndHour,
		"min_relevance", cfg.Thresholds.MinRelevance,
	)

	sqlStore, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer sqlStore.Close()

	httpClient := &http.Client{Timeout: 30 * time.Second}
	n := setupNotifier(cfg, httpClient, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sink metrics.Sink = metrics.NewNoopSink()
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		sink = metrics.NewPrometheusSink(reg, logger)
		go serveMetrics(ctx, cfg.Metrics.Addr, reg, logger)
	}

	orch, err := buildOrchestrator(cfg, sqlStore, n, sink, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	q := queue.New(queue.Config{
		Policy: model.RetryPolicy{
			MaxAttempts: cfg.Queue.MaxAttempts,
			Backoff:     model.BackoffExponential,
			BaseDelay:   cfg.Queue.BaseDelay,
		},
		PollInterval: cfg.Queue.PollInterval,
		LeaseTimeout: cfg.Queue.LeaseTimeout,
		Retention:    cfg.Queue.Retention,
	}, sqlStore, n, sink, logger)

	runner := pipeline.NewRunner(orch, q, n, logger)
	q.Register(model.RunKindAlertScan, runner.AlertScanHandler())
	q.Register(model.RunKindDailySummary, runner.DailySummaryHandler())

	housekeep := func(ctx context.Context) error {
		if err := q.Prune(ctx); err != nil {
			return err
		}
		return sqlStore.Prune(ctx, cfg.Queue.LedgerRetention)
	}

	sched, err := scheduler.New(scheduler.Config{
		Timezone: cfg.Schedule.Timezone,
		ScanWindow: scheduler.Window{
			StartHour: cfg.Schedule.ScanStartHour,
			EndHour:   cfg.Schedule.ScanEndHour,
		},
		SummaryHour:   cfg.Schedule.SummaryHour,
		SummaryMinute: cfg.Schedule.SummaryMinute,
	}, q, housekeep, logger)
	if err != nil {
		logger.Error("failed to build scheduler", "error", err)
		os.Exit(1)
	}

	go func() {
		if err := sched.Run(ctx); err != nil {
			logger.Error("scheduler error", "error", err)
			stop()
		}
	}()

	if err := q.Run(ctx); err != nil {
		logger.Error("queue worker error", "error", err)
		os.Exit(1)
	}

	logger.Info("goodbye")
	return nil
}

// serveMetrics exposes the registry on /metrics until ctx is cancelled.
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics endpoint up", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server error", "error", err)
	}
}
