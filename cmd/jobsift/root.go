package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobsift/internal/ai"
	"github.com/amishk599/jobsift/internal/config"
	"github.com/amishk599/jobsift/internal/gmail"
	"github.com/amishk599/jobsift/internal/metrics"
	"github.com/amishk599/jobsift/internal/model"
	"github.com/amishk599/jobsift/internal/notifier"
	"github.com/amishk599/jobsift/internal/pipeline"
	"github.com/amishk599/jobsift/internal/profile"
	"github.com/amishk599/jobsift/internal/scheduler"
	"github.com/amishk599/jobsift/internal/store"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "jobsift",
	Short: "Resume-aware job alerts from your inbox",
	Long:  "JobSift scans job-alert email, extracts postings, scores them against your resume, and sends Telegram digests.",
	// Default to `start` so that `jobsift` with no args runs the daemon.
	// This preserves compatibility with systemd unit files that invoke the binary directly.
	RunE: runStart,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: JOBSIFT_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > JOBSIFT_CONFIG env var > "./config.yaml"
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if env := os.Getenv("JOBSIFT_CONFIG"); env != "" {
			path = env
		} else {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

func setupNotifier(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) model.Notifier {
	switch cfg.Notification.Type {
	case "telegram":
		logger.Info("using telegram notifier")
		format := notifier.DigestFormat{
			HighBand:   cfg.Thresholds.HighBand,
			MediumBand: cfg.Thresholds.MinRelevance,
		}
		return notifier.NewTelegramNotifier("https://api.telegram.org", cfg.Notification.BotToken, cfg.Notification.ChatID, format, httpClient, logger)
	default:
		return notifier.NewLogNotifier(logger)
	}
}

// buildOrchestrator wires the email source, the LLM stages, and the stores
// into one pipeline. Shared by the daemon and nothing else; the one-shot
// commands only enqueue runs and let the daemon execute them.
func buildOrchestrator(cfg *config.Config, sqlStore *store.SQLiteStore, n model.Notifier, sink metrics.Sink, logger *slog.Logger) (*pipeline.Orchestrator, error) {
	loc, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Schedule.Timezone, err)
	}

	source := gmail.New(
		cfg.Gmail.BaseURL,
		cfg.Gmail.AccessToken,
		cfg.Gmail.Query,
		cfg.Gmail.LookbackDays,
		&http.Client{Timeout: cfg.Gmail.Timeout},
	)

	provider := ai.NewOpenAIProvider(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model, &http.Client{Timeout: cfg.LLM.Timeout})
	classifier := ai.NewBatchClassifier(provider, logger)
	extractor := ai.NewPostingExtractor(provider, logger)
	scorer := ai.NewProfileScorer(provider)
	analyzer := ai.NewResumeAnalyzer(provider, cfg.Resume.Path)

	profiles := profile.NewCache(sqlStore, analyzer, cfg.Resume.MaxAge, logger)

	pipeCfg := pipeline.Config{
		ClassifyConfidence: cfg.Thresholds.ClassifyConfidence,
		MinRelevance:       cfg.Thresholds.MinRelevance,
		ClassifyBatchSize:  cfg.Thresholds.ClassifyBatchSize,
		PostingDelay:       cfg.Thresholds.PostingDelay,
		SummaryRelevance:   cfg.Schedule.SummaryRelevance,
		SummaryTopSources:  cfg.Schedule.SummaryTopSources,
		ScanWindow: scheduler.Window{
			StartHour: cfg.Schedule.ScanStartHour,
			EndHour:   cfg.Schedule.ScanEndHour,
		},
		Location: loc,
	}

	return pipeline.New(pipeCfg, source, classifier, extractor, scorer, profiles, sqlStore, sqlStore, n, sink, logger), nil
}
