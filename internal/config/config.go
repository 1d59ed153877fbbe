package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the JobSift daemon.
type Config struct {
	DBPath       string
	Gmail        GmailConfig
	LLM          LLMConfig
	Resume       ResumeConfig
	Notification NotificationConfig
	Thresholds   ThresholdConfig
	Schedule     ScheduleConfig
	Queue        QueueConfig
	Metrics      MetricsConfig
}

// GmailConfig holds mailbox access settings.
type GmailConfig struct {
	BaseURL      string        // defaults to the Gmail REST endpoint
	AccessToken  string        // expanded from env var by Load
	Query        string        // extra Gmail search query, optional
	LookbackDays int           // how far back ListRecent looks
	Timeout      time.Duration // per-request timeout
}

// LLMConfig controls the OpenAI-backed classifier, extractor, and scorers.
type LLMConfig struct {
	BaseURL string        // defaults to https://api.openai.com/v1
	Model   string        // e.g. "gpt-4o-mini"
	APIKey  string        // expanded from env var by Load
	Timeout time.Duration // per-request timeout
}

// ResumeConfig points at the operator's resume text and its staleness window.
type ResumeConfig struct {
	Path   string        // plain-text resume document
	MaxAge time.Duration // profile re-analysis threshold
}

// NotificationConfig selects the notifier and its transport settings.
type NotificationConfig struct {
	Type     string `yaml:"type"`      // "telegram" or "log"
	BotToken string `yaml:"bot_token"` // required if type is "telegram"
	ChatID   string `yaml:"chat_id"`   // required if type is "telegram"
}

// ThresholdConfig carries the tunable decision constants. The defaults match
// the historical behavior but are deliberately not literals in the pipeline.
type ThresholdConfig struct {
	ClassifyConfidence float64       // minimum classifier confidence to qualify a message
	MinRelevance       float64       // postings below this never join a digest
	HighBand           float64       // digest "high match" boundary
	ClassifyBatchSize  int           // messages per classifier call
	PostingDelay       time.Duration // courtesy pause between posting persists
}

// ScheduleConfig drives the cron policy, all in one IANA timezone.
type ScheduleConfig struct {
	Timezone          string  // IANA name, e.g. "America/Los_Angeles"
	ScanStartHour     int     // business-hours window start (local, inclusive)
	ScanEndHour       int     // business-hours window end (local, inclusive)
	SummaryHour       int     // daily summary trigger (local)
	SummaryMinute     int
	SummaryRelevance  float64 // minimum relevance for the daily digest
	SummaryTopSources int     // top-N source breakdown rows
}

// QueueConfig controls the durable run queue.
type QueueConfig struct {
	MaxAttempts     int           // retry ceiling per run
	BaseDelay       time.Duration // first retry delay, doubled each attempt
	PollInterval    time.Duration // worker poll cadence
	LeaseTimeout    time.Duration // active run with an older lease is requeued
	Retention       time.Duration // completed/failed runs pruned after this
	LedgerRetention time.Duration // processed-email records pruned after this
}

// MetricsConfig enables the optional Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"` // listen address for /metrics
}

const defaultOpenAIBaseURL = "https://api.openai.com/v1"
const defaultGmailBaseURL = "https://gmail.googleapis.com/gmail/v1"

// rawConfig is used for YAML unmarshaling (snake_case fields, durations as strings).
type rawConfig struct {
	DBPath       string             `yaml:"db_path"`
	Gmail        rawGmailConfig     `yaml:"gmail"`
	LLM          rawLLMConfig       `yaml:"llm"`
	Resume       rawResumeConfig    `yaml:"resume"`
	Notification NotificationConfig `yaml:"notification"`
	Thresholds   rawThresholdConfig `yaml:"thresholds"`
	Schedule     rawScheduleConfig  `yaml:"schedule"`
	Queue        rawQueueConfig     `yaml:"queue"`
	Metrics      MetricsConfig      `yaml:"metrics"`
}

type rawGmailConfig struct {
	BaseURL      string `yaml:"base_url"`
	AccessToken  string `yaml:"access_token"`
	Query        string `yaml:"query"`
	LookbackDays int    `yaml:"lookback_days"`
	Timeout      string `yaml:"timeout"`
}

type rawLLMConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	APIKey  string `yaml:"api_key"`
	Timeout string `yaml:"timeout"`
}

type rawResumeConfig struct {
	Path   string `yaml:"path"`
	MaxAge string `yaml:"max_age"`
}

type rawThresholdConfig struct {
	ClassifyConfidence *float64 `yaml:"classify_confidence"`
	MinRelevance       *float64 `yaml:"min_relevance"`
	HighBand           *float64 `yaml:"high_band"`
	ClassifyBatchSize  int      `yaml:"classify_batch_size"`
	PostingDelay       string   `yaml:"posting_delay"`
}

type rawScheduleConfig struct {
	Timezone          string   `yaml:"timezone"`
	ScanStartHour     *int     `yaml:"scan_start_hour"`
	ScanEndHour       *int     `yaml:"scan_end_hour"`
	SummaryHour       *int     `yaml:"summary_hour"`
	SummaryMinute     int      `yaml:"summary_minute"`
	SummaryRelevance  *float64 `yaml:"summary_relevance"`
	SummaryTopSources int      `yaml:"summary_top_sources"`
}

type rawQueueConfig struct {
	MaxAttempts     int    `yaml:"max_attempts"`
	BaseDelay       string `yaml:"base_delay"`
	PollInterval    string `yaml:"poll_interval"`
	LeaseTimeout    string `yaml:"lease_timeout"`
	Retention       string `yaml:"retention"`
	LedgerRetention string `yaml:"ledger_retention"`
}

// Load reads and parses the YAML config file at path, validates it, and
// returns Config with defaults applied.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables so secrets stay out of the file.
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg := &Config{
		DBPath:       raw.DBPath,
		Notification: raw.Notification,
		Metrics:      raw.Metrics,
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "jobsift.db"
	}

	if cfg.Gmail, err = buildGmail(raw.Gmail); err != nil {
		return nil, err
	}
	if cfg.LLM, err = buildLLM(raw.LLM); err != nil {
		return nil, err
	}
	if cfg.Resume, err = buildResume(raw.Resume); err != nil {
		return nil, err
	}
	if cfg.Thresholds, err = buildThresholds(raw.Thresholds); err != nil {
		return nil, err
	}
	if cfg.Schedule, err = buildSchedule(raw.Schedule); err != nil {
		return nil, err
	}
	if cfg.Queue, err = buildQueue(raw.Queue); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func buildGmail(raw rawGmailConfig) (GmailConfig, error) {
	g := GmailConfig{
		BaseURL:      raw.BaseURL,
		AccessToken:  raw.AccessToken,
		Query:        raw.Query,
		LookbackDays: raw.LookbackDays,
		Timeout:      30 * time.Second,
	}
	if g.BaseURL == "" {
		g.BaseURL = defaultGmailBaseURL
	}
	if g.LookbackDays <= 0 {
		g.LookbackDays = 1
	}
	if raw.Timeout != "" {
		d, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return g, fmt.Errorf("parse gmail.timeout %q: %w", raw.Timeout, err)
		}
		g.Timeout = d
	}
	return g, nil
}

func buildLLM(raw rawLLMConfig) (LLMConfig, error) {
	l := LLMConfig{
		BaseURL: raw.BaseURL,
		Model:   raw.Model,
		APIKey:  raw.APIKey,
		Timeout: 60 * time.Second,
	}
	if l.BaseURL == "" {
		l.BaseURL = defaultOpenAIBaseURL
	}
	if l.Model == "" {
		l.Model = "gpt-4o-mini"
	}
	if raw.Timeout != "" {
		d, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return l, fmt.Errorf("parse llm.timeout %q: %w", raw.Timeout, err)
		}
		l.Timeout = d
	}
	return l, nil
}

func buildResume(raw rawResumeConfig) (ResumeConfig, error) {
	r := ResumeConfig{
		Path:   raw.Path,
		MaxAge: 7 * 24 * time.Hour, // default: one week
	}
	if raw.MaxAge != "" {
		d, err := time.ParseDuration(raw.MaxAge)
		if err != nil {
			return r, fmt.Errorf("parse resume.max_age %q: %w", raw.MaxAge, err)
		}
		r.MaxAge = d
	}
	return r, nil
}

func buildThresholds(raw rawThresholdConfig) (ThresholdConfig, error) {
	t := ThresholdConfig{
		ClassifyConfidence: 0.5,
		MinRelevance:       0.6,
		HighBand:           0.8,
		ClassifyBatchSize:  10,
		PostingDelay:       500 * time.Millisecond,
	}
	if raw.ClassifyConfidence != nil {
		t.ClassifyConfidence = *raw.ClassifyConfidence
	}
	if raw.MinRelevance != nil {
		t.MinRelevance = *raw.MinRelevance
	}
	if raw.HighBand != nil {
		t.HighBand = *raw.HighBand
	}
	if raw.ClassifyBatchSize > 0 {
		t.ClassifyBatchSize = raw.ClassifyBatchSize
	}
	if raw.PostingDelay != "" {
		d, err := time.ParseDuration(raw.PostingDelay)
		if err != nil {
			return t, fmt.Errorf("parse thresholds.posting_delay %q: %w", raw.PostingDelay, err)
		}
		t.PostingDelay = d
	}
	return t, nil
}

func buildSchedule(raw rawScheduleConfig) (ScheduleConfig, error) {
	s := ScheduleConfig{
		Timezone:          raw.Timezone,
		ScanStartHour:     8,
		ScanEndHour:       20,
		SummaryHour:       18,
		SummaryMinute:     raw.SummaryMinute,
		SummaryRelevance:  0.7,
		SummaryTopSources: 5,
	}
	if s.Timezone == "" {
		s.Timezone = "UTC"
	}
	if raw.ScanStartHour != nil {
		s.ScanStartHour = *raw.ScanStartHour
	}
	if raw.ScanEndHour != nil {
		s.ScanEndHour = *raw.ScanEndHour
	}
	if raw.SummaryHour != nil {
		s.SummaryHour = *raw.SummaryHour
	}
	if raw.SummaryRelevance != nil {
		s.SummaryRelevance = *raw.SummaryRelevance
	}
	if raw.SummaryTopSources > 0 {
		s.SummaryTopSources = raw.SummaryTopSources
	}
	return s, nil
}

func buildQueue(raw rawQueueConfig) (QueueConfig, error) {
	q := QueueConfig{
		MaxAttempts:     3,
		BaseDelay:       30 * time.Second,
		PollInterval:    2 * time.Second,
		LeaseTimeout:    15 * time.Minute,
		Retention:       7 * 24 * time.Hour,
		LedgerRetention: 90 * 24 * time.Hour,
	}
	if raw.MaxAttempts > 0 {
		q.MaxAttempts = raw.MaxAttempts
	}
	for _, f := range []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"queue.base_delay", raw.BaseDelay, &q.BaseDelay},
		{"queue.poll_interval", raw.PollInterval, &q.PollInterval},
		{"queue.lease_timeout", raw.LeaseTimeout, &q.LeaseTimeout},
		{"queue.retention", raw.Retention, &q.Retention},
		{"queue.ledger_retention", raw.LedgerRetention, &q.LedgerRetention},
	} {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return q, fmt.Errorf("parse %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return q, nil
}
