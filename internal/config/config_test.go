package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config fixture: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
gmail:
  access_token: tok
llm:
  api_key: key
resume:
  path: resume.txt
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.DBPath != "jobsift.db" {
		t.Errorf("DBPath = %q, want jobsift.db", cfg.DBPath)
	}
	if cfg.Thresholds.ClassifyConfidence != 0.5 || cfg.Thresholds.MinRelevance != 0.6 || cfg.Thresholds.HighBand != 0.8 {
		t.Errorf("threshold defaults wrong: %+v", cfg.Thresholds)
	}
	if cfg.Schedule.ScanStartHour != 8 || cfg.Schedule.ScanEndHour != 20 || cfg.Schedule.SummaryHour != 18 {
		t.Errorf("schedule defaults wrong: %+v", cfg.Schedule)
	}
	if cfg.Schedule.Timezone != "UTC" {
		t.Errorf("Timezone = %q, want UTC", cfg.Schedule.Timezone)
	}
	if cfg.Queue.MaxAttempts != 3 || cfg.Queue.LeaseTimeout != 15*time.Minute {
		t.Errorf("queue defaults wrong: %+v", cfg.Queue)
	}
	if cfg.Resume.MaxAge != 7*24*time.Hour {
		t.Errorf("Resume.MaxAge = %v, want one week", cfg.Resume.MaxAge)
	}
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("LLM.Model = %q", cfg.LLM.Model)
	}
}

func TestLoadParsesExplicitValues(t *testing.T) {
	path := writeConfig(t, `
db_path: /var/lib/jobsift/data.db
gmail:
  lookback_days: 3
  query: "label:job-alerts"
thresholds:
  min_relevance: 0.7
  high_band: 0.9
  posting_delay: 250ms
schedule:
  timezone: America/New_York
  scan_start_hour: 9
  scan_end_hour: 18
  summary_hour: 19
  summary_minute: 30
queue:
  max_attempts: 5
  base_delay: 1m
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "/var/lib/jobsift/data.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.Gmail.LookbackDays != 3 || cfg.Gmail.Query != "label:job-alerts" {
		t.Errorf("gmail config wrong: %+v", cfg.Gmail)
	}
	if cfg.Thresholds.MinRelevance != 0.7 || cfg.Thresholds.PostingDelay != 250*time.Millisecond {
		t.Errorf("thresholds wrong: %+v", cfg.Thresholds)
	}
	if cfg.Schedule.Timezone != "America/New_York" || cfg.Schedule.SummaryMinute != 30 {
		t.Errorf("schedule wrong: %+v", cfg.Schedule)
	}
	if cfg.Queue.MaxAttempts != 5 || cfg.Queue.BaseDelay != time.Minute {
		t.Errorf("queue wrong: %+v", cfg.Queue)
	}
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_GMAIL_TOKEN", "secret-token")
	path := writeConfig(t, `
gmail:
  access_token: ${TEST_GMAIL_TOKEN}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gmail.AccessToken != "secret-token" {
		t.Errorf("AccessToken = %q, want the expanded env value", cfg.Gmail.AccessToken)
	}
}

func TestLoadRejectsTelegramWithoutCredentials(t *testing.T) {
	path := writeConfig(t, `
notification:
  type: telegram
`)
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "bot_token") {
		t.Errorf("expected a bot_token error, got %v", err)
	}
}

func TestLoadRejectsInvalidWindow(t *testing.T) {
	path := writeConfig(t, `
schedule:
  scan_start_hour: 20
  scan_end_hour: 8
`)
	if _, err := Load(path); err == nil {
		t.Error("expected an error for an inverted scan window")
	}
}

func TestLoadRejectsBadTimezone(t *testing.T) {
	path := writeConfig(t, `
schedule:
  timezone: Mars/Olympus
`)
	if _, err := Load(path); err == nil {
		t.Error("expected an error for an unknown timezone")
	}
}

func TestLoadRejectsHighBandBelowMinRelevance(t *testing.T) {
	path := writeConfig(t, `
thresholds:
  min_relevance: 0.9
  high_band: 0.7
`)
	if _, err := Load(path); err == nil {
		t.Error("expected an error when high_band is below min_relevance")
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, `
queue:
  base_delay: soon
`)
	if _, err := Load(path); err == nil {
		t.Error("expected an error for an unparseable duration")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected an error for a missing config file")
	}
}
