package config

import (
	"fmt"
	"time"
)

// validate rejects configurations the daemon cannot run with.
func validate(cfg *Config) error {
	if cfg.Thresholds.ClassifyConfidence < 0 || cfg.Thresholds.ClassifyConfidence > 1 {
		return fmt.Errorf("thresholds.classify_confidence %v out of range [0,1]", cfg.Thresholds.ClassifyConfidence)
	}
	if cfg.Thresholds.MinRelevance < 0 || cfg.Thresholds.MinRelevance > 1 {
		return fmt.Errorf("thresholds.min_relevance %v out of range [0,1]", cfg.Thresholds.MinRelevance)
	}
	if cfg.Thresholds.HighBand < cfg.Thresholds.MinRelevance || cfg.Thresholds.HighBand > 1 {
		return fmt.Errorf("thresholds.high_band %v must be within [min_relevance, 1]", cfg.Thresholds.HighBand)
	}

	if _, err := time.LoadLocation(cfg.Schedule.Timezone); err != nil {
		return fmt.Errorf("schedule.timezone %q: %w", cfg.Schedule.Timezone, err)
	}
	if cfg.Schedule.ScanStartHour < 0 || cfg.Schedule.ScanStartHour > 23 {
		return fmt.Errorf("schedule.scan_start_hour %d out of range [0,23]", cfg.Schedule.ScanStartHour)
	}
	if cfg.Schedule.ScanEndHour < 0 || cfg.Schedule.ScanEndHour > 23 {
		return fmt.Errorf("schedule.scan_end_hour %d out of range [0,23]", cfg.Schedule.ScanEndHour)
	}
	if cfg.Schedule.ScanEndHour < cfg.Schedule.ScanStartHour {
		return fmt.Errorf("schedule.scan_end_hour %d before scan_start_hour %d", cfg.Schedule.ScanEndHour, cfg.Schedule.ScanStartHour)
	}
	if cfg.Schedule.SummaryHour < 0 || cfg.Schedule.SummaryHour > 23 {
		return fmt.Errorf("schedule.summary_hour %d out of range [0,23]", cfg.Schedule.SummaryHour)
	}
	if cfg.Schedule.SummaryMinute < 0 || cfg.Schedule.SummaryMinute > 59 {
		return fmt.Errorf("schedule.summary_minute %d out of range [0,59]", cfg.Schedule.SummaryMinute)
	}

	if cfg.Notification.Type == "telegram" {
		if cfg.Notification.BotToken == "" {
			return fmt.Errorf("notification.bot_token is required for telegram")
		}
		if cfg.Notification.ChatID == "" {
			return fmt.Errorf("notification.chat_id is required for telegram")
		}
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required when metrics are enabled")
	}
	return nil
}
