package logger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// LogRequest logs one outbound LinkedIn request
func LogRequest(method, endpoint string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"endpoint":    endpoint,
		"status_code": statusCode,
		"duration_ms": float64(duration.Microseconds()) / 1000,
	}

	switch {
	case statusCode >= 500:
		GetLogger().ErrorWithFields("LinkedIn request server error", fields)
	case statusCode >= 400:
		GetLogger().WarnWithFields("LinkedIn request client error", fields)
	default:
		GetLogger().DebugWithFields("LinkedIn request completed", fields)
	}
}

// LogAction logs the outcome of one campaign action
func LogAction(campaignID, profileURL, action, status string, err error) {
	l := GetLogger().WithFields(map[string]interface{}{
		"campaign_id": campaignID,
		"profile_url": profileURL,
		"action":      action,
		"status":      status,
	})

	switch {
	case err != nil:
		l.WithError(err).Warn("Campaign action failed")
	case status == "skipped":
		l.Debug("Campaign action skipped")
	default:
		l.Info("Campaign action completed")
	}
}

// LogRateLimit logs rate limiting events
func LogRateLimit(endpoint string, wait time.Duration) {
	GetLogger().WithFields(map[string]interface{}{
		"endpoint": endpoint,
		"wait":     wait,
		"action":   "rate_limited",
	}).Warn("Rate limit reached, backing off")
}

// LogScrapeProgress logs scraping progress
func LogScrapeProgress(rootURL string, collected, total int) {
	percentage := 0.0
	if total > 0 {
		percentage = float64(collected) / float64(total) * 100
	}

	GetLogger().WithFields(map[string]interface{}{
		"root_url":   rootURL,
		"collected":  collected,
		"total":      total,
		"percentage": fmt.Sprintf("%.1f%%", percentage),
	}).Info("Scraping progress")
}

// LogCampaignTransition logs a campaign status change
func LogCampaignTransition(campaignID, from, to, reason string) {
	fields := map[string]interface{}{
		"campaign_id": campaignID,
		"from":        from,
		"to":          to,
	}
	if reason != "" {
		fields["reason"] = reason
	}
	GetLogger().InfoWithFields("Campaign status changed", fields)
}

// LogComponentStart logs when a component starts
func LogComponentStart(component string, config map[string]interface{}) {
	l := GetLogger().WithField("component", component)
	if len(config) > 0 {
		l = l.WithFields(config)
	}
	l.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(component string, reason string) {
	GetLogger().WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                               { return nil }
