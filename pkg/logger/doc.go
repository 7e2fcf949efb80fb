// Package logger provides structured logging for linkreach.
//
// It wraps zerolog behind the Logger interface:
// - Debug, Info, Warn, Error and Fatal levels
// - Structured fields through WithField, WithFields and the *WithFields methods
// - Colored console output or a log file
// - A global instance set up by Initialize and read with GetLogger
// - NewNopLogger and a capturing TestLogger for tests
//
// Basic Usage:
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//
//	logger.Info("Engine started")
//	logger.WithField("campaign_id", id).Info("Campaign created")
//	logger.WithError(err).Error("Failed to save campaign")
//
// Domain helpers such as LogAction, LogRateLimit, LogScrapeProgress and
// LogCampaignTransition keep the field names of recurring events consistent.
// Session tokens are masked with auth.MaskToken before they are logged.
package logger
