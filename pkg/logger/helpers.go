package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogNavigation logs a page navigation outcome
func LogNavigation(url string, attempt int, statusCode int, outcome string) {
	fields := map[string]interface{}{
		"url":     url,
		"attempt": attempt,
		"outcome": outcome,
	}
	if statusCode != 0 {
		fields["status_code"] = statusCode
	}

	switch outcome {
	case "success":
		GetLogger().DebugWithFields("Navigation completed", fields)
	case "connectivity":
		GetLogger().WarnWithFields("Navigation hit a connection error", fields)
	default:
		GetLogger().WarnWithFields("Navigation rejected", fields)
	}
}

// LogSourceResult logs the outcome of scraping one source
func LogSourceResult(sourceName string, newRecords int, err error) {
	fields := map[string]interface{}{
		"source":      sourceName,
		"new_records": newRecords,
	}

	logger := GetLogger().WithFields(fields)

	if err != nil {
		logger.WithError(err).Warn("Source failed, continuing with remaining sources")
	} else {
		logger.Info("Source completed")
	}
}

// LogRunSummary logs the aggregate outcome of a scrape run
func LogRunSummary(success bool, newRecords int, duration time.Duration, errSummary string) {
	fields := map[string]interface{}{
		"success":     success,
		"new_records": newRecords,
		"duration":    duration,
	}
	if errSummary != "" {
		fields["error"] = errSummary
	}

	if success {
		GetLogger().InfoWithFields("Scrape run finished", fields)
	} else {
		GetLogger().ErrorWithFields("Scrape run failed", fields)
	}
}

// LogComponentStart logs when a component starts
func LogComponentStart(component string, config map[string]interface{}) {
	logger := GetLogger().WithField("component", component)

	if len(config) > 0 {
		logger = logger.WithFields(config)
	}

	logger.Info("Component started")
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

// nopLogger is a logger that does nothing (useful for testing)
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
