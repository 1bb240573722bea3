package logger

import (
	"context"

	"github.com/rs/zerolog"
)

// LogRequest logs HTTP request information
func LogRequest(log Logger, method, url string, statusCode int, durationMs int64) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration_ms": durationMs,
	}

	switch {
	case statusCode >= 500:
		log.ErrorWithFields("HTTP request server error", fields)
	case statusCode >= 400:
		log.WarnWithFields("HTTP request client error", fields)
	default:
		log.DebugWithFields("HTTP request completed", fields)
	}
}

// LogDownload logs the outcome of a single post download
func LogDownload(log Logger, setName, fileName string, skipped bool, err error) {
	l := log.WithFields(map[string]interface{}{
		"set":  setName,
		"file": fileName,
	})

	switch {
	case err != nil:
		l.WithError(err).Error("Download failed")
	case skipped:
		l.Debug("Duplicate found, skipping")
	default:
		l.Debug("Download completed")
	}
}

// LogRateLimit logs rate limiting events
func LogRateLimit(log Logger, endpoint string) {
	log.WithFields(map[string]interface{}{
		"endpoint": endpoint,
		"action":   "rate_limited",
	}).Debug("Waiting for rate limiter")
}

// LogSetSummary logs the totals of a finished post set
func LogSetSummary(log Logger, setName string, downloaded, skipped int) {
	log.InfoWithFields("Post set finished", map[string]interface{}{
		"set":        setName,
		"downloaded": downloaded,
		"skipped":    skipped,
	})
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

// nopLogger is a logger that does nothing
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
func (n *nopLogger) GetZerolog() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}
