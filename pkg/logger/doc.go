// Package logger provides structured logging for e621dl.
//
// It wraps zerolog behind a small Logger interface so that packages can log
// with fields without depending on zerolog directly, and so tests can swap in
// a TestLogger or a no-op logger.
//
// Console output goes to stderr in a coloured human format. When a log file
// is configured every event is also appended there as a JSON line.
//
//	cfg := &config.LoggingConfig{Level: "debug", File: "e621dl.log"}
//	if err := logger.Initialize(cfg); err != nil {
//	    return err
//	}
//	logger.WithField("set", "wolf").Info("Grabbing posts")
package logger
