// Package logging provides structured logging for hc2sync.
//
// It wraps log/slog so every entry carries the service name and version.
// Core packages never import it; they accept a small Logger interface
// that *Logger satisfies.
//
// Configuration:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	engineLog := logger.With("component", "events")
//	engineLog.Info("poll loop started", "cursor", 0)
//
// Never log controller or broker passwords.
package logging
