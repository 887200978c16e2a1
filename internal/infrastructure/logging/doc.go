// Package logging provides structured logging for the installer console.
//
// It wraps log/slog so every component logs with the same format, level
// filtering and default fields (service, version).
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
//	logger.Info("scan complete", "central_id", id, "ports", len(ports))
//
// Never log backend tokens, JWT secrets or broker passwords.
package logging
