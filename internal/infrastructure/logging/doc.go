// Package logging provides structured logging for the access-control core.
//
// It wraps log/slog so every entry carries the service name and version,
// with JSON output for production and text for development. Configured
// through the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	apiLog := logger.With("component", "api")
//	apiLog.Info("listening", "port", 8080)
//
// Never log derived keys, JWT secrets, or the deployment shared secret.
package logging
