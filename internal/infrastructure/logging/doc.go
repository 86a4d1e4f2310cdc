// Package logging provides structured logging for the telemetry hub.
//
// It wraps log/slog so every component logs the same way: JSON in
// production, text during development, and a fixed set of default fields
// (service, hub_id, version) on every entry.
//
// Configuration lives in the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, cfg.Hub.ID, version)
//	mqttLog := logger.Component("mqtt")
//	mqttLog.Info("connected", "broker", url)
//
// Never log secrets, tokens or passwords. Payload values are logged by
// field name only.
package logging
