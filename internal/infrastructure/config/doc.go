// Package config loads and validates the telemetry hub configuration.
//
// Loading order:
//  1. Built-in defaults
//  2. The YAML file
//  3. TELEMETRYHUB_* environment variables
//
// Secrets (database, broker and Redis passwords, InfluxDB token) should be
// supplied through the environment rather than the file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.Hub.Name)
package config
