// Telemetry Hub - device registry and telemetry router.
//
// This is the main entry point. The hub registers devices with typed event
// and action schemas, validates telemetry against them, and stores or
// forwards it according to the configured topology.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-telemetry/internal/api"
	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-telemetry/internal/ingest"
	"github.com/nerrad567/gray-logic-telemetry/internal/service"
	"github.com/nerrad567/gray-logic-telemetry/internal/topology"
)

// Version information, set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath = "configs/config.yaml"
	configEnv         = "TELEMETRYHUB_CONFIG"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
// It returns nil on a clean shutdown.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting telemetry hub",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log = logging.New(cfg.Logging, cfg.Hub.ID, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	plan, err := topology.Resolve(cfg.Topology)
	if err != nil {
		return fmt.Errorf("resolving topology: %w", err)
	}
	log.Info("topology resolved", "preset", cfg.Topology.Preset)

	infra, err := connect(ctx, cfg, plan, log)
	defer infra.Close(log)
	if err != nil {
		return err
	}

	backends, err := plan.Build(infra.sources())
	if err != nil {
		return fmt.Errorf("building backends: %w", err)
	}
	svc, err := service.New(backends)
	if err != nil {
		return fmt.Errorf("creating services: %w", err)
	}
	svc.SetLogger(log.Component("service"))

	if infra.influx != nil {
		svc.Events.AddObserver(infra.influx)
		svc.States.AddObserver(infra.influx)
	}

	if cfg.Inbound.Bus {
		if err := startConsumer(ctx, infra, plan, svc, log); err != nil {
			return err
		}
	}

	server, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Logger:     log.Component("api"),
		Services:   svc,
		IngestHTTP: cfg.Inbound.HTTP,
		Health:     infra.HealthCheck,
		Bus:        infra.connectivity(),
		Sink:       infra.sink(),
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := infra.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	g, gctx := errgroup.WithContext(ctx)
	if infra.serial != nil {
		// The reader closes the port when it stops.
		reader := ingest.NewLineReader(infra.serial, svc.Events)
		infra.serial = nil
		reader.SetLogger(log.Component("serial"))
		g.Go(func() error {
			if err := reader.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("serial reader: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	log.Info("initialisation complete, waiting for shutdown signal")
	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("telemetry hub stopped")
	return nil
}

// loadConfig reads the config file. A missing file at the default path
// falls back to the built-in defaults; a missing explicit path is an error.
func loadConfig() (*config.Config, error) {
	path := getConfigPath()
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if path == defaultConfigPath && errors.Is(err, os.ErrNotExist) {
		return config.Default()
	}
	return nil, fmt.Errorf("loading config: %w", err)
}

// getConfigPath returns TELEMETRYHUB_CONFIG if set, otherwise the default.
func getConfigPath() string {
	if path := os.Getenv(configEnv); path != "" {
		return path
	}
	return defaultConfigPath
}

func startConsumer(ctx context.Context, infra *infrastructure, plan topology.Plan, svc *service.Services, log *logging.Logger) error {
	if infra.transport == nil {
		return fmt.Errorf("inbound bus enabled but no bus transport is connected")
	}
	devices, states, events, actions := plan.Publishes()
	consumer := ingest.NewConsumer(infra.transport, infra.topics, svc)
	consumer.SetLogger(log.Component("consumer"))
	consumer.SetStreams(ingest.Streams{
		Devices: !devices,
		States:  !states,
		Events:  !events,
		Actions: !actions,
	})
	if err := consumer.Start(ctx); err != nil {
		return fmt.Errorf("starting bus consumer: %w", err)
	}
	return nil
}
