package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-telemetry/internal/api"
	"github.com/nerrad567/gray-logic-telemetry/internal/bus"
	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/nats"
	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/postgres"
	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/redis"
	"github.com/nerrad567/gray-logic-telemetry/internal/ingest"
	"github.com/nerrad567/gray-logic-telemetry/internal/pending"
	"github.com/nerrad567/gray-logic-telemetry/internal/store/broker"
	"github.com/nerrad567/gray-logic-telemetry/internal/store/peer"
	"github.com/nerrad567/gray-logic-telemetry/internal/topology"
	"github.com/nerrad567/gray-logic-telemetry/migrations"
	"go.bug.st/serial"
)

// busClient is a connected message bus: mqtt.Client or nats.Client.
type busClient interface {
	bus.Transport
	IsConnected() bool
	HealthCheck(ctx context.Context) error
	Close() error
}

// infrastructure holds every connection the hub opened. Fields the
// topology does not need stay nil.
type infrastructure struct {
	db        *database.DB
	pg        *postgres.Pool
	redis     *redis.Client
	transport busClient
	topics    mqtt.Topics
	writer    *broker.Writer
	peer      *peer.Client
	queue     topology.Queue
	influx    *influxdb.Client
	serial    serial.Port
}

// connect opens the connections plan and cfg require. On error the
// returned infrastructure still holds what was opened so far and must be
// closed by the caller.
func connect(ctx context.Context, cfg *config.Config, plan topology.Plan, log *logging.Logger) (*infrastructure, error) {
	infra := &infrastructure{topics: mqtt.NewTopics(cfg.Bus.Topics)}

	if plan.Uses(topology.SQLite) {
		if err := infra.openSQLite(ctx, cfg.Database, log); err != nil {
			return infra, err
		}
	}

	if plan.Uses(topology.Postgres) {
		if err := infra.openPostgres(ctx, cfg, log); err != nil {
			return infra, err
		}
	}

	if plan.Uses(topology.Bus) || cfg.Inbound.Bus {
		if err := infra.openBus(cfg, log); err != nil {
			return infra, err
		}
		infra.writer = broker.New(infra.transport, infra.topics)
	}

	if plan.Uses(topology.Peer) {
		if cfg.Peer.BaseURL == "" {
			return infra, fmt.Errorf("topology uses peer but peer.base_url is empty")
		}
		infra.peer = peer.New(cfg.Peer, cfg.GetPeerTimeout())
		log.Info("peer configured", "base_url", cfg.Peer.BaseURL)
	}

	if plan.Uses(topology.Pending) {
		if err := infra.openPending(ctx, cfg, log); err != nil {
			return infra, err
		}
	}

	if cfg.InfluxDB.Enabled {
		client, err := influxdb.Connect(cfg.InfluxDB, cfg.Hub.ID)
		if err != nil {
			return infra, fmt.Errorf("connecting to influxdb: %w", err)
		}
		influxLog := log.Component("influxdb")
		client.SetOnError(func(err error) {
			influxLog.Error("influxdb write failed", "error", err)
		})
		infra.influx = client
		log.Info("influxdb connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	if cfg.Serial.Enabled {
		port, err := ingest.OpenSerial(cfg.Serial)
		if err != nil {
			return infra, fmt.Errorf("opening serial port: %w", err)
		}
		infra.serial = port
		log.Info("serial port opened", "port", cfg.Serial.Port, "baud_rate", cfg.Serial.BaudRate)
	}

	return infra, nil
}

func (i *infrastructure) openSQLite(ctx context.Context, cfg config.DatabaseConfig, log *logging.Logger) error {
	db, err := database.Open(database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	i.db = db

	steps, err := migrations.Load(migrations.SQLiteDir)
	if err != nil {
		return fmt.Errorf("loading sqlite migrations: %w", err)
	}
	if err := db.Migrate(ctx, steps); err != nil {
		return fmt.Errorf("running sqlite migrations: %w", err)
	}
	log.Info("database opened", "path", cfg.Path)
	return nil
}

func (i *infrastructure) openPostgres(ctx context.Context, cfg *config.Config, log *logging.Logger) error {
	pc := cfg.Postgres
	pool, err := postgres.Connect(ctx, postgres.Config{
		Host:             pc.Host,
		Port:             pc.Port,
		Database:         pc.Database,
		Username:         pc.Username,
		Password:         pc.Password,
		SSLMode:          pc.SSLMode,
		ApplicationName:  logging.ServiceName,
		MaxConns:         pc.MaxConns,
		MinConns:         pc.MinConns,
		StatementTimeout: time.Duration(pc.StatementTimeout) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	i.pg = pool

	steps, err := migrations.Load(migrations.PostgresDir)
	if err != nil {
		return fmt.Errorf("loading postgres migrations: %w", err)
	}
	if err := pool.Migrate(ctx, steps); err != nil {
		return fmt.Errorf("running postgres migrations: %w", err)
	}
	log.Info("postgres connected", "host", pc.Host, "database", pc.Database)
	return nil
}

func (i *infrastructure) openBus(cfg *config.Config, log *logging.Logger) error {
	busLog := log.Component("bus")
	switch cfg.Bus.Transport {
	case "nats":
		client, err := nats.Connect(cfg.NATS)
		if err != nil {
			return fmt.Errorf("connecting to nats: %w", err)
		}
		client.SetLogger(busLog)
		i.transport = client
		log.Info("nats connected", "url", cfg.NATS.URL)
	default:
		client, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to mqtt: %w", err)
		}
		client.SetLogger(busLog)
		client.SetOnConnect(func() {
			busLog.Info("mqtt session established")
		})
		client.SetOnDisconnect(func(err error) {
			busLog.Warn("mqtt disconnected", "error", err)
		})
		i.transport = client
		log.Info("mqtt connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		)
	}
	return nil
}

func (i *infrastructure) openPending(ctx context.Context, cfg *config.Config, log *logging.Logger) error {
	pendingLog := log.Component("pending")
	if cfg.Pending.Backend != "redis" {
		bridge := pending.NewBridge(cfg.Pending.MaxPending)
		bridge.SetLogger(pendingLog)
		i.queue = bridge
		return nil
	}

	rc, err := redis.Connect(ctx, redis.Config{
		Enabled:  cfg.Redis.Enabled,
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	i.redis = rc

	bridge := pending.NewRedisBridge(rc.Client, cfg.Pending.KeyPrefix, cfg.Pending.MaxPending)
	bridge.SetLogger(pendingLog)
	i.queue = bridge
	log.Info("redis pending bridge connected", "addr", cfg.Redis.Addr)
	return nil
}

func (i *infrastructure) sources() topology.Sources {
	return topology.Sources{
		SQLite:   i.db,
		Postgres: i.pg,
		Bus:      i.writer,
		Peer:     i.peer,
		Pending:  i.queue,
	}
}

// connectivity returns the bus for the metrics endpoint, or nil.
func (i *infrastructure) connectivity() api.Connectivity {
	if i.transport == nil {
		return nil
	}
	return i.transport
}

// sink returns the InfluxDB client for the metrics endpoint, or nil.
func (i *infrastructure) sink() api.SinkStats {
	if i.influx == nil {
		return nil
	}
	return i.influx
}

// HealthCheck verifies every open connection.
func (i *infrastructure) HealthCheck(ctx context.Context) error {
	var errs []error
	if i.db != nil {
		if err := i.db.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}
	if i.pg != nil {
		if err := i.pg.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("postgres: %w", err))
		}
	}
	if i.redis != nil {
		if err := i.redis.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if i.transport != nil {
		if err := i.transport.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("bus: %w", err))
		}
	}
	if i.influx != nil {
		if err := i.influx.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("influxdb: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Close releases connections in reverse order of opening.
func (i *infrastructure) Close(log *logging.Logger) {
	if i == nil {
		return
	}
	closeOne := func(name string, fn func() error) {
		if err := fn(); err != nil {
			log.Error("error closing "+name, "error", err)
		}
	}
	if i.serial != nil {
		closeOne("serial port", i.serial.Close)
	}
	if i.influx != nil {
		closeOne("influxdb", i.influx.Close)
	}
	if i.redis != nil {
		closeOne("redis", i.redis.Close)
	}
	if i.transport != nil {
		closeOne("bus", i.transport.Close)
	}
	if i.pg != nil {
		closeOne("postgres", i.pg.Close)
	}
	if i.db != nil {
		closeOne("database", i.db.Close)
	}
}
