package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the telemetry hub.
type Config struct {
	Hub       HubConfig       `yaml:"hub"`
	Database  DatabaseConfig  `yaml:"database"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	NATS      NATSConfig      `yaml:"nats"`
	Bus       BusConfig       `yaml:"bus"`
	Peer      PeerConfig      `yaml:"peer"`
	Redis     RedisConfig     `yaml:"redis"`
	Pending   PendingConfig   `yaml:"pending"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Serial    SerialConfig    `yaml:"serial"`
	Inbound   InboundConfig   `yaml:"inbound"`
	Topology  TopologyConfig  `yaml:"topology"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// HubConfig identifies this hub instance.
type HubConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host             string `yaml:"host"`
	Port             int    `yaml:"port"`
	Database         string `yaml:"database"`
	Username         string `yaml:"username"`
	Password         string `yaml:"password"`
	SSLMode          string `yaml:"ssl_mode"`
	MaxConns         int32  `yaml:"max_conns"`
	MinConns         int32  `yaml:"min_conns"`
	StatementTimeout int    `yaml:"statement_timeout"` // seconds
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// NATSConfig contains NATS connection settings.
type NATSConfig struct {
	URL           string `yaml:"url"`
	Name          string `yaml:"name"`
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
	MaxReconnects int    `yaml:"max_reconnects"`
	ReconnectWait int    `yaml:"reconnect_wait"` // seconds
}

// BusConfig selects the message bus and its topics.
//
// With the mqtt transport the topics are MQTT topics; with nats they are
// used as subjects after replacing "/" with ".".
type BusConfig struct {
	Transport string          `yaml:"transport"` // mqtt | nats
	Topics    BusTopicsConfig `yaml:"topics"`
}

// BusTopicsConfig names the per-entity topics.
type BusTopicsConfig struct {
	Device      string `yaml:"device"`
	DeviceState string `yaml:"device_state"`
	Event       string `yaml:"event"`
	Action      string `yaml:"action"` // per-device suffix /{physical_id} is appended
}

// PeerConfig points at another hub's HTTP API.
type PeerConfig struct {
	BaseURL string          `yaml:"base_url"`
	Timeout int             `yaml:"timeout"` // seconds
	Devices PeerPathsConfig `yaml:"devices"`
	States  PeerPathsConfig `yaml:"states"`
	Events  PeerPathsConfig `yaml:"events"`
}

// PeerPathsConfig lists the peer path for each operation.
type PeerPathsConfig struct {
	Create          string `yaml:"create"`
	Get             string `yaml:"get"`
	GetByPhysicalID string `yaml:"get_by_physical_id"`
	Update          string `yaml:"update"`
	Delete          string `yaml:"delete"`
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// PendingConfig configures the pending-action bridge.
type PendingConfig struct {
	Backend    string `yaml:"backend"` // memory | redis
	MaxPending int    `yaml:"max_pending"`
	KeyPrefix  string `yaml:"key_prefix"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// SerialConfig configures the serial line reader.
type SerialConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// InboundConfig toggles the inbound adapters.
type InboundConfig struct {
	HTTP bool `yaml:"http"`
	Bus  bool `yaml:"bus"`
}

// TopologyConfig selects the backend of every capability.
//
// Preset fills every slot; the per-entity fields override single slots.
// Valid kinds are memory, sqlite, postgres, bus, peer and pending.
type TopologyConfig struct {
	Preset  string               `yaml:"preset"`
	Devices EntityTopologyConfig `yaml:"devices"`
	States  EntityTopologyConfig `yaml:"states"`
	Events  RecordTopologyConfig `yaml:"events"`
	Actions RecordTopologyConfig `yaml:"actions"`
}

// EntityTopologyConfig names the backend of each CRUD capability.
type EntityTopologyConfig struct {
	Create string `yaml:"create"`
	Get    string `yaml:"get"`
	Update string `yaml:"update"`
	Delete string `yaml:"delete"`
}

// RecordTopologyConfig names the backend of each record capability.
type RecordTopologyConfig struct {
	Create string `yaml:"create"`
	Get    string `yaml:"get"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// Environment variables follow the pattern TELEMETRYHUB_SECTION_KEY,
// for example TELEMETRYHUB_DATABASE_PATH or TELEMETRYHUB_API_PORT.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration with environment overrides
// applied. It is used when no config file exists.
func Default() (*Config, error) {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Hub: HubConfig{
			ID:   "hub-001",
			Name: "Telemetry Hub",
		},
		Database: DatabaseConfig{
			Path:        "./data/telemetry.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Postgres: PostgresConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "telemetry",
			Username: "telemetry",
			SSLMode:  "disable",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "telemetryhub",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		NATS: NATSConfig{
			URL:           "nats://localhost:4222",
			Name:          "telemetryhub",
			MaxReconnects: -1,
			ReconnectWait: 2,
		},
		Bus: BusConfig{
			Transport: "mqtt",
			Topics: BusTopicsConfig{
				Device:      "telemetry/devices",
				DeviceState: "telemetry/device_states",
				Event:       "telemetry/events",
				Action:      "telemetry/actions",
			},
		},
		Peer: PeerConfig{
			BaseURL: "http://localhost:8080",
			Timeout: 10,
			Devices: PeerPathsConfig{
				Create:          "/api/v1/devices",
				Get:             "/api/v1/devices",
				GetByPhysicalID: "/api/v1/devices/physical",
				Update:          "/api/v1/devices",
				Delete:          "/api/v1/devices",
			},
			States: PeerPathsConfig{
				Create: "/api/v1/device_states",
				Get:    "/api/v1/device_states",
				Update: "/api/v1/device_states",
				Delete: "/api/v1/device_states",
			},
			Events: PeerPathsConfig{
				Create: "/api/v1/events",
				Get:    "/api/v1/events",
			},
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Pending: PendingConfig{
			Backend: "memory",
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Serial: SerialConfig{
			Port:     "/dev/ttyUSB0",
			BaudRate: 115200,
		},
		Inbound: InboundConfig{
			HTTP: true,
		},
		Topology: TopologyConfig{
			Preset: "sqlite",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies TELEMETRYHUB_* environment variables.
func applyEnvOverrides(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv("TELEMETRYHUB_" + key); v != "" {
			*dst = v
		}
	}

	setString("DATABASE_PATH", &cfg.Database.Path)

	setString("POSTGRES_HOST", &cfg.Postgres.Host)
	setString("POSTGRES_DATABASE", &cfg.Postgres.Database)
	setString("POSTGRES_USERNAME", &cfg.Postgres.Username)
	setString("POSTGRES_PASSWORD", &cfg.Postgres.Password)

	setString("MQTT_HOST", &cfg.MQTT.Broker.Host)
	setString("MQTT_USERNAME", &cfg.MQTT.Auth.Username)
	setString("MQTT_PASSWORD", &cfg.MQTT.Auth.Password)

	setString("NATS_URL", &cfg.NATS.URL)
	setString("NATS_PASSWORD", &cfg.NATS.Password)

	setString("BUS_TRANSPORT", &cfg.Bus.Transport)
	setString("PEER_BASE_URL", &cfg.Peer.BaseURL)

	setString("REDIS_ADDR", &cfg.Redis.Addr)
	setString("REDIS_PASSWORD", &cfg.Redis.Password)

	setString("API_HOST", &cfg.API.Host)
	if v := os.Getenv("TELEMETRYHUB_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	setString("INFLUXDB_TOKEN", &cfg.InfluxDB.Token)
	setString("SERIAL_PORT", &cfg.Serial.Port)
	setString("TOPOLOGY_PRESET", &cfg.Topology.Preset)
	setString("LOG_LEVEL", &cfg.Logging.Level)
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Hub.ID == "" {
		errs = append(errs, "hub.id is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	switch c.Bus.Transport {
	case "mqtt", "nats":
	default:
		errs = append(errs, fmt.Sprintf("bus.transport %q must be mqtt or nats", c.Bus.Transport))
	}
	if c.Bus.Topics.Device == "" || c.Bus.Topics.DeviceState == "" ||
		c.Bus.Topics.Event == "" || c.Bus.Topics.Action == "" {
		errs = append(errs, "bus.topics must name device, device_state, event and action topics")
	}

	switch c.Pending.Backend {
	case "memory":
	case "redis":
		if !c.Redis.Enabled {
			errs = append(errs, "pending.backend redis requires redis.enabled")
		}
	default:
		errs = append(errs, fmt.Sprintf("pending.backend %q must be memory or redis", c.Pending.Backend))
	}
	if c.Pending.MaxPending < 0 {
		errs = append(errs, "pending.max_pending cannot be negative")
	}

	if c.Serial.Enabled && c.Serial.Port == "" {
		errs = append(errs, "serial.port is required when serial is enabled")
	}

	if c.Topology.Preset == "" && c.Topology.Devices.Create == "" {
		errs = append(errs, "topology.preset or explicit topology backends are required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetPeerTimeout returns the peer HTTP client timeout as a Duration.
func (c *Config) GetPeerTimeout() time.Duration {
	return time.Duration(c.Peer.Timeout) * time.Second
}
