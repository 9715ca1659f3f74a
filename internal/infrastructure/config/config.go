package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for FieldPoint Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	API      APIConfig      `yaml:"api"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
	Polling  PollingConfig  `yaml:"polling"`
	Publish  PublishConfig  `yaml:"publish"`

	// DevicesDir is a directory of per-device YAML files describing remotes
	// and their points. Loaded separately by LoadDevices.
	DevicesDir string `yaml:"devices_dir"`
}

// ServiceConfig contains service identity information.
type ServiceConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
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

// MQTTReconnectConfig contains MQTT connection retry settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host      string           `yaml:"host"`
	Port      int              `yaml:"port"`
	Timeouts  APITimeoutConfig `yaml:"timeouts"`
	WebSocket WebSocketConfig  `yaml:"websocket"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket stream settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings for the poll recorder.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// PollingConfig contains agent-level polling defaults.
type PollingConfig struct {
	// DefaultInterval is the polling interval applied to points which do not
	// declare their own, in seconds.
	DefaultInterval float64 `yaml:"default_interval"`

	// MinimumInterval bounds how often the scheduler re-attempts an
	// unreachable remote and sets the tick granularity, in seconds.
	MinimumInterval float64 `yaml:"minimum_interval"`

	// StaleMultiplier computes a point's stale timeout from its interval when
	// no explicit stale_timeout is configured.
	StaleMultiplier float64 `yaml:"stale_multiplier"`

	// MaxConcurrentPolls bounds how many remote groups may be polled at once.
	MaxConcurrentPolls int `yaml:"max_concurrent_polls"`

	// AllowDuplicateRemotes is the agent-level default for descriptor
	// deduplication. Devices may override it individually.
	AllowDuplicateRemotes bool `yaml:"allow_duplicate_remotes"`

	Breaker BreakerConfig `yaml:"breaker"`
}

// BreakerConfig tunes the per-group circuit breaker guarding unreachable remotes.
type BreakerConfig struct {
	// ConsecutiveFailures trips the breaker open.
	ConsecutiveFailures int `yaml:"consecutive_failures"`

	// OpenFor is how long the breaker stays open before a probe, in seconds.
	OpenFor float64 `yaml:"open_for"`
}

// PublishConfig contains agent-level publication defaults.
type PublishConfig struct {
	// All enables periodic all-publishes for devices that do not say otherwise.
	All bool `yaml:"all"`

	// AllInterval is the default all-publish period, in seconds.
	AllInterval float64 `yaml:"all_interval"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: FIELDPOINT_SECTION_KEY
// For example: FIELDPOINT_DATABASE_PATH, FIELDPOINT_MQTT_HOST
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

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			ID:   "fieldpoint-001",
			Name: "FieldPoint Core",
		},
		Database: DatabaseConfig{
			Path:        "./data/fieldpoint.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "fieldpoint-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  5,
			},
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8290,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			WebSocket: WebSocketConfig{
				Path:           "/ws",
				MaxMessageSize: 8192,
				PingInterval:   30,
				PongTimeout:    10,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Polling: PollingConfig{
			DefaultInterval:    60,
			MinimumInterval:    1,
			StaleMultiplier:    3,
			MaxConcurrentPolls: 16,
			Breaker: BreakerConfig{
				ConsecutiveFailures: 3,
				OpenFor:             30,
			},
		},
		Publish: PublishConfig{
			All:         true,
			AllInterval: 300,
		},
		DevicesDir: "./configs/devices",
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: FIELDPOINT_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FIELDPOINT_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("FIELDPOINT_DEVICES_DIR"); v != "" {
		cfg.DevicesDir = v
	}
	if v := os.Getenv("FIELDPOINT_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("FIELDPOINT_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("FIELDPOINT_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("FIELDPOINT_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("FIELDPOINT_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("FIELDPOINT_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}
	if v := os.Getenv("FIELDPOINT_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Service.ID == "" {
		errs = append(errs, "service.id is required")
	}
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.Polling.DefaultInterval <= 0 {
		errs = append(errs, "polling.default_interval must be positive")
	}
	if c.Polling.MinimumInterval <= 0 {
		errs = append(errs, "polling.minimum_interval must be positive")
	}
	if c.Polling.StaleMultiplier <= 0 {
		errs = append(errs, "polling.stale_multiplier must be positive")
	}
	if c.Polling.MaxConcurrentPolls < 1 {
		errs = append(errs, "polling.max_concurrent_polls must be at least 1")
	}
	if c.Publish.AllInterval <= 0 {
		errs = append(errs, "publish.all_interval must be positive")
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

// DefaultPollingInterval returns the agent-level polling interval as a Duration.
func (c *Config) DefaultPollingInterval() time.Duration {
	return secondsToDuration(c.Polling.DefaultInterval)
}

// MinimumPollingInterval returns the retry floor as a Duration.
func (c *Config) MinimumPollingInterval() time.Duration {
	return secondsToDuration(c.Polling.MinimumInterval)
}

// DefaultAllPublishInterval returns the agent-level all-publish period.
func (c *Config) DefaultAllPublishInterval() time.Duration {
	return secondsToDuration(c.Publish.AllInterval)
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
