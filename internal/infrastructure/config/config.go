package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Transport kinds accepted in transport.kind.
const (
	TransportMQTT5  = "mqtt5"
	TransportMQTT   = "mqtt"
	TransportRedis  = "redis"
	TransportMemory = "memory"
)

// Config is the root configuration structure for the ego bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Bridge    BridgeConfig    `yaml:"bridge"`
	Transport TransportConfig `yaml:"transport"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Redis     RedisConfig     `yaml:"redis"`
	Retry     RetryConfig     `yaml:"retry"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	Engage    EngageConfig    `yaml:"engage"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// BridgeConfig identifies the local endpoint on the bus.
type BridgeConfig struct {
	// Authority is the identity of this endpoint (e.g. "EGOVehicle").
	// It doubles as the default MQTT client ID.
	Authority string `yaml:"authority"`
}

// TransportConfig selects the broker transport.
type TransportConfig struct {
	// Kind is one of "mqtt5", "mqtt", "redis" or "memory".
	Kind string `yaml:"kind"`
}

// MQTTConfig contains MQTT broker connection settings.
// Used by both the MQTT 5 and the MQTT 3.1.1 transports.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig `yaml:"broker"`
	Auth      MQTTAuthConfig   `yaml:"auth"`
	QoS       int              `yaml:"qos"`
	KeepAlive int              `yaml:"keep_alive"`
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

// RedisConfig contains Redis pub/sub connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// RetryConfig controls the exponential backoff applied to the initial
// broker connection.
type RetryConfig struct {
	// InitialInterval is the delay after the first failed attempt.
	InitialInterval time.Duration `yaml:"initial_interval"`

	// MaxInterval caps the delay between attempts.
	MaxInterval time.Duration `yaml:"max_interval"`

	// Multiplier scales the delay after each failure.
	Multiplier float64 `yaml:"multiplier"`

	// RandomizationFactor adds jitter. 0 keeps delays non-decreasing.
	RandomizationFactor float64 `yaml:"randomization_factor"`

	// MaxAttempts bounds the number of connect attempts. 0 means unlimited.
	MaxAttempts int `yaml:"max_attempts"`

	// RetryFatal disables error classification so that configuration and
	// authentication failures are retried like network errors.
	RetryFatal bool `yaml:"retry_fatal"`
}

// HeartbeatConfig controls the periodic event publisher.
type HeartbeatConfig struct {
	Destination string        `yaml:"destination"`
	Interval    time.Duration `yaml:"interval"`
	TTLMillis   int           `yaml:"ttl_ms"`
}

// EngageConfig controls the engage-status subscription.
type EngageConfig struct {
	Enabled bool   `yaml:"enabled"`
	Topic   string `yaml:"topic"`
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

// MetricsConfig controls the Prometheus/status HTTP endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: EGOBRIDGE_SECTION_KEY
// For example: EGOBRIDGE_MQTT_HOST, EGOBRIDGE_TRANSPORT
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := finish(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOptional behaves like Load but falls back to defaults (plus
// environment overrides) when the file does not exist.
func LoadOptional(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := Default()
		if err := finish(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return Load(path)
}

// finish applies env overrides and validates.
func finish(cfg *Config) error {
	if err := applyEnvOverrides(cfg); err != nil {
		return fmt.Errorf("applying environment overrides: %w", err)
	}

	if cfg.MQTT.Broker.ClientID == "" {
		cfg.MQTT.Broker.ClientID = cfg.Bridge.Authority
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return nil
}

// Default returns a Config with the values the bridge was designed around:
// broker at 10.1.1.1, authority "EGOVehicle", one heartbeat per second on
// vehicle/adas-actor/event_created with a 1000 ms TTL.
func Default() *Config {
	return &Config{
		Bridge: BridgeConfig{
			Authority: "EGOVehicle",
		},
		Transport: TransportConfig{
			Kind: TransportMQTT5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "10.1.1.1",
				Port: 1883,
			},
			QoS:       1,
			KeepAlive: 30,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Retry: RetryConfig{
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     30 * time.Second,
			Multiplier:      2,
		},
		Heartbeat: HeartbeatConfig{
			Destination: "vehicle/adas-actor/event_created",
			Interval:    time.Second,
			TTLMillis:   1000,
		},
		Engage: EngageConfig{
			Enabled: true,
			Topic:   "adas/cruise_control/engage",
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Metrics: MetricsConfig{
			Listen: "127.0.0.1:9102",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: EGOBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("EGOBRIDGE_AUTHORITY"); v != "" {
		cfg.Bridge.Authority = v
	}
	if v := os.Getenv("EGOBRIDGE_TRANSPORT"); v != "" {
		cfg.Transport.Kind = v
	}

	// MQTT
	if v := os.Getenv("EGOBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("EGOBRIDGE_MQTT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("EGOBRIDGE_MQTT_PORT: %w", err)
		}
		cfg.MQTT.Broker.Port = port
	}
	if v := os.Getenv("EGOBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("EGOBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Redis
	if v := os.Getenv("EGOBRIDGE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("EGOBRIDGE_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}

	// InfluxDB
	if v := os.Getenv("EGOBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("EGOBRIDGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	return nil
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Bridge.Authority == "" {
		errs = append(errs, "bridge.authority is required")
	}

	switch c.Transport.Kind {
	case TransportMQTT5, TransportMQTT:
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required")
		}
		if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
			errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.KeepAlive < 0 || c.MQTT.KeepAlive > 65535 {
			errs = append(errs, "mqtt.keep_alive must be between 0 and 65535")
		}
	case TransportRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, "redis.addr is required")
		}
	case TransportMemory:
	default:
		errs = append(errs, fmt.Sprintf("transport.kind %q is not one of mqtt5, mqtt, redis, memory", c.Transport.Kind))
	}

	if c.Retry.InitialInterval <= 0 {
		errs = append(errs, "retry.initial_interval must be positive")
	}
	if c.Retry.MaxInterval < c.Retry.InitialInterval {
		errs = append(errs, "retry.max_interval must not be less than retry.initial_interval")
	}
	if c.Retry.Multiplier < 1 {
		errs = append(errs, "retry.multiplier must be at least 1")
	}
	if c.Retry.RandomizationFactor < 0 || c.Retry.RandomizationFactor >= 1 {
		errs = append(errs, "retry.randomization_factor must be in [0, 1)")
	}
	if c.Retry.MaxAttempts < 0 {
		errs = append(errs, "retry.max_attempts must not be negative")
	}

	if c.Heartbeat.Destination == "" {
		errs = append(errs, "heartbeat.destination is required")
	}
	if c.Heartbeat.Interval <= 0 {
		errs = append(errs, "heartbeat.interval must be positive")
	}
	if c.Heartbeat.TTLMillis < 0 {
		errs = append(errs, "heartbeat.ttl_ms must not be negative")
	}

	if c.Engage.Enabled && c.Engage.Topic == "" {
		errs = append(errs, "engage.topic is required when engage is enabled")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		errs = append(errs, "metrics.listen is required when metrics are enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// HeartbeatTTL returns the heartbeat time-to-live as a Duration.
func (c *Config) HeartbeatTTL() time.Duration {
	return time.Duration(c.Heartbeat.TTLMillis) * time.Millisecond
}

// Address returns host:port for the broker.
func (b MQTTBrokerConfig) Address() string {
	return net.JoinHostPort(b.Host, strconv.Itoa(b.Port))
}
