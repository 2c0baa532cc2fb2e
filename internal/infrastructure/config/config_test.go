package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
bridge:
  authority: "TestVehicle"
transport:
  kind: "mqtt"
mqtt:
  broker:
    host: "broker.local"
    port: 1884
  qos: 0
heartbeat:
  destination: "vehicle/test/event"
  interval: 250ms
  ttl_ms: 500
engage:
  enabled: false
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Bridge.Authority != "TestVehicle" {
		t.Errorf("Bridge.Authority = %q, want %q", cfg.Bridge.Authority, "TestVehicle")
	}
	if cfg.Transport.Kind != TransportMQTT {
		t.Errorf("Transport.Kind = %q, want %q", cfg.Transport.Kind, TransportMQTT)
	}
	if got := cfg.MQTT.Broker.Address(); got != "broker.local:1884" {
		t.Errorf("MQTT.Broker.Address() = %q, want %q", got, "broker.local:1884")
	}
	if cfg.MQTT.Broker.ClientID != "TestVehicle" {
		t.Errorf("MQTT.Broker.ClientID = %q, want authority fallback", cfg.MQTT.Broker.ClientID)
	}
	if cfg.Heartbeat.Interval != 250*time.Millisecond {
		t.Errorf("Heartbeat.Interval = %v, want 250ms", cfg.Heartbeat.Interval)
	}
	if cfg.HeartbeatTTL() != 500*time.Millisecond {
		t.Errorf("HeartbeatTTL() = %v, want 500ms", cfg.HeartbeatTTL())
	}
	if cfg.Engage.Enabled {
		t.Error("Engage.Enabled = true, want false")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoadOptional_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadOptional("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("LoadOptional() error = %v", err)
	}
	if cfg.Heartbeat.Destination != "vehicle/adas-actor/event_created" {
		t.Errorf("Heartbeat.Destination = %q", cfg.Heartbeat.Destination)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
transport:
  kind: "carrier-pigeon"
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected validation error for unknown transport, got nil")
	}
	if !strings.Contains(err.Error(), "transport.kind") {
		t.Errorf("Load() error = %v, want mention of transport.kind", err)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Bridge.Authority != "EGOVehicle" {
		t.Errorf("Bridge.Authority = %q, want EGOVehicle", cfg.Bridge.Authority)
	}
	if cfg.MQTT.Broker.Host != "10.1.1.1" {
		t.Errorf("MQTT.Broker.Host = %q, want 10.1.1.1", cfg.MQTT.Broker.Host)
	}
	if cfg.Heartbeat.Interval != time.Second {
		t.Errorf("Heartbeat.Interval = %v, want 1s", cfg.Heartbeat.Interval)
	}
	if cfg.Heartbeat.TTLMillis != 1000 {
		t.Errorf("Heartbeat.TTLMillis = %d, want 1000", cfg.Heartbeat.TTLMillis)
	}
	if cfg.Retry.MaxAttempts != 0 {
		t.Errorf("Retry.MaxAttempts = %d, want 0 (unbounded)", cfg.Retry.MaxAttempts)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() error = %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "empty authority",
			mutate:  func(c *Config) { c.Bridge.Authority = "" },
			wantErr: "bridge.authority",
		},
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.MQTT.Broker.Port = 70000 },
			wantErr: "mqtt.broker.port",
		},
		{
			name:    "invalid qos",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name: "redis ignores mqtt settings",
			mutate: func(c *Config) {
				c.Transport.Kind = TransportRedis
				c.MQTT.Broker.Host = ""
			},
		},
		{
			name: "redis requires addr",
			mutate: func(c *Config) {
				c.Transport.Kind = TransportRedis
				c.Redis.Addr = ""
			},
			wantErr: "redis.addr",
		},
		{
			name:    "max interval below initial",
			mutate:  func(c *Config) { c.Retry.MaxInterval = time.Millisecond },
			wantErr: "retry.max_interval",
		},
		{
			name:    "multiplier below one",
			mutate:  func(c *Config) { c.Retry.Multiplier = 0.5 },
			wantErr: "retry.multiplier",
		},
		{
			name:    "negative attempts",
			mutate:  func(c *Config) { c.Retry.MaxAttempts = -1 },
			wantErr: "retry.max_attempts",
		},
		{
			name:    "zero heartbeat interval",
			mutate:  func(c *Config) { c.Heartbeat.Interval = 0 },
			wantErr: "heartbeat.interval",
		},
		{
			name:    "engage without topic",
			mutate:  func(c *Config) { c.Engage.Topic = "" },
			wantErr: "engage.topic",
		},
		{
			name:    "influxdb without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: "influxdb.url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() error = nil, want mention of %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("EGOBRIDGE_TRANSPORT", "redis")
	t.Setenv("EGOBRIDGE_MQTT_HOST", "env-host")
	t.Setenv("EGOBRIDGE_MQTT_PORT", "8883")
	t.Setenv("EGOBRIDGE_REDIS_ADDR", "redis:6379")
	t.Setenv("EGOBRIDGE_AUTHORITY", "EnvVehicle")

	cfg := Default()
	if err := applyEnvOverrides(cfg); err != nil {
		t.Fatalf("applyEnvOverrides() error = %v", err)
	}

	if cfg.Transport.Kind != TransportRedis {
		t.Errorf("Transport.Kind = %q, want redis", cfg.Transport.Kind)
	}
	if cfg.MQTT.Broker.Host != "env-host" {
		t.Errorf("MQTT.Broker.Host = %q, want env-host", cfg.MQTT.Broker.Host)
	}
	if cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("MQTT.Broker.Port = %d, want 8883", cfg.MQTT.Broker.Port)
	}
	if cfg.Redis.Addr != "redis:6379" {
		t.Errorf("Redis.Addr = %q, want redis:6379", cfg.Redis.Addr)
	}
	if cfg.Bridge.Authority != "EnvVehicle" {
		t.Errorf("Bridge.Authority = %q, want EnvVehicle", cfg.Bridge.Authority)
	}
}

func TestApplyEnvOverrides_BadPort(t *testing.T) {
	t.Setenv("EGOBRIDGE_MQTT_PORT", "not-a-port")

	if err := applyEnvOverrides(Default()); err == nil {
		t.Error("applyEnvOverrides() expected error for non-numeric port")
	}
}
