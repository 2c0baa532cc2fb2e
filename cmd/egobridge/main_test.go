package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/ego-bridge/internal/infrastructure/config"
	"github.com/nerrad567/ego-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/ego-bridge/internal/retry"
	"github.com/nerrad567/ego-bridge/internal/transport"
)

func writeTestConfig(t *testing.T, content string) {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("EGOBRIDGE_CONFIG", configPath)
}

// =============================================================================
// run() Tests
// =============================================================================

// TestRun_InvalidConfig verifies run fails when EGOBRIDGE_CONFIG points nowhere.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("EGOBRIDGE_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("run() error = %v, want loading config failure", err)
	}
}

// TestRun_MemoryTransport runs the whole bridge against the loopback
// transport until the context expires. A clean shutdown returns nil.
func TestRun_MemoryTransport(t *testing.T) {
	writeTestConfig(t, `
bridge:
  authority: "TestVehicle"
transport:
  kind: "memory"
heartbeat:
  destination: "vehicle/adas-actor/event_created"
  interval: 20ms
  ttl_ms: 1000
engage:
  enabled: true
  topic: "adas/cruise_control/engage"
influxdb:
  enabled: false
metrics:
  enabled: true
  listen: "127.0.0.1:0"
logging:
  level: error
  format: text
  output: stderr
`)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("run() error = %v, want nil on shutdown", err)
	}
}

// TestRun_ConnectAttemptsExhausted verifies that a bounded connect phase
// surfaces the transport error as a startup failure.
func TestRun_ConnectAttemptsExhausted(t *testing.T) {
	writeTestConfig(t, `
transport:
  kind: "redis"
redis:
  addr: "127.0.0.1:1"
retry:
  initial_interval: 1ms
  max_interval: 2ms
  multiplier: 2
  max_attempts: 2
metrics:
  enabled: false
logging:
  level: error
  output: stderr
`)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail when the broker is unreachable")
	}
	if !errors.Is(err, retry.ErrAttemptsExhausted) {
		t.Errorf("run() error = %v, want ErrAttemptsExhausted", err)
	}
	if !errors.Is(err, transport.ErrConnectionFailed) {
		t.Errorf("run() error = %v, want ErrConnectionFailed", err)
	}
}

// =============================================================================
// Helper Tests
// =============================================================================

func TestNewTransport(t *testing.T) {
	tests := []struct {
		kind    string
		wantErr bool
	}{
		{kind: config.TransportMQTT5},
		{kind: config.TransportMQTT},
		{kind: config.TransportRedis},
		{kind: config.TransportMemory},
		{kind: "carrier-pigeon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			cfg := config.Default()
			cfg.Transport.Kind = tt.kind

			tr, err := newTransport(cfg, logging.Discard())
			if tt.wantErr {
				if err == nil {
					t.Error("newTransport() expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("newTransport() error = %v", err)
			}
			if tr == nil {
				t.Fatal("newTransport() returned nil transport")
			}
			if _, ok := tr.(transport.StateNotifier); !ok {
				t.Errorf("%T does not report state changes; transport_up would go stale", tr)
			}
		})
	}
}

func TestRetryConfig_FatalClassification(t *testing.T) {
	cfg := config.Default().Retry

	if rc := retryConfig(cfg); rc.Fatal == nil {
		t.Error("retryConfig() Fatal = nil, want transport.IsFatal")
	}

	cfg.RetryFatal = true
	if rc := retryConfig(cfg); rc.Fatal != nil {
		t.Error("retryConfig() with retry_fatal should retry every error")
	}
}
