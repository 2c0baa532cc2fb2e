package influxdb

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/ego-bridge/internal/engage"
	"github.com/nerrad567/ego-bridge/internal/heartbeat"
	"github.com/nerrad567/ego-bridge/internal/infrastructure/config"
)

var (
	_ heartbeat.Recorder = (*Sink)(nil)
	_ engage.Recorder    = (*Sink)(nil)
)

// fakeInflux answers /ping and records line protocol posted to /api/v2/write.
type fakeInflux struct {
	mu    sync.Mutex
	lines []string
}

func (f *fakeInflux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/ping":
		w.WriteHeader(http.StatusNoContent)
	case "/api/v2/write":
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		for _, line := range strings.Split(strings.TrimSpace(string(body)), "\n") {
			if line != "" {
				f.lines = append(f.lines, line)
			}
		}
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeInflux) Lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "egobridge-dev-token",
		Org:           "egobridge",
		Bucket:        "telemetry",
		BatchSize:     10,
		FlushInterval: 1,
	}
}

func openFake(t *testing.T) (*Sink, *fakeInflux) {
	t.Helper()
	fake := &fakeInflux{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := Open(context.Background(), testConfig(srv.URL), "EGOVehicle")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, fake
}

func waitForLines(t *testing.T, fake *fakeInflux, n int) []string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if lines := fake.Lines(); len(lines) >= n {
			return lines
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("received %d lines, want %d", len(fake.Lines()), n)
	return nil
}

// =============================================================================
// Open / Close Tests
// =============================================================================

func TestOpen_Disabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:8086")
	cfg.Enabled = false

	_, err := Open(context.Background(), cfg, "EGOVehicle")
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Open() error = %v, want ErrDisabled", err)
	}
}

func TestOpen_Unreachable(t *testing.T) {
	_, err := Open(context.Background(), testConfig("http://127.0.0.1:1"), "EGOVehicle")
	if !errors.Is(err, ErrUnreachable) {
		t.Errorf("Open() error = %v, want ErrUnreachable", err)
	}
}

func TestSink_HealthCheckAndClose(t *testing.T) {
	c, _ := openFake(t)

	if err := c.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	c.Close()
	c.Close()
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("HealthCheck() after Close error = %v, want ErrClosed", err)
	}
	// Recording after Close is dropped.
	c.RecordEngage("true", true)
	c.flush()
}

func TestSink_Nil(t *testing.T) {
	var c *Sink
	if err := c.Close(); err != nil {
		t.Errorf("Close() on nil sink error = %v", err)
	}
	c.RecordEngage("true", true)
	c.RecordHeartbeat("a/b", time.Millisecond, nil)
}

// =============================================================================
// Write Tests
// =============================================================================

func TestRecorders_WriteLineProtocol(t *testing.T) {
	c, fake := openFake(t)

	var writeErr error
	var mu sync.Mutex
	c.SetOnError(func(err error) {
		mu.Lock()
		writeErr = err
		mu.Unlock()
	})

	c.RecordHeartbeat("vehicle/adas-actor/event_created", 2*time.Millisecond, nil)
	c.RecordEngage("true", true)
	c.flush()

	lines := waitForLines(t, fake, 2)

	var sawHeartbeat, sawEngage bool
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "heartbeat,"):
			sawHeartbeat = true
			if !strings.Contains(line, "authority=EGOVehicle") ||
				!strings.Contains(line, "destination=vehicle/adas-actor/event_created") ||
				!strings.Contains(line, "ok=true") {
				t.Errorf("heartbeat line = %q", line)
			}
		case strings.HasPrefix(line, "engage,"):
			sawEngage = true
			if !strings.Contains(line, `value="true"`) || !strings.Contains(line, "valid=true") {
				t.Errorf("engage line = %q", line)
			}
		}
	}
	if !sawHeartbeat || !sawEngage {
		t.Errorf("lines = %v, want heartbeat and engage", lines)
	}

	mu.Lock()
	defer mu.Unlock()
	if writeErr != nil {
		t.Errorf("write error = %v", writeErr)
	}
}

func TestHeartbeatPoint(t *testing.T) {
	ts := time.Unix(1_700_000_000, 0)

	ok := write.PointToLineProtocol(heartbeatPoint("a/b", 1500*time.Microsecond, nil, ts), time.Second)
	if !strings.HasPrefix(ok, "heartbeat,destination=a/b ") ||
		!strings.Contains(ok, "latency_ms=1.5") ||
		!strings.Contains(ok, "ok=true") ||
		strings.Contains(ok, "error=") ||
		!strings.HasSuffix(strings.TrimSpace(ok), " 1700000000") {
		t.Errorf("ok point = %q", ok)
	}

	failed := write.PointToLineProtocol(heartbeatPoint("a/b", 0, errors.New("broker down"), ts), time.Second)
	if !strings.Contains(failed, "ok=false") || !strings.Contains(failed, `error="broker down"`) {
		t.Errorf("failed point = %q", failed)
	}
}

func TestEngagePoint(t *testing.T) {
	line := write.PointToLineProtocol(engagePoint("Invalid UTF-8", false, time.Unix(1, 0)), time.Second)
	if !strings.HasPrefix(line, "engage ") ||
		!strings.Contains(line, `value="Invalid UTF-8"`) ||
		!strings.Contains(line, "valid=false") {
		t.Errorf("engage point = %q", line)
	}
}
