package influxdb

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/ego-bridge/internal/infrastructure/config"
)

const (
	openTimeout   = 10 * time.Second
	pingTimeout   = 5 * time.Second
	fallbackBatch = 100
	fallbackFlush = 10 * time.Second
)

// Sink batches bridge telemetry into one InfluxDB bucket.
// Recording never blocks the caller; batch failures go to the error callback.
type Sink struct {
	client influxdb2.Client
	writer api.WriteAPI

	closed  atomic.Bool
	onError atomic.Pointer[func(error)]
}

// Open pings the server and returns a Sink tagging every point with
// authority. It returns ErrDisabled when cfg.Enabled is false.
func Open(ctx context.Context, cfg config.InfluxDBConfig, authority string) (*Sink, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, writeOptions(cfg, authority))

	pingCtx, cancel := context.WithTimeout(ctx, openTimeout)
	defer cancel()
	if err := ping(pingCtx, client); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}

	s := &Sink{
		client: client,
		writer: client.WriteAPI(cfg.Org, cfg.Bucket),
	}
	go s.forwardErrors(s.writer.Errors())
	return s, nil
}

func writeOptions(cfg config.InfluxDBConfig, authority string) *influxdb2.Options {
	batch := uint(fallbackBatch)
	if cfg.BatchSize > 0 {
		batch = uint(cfg.BatchSize) // #nosec G115 -- positive
	}
	flush := fallbackFlush
	if cfg.FlushInterval > 0 {
		flush = time.Duration(cfg.FlushInterval) * time.Second
	}

	opts := influxdb2.DefaultOptions().
		SetBatchSize(batch).
		SetFlushInterval(uint(flush.Milliseconds())) // #nosec G115 -- positive
	if authority != "" {
		opts.AddDefaultTag("authority", authority)
	}
	return opts
}

func ping(ctx context.Context, client influxdb2.Client) error {
	ok, err := client.Ping(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("ping reported unhealthy")
	}
	return nil
}

// forwardErrors runs until the write API closes its error channel.
func (s *Sink) forwardErrors(errs <-chan error) {
	for err := range errs {
		if fn := s.onError.Load(); fn != nil {
			(*fn)(err)
		}
	}
}

// SetOnError installs the callback for asynchronous batch write failures.
func (s *Sink) SetOnError(fn func(err error)) {
	s.onError.Store(&fn)
}

// flush writes buffered points now. No-op after Close.
func (s *Sink) flush() {
	if !s.open() {
		return
	}
	s.writer.Flush()
}

// HealthCheck pings the server.
func (s *Sink) HealthCheck(ctx context.Context) error {
	if !s.open() {
		return ErrClosed
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := ping(ctx, s.client); err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	return nil
}

// Close flushes pending points and releases the client. Safe on a nil
// Sink and safe to call twice.
func (s *Sink) Close() error {
	if s == nil || !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.writer.Flush()
	s.client.Close()
	return nil
}

func (s *Sink) open() bool {
	return s != nil && !s.closed.Load()
}
