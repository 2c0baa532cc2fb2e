// ego bridge
//
// This is the main entry point for the ego bridge. The bridge connects the
// vehicle endpoint to the message bus, publishes a heartbeat event every
// interval and keeps the latest cruise-control engage status received from
// the bus.
//
// For transport selection and configuration, see configs/config.yaml.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nerrad567/ego-bridge/internal/api"
	"github.com/nerrad567/ego-bridge/internal/engage"
	"github.com/nerrad567/ego-bridge/internal/heartbeat"
	"github.com/nerrad567/ego-bridge/internal/infrastructure/config"
	"github.com/nerrad567/ego-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/ego-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/ego-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/ego-bridge/internal/infrastructure/mqtt5"
	"github.com/nerrad567/ego-bridge/internal/infrastructure/redis"
	"github.com/nerrad567/ego-bridge/internal/metrics"
	"github.com/nerrad567/ego-bridge/internal/retry"
	"github.com/nerrad567/ego-bridge/internal/transport"
	"github.com/nerrad567/ego-bridge/internal/transport/memory"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Only startup errors are returned; once the heartbeat loop is running the
// bridge stays up until ctx is cancelled.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting ego bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, configPath, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"transport", cfg.Transport.Kind,
		"authority", cfg.Bridge.Authority,
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	// Connect to InfluxDB (optional). Opened before the transport so that
	// the transport, and the listeners it waits for, close first.
	var influxSink *influxdb.Sink
	if cfg.InfluxDB.Enabled {
		influxSink, err = influxdb.Open(ctx, cfg.InfluxDB, cfg.Bridge.Authority)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxSink.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxSink.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	tr, err := newTransport(cfg, log.Component(cfg.Transport.Kind))
	if err != nil {
		return err
	}
	if n, ok := tr.(transport.StateNotifier); ok {
		n.OnStateChange(m.SetConnected)
	}
	defer func() {
		log.Info("closing transport", "kind", cfg.Transport.Kind)
		if closeErr := tr.Close(); closeErr != nil {
			log.Error("error closing transport", "error", closeErr)
		}
	}()

	connector := retry.NewConnector(retryConfig(cfg.Retry), log.Component("connector"))
	connector.SetObserver(m)
	if err := connector.Connect(ctx, tr.Connect); err != nil {
		return fmt.Errorf("connecting %s transport: %w", cfg.Transport.Kind, err)
	}
	stats := connector.Stats()
	log.Info("transport connected",
		"kind", cfg.Transport.Kind,
		"attempts", stats.Attempts,
		"waited", stats.Waited,
	)

	cell := engage.NewCell()
	if cfg.Engage.Enabled {
		listener := engage.NewListener(cell, log.Component("engage"))
		listener.AddRecorder(m)
		if influxSink != nil {
			listener.AddRecorder(influxSink)
		}
		if err := tr.Subscribe(ctx, cfg.Engage.Topic, listener); err != nil {
			return fmt.Errorf("subscribing to engage status: %w", err)
		}
		log.Info("engage listener subscribed", "topic", cfg.Engage.Topic)
	} else {
		log.Info("engage listener disabled")
	}

	if cfg.Metrics.Enabled {
		var telemetry api.HealthChecker
		if influxSink != nil {
			telemetry = influxSink
		}
		srv, err := api.New(api.Deps{
			Listen:        cfg.Metrics.Listen,
			Logger:        log.Component("api"),
			Gatherer:      registry,
			Engage:        cell,
			Transport:     tr,
			TransportKind: cfg.Transport.Kind,
			ConnectStats:  connector,
			Telemetry:     telemetry,
			Version:       version,
		})
		if err != nil {
			return fmt.Errorf("creating status server: %w", err)
		}
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("starting status server: %w", err)
		}
		defer func() {
			log.Info("stopping status server")
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error stopping status server", "error", closeErr)
			}
		}()
	}

	publisher := heartbeat.NewPublisher(heartbeat.Config{
		Destination: cfg.Heartbeat.Destination,
		Interval:    cfg.Heartbeat.Interval,
		TTL:         cfg.HeartbeatTTL(),
		Sender:      tr,
	}, log.Component("heartbeat"))
	publisher.AddRecorder(m)
	if influxSink != nil {
		publisher.AddRecorder(influxSink)
	}

	log.Info("initialisation complete, publishing heartbeats",
		"destination", cfg.Heartbeat.Destination,
		"interval", cfg.Heartbeat.Interval,
	)

	// Blocks until the shutdown signal.
	publisher.Run(ctx)

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// loadConfig returns the configuration and the path it was read from.
// An explicit EGOBRIDGE_CONFIG must exist; the default path may be absent,
// in which case defaults and environment overrides apply.
func loadConfig() (*config.Config, string, error) {
	if path := os.Getenv("EGOBRIDGE_CONFIG"); path != "" {
		cfg, err := config.Load(path)
		return cfg, path, err
	}
	cfg, err := config.LoadOptional(defaultConfigPath)
	return cfg, defaultConfigPath, err
}

// newTransport builds the transport selected by transport.kind.
func newTransport(cfg *config.Config, log *logging.Logger) (transport.Transport, error) {
	switch cfg.Transport.Kind {
	case config.TransportMQTT5:
		return mqtt5.New(cfg.MQTT, log), nil
	case config.TransportMQTT:
		return mqtt.New(cfg.MQTT, log), nil
	case config.TransportRedis:
		return redis.New(cfg.Redis, log), nil
	case config.TransportMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown transport kind %q", cfg.Transport.Kind)
	}
}

// retryConfig maps the retry section onto the connector policy.
// Configuration and authentication failures are fatal unless retry_fatal
// is set.
func retryConfig(cfg config.RetryConfig) retry.Config {
	rc := retry.Config{
		InitialInterval:     cfg.InitialInterval,
		MaxInterval:         cfg.MaxInterval,
		Multiplier:          cfg.Multiplier,
		RandomizationFactor: cfg.RandomizationFactor,
		MaxAttempts:         cfg.MaxAttempts,
	}
	if !cfg.RetryFatal {
		rc.Fatal = transport.IsFatal
	}
	return rc
}
