package heartbeat

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/nerrad567/ego-bridge/internal/message"
)

// Default publisher settings.
const (
	DefaultInterval = time.Second
	DefaultTTL      = 1000 * time.Millisecond
)

// Sender delivers a message. transport.Transport satisfies it.
type Sender interface {
	Send(ctx context.Context, msg *message.Message) error
}

// Logger interface for the publisher. Compatible with logging.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Recorder is notified of every send attempt. err is nil on success.
type Recorder interface {
	RecordHeartbeat(destination string, latency time.Duration, err error)
}

// Config holds configuration for the publisher.
type Config struct {
	// Destination is the topic heartbeats are sent to.
	Destination string

	// Interval between sends. Default: 1 second.
	Interval time.Duration

	// TTL attached to each message. Default: 1000 ms.
	TTL time.Duration

	// Sender transmits the messages.
	Sender Sender

	// Now returns the current time. Default: time.Now.
	Now func() time.Time
}

// Publisher sends heartbeat messages, pausing one interval after each send.
type Publisher struct {
	destination string
	interval    time.Duration
	ttl         time.Duration
	sender      Sender
	now         func() time.Time
	logger      Logger
	recorders   []Recorder
}

// NewPublisher creates a publisher. Call Run to start sending.
func NewPublisher(cfg Config, logger Logger) *Publisher {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Publisher{
		destination: cfg.Destination,
		interval:    interval,
		ttl:         ttl,
		sender:      cfg.Sender,
		now:         now,
		logger:      logger,
	}
}

// AddRecorder registers a recorder. Must be called before Run.
func (p *Publisher) AddRecorder(r Recorder) {
	p.recorders = append(p.recorders, r)
}

// Run publishes until ctx is cancelled. The first message goes out one
// interval after Run is called; each later one goes out one interval after
// the previous send returned, so a slow send pushes the schedule back.
func (p *Publisher) Run(ctx context.Context) {
	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			//nolint:errcheck // failures are logged inside and the loop continues
			p.PublishOnce(ctx)
			timer.Reset(p.interval)
		}
	}
}

// PublishOnce builds and sends a single heartbeat.
func (p *Publisher) PublishOnce(ctx context.Context) error {
	msg, err := p.build()
	if err != nil {
		p.logger.Error("failed to build heartbeat",
			"destination", p.destination,
			"error", err,
		)
		return err
	}

	start := time.Now()
	err = p.sender.Send(ctx, msg)
	latency := time.Since(start)

	for _, r := range p.recorders {
		r.RecordHeartbeat(p.destination, latency, err)
	}

	if err != nil {
		p.logger.Warn("failed to send heartbeat",
			"destination", p.destination,
			"id", msg.ID().String(),
			"error", err,
		)
		return fmt.Errorf("sending heartbeat: %w", err)
	}

	p.logger.Info("heartbeat sent",
		"destination", p.destination,
		"id", msg.ID().String(),
		"latency_ms", latency.Milliseconds(),
	)
	return nil
}

func (p *Publisher) build() (*message.Message, error) {
	now := p.now()
	payload := strconv.FormatInt(now.Unix(), 10)

	return message.Publish(p.destination).
		WithTTL(p.ttl).
		WithCreatedAt(now).
		BuildWithPayload([]byte(payload), message.FormatText)
}
