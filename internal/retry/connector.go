package retry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Default policy values, used when the corresponding Config field is zero.
const (
	defaultInitialInterval = 500 * time.Millisecond
	defaultMaxInterval     = 30 * time.Second
	defaultMultiplier      = 2.0
)

// Operation is a single fallible connect attempt.
type Operation func(ctx context.Context) error

// Config controls the backoff policy.
type Config struct {
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	Multiplier          float64
	RandomizationFactor float64

	// MaxAttempts bounds the total number of attempts. 0 means unlimited.
	MaxAttempts int

	// Fatal classifies errors that must not be retried. nil retries everything.
	Fatal func(error) bool
}

// Logger interface for progress logging.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Observer is notified after every failed attempt. next is the delay
// before the following attempt, or 0 when no further attempt will be made.
type Observer interface {
	ConnectAttemptFailed(attempt int, err error, next time.Duration)
}

// Stats summarises the most recent Connect call.
type Stats struct {
	Attempts int
	Waited   time.Duration
}

// Connector retries a connect operation with exponential backoff.
// Each Connect call starts a fresh backoff sequence.
type Connector struct {
	cfg      Config
	logger   Logger
	observer Observer

	statsMu sync.Mutex
	stats   Stats
}

// NewConnector creates a Connector, filling zero policy fields with defaults.
func NewConnector(cfg Config, logger Logger) *Connector {
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = defaultInitialInterval
	}
	if cfg.MaxInterval < cfg.InitialInterval {
		cfg.MaxInterval = max(defaultMaxInterval, cfg.InitialInterval)
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = defaultMultiplier
	}
	return &Connector{cfg: cfg, logger: logger}
}

// SetObserver registers an observer for failed attempts.
func (c *Connector) SetObserver(o Observer) {
	c.observer = o
}

// Connect calls op until it succeeds.
//
// Returns:
//   - nil once op succeeds
//   - the op error itself when Fatal classifies it as unrecoverable
//   - ErrAttemptsExhausted (wrapping the last error) when MaxAttempts is reached
//   - ctx.Err() when the context is cancelled while waiting
func (c *Connector) Connect(ctx context.Context, op Operation) error {
	var (
		attempt int
		fatal   bool
	)

	operation := func() error {
		attempt++
		c.logger.Info("connecting to broker", "attempt", attempt)

		err := op(ctx)
		if err == nil {
			return nil
		}
		if c.cfg.Fatal != nil && c.cfg.Fatal(err) {
			fatal = true
			c.logger.Error("connection attempt failed, not retrying",
				"attempt", attempt,
				"error", err,
			)
			c.observe(attempt, err, 0)
			return backoff.Permanent(err)
		}
		return err
	}

	var waited time.Duration
	defer func() {
		c.statsMu.Lock()
		c.stats = Stats{Attempts: attempt, Waited: waited}
		c.statsMu.Unlock()
	}()

	notify := func(err error, next time.Duration) {
		waited += next
		c.logger.Warn("connection attempt failed, retrying",
			"attempt", attempt,
			"next_delay", next.String(),
			"error", err,
		)
		c.observe(attempt, err, next)
	}

	err := backoff.RetryNotify(operation, c.policy(ctx), notify)
	switch {
	case err == nil:
		c.logger.Info("connected to broker", "attempts", attempt)
		return nil
	case fatal:
		return err
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		// The final failure never reaches notify.
		c.logger.Error("connection attempt failed, giving up",
			"attempt", attempt,
			"error", err,
		)
		c.observe(attempt, err, 0)
		return fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, attempt, err)
	}
}

// Stats returns the attempts made and total delay scheduled by the most
// recent Connect call.
func (c *Connector) Stats() Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

// policy builds a fresh backoff sequence for one Connect call.
func (c *Connector) policy(ctx context.Context) backoff.BackOff {
	var b backoff.BackOff = backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(c.cfg.InitialInterval),
		backoff.WithMaxInterval(c.cfg.MaxInterval),
		backoff.WithMultiplier(c.cfg.Multiplier),
		backoff.WithRandomizationFactor(c.cfg.RandomizationFactor),
		backoff.WithMaxElapsedTime(0),
	)
	if c.cfg.MaxAttempts > 0 {
		// #nosec G115 -- MaxAttempts checked positive above
		b = backoff.WithMaxRetries(b, uint64(c.cfg.MaxAttempts-1))
	}
	return backoff.WithContext(b, ctx)
}

func (c *Connector) observe(attempt int, err error, next time.Duration) {
	if c.observer != nil {
		c.observer.ConnectAttemptFailed(attempt, err, next)
	}
}
