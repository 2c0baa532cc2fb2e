package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/nerrad567/ego-bridge/internal/infrastructure/config"
	"github.com/nerrad567/ego-bridge/internal/message"
	"github.com/nerrad567/ego-bridge/internal/transport"
)

const (
	defaultDialTimeout = 5 * time.Second
	pingTimeout        = 5 * time.Second
)

// Logger interface for transport logging.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Transport implements transport.Transport over Redis pub/sub.
//
// Thread Safety: All methods are safe for concurrent use.
type Transport struct {
	transport.StateHook

	cfg    config.RedisConfig
	logger Logger
	now    func() time.Time

	mu      sync.RWMutex
	client  *goredis.Client
	pubsubs []*goredis.PubSub

	wg sync.WaitGroup
}

var _ transport.Transport = (*Transport)(nil)

// New creates an unconnected Redis transport.
func New(cfg config.RedisConfig, logger Logger) *Transport {
	return &Transport{cfg: cfg, logger: logger, now: time.Now}
}

// Connect creates the client and verifies the server with PING.
func (t *Transport) Connect(ctx context.Context) error {
	client := goredis.NewClient(&goredis.Options{
		Addr:        t.cfg.Addr,
		Password:    t.cfg.Password,
		DB:          t.cfg.DB,
		DialTimeout: defaultDialTimeout,
		// The retry connector owns retries.
		MaxRetries: -1,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return classifyConnectError(err)
	}

	t.mu.Lock()
	old := t.client
	t.client = client
	t.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}

	t.logger.Info("redis connected", "addr", t.cfg.Addr, "db", t.cfg.DB)
	t.Notify(true)
	return nil
}

func (t *Transport) session() (*goredis.Client, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.client == nil {
		return nil, transport.ErrNotConnected
	}
	return t.client, nil
}

// Send publishes the message envelope on the destination channel.
func (t *Transport) Send(ctx context.Context, msg *message.Message) error {
	client, err := t.session()
	if err != nil {
		return err
	}
	if err := client.Publish(ctx, msg.Destination(), newEnvelope(msg)).Err(); err != nil {
		return fmt.Errorf("%w: %w", transport.ErrSendFailed, err)
	}
	return nil
}

// Subscribe starts a pub/sub receiver for filter.
func (t *Transport) Subscribe(ctx context.Context, filter string, l transport.Listener) error {
	if !transport.ValidFilter(filter) {
		return transport.ErrInvalidFilter
	}
	if l == nil {
		return fmt.Errorf("%w: listener cannot be nil", transport.ErrSubscribeFailed)
	}
	client, err := t.session()
	if err != nil {
		return err
	}

	var ps *goredis.PubSub
	if pattern, ok := globPattern(filter); ok {
		ps = client.PSubscribe(ctx, pattern)
	} else {
		ps = client.Subscribe(ctx, filter)
	}

	// Wait for the subscription confirmation.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return fmt.Errorf("%w: %s: %w", transport.ErrSubscribeFailed, filter, err)
	}

	t.mu.Lock()
	t.pubsubs = append(t.pubsubs, ps)
	t.mu.Unlock()

	t.wg.Add(1)
	go t.receive(ps, filter, l)

	t.logger.Info("redis subscribed", "filter", filter)
	return nil
}

// receive delivers messages until the PubSub is closed. Each PubSub has one
// channel read by one goroutine, so listeners see publish order.
func (t *Transport) receive(ps *goredis.PubSub, filter string, l transport.Listener) {
	defer t.wg.Done()

	for rm := range ps.Channel() {
		t.handle(filter, l, rm)
	}
}

func (t *Transport) handle(filter string, l transport.Listener, rm *goredis.Message) {
	if !transport.Match(filter, rm.Channel) {
		return
	}

	var env envelope
	if err := env.UnmarshalBinary([]byte(rm.Payload)); err != nil {
		t.logger.Warn("dropping undecodable redis message", "channel", rm.Channel, "error", err)
		return
	}
	msg, err := env.toMessage(rm.Channel)
	if err != nil {
		t.logger.Warn("dropping invalid redis message", "channel", rm.Channel, "error", err)
		return
	}
	if msg.Expired(t.now()) {
		t.logger.Warn("dropping expired redis message", "channel", rm.Channel, "id", msg.ID().String())
		return
	}

	t.deliver(l, msg)
}

func (t *Transport) deliver(l transport.Listener, msg *message.Message) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("redis listener panic recovered",
				"channel", msg.Destination(),
				"panic", r,
			)
		}
	}()
	l.OnReceive(context.Background(), msg)
}

// HealthCheck pings the server.
func (t *Transport) HealthCheck(ctx context.Context) error {
	client, err := t.session()
	if err != nil {
		return err
	}
	if err := client.Ping(ctx).Err(); err != nil {
		t.Notify(false)
		return fmt.Errorf("redis health check: %w", err)
	}
	t.Notify(true)
	return nil
}

// Close stops all receivers and closes the client.
func (t *Transport) Close() error {
	t.mu.Lock()
	client := t.client
	pubsubs := t.pubsubs
	t.client = nil
	t.pubsubs = nil
	t.mu.Unlock()

	var errs []error
	for _, ps := range pubsubs {
		if err := ps.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	t.wg.Wait()

	if client != nil {
		if err := client.Close(); err != nil {
			errs = append(errs, err)
		}
		t.Notify(false)
	}
	return errors.Join(errs...)
}

// globPattern converts an MQTT filter with wildcards to a PSUBSCRIBE
// pattern covering at least the same channels. ok is false for filters
// without wildcards.
func globPattern(filter string) (pattern string, ok bool) {
	idx := strings.IndexAny(filter, "+#")
	if idx < 0 {
		return "", false
	}
	// "a/#" also matches "a" itself, so drop the separator before '#'.
	prefix := filter[:idx]
	if filter[idx] == '#' {
		prefix = strings.TrimSuffix(prefix, "/")
	}
	return globEscape(prefix) + "*", true
}

func globEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
