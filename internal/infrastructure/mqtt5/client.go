package mqtt5

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/paho"

	"github.com/nerrad567/ego-bridge/internal/infrastructure/config"
	"github.com/nerrad567/ego-bridge/internal/message"
	"github.com/nerrad567/ego-bridge/internal/transport"
)

const (
	defaultConnectTimeout  = 10 * time.Second
	defaultPublishTimeout  = 5 * time.Second
	defaultKeepAlive       = 30
	maxQoS                 = 2
	reasonNormalDisconnect = 0x00
	reasonFailureFloor     = 0x80
	tlsMinVersion          = tls.VersionTLS12
)

// Logger interface for transport logging.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type subscription struct {
	filter   string
	listener transport.Listener
}

// Transport is an MQTT 5 session implementing transport.Transport.
//
// Thread Safety: All methods are safe for concurrent use.
type Transport struct {
	transport.StateHook

	cfg    config.MQTTConfig
	qos    byte
	logger Logger

	// dial opens the network connection. Replaced in tests.
	dial func(ctx context.Context, address string) (net.Conn, error)

	mu        sync.RWMutex
	client    *paho.Client
	connected bool
	closed    bool
	subs      []subscription

	// wg tracks listener deliveries in progress.
	wg sync.WaitGroup
}

var _ transport.Transport = (*Transport)(nil)

// New creates an unconnected MQTT 5 transport.
func New(cfg config.MQTTConfig, logger Logger) *Transport {
	t := &Transport{
		cfg:    cfg,
		qos:    byte(min(max(cfg.QoS, 0), maxQoS)), // #nosec G115 -- clamped to 0..2
		logger: logger,
	}
	t.dial = t.dialBroker
	return t
}

func (t *Transport) address() string {
	return t.cfg.Broker.Address()
}

func (t *Transport) dialBroker(ctx context.Context, address string) (net.Conn, error) {
	if t.cfg.Broker.TLS {
		d := &tls.Dialer{Config: &tls.Config{
			MinVersion: tlsMinVersion,
			ServerName: t.cfg.Broker.Host,
		}}
		return d.DialContext(ctx, "tcp", address)
	}
	var d net.Dialer
	return d.DialContext(ctx, "tcp", address)
}

// Connect dials the broker and performs one CONNECT/CONNACK exchange.
//
// Returns:
//   - nil when the broker accepted the session
//   - an error wrapping transport.ErrFatal for refusals in fatalReasonCodes
//   - an error wrapping transport.ErrConnectionFailed otherwise
func (t *Transport) Connect(ctx context.Context) error {
	if t.cfg.QoS < 0 || t.cfg.QoS > maxQoS {
		return fmt.Errorf("%w: %w", transport.ErrFatal, ErrInvalidQoS)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	conn, err := t.dial(ctx, t.address())
	if err != nil {
		return fmt.Errorf("%w: %w", transport.ErrConnectionFailed, err)
	}

	client := paho.NewClient(paho.ClientConfig{
		ClientID: t.cfg.Broker.ClientID,
		Conn:     conn,
		OnPublishReceived: []func(paho.PublishReceived) (bool, error){
			t.handlePublish,
		},
		OnClientError: func(err error) {
			t.markDisconnected()
			t.logger.Warn("mqtt5 client error", "error", err)
		},
		OnServerDisconnect: func(d *paho.Disconnect) {
			t.markDisconnected()
			t.logger.Warn("mqtt5 server disconnected", "reason_code", d.ReasonCode)
		},
	})

	ca, err := client.Connect(ctx, t.connectPacket())
	if ca != nil && ca.ReasonCode >= reasonFailureFloor {
		_ = conn.Close()
		return fmt.Errorf("%w: %w", transport.ErrConnectionFailed, refusalError(ca))
	}
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("%w: %w", transport.ErrConnectionFailed, err)
	}

	t.mu.Lock()
	t.client = client
	t.connected = true
	t.closed = false
	t.mu.Unlock()
	t.Notify(true)

	t.logger.Info("mqtt5 connected", "broker", t.address(), "client_id", t.cfg.Broker.ClientID)
	return nil
}

func (t *Transport) connectPacket() *paho.Connect {
	keepAlive := uint16(defaultKeepAlive)
	if t.cfg.KeepAlive > 0 && t.cfg.KeepAlive <= 0xFFFF {
		keepAlive = uint16(t.cfg.KeepAlive) // #nosec G115 -- range checked
	}

	cp := &paho.Connect{
		ClientID:   t.cfg.Broker.ClientID,
		KeepAlive:  keepAlive,
		CleanStart: true,
	}
	if t.cfg.Auth.Username != "" {
		cp.Username = t.cfg.Auth.Username
		cp.UsernameFlag = true
		cp.Password = []byte(t.cfg.Auth.Password)
		cp.PasswordFlag = true
	}
	return cp
}

func (t *Transport) markDisconnected() {
	t.mu.Lock()
	was := t.connected
	t.connected = false
	t.mu.Unlock()
	if was {
		t.Notify(false)
	}
}

func (t *Transport) session() (*paho.Client, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.connected || t.client == nil {
		return nil, transport.ErrNotConnected
	}
	return t.client, nil
}

// Send publishes msg with its TTL, format and ID mapped to MQTT 5 properties.
func (t *Transport) Send(ctx context.Context, msg *message.Message) error {
	client, err := t.session()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()

	resp, err := client.Publish(ctx, &paho.Publish{
		Topic:      msg.Destination(),
		QoS:        t.qos,
		Payload:    msg.Payload(),
		Properties: publishProperties(msg),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", transport.ErrSendFailed, err)
	}
	if resp != nil && resp.ReasonCode >= reasonFailureFloor {
		return fmt.Errorf("%w: reason code 0x%02X", transport.ErrSendFailed, resp.ReasonCode)
	}
	return nil
}

// Subscribe registers l for topics matching filter.
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

	// Register before subscribing so retained messages are not missed.
	t.mu.Lock()
	t.subs = append(t.subs, subscription{filter: filter, listener: l})
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()

	suback, err := client.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{Topic: filter, QoS: t.qos}},
	})
	if err == nil && suback != nil && len(suback.Reasons) > 0 && suback.Reasons[0] >= reasonFailureFloor {
		err = fmt.Errorf("reason code 0x%02X", suback.Reasons[0])
	}
	if err != nil {
		t.removeSubscription(filter, l)
		return fmt.Errorf("%w: %w", transport.ErrSubscribeFailed, err)
	}

	t.logger.Info("mqtt5 subscribed", "filter", filter, "qos", t.qos)
	return nil
}

func (t *Transport) removeSubscription(filter string, l transport.Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, s := range t.subs {
		if s.filter == filter && s.listener == l {
			t.subs = append(t.subs[:i], t.subs[i+1:]...)
			return
		}
	}
}

// handlePublish routes an inbound publish to matching listeners. paho
// calls it on one goroutine in arrival order; listeners run inline so
// that order reaches them unchanged.
func (t *Transport) handlePublish(pr paho.PublishReceived) (bool, error) {
	msg, err := toMessage(pr.Packet)
	if err != nil {
		t.logger.Warn("dropping inbound MQTT message",
			"topic", pr.Packet.Topic,
			"error", err,
		)
		return true, nil
	}

	t.mu.RLock()
	if t.closed {
		t.mu.RUnlock()
		return true, nil
	}
	var targets []transport.Listener
	for _, s := range t.subs {
		if transport.Match(s.filter, msg.Destination()) {
			targets = append(targets, s.listener)
		}
	}
	t.wg.Add(1)
	t.mu.RUnlock()
	defer t.wg.Done()

	for _, l := range targets {
		t.deliver(l, msg)
	}
	return true, nil
}

func (t *Transport) deliver(l transport.Listener, msg *message.Message) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("MQTT listener panic recovered",
				"topic", msg.Destination(),
				"panic", r,
			)
		}
	}()
	l.OnReceive(context.Background(), msg)
}

// HealthCheck reports whether the session is up.
func (t *Transport) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt5 health check: %w", err)
	}
	_, err := t.session()
	return err
}

// Close sends DISCONNECT and waits for in-flight listener calls. Publishes
// arriving after Close are dropped.
func (t *Transport) Close() error {
	t.mu.Lock()
	client := t.client
	wasConnected := t.connected
	t.client = nil
	t.connected = false
	t.closed = true
	t.subs = nil
	t.mu.Unlock()

	var err error
	if client != nil && wasConnected {
		err = client.Disconnect(&paho.Disconnect{ReasonCode: reasonNormalDisconnect})
		t.Notify(false)
	}
	t.wg.Wait()
	return err
}
