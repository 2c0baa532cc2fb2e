package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/ego-bridge/internal/infrastructure/config"
	"github.com/nerrad567/ego-bridge/internal/message"
	"github.com/nerrad567/ego-bridge/internal/transport"
)

// Transport wraps paho.mqtt.golang as a transport.Transport.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Subscriptions are automatically restored on reconnection.
type Transport struct {
	transport.StateHook

	client pahomqtt.Client
	cfg    config.MQTTConfig
	qos    byte

	// subscriptions tracks active subscriptions for re-subscription on reconnect.
	subscriptions map[string]transport.Listener
	subMu         sync.RWMutex

	// connected tracks current connection state.
	connected bool
	connMu    sync.RWMutex

	logger Logger
}

var _ transport.Transport = (*Transport)(nil)

// Logger interface for transport logging.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// New creates an unconnected MQTT 3.1.1 transport. The paho client is
// built here; Connect performs the network handshake.
func New(cfg config.MQTTConfig, logger Logger) *Transport {
	t := &Transport{
		cfg:           cfg,
		qos:           byte(min(max(cfg.QoS, 0), maxQoS)), // #nosec G115 -- clamped to 0..2
		subscriptions: make(map[string]transport.Listener),
		logger:        logger,
	}

	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID)

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		t.handleConnect()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		t.handleDisconnect(err)
	})
	opts.SetReconnectingHandler(func(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
		t.logger.Info("mqtt reconnecting", "broker", brokerURL(cfg))
	})

	t.client = pahomqtt.NewClient(opts)
	return t
}

// Connect makes a single attempt to reach the broker.
//
// Returns:
//   - nil once the broker accepted the session
//   - an error wrapping transport.ErrFatal when the broker refused the
//     credentials, client ID or protocol version
//   - an error wrapping transport.ErrConnectionFailed otherwise
func (t *Transport) Connect(ctx context.Context) error {
	if t.cfg.QoS < 0 || t.cfg.QoS > maxQoS {
		return fmt.Errorf("%w: %w", transport.ErrFatal, ErrInvalidQoS)
	}

	token := t.client.Connect()
	if err := wait(ctx, token, defaultConnectTimeout); err != nil {
		return classifyConnectError(err)
	}

	// The OnConnect handler runs asynchronously; mark connected here so
	// Send works as soon as Connect returns.
	t.connMu.Lock()
	t.connected = true
	t.connMu.Unlock()
	t.Notify(true)

	t.logger.Info("mqtt connected", "broker", brokerURL(t.cfg), "client_id", t.cfg.Broker.ClientID)
	return nil
}

// handleConnect is called when the connection is established.
func (t *Transport) handleConnect() {
	t.connMu.Lock()
	t.connected = true
	t.connMu.Unlock()
	t.Notify(true)

	t.restoreSubscriptions()
	t.publishStatus("online", "")
}

// handleDisconnect is called when the connection is lost.
func (t *Transport) handleDisconnect(err error) {
	t.connMu.Lock()
	t.connected = false
	t.connMu.Unlock()
	t.Notify(false)

	t.logger.Warn("mqtt connection lost", "error", err)
}

// restoreSubscriptions re-subscribes to all tracked topics after reconnect.
func (t *Transport) restoreSubscriptions() {
	t.subMu.RLock()
	defer t.subMu.RUnlock()

	for filter, l := range t.subscriptions {
		// Errors are ignored during reconnection; paho reports them via the token.
		t.client.Subscribe(filter, t.qos, t.wrapListener(l))
	}
}

func (t *Transport) publishStatus(status, reason string) {
	t.client.Publish(statusTopic(t.cfg.Broker.ClientID), t.qos, true,
		statusPayload(t.cfg.Broker.ClientID, status, reason))
}

// Send publishes the message payload to its destination. MQTT 3.1.1
// cannot carry TTL, format or ID, so only topic and payload are sent.
func (t *Transport) Send(ctx context.Context, msg *message.Message) error {
	if !t.IsConnected() {
		return transport.ErrNotConnected
	}

	token := t.client.Publish(msg.Destination(), t.qos, false, msg.Payload())
	if err := wait(ctx, token, defaultPublishTimeout); err != nil {
		return fmt.Errorf("%w: %w", transport.ErrSendFailed, err)
	}
	return nil
}

// Close gracefully disconnects from the MQTT broker.
//
// It performs:
//  1. Publishes graceful offline status (different from LWT crash status)
//  2. Waits for pending publish operations
//  3. Disconnects from broker
func (t *Transport) Close() error {
	if t.client == nil {
		return nil
	}

	if t.IsConnected() {
		token := t.client.Publish(statusTopic(t.cfg.Broker.ClientID), t.qos, true,
			statusPayload(t.cfg.Broker.ClientID, "offline", "graceful_shutdown"))
		token.WaitTimeout(defaultPublishTimeout)
	}

	// Also stops any reconnect loop paho has running.
	t.client.Disconnect(defaultDisconnectQuiesce)

	t.connMu.Lock()
	wasConnected := t.connected
	t.connected = false
	t.connMu.Unlock()
	if wasConnected {
		t.Notify(false)
	}

	return nil
}

// HealthCheck verifies the MQTT connection is alive.
func (t *Transport) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !t.IsConnected() {
		return transport.ErrNotConnected
	}
	return nil
}

// IsConnected returns the current connection state.
func (t *Transport) IsConnected() bool {
	t.connMu.RLock()
	defer t.connMu.RUnlock()
	return t.connected && t.client.IsConnected()
}

// wait blocks until token completes, ctx is done or timeout elapses.
func wait(ctx context.Context, token pahomqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%w after %v", ErrTimeout, timeout)
	}
}
