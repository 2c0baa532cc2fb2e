package mqtt

import (
	"context"
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/ego-bridge/internal/message"
	"github.com/nerrad567/ego-bridge/internal/transport"
)

// Subscribe registers l for messages matching filter.
//
// Filters can include MQTT wildcards:
//   - + (single-level): "adas/+/engage"
//   - # (multi-level): "adas/#"
//
// The listener is called on paho's router goroutine, one message at a time
// in arrival order.
// Subscriptions are restored automatically if the connection is lost and
// re-established.
func (t *Transport) Subscribe(ctx context.Context, filter string, l transport.Listener) error {
	if !transport.ValidFilter(filter) {
		return transport.ErrInvalidFilter
	}
	if l == nil {
		return fmt.Errorf("%w: listener cannot be nil", transport.ErrSubscribeFailed)
	}
	if !t.IsConnected() {
		return transport.ErrNotConnected
	}

	t.subMu.Lock()
	t.subscriptions[filter] = l
	t.subMu.Unlock()

	token := t.client.Subscribe(filter, t.qos, t.wrapListener(l))
	if err := wait(ctx, token, defaultPublishTimeout); err != nil {
		t.subMu.Lock()
		delete(t.subscriptions, filter)
		t.subMu.Unlock()
		return fmt.Errorf("%w: %w", transport.ErrSubscribeFailed, err)
	}

	t.logger.Info("mqtt subscribed", "filter", filter, "qos", t.qos)
	return nil
}

// SubscriptionCount returns the number of active subscriptions.
func (t *Transport) SubscriptionCount() int {
	t.subMu.RLock()
	defer t.subMu.RUnlock()
	return len(t.subscriptions)
}

// wrapListener adapts l to a paho handler with panic recovery.
func (t *Transport) wrapListener(l transport.Listener) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, pm pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				t.logger.Error("MQTT listener panic recovered",
					"topic", pm.Topic(),
					"panic", r,
				)
			}
		}()

		msg, err := toMessage(pm.Topic(), pm.Payload())
		if err != nil {
			t.logger.Warn("dropping inbound MQTT message",
				"topic", pm.Topic(),
				"error", err,
			)
			return
		}
		l.OnReceive(context.Background(), msg)
	}
}

// toMessage rebuilds an inbound publish. MQTT 3.1.1 cannot tell an empty
// payload from an absent one; empty is treated as absent.
func toMessage(topic string, payload []byte) (*message.Message, error) {
	b := message.Publish(topic)
	if len(payload) == 0 {
		return b.Build()
	}
	return b.BuildWithPayload(payload, message.FormatUnspecified)
}
