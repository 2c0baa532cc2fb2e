// Package transport defines the broker capability the bridge is built on.
//
// The bridge core never talks to a broker library directly. It holds a
// Transport, connects it once through the retrying connector, sends
// heartbeat messages through it and registers Listeners for inbound
// topics. Concrete implementations live in the mqtt, mqtt5, redis and
// memory packages.
package transport

import (
	"context"

	"github.com/nerrad567/ego-bridge/internal/message"
)

// Transport is a connected session with a message broker.
//
// Implementations must be safe for concurrent use: the heartbeat loop
// calls Send while inbound messages are being delivered.
type Transport interface {
	// Connect performs a single connection attempt. Retrying is the
	// caller's concern. Errors that no retry can fix wrap ErrFatal.
	Connect(ctx context.Context) error

	// Send publishes msg and waits for the broker to accept it.
	Send(ctx context.Context, msg *message.Message) error

	// Subscribe registers l for messages whose topic matches filter.
	// The listener is invoked once per inbound message, in the order the
	// broker delivered the messages.
	Subscribe(ctx context.Context, filter string, l Listener) error

	// HealthCheck reports whether the session is usable.
	HealthCheck(ctx context.Context) error

	// Close ends the session. Safe to call on a transport that never connected.
	Close() error
}

// Listener receives inbound messages.
type Listener interface {
	OnReceive(ctx context.Context, msg *message.Message)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(ctx context.Context, msg *message.Message)

// OnReceive calls f.
func (f ListenerFunc) OnReceive(ctx context.Context, msg *message.Message) {
	f(ctx, msg)
}
