// Package memory provides a process-local Transport.
//
// It is used for dry runs (transport.kind: memory) and throughout the
// tests: connect and send failures can be scripted, every sent message
// is recorded, and sends are looped back to matching subscribers on the
// sending goroutine, so delivery order equals send order.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/ego-bridge/internal/message"
	"github.com/nerrad567/ego-bridge/internal/transport"
)

type subscription struct {
	filter   string
	listener transport.Listener
}

// Transport is an in-memory broker session.
//
// Thread Safety: All methods are safe for concurrent use.
type Transport struct {
	transport.StateHook

	mu              sync.Mutex
	connected       bool
	connectAttempts int
	connectErrs     []error
	sendErr         error
	sent            []*message.Message
	subs            []subscription

	// wg tracks listener deliveries in progress.
	wg sync.WaitGroup
}

// New creates a disconnected memory transport.
func New() *Transport {
	return &Transport{}
}

// FailConnects makes the next len(errs) Connect calls return errs in order.
func (t *Transport) FailConnects(errs ...error) {
	t.mu.Lock()
	t.connectErrs = append(t.connectErrs, errs...)
	t.mu.Unlock()
}

// FailSends makes every subsequent Send return err. nil restores success.
func (t *Transport) FailSends(err error) {
	t.mu.Lock()
	t.sendErr = err
	t.mu.Unlock()
}

// Connect implements transport.Transport.
func (t *Transport) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	t.connectAttempts++
	if len(t.connectErrs) > 0 {
		err := t.connectErrs[0]
		t.connectErrs = t.connectErrs[1:]
		t.mu.Unlock()
		return fmt.Errorf("%w: %w", transport.ErrConnectionFailed, err)
	}
	t.connected = true
	t.mu.Unlock()

	t.Notify(true)
	return nil
}

// Send implements transport.Transport. Successful sends are recorded and
// delivered to matching subscribers before Send returns.
func (t *Transport) Send(ctx context.Context, msg *message.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	if !t.connected {
		t.mu.Unlock()
		return transport.ErrNotConnected
	}
	if t.sendErr != nil {
		err := t.sendErr
		t.mu.Unlock()
		return fmt.Errorf("%w: %w", transport.ErrSendFailed, err)
	}
	t.sent = append(t.sent, msg)
	targets := t.matching(msg.Destination())
	if len(targets) > 0 {
		t.wg.Add(1)
	}
	t.mu.Unlock()

	t.deliver(targets, msg)
	return nil
}

// Subscribe implements transport.Transport.
func (t *Transport) Subscribe(_ context.Context, filter string, l transport.Listener) error {
	if !transport.ValidFilter(filter) {
		return transport.ErrInvalidFilter
	}
	if l == nil {
		return fmt.Errorf("%w: listener cannot be nil", transport.ErrSubscribeFailed)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return transport.ErrNotConnected
	}
	t.subs = append(t.subs, subscription{filter: filter, listener: l})
	return nil
}

// Inject delivers msg to matching subscribers as if it had arrived from
// the broker. Listeners have returned when Inject returns. The result is
// the number of listeners called.
func (t *Transport) Inject(msg *message.Message) int {
	t.mu.Lock()
	targets := t.matching(msg.Destination())
	if len(targets) > 0 {
		t.wg.Add(1)
	}
	t.mu.Unlock()

	t.deliver(targets, msg)
	return len(targets)
}

// Drop simulates a lost session: sends fail with ErrNotConnected until
// the next Connect. Subscriptions are kept.
func (t *Transport) Drop() {
	t.mu.Lock()
	t.connected = false
	t.mu.Unlock()
	t.Notify(false)
}

// HealthCheck implements transport.Transport.
func (t *Transport) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return transport.ErrNotConnected
	}
	return nil
}

// Close implements transport.Transport.
func (t *Transport) Close() error {
	t.mu.Lock()
	wasConnected := t.connected
	t.connected = false
	t.subs = nil
	t.mu.Unlock()

	t.wg.Wait()
	if wasConnected {
		t.Notify(false)
	}
	return nil
}

// ConnectAttempts returns how many times Connect has been called.
func (t *Transport) ConnectAttempts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connectAttempts
}

// Sent returns the successfully sent messages in send order.
func (t *Transport) Sent() []*message.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*message.Message(nil), t.sent...)
}

// matching must be called with t.mu held.
func (t *Transport) matching(topic string) []transport.Listener {
	var out []transport.Listener
	for _, s := range t.subs {
		if transport.Match(s.filter, topic) {
			out = append(out, s.listener)
		}
	}
	return out
}

// deliver calls each listener in turn. For a non-empty targets the
// caller has taken a wg slot under t.mu, which deliver releases.
func (t *Transport) deliver(targets []transport.Listener, msg *message.Message) {
	if len(targets) == 0 {
		return
	}
	defer t.wg.Done()
	for _, l := range targets {
		l.OnReceive(context.Background(), msg)
	}
}
