package heartbeat

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/ego-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/ego-bridge/internal/message"
	"github.com/nerrad567/ego-bridge/internal/transport/memory"
)

const testDestination = "vehicle/adas-actor/event_created"

func connectedMemory(t *testing.T) *memory.Transport {
	t.Helper()
	tr := memory.New()
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	return tr
}

// stepClock returns start, start+step, start+2*step, ...
type stepClock struct {
	mu   sync.Mutex
	next time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.next
	c.next = c.next.Add(c.step)
	return t
}

type countingSender struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *countingSender) Send(context.Context, *message.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.err
}

func (s *countingSender) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// slowSender records when each send starts and returns. Only the first
// send is slow.
type slowSender struct {
	mu     sync.Mutex
	delay  time.Duration
	starts []time.Time
	ends   []time.Time
}

func (s *slowSender) Send(context.Context, *message.Message) error {
	start := time.Now()
	s.mu.Lock()
	first := len(s.starts) == 0
	s.starts = append(s.starts, start)
	s.mu.Unlock()

	if first {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	s.ends = append(s.ends, time.Now())
	s.mu.Unlock()
	return nil
}

type recordingRecorder struct {
	mu   sync.Mutex
	errs []error
}

func (r *recordingRecorder) RecordHeartbeat(_ string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

// =============================================================================
// Single publish
// =============================================================================

func TestPublishOnce_MessageShape(t *testing.T) {
	tr := connectedMemory(t)
	now := time.Unix(1_700_000_000, 500_000_000)

	p := NewPublisher(Config{
		Destination: testDestination,
		TTL:         1000 * time.Millisecond,
		Sender:      tr,
		Now:         func() time.Time { return now },
	}, logging.Discard())

	if err := p.PublishOnce(context.Background()); err != nil {
		t.Fatalf("PublishOnce() error = %v", err)
	}

	sent := tr.Sent()
	if len(sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sent))
	}
	msg := sent[0]
	if msg.Destination() != testDestination {
		t.Errorf("Destination() = %q, want %q", msg.Destination(), testDestination)
	}
	if string(msg.Payload()) != "1700000000" {
		t.Errorf("Payload() = %q, want %q", msg.Payload(), "1700000000")
	}
	if msg.Format() != message.FormatText {
		t.Errorf("Format() = %v, want text", msg.Format())
	}
	if msg.TTL() != time.Second {
		t.Errorf("TTL() = %v, want 1s", msg.TTL())
	}
	if !msg.CreatedAt().Equal(now) {
		t.Errorf("CreatedAt() = %v, want %v", msg.CreatedAt(), now)
	}
}

func TestPublishOnce_SendFailure(t *testing.T) {
	sender := &countingSender{err: errors.New("broker unavailable")}
	rec := &recordingRecorder{}

	p := NewPublisher(Config{Destination: testDestination, Sender: sender}, logging.Discard())
	p.AddRecorder(rec)

	if err := p.PublishOnce(context.Background()); err == nil {
		t.Fatal("PublishOnce() error = nil, want send failure")
	}
	if len(rec.errs) != 1 || rec.errs[0] == nil {
		t.Errorf("recorder errs = %v, want one failure", rec.errs)
	}
}

func TestPublishOnce_BuildFailureSkipsSend(t *testing.T) {
	sender := &countingSender{}

	p := NewPublisher(Config{Destination: "bad/+/topic", Sender: sender}, logging.Discard())

	err := p.PublishOnce(context.Background())
	if !errors.Is(err, message.ErrInvalidDestination) {
		t.Fatalf("PublishOnce() error = %v, want ErrInvalidDestination", err)
	}
	if sender.Calls() != 0 {
		t.Errorf("sender called %d times, want 0", sender.Calls())
	}
}

func TestNewPublisher_Defaults(t *testing.T) {
	p := NewPublisher(Config{Destination: testDestination}, logging.Discard())

	if p.interval != DefaultInterval {
		t.Errorf("interval = %v, want %v", p.interval, DefaultInterval)
	}
	if p.ttl != DefaultTTL {
		t.Errorf("ttl = %v, want %v", p.ttl, DefaultTTL)
	}
}

// =============================================================================
// Loop
// =============================================================================

func TestRun_FailuresDoNotStopLoop(t *testing.T) {
	const (
		interval = 20 * time.Millisecond
		runFor   = 210 * time.Millisecond
	)

	sender := &countingSender{err: errors.New("send failed")}
	p := NewPublisher(Config{
		Destination: testDestination,
		Interval:    interval,
		Sender:      sender,
	}, logging.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), runFor)
	defer cancel()
	p.Run(ctx)

	// floor(210/20) = 10, allow scheduler slack either way.
	if got := sender.Calls(); got < 7 || got > 11 {
		t.Errorf("send attempts = %d, want about 10", got)
	}
}

func TestRun_WaitsFullIntervalAfterSlowSend(t *testing.T) {
	const interval = 100 * time.Millisecond

	sender := &slowSender{delay: 150 * time.Millisecond}
	p := NewPublisher(Config{
		Destination: testDestination,
		Interval:    interval,
		Sender:      sender,
	}, logging.Discard())

	// First send at ~100ms ends at ~250ms; the second starts at ~350ms.
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	p.Run(ctx)

	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.starts) < 2 {
		t.Fatalf("sends = %d, want at least 2", len(sender.starts))
	}
	if gap := sender.starts[1].Sub(sender.ends[0]); gap < interval {
		t.Errorf("gap after slow send = %v, want >= %v", gap, interval)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	p := NewPublisher(Config{
		Destination: testDestination,
		Interval:    time.Hour,
		Sender:      &countingSender{},
	}, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestRun_ThreeAndAHalfSeconds(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping timing test in short mode")
	}

	tr := connectedMemory(t)
	clock := &stepClock{next: time.Unix(1_700_000_000, 0), step: time.Second}

	p := NewPublisher(Config{
		Destination: testDestination,
		Interval:    time.Second,
		TTL:         1000 * time.Millisecond,
		Sender:      tr,
		Now:         clock.Now,
	}, logging.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), 3500*time.Millisecond)
	defer cancel()
	p.Run(ctx)

	sent := tr.Sent()
	if len(sent) != 3 {
		t.Fatalf("sent %d messages, want 3", len(sent))
	}

	var last int64
	for i, msg := range sent {
		if msg.Destination() != testDestination {
			t.Errorf("message %d destination = %q", i, msg.Destination())
		}
		if msg.TTL() != 1000*time.Millisecond {
			t.Errorf("message %d TTL = %v, want 1000ms", i, msg.TTL())
		}
		secs, err := strconv.ParseInt(string(msg.Payload()), 10, 64)
		if err != nil {
			t.Fatalf("message %d payload %q not an integer: %v", i, msg.Payload(), err)
		}
		if i > 0 && secs <= last {
			t.Errorf("message %d payload %d not greater than %d", i, secs, last)
		}
		last = secs
	}
}
