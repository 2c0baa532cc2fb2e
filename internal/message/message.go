package message

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxPayloadSize bounds payloads to 1MB, in line with typical broker limits.
const MaxPayloadSize = 1 << 20

// maxTTL is the largest TTL expressible as uint32 milliseconds.
const maxTTL = time.Duration(math.MaxUint32) * time.Millisecond

// Message is an immutable broker message.
//
// Thread Safety: a Message is never modified after Build, so it may be
// shared freely between goroutines.
type Message struct {
	id          uuid.UUID
	destination string
	payload     []byte
	hasPayload  bool
	format      PayloadFormat
	ttl         time.Duration
	createdAt   time.Time
}

// ID returns the message identifier.
func (m *Message) ID() uuid.UUID { return m.id }

// Destination returns the topic the message is addressed to.
func (m *Message) Destination() string { return m.destination }

// HasPayload reports whether the message carries a payload at all.
// A present but zero-length payload still counts.
func (m *Message) HasPayload() bool { return m.hasPayload }

// Payload returns a copy of the payload bytes, or nil when there is none.
func (m *Message) Payload() []byte {
	if !m.hasPayload {
		return nil
	}
	return append([]byte{}, m.payload...)
}

// Format returns the payload format tag.
func (m *Message) Format() PayloadFormat { return m.format }

// TTL returns the time-to-live, or 0 when the message never expires.
func (m *Message) TTL() time.Duration { return m.ttl }

// CreatedAt returns when the message was built.
func (m *Message) CreatedAt() time.Time { return m.createdAt }

// Expired reports whether the TTL has elapsed at now.
func (m *Message) Expired(now time.Time) bool {
	if m.ttl <= 0 {
		return false
	}
	return now.After(m.createdAt.Add(m.ttl))
}

// Builder assembles a Message. The zero value is not usable; start with Publish.
type Builder struct {
	destination string
	id          uuid.UUID
	ttl         time.Duration
	createdAt   time.Time
}

// Publish starts a Builder for a message addressed to destination.
func Publish(destination string) *Builder {
	return &Builder{destination: destination}
}

// WithTTL sets the time-to-live. 0 means no expiry.
func (b *Builder) WithTTL(ttl time.Duration) *Builder {
	b.ttl = ttl
	return b
}

// WithID overrides the generated identifier. Used by transports when
// rebuilding inbound messages.
func (b *Builder) WithID(id uuid.UUID) *Builder {
	b.id = id
	return b
}

// WithCreatedAt overrides the creation time.
func (b *Builder) WithCreatedAt(t time.Time) *Builder {
	b.createdAt = t
	return b
}

// Build returns a message without a payload.
func (b *Builder) Build() (*Message, error) {
	return b.build(nil, false, FormatUnspecified)
}

// BuildWithPayload returns a message carrying payload tagged with format.
func (b *Builder) BuildWithPayload(payload []byte, format PayloadFormat) (*Message, error) {
	return b.build(payload, true, format)
}

func (b *Builder) build(payload []byte, hasPayload bool, format PayloadFormat) (*Message, error) {
	if err := validateDestination(b.destination); err != nil {
		return nil, err
	}
	if b.ttl < 0 || b.ttl > maxTTL {
		return nil, ErrInvalidTTL
	}
	if !format.Valid() {
		return nil, ErrInvalidFormat
	}
	if len(payload) > MaxPayloadSize {
		return nil, ErrPayloadTooLarge
	}

	id := b.id
	if id == uuid.Nil {
		var err error
		id, err = uuid.NewV7()
		if err != nil {
			return nil, err
		}
	}

	createdAt := b.createdAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	m := &Message{
		id:          id,
		destination: b.destination,
		hasPayload:  hasPayload,
		format:      format,
		ttl:         b.ttl,
		createdAt:   createdAt,
	}
	if hasPayload {
		m.payload = append([]byte{}, payload...)
	}
	return m, nil
}

func validateDestination(destination string) error {
	if destination == "" {
		return ErrInvalidDestination
	}
	if strings.ContainsAny(destination, "+#\x00") {
		return ErrInvalidDestination
	}
	return nil
}
