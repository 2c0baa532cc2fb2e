package redis

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/ego-bridge/internal/message"
)

// envelope is the wire form of a message on a Redis channel.
type envelope struct {
	ID          string    `json:"id"`
	Destination string    `json:"destination"`
	Payload     []byte    `json:"payload,omitempty"`
	HasPayload  bool      `json:"has_payload"`
	Format      string    `json:"format,omitempty"`
	TTLMillis   int64     `json:"ttl_ms,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func newEnvelope(msg *message.Message) envelope {
	env := envelope{
		ID:          msg.ID().String(),
		Destination: msg.Destination(),
		Payload:     msg.Payload(),
		HasPayload:  msg.HasPayload(),
		TTLMillis:   msg.TTL().Milliseconds(),
		CreatedAt:   msg.CreatedAt().UTC(),
	}
	if f := msg.Format(); f != message.FormatUnspecified {
		env.Format = f.ContentType()
	}
	return env
}

// MarshalBinary implements encoding.BinaryMarshaler so an envelope can be
// passed straight to Publish.
func (e envelope) MarshalBinary() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (e *envelope) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, e)
}

// toMessage rebuilds the message. The channel name wins over the
// envelope's destination field.
func (e envelope) toMessage(channel string) (*message.Message, error) {
	id, err := uuid.Parse(e.ID)
	if err != nil {
		return nil, fmt.Errorf("envelope id: %w", err)
	}

	b := message.Publish(channel).
		WithID(id).
		WithTTL(time.Duration(e.TTLMillis) * time.Millisecond).
		WithCreatedAt(e.CreatedAt)

	if !e.HasPayload {
		return b.Build()
	}
	return b.BuildWithPayload(e.Payload, message.ParseContentType(e.Format))
}
