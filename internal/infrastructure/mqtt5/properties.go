package mqtt5

import (
	"math"
	"strconv"
	"time"

	"github.com/eclipse/paho.golang/paho"
	"github.com/google/uuid"

	"github.com/nerrad567/ego-bridge/internal/message"
)

// User property keys.
const (
	propID    = "id"
	propTTLMs = "ttl-ms"
)

// Payload Format Indicator values.
const (
	payloadBytes byte = 0
	payloadUTF8  byte = 1
)

// publishProperties maps message attributes onto MQTT 5 publish properties.
func publishProperties(msg *message.Message) *paho.PublishProperties {
	props := &paho.PublishProperties{
		User: paho.UserProperties{{Key: propID, Value: msg.ID().String()}},
	}

	if ttl := msg.TTL(); ttl > 0 {
		expiry := expirySeconds(ttl)
		props.MessageExpiry = &expiry
		props.User = append(props.User, paho.UserProperty{
			Key:   propTTLMs,
			Value: strconv.FormatInt(ttl.Milliseconds(), 10),
		})
	}

	if f := msg.Format(); f != message.FormatUnspecified {
		indicator := payloadBytes
		if f == message.FormatText || f == message.FormatJSON {
			indicator = payloadUTF8
		}
		props.PayloadFormat = &indicator
		props.ContentType = f.ContentType()
	}

	return props
}

// expirySeconds rounds ttl up to whole seconds, the broker's granularity.
func expirySeconds(ttl time.Duration) uint32 {
	secs := (ttl + time.Second - 1) / time.Second
	return uint32(secs) // #nosec G115 -- message TTL is bounded to uint32 milliseconds
}

// toMessage rebuilds an inbound publish. An empty payload is treated as absent.
func toMessage(p *paho.Publish) (*message.Message, error) {
	b := message.Publish(p.Topic)
	format := message.FormatUnspecified

	if props := p.Properties; props != nil {
		if id, err := uuid.Parse(userProperty(props.User, propID)); err == nil {
			b.WithID(id)
		}
		if ttl, ok := inboundTTL(props); ok {
			b.WithTTL(ttl)
		}
		format = message.ParseContentType(props.ContentType)
		if format == message.FormatUnspecified && props.PayloadFormat != nil && *props.PayloadFormat == payloadUTF8 {
			format = message.FormatText
		}
	}

	if len(p.Payload) == 0 {
		return b.Build()
	}
	return b.BuildWithPayload(p.Payload, format)
}

// inboundTTL prefers the millisecond user property over the coarser
// Message Expiry Interval.
func inboundTTL(props *paho.PublishProperties) (time.Duration, bool) {
	if v := userProperty(props.User, propTTLMs); v != "" {
		if ms, err := strconv.ParseUint(v, 10, 32); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond, true
		}
	}
	if props.MessageExpiry != nil && *props.MessageExpiry > 0 && *props.MessageExpiry <= math.MaxUint32/1000 {
		return time.Duration(*props.MessageExpiry) * time.Second, true
	}
	return 0, false
}

func userProperty(props paho.UserProperties, key string) string {
	for _, p := range props {
		if p.Key == key {
			return p.Value
		}
	}
	return ""
}
