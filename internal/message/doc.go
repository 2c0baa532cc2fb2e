// Package message defines the immutable envelope exchanged with the broker.
//
// A Message carries a destination (an opaque topic string), an optional
// payload with a format tag, a time-to-live and a UUIDv7 identifier.
// Messages are built fresh for every send through the Builder and are
// never mutated afterwards:
//
//	msg, err := message.Publish("vehicle/adas-actor/event_created").
//	    WithTTL(time.Second).
//	    BuildWithPayload([]byte("1735689600"), message.FormatText)
//
// Transports map the attributes onto their wire format (MQTT 5
// properties, a JSON envelope for Redis, nothing at all for MQTT 3.1.1).
package message
