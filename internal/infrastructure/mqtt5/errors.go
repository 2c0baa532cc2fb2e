package mqtt5

import (
	"errors"
	"fmt"

	"github.com/eclipse/paho.golang/paho"

	"github.com/nerrad567/ego-bridge/internal/transport"
)

// Domain-specific errors for MQTT 5 operations.
var (
	// ErrRefused is returned when the broker answers CONNECT with a failure reason code.
	ErrRefused = errors.New("mqtt5: connection refused")

	// ErrInvalidQoS is returned when an invalid QoS level is configured.
	ErrInvalidQoS = errors.New("mqtt5: invalid QoS level (must be 0, 1, or 2)")
)

// CONNACK reason codes (MQTT 5.0 §3.2.2.2) that no retry can fix.
// 0x88 server unavailable and 0x89 server busy are transient.
var fatalReasonCodes = map[byte]string{
	0x84: "unsupported protocol version",
	0x85: "client identifier not valid",
	0x86: "bad user name or password",
	0x87: "not authorized",
	0x8A: "banned",
	0x8C: "bad authentication method",
}

// refusalError turns a failed CONNACK into an error, marking the codes in
// fatalReasonCodes with transport.ErrFatal.
func refusalError(ca *paho.Connack) error {
	reason := ""
	if ca.Properties != nil {
		reason = ca.Properties.ReasonString
	}
	if name, ok := fatalReasonCodes[ca.ReasonCode]; ok {
		return fmt.Errorf("%w: %w: reason code 0x%02X (%s) %s",
			transport.ErrFatal, ErrRefused, ca.ReasonCode, name, reason)
	}
	return fmt.Errorf("%w: reason code 0x%02X %s", ErrRefused, ca.ReasonCode, reason)
}
