package mqtt

import (
	"errors"
	"fmt"

	"github.com/eclipse/paho.mqtt.golang/packets"

	"github.com/nerrad567/ego-bridge/internal/transport"
)

// Domain-specific errors for MQTT operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrInvalidQoS is returned when an invalid QoS level is configured.
	// Valid QoS levels are 0, 1, or 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrTimeout is returned when an operation times out.
	ErrTimeout = errors.New("mqtt: operation timed out")
)

// fatalRefusals are CONNACK refusals that a retry cannot fix.
var fatalRefusals = []error{
	packets.ErrorRefusedBadProtocolVersion,
	packets.ErrorRefusedIDRejected,
	packets.ErrorRefusedBadUsernameOrPassword,
	packets.ErrorRefusedNotAuthorised,
}

// classifyConnectError wraps err with transport.ErrConnectionFailed, and
// additionally with transport.ErrFatal for refusals in fatalRefusals.
func classifyConnectError(err error) error {
	for _, refusal := range fatalRefusals {
		if errors.Is(err, refusal) {
			return fmt.Errorf("%w: %w: %w", transport.ErrFatal, transport.ErrConnectionFailed, err)
		}
	}
	return fmt.Errorf("%w: %w", transport.ErrConnectionFailed, err)
}
