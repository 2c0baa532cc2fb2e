package message

import "errors"

// Construction errors. Use errors.Is() to check for these errors in calling code.
var (
	// ErrInvalidDestination is returned for empty destinations or ones
	// containing MQTT wildcards or NUL bytes.
	ErrInvalidDestination = errors.New("message: invalid destination")

	// ErrInvalidTTL is returned for negative TTLs or TTLs that do not fit
	// in 32 bits of milliseconds.
	ErrInvalidTTL = errors.New("message: invalid ttl")

	// ErrPayloadTooLarge is returned when the payload exceeds MaxPayloadSize.
	ErrPayloadTooLarge = errors.New("message: payload too large")

	// ErrInvalidFormat is returned for unknown payload format tags.
	ErrInvalidFormat = errors.New("message: invalid payload format")
)
