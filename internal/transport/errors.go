package transport

import "errors"

// Errors shared by all transports. Use errors.Is() to check for these errors in calling code.
var (
	// ErrFatal marks errors that retrying cannot fix: rejected credentials,
	// refused client identifiers, malformed broker addresses.
	ErrFatal = errors.New("transport: fatal")

	// ErrNotConnected is returned when attempting operations on a disconnected transport.
	ErrNotConnected = errors.New("transport: not connected")

	// ErrConnectionFailed is returned when a connection attempt fails.
	ErrConnectionFailed = errors.New("transport: connection failed")

	// ErrSendFailed is returned when a publish is not accepted.
	ErrSendFailed = errors.New("transport: send failed")

	// ErrSubscribeFailed is returned when a subscription is rejected.
	ErrSubscribeFailed = errors.New("transport: subscribe failed")

	// ErrInvalidFilter is returned for empty or malformed topic filters.
	ErrInvalidFilter = errors.New("transport: invalid topic filter")
)

// IsFatal reports whether err should stop a retry loop.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}
