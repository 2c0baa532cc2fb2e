package retry

import "errors"

// ErrAttemptsExhausted is returned when MaxAttempts connect attempts all failed.
// The last operation error is wrapped alongside it.
var ErrAttemptsExhausted = errors.New("retry: attempts exhausted")
