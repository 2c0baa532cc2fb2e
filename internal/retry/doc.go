// Package retry establishes broker sessions with exponential backoff.
//
// The Connector wraps a single fallible connect operation and keeps
// calling it until it succeeds, the attempt budget runs out, the context
// is cancelled, or the operation reports an error the Fatal predicate
// classifies as unrecoverable.
//
// # Policy
//
//   - Delays start at InitialInterval and grow by Multiplier up to MaxInterval
//   - RandomizationFactor 0 (the default) keeps delays non-decreasing
//   - MaxAttempts 0 retries forever; there is no elapsed-time cap
//   - A nil Fatal predicate retries every error
//
// Every attempt and every failure is logged before the next attempt starts.
//
// # Usage
//
//	c := retry.NewConnector(retry.Config{
//	    InitialInterval: 500 * time.Millisecond,
//	    MaxInterval:     30 * time.Second,
//	    Multiplier:      2,
//	    Fatal:           transport.IsFatal,
//	}, logger)
//	if err := c.Connect(ctx, tr.Connect); err != nil {
//	    return fmt.Errorf("connecting to broker: %w", err)
//	}
package retry
