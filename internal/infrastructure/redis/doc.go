// Package redis provides a Redis pub/sub transport for the ego bridge.
//
// Destinations map one-to-one onto Redis channels. Messages travel as a
// JSON envelope carrying ID, payload, format, TTL and creation time, since
// Redis pub/sub has no per-message metadata. Redis also has no expiry for
// pub/sub messages, so receivers drop envelopes whose TTL has elapsed.
//
// MQTT-style filters are translated to PSUBSCRIBE glob patterns and every
// delivery is re-checked with transport.Match, because '*' in a glob also
// crosses '/' boundaries.
package redis
