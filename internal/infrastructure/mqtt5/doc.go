// Package mqtt5 provides an MQTT 5 transport for the ego bridge, built on
// github.com/eclipse/paho.golang.
//
// Unlike MQTT 3.1.1, version 5 carries message properties, so the full
// message survives the trip:
//
//	TTL     -> Message Expiry Interval (seconds, rounded up) + "ttl-ms" user property
//	format  -> Payload Format Indicator + Content Type
//	ID      -> "id" user property
//
// Each Connect call dials a fresh network connection and performs one
// CONNECT/CONNACK exchange. The package does not reconnect on its own; a
// lost session shows up through HealthCheck and Send errors.
package mqtt5
