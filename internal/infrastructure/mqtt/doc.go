// Package mqtt provides an MQTT 3.1.1 transport for the ego bridge.
//
// This package manages:
//   - A single connection attempt per Connect call (retries belong to the caller)
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support, restored after reconnects
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Wire Format
//
// MQTT 3.1.1 has no message properties. Only the topic and the payload
// travel; TTL, format and message ID are dropped on send, and inbound
// messages are rebuilt with format unspecified. Use the mqtt5 transport
// when those attributes matter.
//
// # Security Considerations
//
//   - TLS should be enabled for anything but a local broker (cfg.Broker.TLS=true)
//   - Rejected credentials are reported as fatal so the connector stops retrying
//
// # Usage
//
//	t := mqtt.New(cfg.MQTT, logger)
//	if err := t.Connect(ctx); err != nil {
//	    return err
//	}
//	defer t.Close()
//
//	err := t.Subscribe(ctx, "adas/cruise_control/engage", listener)
package mqtt
