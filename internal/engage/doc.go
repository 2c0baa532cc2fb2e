// Package engage tracks the most recent cruise-control engage status
// received from the bus.
//
// The Listener is registered with the transport for the engage topic.
// Each inbound payload is decoded as UTF-8 text (invalid bytes are
// replaced by the InvalidUTF8 placeholder) and stored in a Cell, which
// other parts of the bridge read. The Cell keeps only the latest value.
package engage
