// Package heartbeat periodically publishes a liveness message.
//
// Every interval the Publisher builds a text message holding the current
// Unix time in seconds, attaches the configured TTL and sends it to the
// destination topic. A failed send is logged and the loop carries on;
// the next tick is the retry.
package heartbeat
