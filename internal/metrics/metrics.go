// Package metrics exposes bridge activity as Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "egobridge"

// Metrics holds the bridge's Prometheus collectors. It implements
// heartbeat.Recorder, engage.Recorder and retry.Observer.
type Metrics struct {
	connectFailures   prometheus.Counter
	heartbeats        *prometheus.CounterVec
	heartbeatLatency  prometheus.Histogram
	engageUpdates     *prometheus.CounterVec
	transportUp       prometheus.Gauge
	lastHeartbeatTime prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connectFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_failures_total",
			Help:      "Failed broker connection attempts.",
		}),
		heartbeats: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heartbeats_total",
			Help:      "Heartbeat send attempts by result.",
		}, []string{"destination", "result"}),
		heartbeatLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "heartbeat_send_seconds",
			Help:      "Time taken by the transport to accept a heartbeat.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		engageUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engage_updates_total",
			Help:      "Engage status updates by payload validity.",
		}, []string{"valid"}),
		transportUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "transport_up",
			Help:      "1 when the broker session is connected.",
		}),
		lastHeartbeatTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_heartbeat_timestamp_seconds",
			Help:      "Unix time of the last successful heartbeat.",
		}),
	}

	reg.MustRegister(
		m.connectFailures,
		m.heartbeats,
		m.heartbeatLatency,
		m.engageUpdates,
		m.transportUp,
		m.lastHeartbeatTime,
	)
	return m
}

// ConnectAttemptFailed implements retry.Observer.
func (m *Metrics) ConnectAttemptFailed(_ int, _ error, _ time.Duration) {
	m.connectFailures.Inc()
}

// SetConnected records the transport state.
func (m *Metrics) SetConnected(up bool) {
	if up {
		m.transportUp.Set(1)
		return
	}
	m.transportUp.Set(0)
}

// RecordHeartbeat implements heartbeat.Recorder.
func (m *Metrics) RecordHeartbeat(destination string, latency time.Duration, err error) {
	if err != nil {
		m.heartbeats.WithLabelValues(destination, "error").Inc()
		return
	}
	m.heartbeats.WithLabelValues(destination, "ok").Inc()
	m.heartbeatLatency.Observe(latency.Seconds())
	m.lastHeartbeatTime.SetToCurrentTime()
}

// RecordEngage implements engage.Recorder.
func (m *Metrics) RecordEngage(_ string, valid bool) {
	if valid {
		m.engageUpdates.WithLabelValues("true").Inc()
		return
	}
	m.engageUpdates.WithLabelValues("false").Inc()
}
