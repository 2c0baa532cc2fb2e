package api

import (
	"context"
	"net/http"
	"time"
)

// statusCheckTimeout bounds each health check.
const statusCheckTimeout = 2 * time.Second

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	Timestamp     string          `json:"timestamp"`
	Version       string          `json:"version"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Transport     TransportStatus `json:"transport"`
	Engage        EngageStatus    `json:"engage"`
	Telemetry     *BackendStatus  `json:"telemetry,omitempty"`
}

// BackendStatus is the health of an optional backend.
type BackendStatus struct {
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// TransportStatus describes the broker session.
type TransportStatus struct {
	Kind            string `json:"kind"`
	Healthy         bool   `json:"healthy"`
	Error           string `json:"error,omitempty"`
	ConnectAttempts int    `json:"connect_attempts"`
	ConnectWaitedMs int64  `json:"connect_waited_ms"`
}

// EngageStatus holds the most recent engage value, if any has arrived.
type EngageStatus struct {
	Received bool   `json:"received"`
	Value    string `json:"value,omitempty"`
}

// handleStatus reports the bridge state. It returns 503 when the
// transport health check fails so load balancers can act on it. A failing
// telemetry sink is reported but does not change the status code.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Transport:     TransportStatus{Kind: s.transportKind},
	}

	if s.engage != nil {
		resp.Engage.Value, resp.Engage.Received = s.engage.Load()
	}

	if s.connectStats != nil {
		stats := s.connectStats.Stats()
		resp.Transport.ConnectAttempts = stats.Attempts
		resp.Transport.ConnectWaitedMs = stats.Waited.Milliseconds()
	}

	status := http.StatusOK
	if s.transport != nil {
		ctx, cancel := context.WithTimeout(r.Context(), statusCheckTimeout)
		defer cancel()
		if err := s.transport.HealthCheck(ctx); err != nil {
			resp.Transport.Error = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			resp.Transport.Healthy = true
		}
	}

	if s.telemetry != nil {
		ctx, cancel := context.WithTimeout(r.Context(), statusCheckTimeout)
		defer cancel()
		resp.Telemetry = &BackendStatus{Healthy: true}
		if err := s.telemetry.HealthCheck(ctx); err != nil {
			resp.Telemetry = &BackendStatus{Error: err.Error()}
		}
	}

	writeJSON(w, status, resp)
}
