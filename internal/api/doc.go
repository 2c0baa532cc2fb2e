// Package api implements the bridge's local HTTP surface.
//
// This package provides:
//   - GET /metrics: Prometheus exposition of the bridge collectors
//   - GET /api/v1/health: liveness, 200 while the process is serving
//   - GET /api/v1/status: latest engage value, transport health and connect stats
//   - Middleware stack (request ID, logging, recovery)
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
