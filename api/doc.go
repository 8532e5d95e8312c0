// Package api describes the public HTTP surface of the FormFlow service.
//
// # API Overview
//
// FormFlow exposes a single business endpoint plus operational probes:
//   - POST /api/v1/forms/optimize  reorder a form's questions from past responses
//   - GET  /health, /healthz       liveness
//   - GET  /ready                  readiness, includes a provider health check
//   - GET  /version                build information
//
// Prometheus metrics are served on a separate port at /metrics.
//
// # Envelope
//
// Every JSON response uses the same envelope:
//
//	{"success": true, "data": {...}, "timestamp": "...", "request_id": "..."}
//	{"success": false, "error": {"code": "INVALID_REQUEST", "side": "request", ...}}
//
// Validation failures carry a side ("request" or "reply") so callers can tell
// their own mistakes apart from a misbehaving model.
//
// # Base URL
//
// The default base URL for the API is:
//
//	http://localhost:8080
package api
