// Package server provides the HTTP surface of loft.
//
//   - REST API under /api: subjects, labs, meals, favorites and weather
//   - Server-Sent Events under /api/events: projector states as they change
//   - GET /metrics: Prometheus exposition, when a metrics handler is set
//   - GET /debug/state: introspection of the App and of every live view
//
// The server supports graceful shutdown via context cancellation.
package server
