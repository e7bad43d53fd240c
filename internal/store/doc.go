// Package store keeps the in-memory state served by the HTTP API, the
// WebSocket hub and the gRPC health service: one Status per watched log and
// a bounded, age-limited history of recent events.
package store
