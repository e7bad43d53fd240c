// Package api implements the HTTP REST API of chia-canary.
//
// New(store, machine) returns an http.Handler that serves:
//
//	GET /api/v1/health          overall state and per-state log counts
//	GET /api/v1/logs            every watched log ([]LogResponse)
//	GET /api/v1/logs/{name}     single log, case-insensitive; 404 if unknown
//	GET /api/v1/events?limit=N  recent detector events, newest first
//	GET /api/v1/snapshot        all logs, recent events and generated_at
//
// All endpoints respond with Content-Type: application/json and return 405
// for non-GET methods. Each log carries diagnostic hints derived from its
// detector states.
package api
