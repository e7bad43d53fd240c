// Package ws implements the WebSocket stream of chia-canary.
//
// Hub keeps a set of connected clients. It pushes every detector event the
// store records as it happens and the full snapshot on a fixed interval.
//
// New(store, machine, interval) creates a Hub; Attach subscribes it to the
// store. Hub.Run(ctx) starts the snapshot ticker and blocks until ctx is
// cancelled, then closes all active connections. Hub.ServeHTTP upgrades an
// HTTP connection and sends the current snapshot immediately.
//
// Messages sent to clients:
//
//	{"event": "snapshot",       "data": { /* GET /api/v1/snapshot */ }}
//	{"event": "detector_event", "data": { /* one store.Record */ }}
//
// The upgrader accepts all origins. The endpoint is mounted at /ws/stream.
package ws
