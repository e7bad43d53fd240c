// Package health exposes chia-canary's log health over the standard gRPC
// health checking protocol (grpc.health.v1).
//
// Every watched log is a service named after the lowercased log name
// ("chia", "flax", ...). A log is NOT_SERVING while any of its detectors is
// degraded. The empty service name reports the machine as a whole and is
// NOT_SERVING when any log is.
//
// UnaryAPIKey and StreamAPIKey enforce an API key read from gRPC metadata.
// When mode != "apikey" or key == "", all calls pass through.
package health
