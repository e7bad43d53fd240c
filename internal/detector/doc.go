// Package detector holds the stateful detectors that turn a stream of
// logline.Records into health events.
//
// Detectors, one instance of each per monitored log file:
//   - ErrorFilter: ERROR records whose message matches no denylist entry.
//   - RepeatedFailureCorrelator: counts plot file errors per directory in a
//     renewing TTL window and fires once when the count reaches the threshold.
//   - LatencyHysteresisTracker: plot scan durations over a small window;
//     flips state only when every sample agrees.
//   - RegressionStackTracker: total plot count; stacks high-water marks on
//     regressions and pops them as the count climbs back.
//   - HeartbeatSequenceTracker: signage points; detects skips, rollbacks and
//     staleness via a per-heartbeat expiry timer.
//
// Every detector exposes Observe(logline.Record) and a typed On* registration
// for its events. Only HeartbeatSequenceTracker is safe for concurrent use,
// because its timers fire on their own goroutines; the others expect records
// one at a time from a single caller.
package detector
