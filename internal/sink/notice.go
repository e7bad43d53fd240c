// Package sink holds what the notification sinks share: the human readable
// notice for each event and a bounded asynchronous delivery queue.
package sink

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/felixbrucker/chia-canary/internal/detector"
)

// Severity classifies a notice. Sinks map it to colors or log levels.
type Severity int

const (
	SeverityOK Severity = iota
	SeverityWarning
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityOK:
		return "ok"
	case SeverityWarning:
		return "warning"
	default:
		return "critical"
	}
}

// TimeLayout formats absolute times in notices.
const TimeLayout = "2006-01-02 15:04:05"

// Notice is the rendered form of an event.
type Notice struct {
	Severity Severity
	Text     string
}

// Describe renders ev. It returns false for events that are not notified,
// such as a heartbeat state other than normal or degraded.
func Describe(ev detector.Event) (Notice, bool) {
	switch e := ev.(type) {
	case detector.ErrorEvent:
		return Notice{SeverityCritical, "Encountered an error log entry:\n\n" + e.Message}, true

	case detector.RepeatedFailureEvent:
		return Notice{SeverityCritical, fmt.Sprintf("Drive %s encountered multiple errors", e.Resource)}, true

	case detector.PlotCountEvent:
		suffix := fmt.Sprintf("from %d to %d", e.From, e.To)
		switch {
		case e.State == detector.StateNormal:
			return Notice{SeverityOK, "Plot count recovered " + suffix}, true
		case e.From > e.To:
			return Notice{SeverityCritical, "Plot count degraded " + suffix}, true
		default:
			return Notice{SeverityWarning, "Plot count increased " + suffix}, true
		}

	case detector.ScanDurationEvent:
		if e.State == detector.StateNormal {
			return Notice{SeverityOK, fmt.Sprintf("Plot scan duration recovered from %.3f sec to %.3f sec", e.From, e.To)}, true
		}
		return Notice{SeverityCritical, fmt.Sprintf("Plot scan duration degraded from %.3f sec to: %.3f sec", e.From, e.To)}, true

	case detector.HeartbeatStateEvent:
		switch e.State {
		case detector.StateNormal:
			return Notice{SeverityOK, "Signage points are being received normally again"}, true
		case detector.StateDegraded:
			return Notice{SeverityCritical, "No signage points received since " + e.Last.ReceivedAt.Format(TimeLayout)}, true
		}
		return Notice{}, false

	case detector.HeartbeatSkippedEvent:
		return Notice{SeverityCritical, fmt.Sprintf("Skipped %d signage points from %d to %d\n\nTook: %s",
			e.Skipped, e.From.Number, e.To.Number, Span(e.From.ReceivedAt, e.To.ReceivedAt))}, true
	}
	return Notice{}, false
}

// Span renders the distance between two times, e.g. "3 minutes".
func Span(from, to time.Time) string {
	return strings.TrimSpace(humanize.RelTime(from, to, "", ""))
}
