// Package logsink writes detector events to slog, one logger per detector
// named "<Chain> | <Detector>".
package logsink

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/felixbrucker/chia-canary/internal/detector"
	"github.com/felixbrucker/chia-canary/internal/logfile"
	"github.com/felixbrucker/chia-canary/internal/sink"
)

// Sink logs events for one chain.
type Sink struct {
	plots  *slog.Logger
	scans  *slog.Logger
	errs   *slog.Logger
	drives *slog.Logger
	sps    *slog.Logger

	now func() time.Time
}

// New returns a sink for chain logging through base. A nil base uses
// slog.Default().
func New(chain string, base *slog.Logger) *Sink {
	if base == nil {
		base = slog.Default()
	}
	named := func(detector string) *slog.Logger {
		return base.With("logger", chain+" | "+detector)
	}
	return &Sink{
		plots:  named("Total Plots"),
		scans:  named("Plot scan duration"),
		errs:   named("Error Log"),
		drives: named("Drive error"),
		sps:    named("Signage Points"),
		now:    time.Now,
	}
}

func (s *Sink) Name() string { return "log" }

func (s *Sink) HandleError(_ logfile.File, ev detector.ErrorEvent) {
	s.errs.Error("❌ Found error log entry: "+ev.Message, "module", ev.Module)
}

func (s *Sink) HandleRepeatedFailure(_ logfile.File, ev detector.RepeatedFailureEvent) {
	s.drives.Error(fmt.Sprintf("❌ Drive %s encountered multiple errors.", ev.Resource), "count", ev.Count)
}

func (s *Sink) HandlePlotCount(_ logfile.File, ev detector.PlotCountEvent) {
	switch {
	case ev.State == detector.StateNormal:
		s.plots.Info(fmt.Sprintf("✔ Recovered from %d plots to %d plots.", ev.From, ev.To))
	case ev.From > ev.To:
		s.plots.Error(fmt.Sprintf("❌ Degraded from %d plots to %d plots.", ev.From, ev.To))
	default:
		s.plots.Info(fmt.Sprintf("❌ Increased from %d plots to %d plots.", ev.From, ev.To))
	}
}

func (s *Sink) HandleScanDuration(_ logfile.File, ev detector.ScanDurationEvent) {
	if ev.State == detector.StateNormal {
		s.scans.Info(fmt.Sprintf("✔ Recovered from %.3f sec to %.3f sec.", ev.From, ev.To))
		return
	}
	s.scans.Error(fmt.Sprintf("❌ Degraded from %.3f sec to %.3f sec.", ev.From, ev.To))
}

func (s *Sink) HandleHeartbeatState(_ logfile.File, ev detector.HeartbeatStateEvent) {
	switch ev.State {
	case detector.StateNormal:
		s.sps.Info("✔ Signage points are being received normally again.")
	case detector.StateDegraded:
		age := humanize.RelTime(ev.Last.ReceivedAt, s.now(), "ago", "from now")
		s.sps.Error(fmt.Sprintf("❌ No signage point received since %s.", age),
			"last", ev.Last.Number)
	}
}

func (s *Sink) HandleHeartbeatSkipped(_ logfile.File, ev detector.HeartbeatSkippedEvent) {
	s.sps.Error(fmt.Sprintf("❌ Skipped %d signage points from %d to %d. Took %s.",
		ev.Skipped, ev.From.Number, ev.To.Number, sink.Span(ev.From.ReceivedAt, ev.To.ReceivedAt)))
}
