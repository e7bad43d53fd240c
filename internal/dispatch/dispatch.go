// Package dispatch wires one detector set to the record stream of a single
// log file and fans the resulting events out to sinks.
//
// A sink declares what it handles by implementing capability interfaces:
// one per event kind (ErrorHandler, PlotCountHandler, ...) or the catch-all
// EventHandler. The dispatcher resolves a handler table keyed by
// detector.Kind once in New and routes every event by its tag afterwards.
package dispatch

import (
	"log/slog"
	"sync"

	"github.com/felixbrucker/chia-canary/internal/clock"
	"github.com/felixbrucker/chia-canary/internal/detector"
	"github.com/felixbrucker/chia-canary/internal/logfile"
	"github.com/felixbrucker/chia-canary/internal/logline"
)

// Sink is anything events can be delivered to.
type Sink interface {
	Name() string
}

// ErrorHandler receives detector.ErrorEvent.
type ErrorHandler interface {
	HandleError(src logfile.File, ev detector.ErrorEvent)
}

// RepeatedFailureHandler receives detector.RepeatedFailureEvent.
type RepeatedFailureHandler interface {
	HandleRepeatedFailure(src logfile.File, ev detector.RepeatedFailureEvent)
}

// ScanDurationHandler receives detector.ScanDurationEvent.
type ScanDurationHandler interface {
	HandleScanDuration(src logfile.File, ev detector.ScanDurationEvent)
}

// PlotCountHandler receives detector.PlotCountEvent.
type PlotCountHandler interface {
	HandlePlotCount(src logfile.File, ev detector.PlotCountEvent)
}

// HeartbeatStateHandler receives detector.HeartbeatStateEvent.
type HeartbeatStateHandler interface {
	HandleHeartbeatState(src logfile.File, ev detector.HeartbeatStateEvent)
}

// HeartbeatSkippedHandler receives detector.HeartbeatSkippedEvent.
type HeartbeatSkippedHandler interface {
	HandleHeartbeatSkipped(src logfile.File, ev detector.HeartbeatSkippedEvent)
}

// EventHandler receives every kind the sink has no specific handler for.
type EventHandler interface {
	HandleEvent(src logfile.File, ev detector.Event)
}

type deliverFunc func(src logfile.File, ev detector.Event)

// capabilities maps each kind to the lookup of its specific handler.
var capabilities = map[detector.Kind]func(Sink) (deliverFunc, bool){
	detector.KindLogError: func(s Sink) (deliverFunc, bool) {
		h, ok := s.(ErrorHandler)
		if !ok {
			return nil, false
		}
		return func(src logfile.File, ev detector.Event) { h.HandleError(src, ev.(detector.ErrorEvent)) }, true
	},
	detector.KindRepeatedFailure: func(s Sink) (deliverFunc, bool) {
		h, ok := s.(RepeatedFailureHandler)
		if !ok {
			return nil, false
		}
		return func(src logfile.File, ev detector.Event) {
			h.HandleRepeatedFailure(src, ev.(detector.RepeatedFailureEvent))
		}, true
	},
	detector.KindScanDuration: func(s Sink) (deliverFunc, bool) {
		h, ok := s.(ScanDurationHandler)
		if !ok {
			return nil, false
		}
		return func(src logfile.File, ev detector.Event) { h.HandleScanDuration(src, ev.(detector.ScanDurationEvent)) }, true
	},
	detector.KindPlotCount: func(s Sink) (deliverFunc, bool) {
		h, ok := s.(PlotCountHandler)
		if !ok {
			return nil, false
		}
		return func(src logfile.File, ev detector.Event) { h.HandlePlotCount(src, ev.(detector.PlotCountEvent)) }, true
	},
	detector.KindHeartbeatState: func(s Sink) (deliverFunc, bool) {
		h, ok := s.(HeartbeatStateHandler)
		if !ok {
			return nil, false
		}
		return func(src logfile.File, ev detector.Event) {
			h.HandleHeartbeatState(src, ev.(detector.HeartbeatStateEvent))
		}, true
	},
	detector.KindHeartbeatSkipped: func(s Sink) (deliverFunc, bool) {
		h, ok := s.(HeartbeatSkippedHandler)
		if !ok {
			return nil, false
		}
		return func(src logfile.File, ev detector.Event) {
			h.HandleHeartbeatSkipped(src, ev.(detector.HeartbeatSkippedEvent))
		}, true
	},
}

// Dispatcher owns one detector set. Records are handled one at a time, in
// order; events reach sinks in the order they were produced.
type Dispatcher struct {
	src logfile.File

	errors     *detector.ErrorFilter
	failures   *detector.RepeatedFailureCorrelator
	scans      *detector.LatencyHysteresisTracker
	plots      *detector.RegressionStackTracker
	heartbeats *detector.HeartbeatSequenceTracker

	// Lock order: recMu, then the heartbeat tracker's mutex, then deliverMu.
	recMu  sync.Mutex
	closed bool

	deliverMu sync.Mutex
	routes    map[detector.Kind][]deliverFunc
	stopped   bool
}

// New builds the detector set for src and resolves the routes to sinks.
// A nil clk uses clock.Real.
func New(src logfile.File, s detector.Settings, clk clock.Clock, sinks ...Sink) *Dispatcher {
	if clk == nil {
		clk = clock.Real{}
	}
	s = s.WithDefaults()

	d := &Dispatcher{
		src:        src,
		errors:     detector.NewErrorFilter(s.ErrorDenylist),
		failures:   detector.NewRepeatedFailureCorrelator(s.RepeatedFailureThreshold, s.RepeatedFailureWindow, clk.Now),
		scans:      detector.NewLatencyHysteresisTracker(s.ScanWindow, s.ScanThreshold),
		plots:      detector.NewRegressionStackTracker(),
		heartbeats: detector.NewHeartbeatSequenceTracker(clk, s.HeartbeatTimeout, s.HeartbeatStaleAfter, s.HeartbeatHistory),
		routes:     make(map[detector.Kind][]deliverFunc),
	}

	for _, kind := range detector.Kinds {
		for _, sink := range sinks {
			if fn, ok := capabilities[kind](sink); ok {
				d.routes[kind] = append(d.routes[kind], fn)
				continue
			}
			if h, ok := sink.(EventHandler); ok {
				d.routes[kind] = append(d.routes[kind], h.HandleEvent)
			}
		}
	}

	d.errors.OnError(func(ev detector.ErrorEvent) { d.deliver(ev) })
	d.failures.OnRepeatedFailure(func(ev detector.RepeatedFailureEvent) { d.deliver(ev) })
	d.scans.OnChange(func(ev detector.ScanDurationEvent) { d.deliver(ev) })
	d.plots.OnChange(func(ev detector.PlotCountEvent) { d.deliver(ev) })
	d.heartbeats.OnChange(func(ev detector.HeartbeatStateEvent) { d.deliver(ev) })
	d.heartbeats.OnSkipped(func(ev detector.HeartbeatSkippedEvent) { d.deliver(ev) })

	names := make([]string, 0, len(sinks))
	for _, sink := range sinks {
		names = append(names, sink.Name())
	}
	slog.Debug("dispatch: detector set ready", "log", src.Name, "sinks", names)
	return d
}

// Source returns the log file this dispatcher serves.
func (d *Dispatcher) Source() logfile.File { return d.src }

// Handle feeds rec to every detector. It is a no-op after Close.
func (d *Dispatcher) Handle(rec logline.Record) {
	d.recMu.Lock()
	defer d.recMu.Unlock()
	if d.closed {
		return
	}
	d.errors.Observe(rec)
	d.failures.Observe(rec)
	d.scans.Observe(rec)
	d.plots.Observe(rec)
	d.heartbeats.Observe(rec)
}

// SetErrorDenylist replaces the user part of the error denylist.
func (d *Dispatcher) SetErrorDenylist(extra []string) {
	d.recMu.Lock()
	defer d.recMu.Unlock()
	d.errors.SetDenylist(extra)
}

// States returns every detector's current state keyed by detector name.
// The error and drive error detectors are edge-triggered and carry no state.
func (d *Dispatcher) States() map[string]detector.State {
	d.recMu.Lock()
	defer d.recMu.Unlock()
	return map[string]detector.State{
		detector.NameScanDuration: d.scans.State(),
		detector.NamePlotCount:    d.plots.State(),
		detector.NameHeartbeat:    d.heartbeats.State(),
	}
}

// Close cancels pending heartbeat timers and stops delivery. It is safe to
// call more than once.
func (d *Dispatcher) Close() {
	d.recMu.Lock()
	if d.closed {
		d.recMu.Unlock()
		return
	}
	d.closed = true
	d.heartbeats.Close()
	d.recMu.Unlock()

	d.deliverMu.Lock()
	d.stopped = true
	d.deliverMu.Unlock()
	slog.Debug("dispatch: closed", "log", d.src.Name)
}

func (d *Dispatcher) deliver(ev detector.Event) {
	d.deliverMu.Lock()
	defer d.deliverMu.Unlock()
	if d.stopped {
		return
	}
	for _, fn := range d.routes[ev.Kind()] {
		fn(d.src, ev)
	}
}
