// Package metrics exposes detector events and states as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/felixbrucker/chia-canary/internal/detector"
	"github.com/felixbrucker/chia-canary/internal/logfile"
)

const namespace = "chia_canary"

// Metric names, shared with the status scraper.
const (
	EventsTotal   = namespace + "_events_total"
	DetectorState = namespace + "_detector_state"
	Plots         = namespace + "_plots"
	ScanDuration  = namespace + "_scan_duration_seconds"
	HeartbeatLast = namespace + "_heartbeat_last_number"
	SkippedTotal  = namespace + "_skipped_signage_points_total"
)

// Metrics is a sink that updates a private registry.
type Metrics struct {
	registry *prometheus.Registry

	events  *prometheus.CounterVec
	state   *prometheus.GaugeVec
	plots   *prometheus.GaugeVec
	scan    *prometheus.GaugeVec
	lastSP  *prometheus.GaugeVec
	skipped *prometheus.CounterVec
}

// New creates and registers all metrics, plus the Go runtime and process
// collectors.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.events = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_total",
		Help:      "Detector events by log and kind.",
	}, []string{"log", "kind"})

	m.state = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "detector_state",
		Help:      "Detector state: 0 normal, 1 degraded, 2 not running.",
	}, []string{"log", "detector"})

	m.plots = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "plots",
		Help:      "Total plot count from the last plot count event.",
	}, []string{"log"})

	m.scan = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "scan_duration_seconds",
		Help:      "Plot scan duration from the last scan duration event.",
	}, []string{"log"})

	m.lastSP = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "heartbeat_last_number",
		Help:      "Number of the last signage point seen in a signage point event.",
	}, []string{"log"})

	m.skipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "skipped_signage_points_total",
		Help:      "Signage points reported as skipped.",
	}, []string{"log"})

	m.registry.MustRegister(
		m.events, m.state, m.plots, m.scan, m.lastSP, m.skipped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Track seeds the state gauges of a log before its first event.
func (m *Metrics) Track(src logfile.File, states map[string]detector.State) {
	for name, s := range states {
		m.state.WithLabelValues(src.Name, name).Set(s.Level())
	}
	for _, k := range detector.Kinds {
		m.events.WithLabelValues(src.Name, string(k))
	}
}

func (m *Metrics) Name() string { return "metrics" }

// HandleEvent updates the metrics for ev.
func (m *Metrics) HandleEvent(src logfile.File, ev detector.Event) {
	log := src.Name
	m.events.WithLabelValues(log, string(ev.Kind())).Inc()

	switch e := ev.(type) {
	case detector.PlotCountEvent:
		m.plots.WithLabelValues(log).Set(float64(e.To))
		m.setState(log, ev.Kind(), e.State)
	case detector.ScanDurationEvent:
		m.scan.WithLabelValues(log).Set(e.To)
		m.setState(log, ev.Kind(), e.State)
	case detector.HeartbeatStateEvent:
		m.lastSP.WithLabelValues(log).Set(float64(e.Last.Number))
		m.setState(log, ev.Kind(), e.State)
	case detector.HeartbeatSkippedEvent:
		m.lastSP.WithLabelValues(log).Set(float64(e.To.Number))
		m.skipped.WithLabelValues(log).Add(float64(e.Skipped))
	}
}

func (m *Metrics) setState(log string, k detector.Kind, s detector.State) {
	m.state.WithLabelValues(log, k.Detector()).Set(s.Level())
}
