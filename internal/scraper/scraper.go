package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/felixbrucker/chia-canary/internal/detector"
	"github.com/felixbrucker/chia-canary/internal/metrics"
)

const defaultScrapeTimeout = 10 * time.Second

// LogStatus is the scraped view of one watched log.
type LogStatus struct {
	Log    string
	States map[string]detector.State

	Plots         float64
	ScanDuration  float64
	HeartbeatLast float64
	Skipped       float64

	// Events holds the event totals keyed by kind.
	Events map[string]float64
}

// Degraded reports whether any detector of the log is degraded.
func (s LogStatus) Degraded() bool {
	for _, st := range s.States {
		if st == detector.StateDegraded {
			return true
		}
	}
	return false
}

// TotalEvents sums the event counters of all kinds.
func (s LogStatus) TotalEvents() float64 {
	var total float64
	for _, v := range s.Events {
		total += v
	}
	return total
}

// Scraper fetches and decodes one metrics endpoint.
type Scraper struct {
	url    string
	client *http.Client
}

// New returns a Scraper for url. A zero timeout uses the default.
func New(url string, timeout time.Duration) *Scraper {
	if timeout <= 0 {
		timeout = defaultScrapeTimeout
	}
	return &Scraper{url: url, client: &http.Client{Timeout: timeout}}
}

// Scrape fetches the endpoint and returns every log it reports, sorted by
// name.
func (s *Scraper) Scrape(ctx context.Context) ([]LogStatus, error) {
	mfs, err := fetchMetrics(ctx, s.client, s.url)
	if err != nil {
		return nil, fmt.Errorf("scrape %s: %w", s.url, err)
	}
	return Decode(mfs), nil
}

// fetchMetrics performs an HTTP GET to url and returns parsed metric families.
func fetchMetrics(ctx context.Context, client *http.Client, url string) (map[string]*dto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return Parse(resp.Body)
}

// Parse decodes a Prometheus text exposition from r into metric families.
// A partial result with a parse warning is still returned successfully.
func Parse(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	return mfs, nil
}

// Decode groups the canary families by their log label.
func Decode(mfs map[string]*dto.MetricFamily) []LogStatus {
	byLog := make(map[string]*LogStatus)
	get := func(m *dto.Metric) *LogStatus {
		log := label(m, "log")
		st, ok := byLog[log]
		if !ok {
			st = &LogStatus{
				Log:    log,
				States: make(map[string]detector.State),
				Events: make(map[string]float64),
			}
			byLog[log] = st
		}
		return st
	}

	for _, m := range mfs[metrics.DetectorState].GetMetric() {
		get(m).States[label(m, "detector")] = stateOf(value(m))
	}
	for _, m := range mfs[metrics.EventsTotal].GetMetric() {
		get(m).Events[label(m, "kind")] = value(m)
	}
	for _, m := range mfs[metrics.Plots].GetMetric() {
		get(m).Plots = value(m)
	}
	for _, m := range mfs[metrics.ScanDuration].GetMetric() {
		get(m).ScanDuration = value(m)
	}
	for _, m := range mfs[metrics.HeartbeatLast].GetMetric() {
		get(m).HeartbeatLast = value(m)
	}
	for _, m := range mfs[metrics.SkippedTotal].GetMetric() {
		get(m).Skipped = value(m)
	}

	out := make([]LogStatus, 0, len(byLog))
	for _, st := range byLog {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Log < out[j].Log })
	return out
}

func label(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

// value reads a counter, gauge, or untyped sample.
func value(m *dto.Metric) float64 {
	switch {
	case m.Counter != nil:
		return m.Counter.GetValue()
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	case m.Untyped != nil:
		return m.Untyped.GetValue()
	}
	return 0
}

// stateOf inverts detector.State.Level.
func stateOf(v float64) detector.State {
	switch v {
	case 1:
		return detector.StateDegraded
	case 2:
		return detector.StateNotRunning
	default:
		return detector.StateNormal
	}
}
