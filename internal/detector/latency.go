package detector

import (
	"time"

	"github.com/felixbrucker/chia-canary/internal/logline"
)

// LatencyHysteresisTracker watches plot scan durations. The state turns
// degraded when every sample in the window is at or above the threshold and
// normal when every sample is below it; a mixed window keeps the state.
type LatencyHysteresisTracker struct {
	size      int
	threshold float64 // seconds
	window    []float64
	state     State
	handlers  []func(ScanDurationEvent)
}

// NewLatencyHysteresisTracker returns a tracker over size samples. The
// window starts as [0] so the initial state is normal.
func NewLatencyHysteresisTracker(size int, threshold time.Duration) *LatencyHysteresisTracker {
	return &LatencyHysteresisTracker{
		size:      size,
		threshold: threshold.Seconds(),
		window:    []float64{0},
		state:     StateNormal,
	}
}

// OnChange registers fn.
func (t *LatencyHysteresisTracker) OnChange(fn func(ScanDurationEvent)) {
	t.handlers = append(t.handlers, fn)
}

// State returns the current state.
func (t *LatencyHysteresisTracker) State() State { return t.state }

// Window returns a copy of the retained samples, oldest first.
func (t *LatencyHysteresisTracker) Window() []float64 {
	return append([]float64(nil), t.window...)
}

// Observe feeds an INFO record carrying a scan duration.
func (t *LatencyHysteresisTracker) Observe(rec logline.Record) {
	if rec.Level != logline.LevelInfo {
		return
	}
	d, ok := logline.ScanDuration(rec.Message)
	if !ok {
		return
	}
	t.Sample(rec.Time, d)
}

// Sample records one duration in seconds observed at ts.
func (t *LatencyHysteresisTracker) Sample(ts time.Time, d float64) {
	from := t.window[0]
	t.window = append(t.window, d)
	if len(t.window) > t.size {
		t.window = t.window[len(t.window)-t.size:]
	}

	next := t.evaluate()
	if next == t.state {
		return
	}
	t.state = next
	ev := ScanDurationEvent{Time: ts, State: next, From: from, To: t.window[0]}
	for _, fn := range t.handlers {
		fn(ev)
	}
}

func (t *LatencyHysteresisTracker) evaluate() State {
	above, below := 0, 0
	for _, d := range t.window {
		if d >= t.threshold {
			above++
		} else {
			below++
		}
	}
	switch len(t.window) {
	case above:
		return StateDegraded
	case below:
		return StateNormal
	}
	return t.state
}
