package detector

import (
	"time"

	"github.com/felixbrucker/chia-canary/internal/logline"
)

// RegressionStackTracker follows the total plot count. A drop pushes the
// previous count onto a stack of high-water marks and reports degraded; a
// rise pops every mark the new count has reached again. The stack is
// non-empty exactly while the state is degraded.
type RegressionStackTracker struct {
	previous int
	stack    []int
	handlers []func(PlotCountEvent)
}

// NewRegressionStackTracker returns a tracker whose previous value is 0.
func NewRegressionStackTracker() *RegressionStackTracker {
	return &RegressionStackTracker{}
}

// OnChange registers fn.
func (t *RegressionStackTracker) OnChange(fn func(PlotCountEvent)) {
	t.handlers = append(t.handlers, fn)
}

// State is degraded while any high-water mark is outstanding.
func (t *RegressionStackTracker) State() State {
	if len(t.stack) > 0 {
		return StateDegraded
	}
	return StateNormal
}

// Marks returns a copy of the outstanding high-water marks, bottom first.
func (t *RegressionStackTracker) Marks() []int {
	return append([]int(nil), t.stack...)
}

// Observe feeds an INFO record carrying a total plot count.
func (t *RegressionStackTracker) Observe(rec logline.Record) {
	if rec.Level != logline.LevelInfo {
		return
	}
	n, ok := logline.TotalPlots(rec.Message)
	if !ok {
		return
	}
	t.Count(rec.Time, n)
}

// Count records the plot count v observed at ts.
func (t *RegressionStackTracker) Count(ts time.Time, v int) {
	p := t.previous
	t.previous = v

	switch {
	case v < p:
		t.stack = append(t.stack, p)
	case len(t.stack) > 0 && v >= t.top():
		for len(t.stack) > 0 && v >= t.top() {
			t.stack = t.stack[:len(t.stack)-1]
		}
	default:
		return
	}

	ev := PlotCountEvent{Time: ts, State: t.State(), From: p, To: v}
	for _, fn := range t.handlers {
		fn(ev)
	}
}

func (t *RegressionStackTracker) top() int {
	return t.stack[len(t.stack)-1]
}
