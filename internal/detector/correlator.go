package detector

import (
	"time"

	"github.com/felixbrucker/chia-canary/internal/logline"
)

// RepeatedFailureCorrelator groups plot file errors by the directory that
// holds the plot and fires once per directory when the count inside the
// renewing window reaches the threshold.
type RepeatedFailureCorrelator struct {
	threshold int
	counter   *KeyedWindowCounter
	handlers  []func(RepeatedFailureEvent)
	hits      int
}

// NewRepeatedFailureCorrelator returns a correlator that fires at threshold
// hits, where each hit keeps a key alive for window.
func NewRepeatedFailureCorrelator(threshold int, window time.Duration, now func() time.Time) *RepeatedFailureCorrelator {
	return &RepeatedFailureCorrelator{
		threshold: threshold,
		counter:   NewKeyedWindowCounter(window, now),
	}
}

// OnRepeatedFailure registers fn.
func (c *RepeatedFailureCorrelator) OnRepeatedFailure(fn func(RepeatedFailureEvent)) {
	c.handlers = append(c.handlers, fn)
}

// Count returns the live count for a directory.
func (c *RepeatedFailureCorrelator) Count(dir string) int {
	return c.counter.Get(dir)
}

// Observe counts rec if it is a plot file error.
func (c *RepeatedFailureCorrelator) Observe(rec logline.Record) {
	if rec.Level != logline.LevelError {
		return
	}
	dir, _, ok := logline.PlotFileError(rec.Message)
	if !ok {
		return
	}
	n := c.counter.Incr(dir)
	if c.hits++; c.hits%256 == 0 {
		c.counter.Evict(c.counter.now())
	}
	if n != c.threshold {
		return
	}
	ev := RepeatedFailureEvent{Time: rec.Time, Resource: dir, Count: n}
	for _, fn := range c.handlers {
		fn(ev)
	}
}
