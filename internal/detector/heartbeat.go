package detector

import (
	"sync"
	"time"

	"github.com/felixbrucker/chia-canary/internal/clock"
	"github.com/felixbrucker/chia-canary/internal/logline"
)

type heartbeatRecord struct {
	hb    Heartbeat
	timer clock.Timer
}

// HeartbeatSequenceTracker follows the full node's signage points.
//
// The state is not_running until the first signage point, normal while the
// latest one is younger than the timeout and degraded afterwards. Each
// accepted signage point owns an expiry timer; when it fires and its record
// is still the latest, the tracker re-evaluates and reports the change.
//
// Record handling and timer callbacks are serialized by one mutex, and
// handlers run while it is held. Handlers must not call back into the
// tracker.
type HeartbeatSequenceTracker struct {
	clock      clock.Clock
	timeout    time.Duration
	staleAfter time.Duration
	maxHistory int

	mu       sync.Mutex
	history  []*heartbeatRecord // oldest first
	latest   *heartbeatRecord
	reported State
	closed   bool

	stateHandlers []func(HeartbeatStateEvent)
	skipHandlers  []func(HeartbeatSkippedEvent)
}

// NewHeartbeatSequenceTracker returns a tracker using clk for expiry timers.
func NewHeartbeatSequenceTracker(clk clock.Clock, timeout, staleAfter time.Duration, history int) *HeartbeatSequenceTracker {
	return &HeartbeatSequenceTracker{
		clock:      clk,
		timeout:    timeout,
		staleAfter: staleAfter,
		maxHistory: history,
		reported:   StateNotRunning,
	}
}

// OnChange registers fn for state changes.
func (t *HeartbeatSequenceTracker) OnChange(fn func(HeartbeatStateEvent)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stateHandlers = append(t.stateHandlers, fn)
}

// OnSkipped registers fn for sequence gaps.
func (t *HeartbeatSequenceTracker) OnSkipped(fn func(HeartbeatSkippedEvent)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.skipHandlers = append(t.skipHandlers, fn)
}

// State returns the current state computed at the clock's now.
func (t *HeartbeatSequenceTracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stateAt(t.clock.Now())
}

// Latest returns the most recent accepted heartbeat.
func (t *HeartbeatSequenceTracker) Latest() (Heartbeat, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.latest == nil {
		return Heartbeat{}, false
	}
	return t.latest.hb, true
}

// Observe feeds a record; anything but a signage point is ignored.
func (t *HeartbeatSequenceTracker) Observe(rec logline.Record) {
	sp, ok := logline.ExtractSignagePoint(rec)
	if !ok {
		return
	}
	t.Accept(Heartbeat{
		Number:        sp.Number,
		ReceivedAt:    rec.Time,
		PrimaryHash:   sp.CCHash,
		SecondaryHash: sp.RCHash,
	})
}

// Accept processes one heartbeat.
func (t *HeartbeatSequenceTracker) Accept(h Heartbeat) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}

	now := t.clock.Now()
	if h.ReceivedAt.Before(now.Add(-t.staleAfter)) {
		return
	}
	previous := t.stateAt(now)

	r := &heartbeatRecord{hb: h}
	t.schedule(r, h.ReceivedAt.Add(t.timeout).Sub(now))

	if t.latest == nil {
		t.adopt(r)
		return
	}

	last := t.latest
	if d := distance(last.hb.Number, h.Number); d >= 2 && !t.rolledBack(h) {
		ev := HeartbeatSkippedEvent{Time: h.ReceivedAt, From: last.hb, To: h, Skipped: d}
		for _, fn := range t.skipHandlers {
			fn(ev)
		}
	}

	last.timer.Stop()
	t.adopt(r)

	if cur := t.stateAt(now); cur != previous {
		t.reported = cur
		t.emitState(now, cur, h)
	}
}

// Close stops every pending expiry timer. Later records and timer callbacks
// are ignored. Close is idempotent.
func (t *HeartbeatSequenceTracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	for _, r := range t.history {
		if r.timer != nil {
			r.timer.Stop()
		}
	}
}

func (t *HeartbeatSequenceTracker) schedule(r *heartbeatRecord, d time.Duration) {
	if d < 0 {
		d = 0
	}
	r.timer = t.clock.AfterFunc(d, func() { t.expire(r) })
}

func (t *HeartbeatSequenceTracker) expire(r *heartbeatRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.latest != r {
		return
	}
	now := t.clock.Now()
	cur := t.stateAt(now)
	if cur == StateNormal {
		// fired early against the log's wall clock
		t.schedule(r, r.hb.ReceivedAt.Add(t.timeout).Sub(now))
		return
	}
	if cur == t.reported {
		return
	}
	t.reported = cur
	t.emitState(now, cur, r.hb)
}

func (t *HeartbeatSequenceTracker) adopt(r *heartbeatRecord) {
	t.history = append(t.history, r)
	if len(t.history) > t.maxHistory {
		t.history = t.history[len(t.history)-t.maxHistory:]
	}
	t.latest = r
}

func (t *HeartbeatSequenceTracker) emitState(now time.Time, s State, last Heartbeat) {
	ev := HeartbeatStateEvent{Time: now, State: s, Last: last}
	for _, fn := range t.stateHandlers {
		fn(ev)
	}
}

// rolledBack reports whether h replays a known sequence position (same
// number and primary hash) with a different secondary hash.
func (t *HeartbeatSequenceTracker) rolledBack(h Heartbeat) bool {
	for _, r := range t.history {
		if r.hb.Number == h.Number && r.hb.PrimaryHash == h.PrimaryHash && r.hb.SecondaryHash != h.SecondaryHash {
			return true
		}
	}
	return false
}

func (t *HeartbeatSequenceTracker) stateAt(now time.Time) State {
	if t.latest == nil {
		return StateNotRunning
	}
	if now.Sub(t.latest.hb.ReceivedAt) < t.timeout {
		return StateNormal
	}
	return StateDegraded
}

// distance is how far to lies ahead of from on the cyclic sequence.
func distance(from, to int) int {
	if to >= from {
		return to - from
	}
	return to + HeartbeatModulus - from
}
