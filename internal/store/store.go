package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felixbrucker/chia-canary/internal/detector"
	"github.com/felixbrucker/chia-canary/internal/logfile"
)

// Defaults for New.
const (
	DefaultMaxEvents = 200
	DefaultRetention = 24 * time.Hour
)

// Status is the current view of one watched log.
type Status struct {
	Log           string                    `json:"log"`
	Path          string                    `json:"path"`
	States        map[string]detector.State `json:"states"`
	Plots         int                       `json:"plots"`
	ScanDuration  float64                   `json:"scan_duration_seconds"`
	LastHeartbeat *detector.Heartbeat       `json:"last_heartbeat,omitempty"`
	Errors        int                       `json:"errors"`
	DriveErrors   int                       `json:"drive_errors"`
	Skipped       int                       `json:"skipped_signage_points"`
	Events        int                       `json:"events"`
	UpdatedAt     time.Time                 `json:"updated_at"`
}

// Degraded reports whether any detector of the log is degraded.
func (s Status) Degraded() bool {
	for _, st := range s.States {
		if st == detector.StateDegraded {
			return true
		}
	}
	return false
}

func (s Status) clone() Status {
	c := s
	c.States = make(map[string]detector.State, len(s.States))
	for k, v := range s.States {
		c.States[k] = v
	}
	if s.LastHeartbeat != nil {
		hb := *s.LastHeartbeat
		c.LastHeartbeat = &hb
	}
	return c
}

// Record is one stored event.
type Record struct {
	ID         string         `json:"id"`
	Log        string         `json:"log"`
	Kind       detector.Kind  `json:"kind"`
	Time       time.Time      `json:"time"`
	ReceivedAt time.Time      `json:"received_at"`
	Event      detector.Event `json:"event"`
}

// Store is a thread-safe in-memory view of every log and a bounded history
// of recent events. It is a sink: register it with each dispatcher.
type Store struct {
	mu        sync.RWMutex
	logs      map[string]*Status
	history   []Record // oldest first
	maxEvents int
	retention time.Duration
	listeners []func(Record)
	now       func() time.Time // injectable for deterministic tests
}

// New creates a Store keeping at most maxEvents events for at most retention.
func New(maxEvents int, retention time.Duration) *Store {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Store{
		logs:      make(map[string]*Status),
		maxEvents: maxEvents,
		retention: retention,
		now:       time.Now,
	}
}

// Subscribe registers fn to be called after every stored event. Listeners
// run synchronously on the delivering goroutine and must not block.
func (s *Store) Subscribe(fn func(Record)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Sync replaces the detector states of src, creating its entry if needed.
func (s *Store) Sync(src logfile.File, states map[string]detector.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.entry(src)
	for k, v := range states {
		st.States[k] = v
	}
}

func (s *Store) Name() string { return "store" }

// HandleEvent stores ev and updates the status of src.
func (s *Store) HandleEvent(src logfile.File, ev detector.Event) {
	now := s.now()
	rec := Record{
		ID:         uuid.NewString(),
		Log:        src.Name,
		Kind:       ev.Kind(),
		Time:       ev.At(),
		ReceivedAt: now,
		Event:      ev,
	}

	s.mu.Lock()
	st := s.entry(src)
	st.Events++
	st.UpdatedAt = now
	switch e := ev.(type) {
	case detector.ErrorEvent:
		st.Errors++
	case detector.RepeatedFailureEvent:
		st.DriveErrors++
	case detector.PlotCountEvent:
		st.Plots = e.To
		st.States[detector.NamePlotCount] = e.State
	case detector.ScanDurationEvent:
		st.ScanDuration = e.To
		st.States[detector.NameScanDuration] = e.State
	case detector.HeartbeatStateEvent:
		hb := e.Last
		st.LastHeartbeat = &hb
		st.States[detector.NameHeartbeat] = e.State
	case detector.HeartbeatSkippedEvent:
		hb := e.To
		st.LastHeartbeat = &hb
		st.Skipped += e.Skipped
	}
	s.history = append(s.history, rec)
	if over := len(s.history) - s.maxEvents; over > 0 {
		s.history = append(s.history[:0:0], s.history[over:]...)
	}
	listeners := s.listeners
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(rec)
	}
}

// entry returns the status of src. Caller holds mu.
func (s *Store) entry(src logfile.File) *Status {
	st, ok := s.logs[src.Name]
	if !ok {
		st = &Status{Log: src.Name, Path: src.Path, States: make(map[string]detector.State)}
		s.logs[src.Name] = st
	}
	return st
}

// Get returns a copy of the status of the named log.
func (s *Store) Get(name string) (Status, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.logs[name]
	if !ok {
		return Status{}, false
	}
	return st.clone(), true
}

// List returns copies of every status, sorted by log name.
func (s *Store) List() []Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Status, 0, len(s.logs))
	for _, st := range s.logs {
		out = append(out, st.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Log < out[j].Log })
	return out
}

// Count returns the number of tracked logs.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.logs)
}

// Events returns up to limit of the most recent events, newest first.
// A limit <= 0 returns all of them.
func (s *Store) Events(limit int) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.history)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Record, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.history[i])
	}
	return out
}

// Evict removes events received before now minus the retention.
// It returns the number of events removed.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-s.retention)
	i := 0
	for i < len(s.history) && !s.history[i].ReceivedAt.After(cutoff) {
		i++
	}
	if i > 0 {
		s.history = append(s.history[:0:0], s.history[i:]...)
	}
	return i
}

// Run starts the background eviction loop. It ticks at a tenth of the
// retention (minimum 1 second) and blocks until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	interval := s.retention / 10
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				slog.Debug("store: evicted old events", "count", n)
			}
		}
	}
}
