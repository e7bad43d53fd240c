// Package canary runs the detector pipeline for one log file: the tail
// follower feeds lines through logline.Parse into a dispatch.Dispatcher.
// A Set runs one Canary per discovered log and shuts them down together.
package canary

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/felixbrucker/chia-canary/internal/clock"
	"github.com/felixbrucker/chia-canary/internal/detector"
	"github.com/felixbrucker/chia-canary/internal/dispatch"
	"github.com/felixbrucker/chia-canary/internal/logfile"
	"github.com/felixbrucker/chia-canary/internal/logline"
	"github.com/felixbrucker/chia-canary/internal/tail"
)

// Option configures a Canary.
type Option func(*options)

type options struct {
	clock clock.Clock
	tail  []tail.Option
}

// WithClock sets the clock used by the detectors.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithTailOptions passes options to the underlying follower.
func WithTailOptions(opts ...tail.Option) Option {
	return func(o *options) { o.tail = append(o.tail, opts...) }
}

// Canary watches one log file.
type Canary struct {
	file       logfile.File
	follower   *tail.Follower
	dispatcher *dispatch.Dispatcher

	lines    atomic.Uint64
	records  atomic.Uint64
	shutdown sync.Once
}

// New builds a canary for file delivering events to sinks.
func New(file logfile.File, s detector.Settings, sinks []dispatch.Sink, opts ...Option) *Canary {
	o := options{clock: clock.Real{}}
	for _, opt := range opts {
		opt(&o)
	}
	return &Canary{
		file:       file,
		follower:   tail.New(file.Path, o.tail...),
		dispatcher: dispatch.New(file, s, o.clock, sinks...),
	}
}

// File returns the watched log file.
func (c *Canary) File() logfile.File { return c.file }

// Run tails the file until ctx is cancelled, then shuts the canary down.
func (c *Canary) Run(ctx context.Context) error {
	slog.Info("canary: watching log", "log", c.file.Name, "path", c.file.Path)

	errc := make(chan error, 1)
	go func() { errc <- c.follower.Run(ctx) }()

	for line := range c.follower.Lines() {
		c.lines.Add(1)
		rec, ok := logline.Parse(line)
		if !ok {
			continue
		}
		c.records.Add(1)
		c.dispatcher.Handle(rec)
	}

	c.Shutdown()
	return <-errc
}

// Handle feeds an already parsed record, bypassing the follower.
func (c *Canary) Handle(rec logline.Record) {
	c.records.Add(1)
	c.dispatcher.Handle(rec)
}

// Shutdown tears the detector set down. Safe to call repeatedly.
func (c *Canary) Shutdown() {
	c.shutdown.Do(func() {
		c.dispatcher.Close()
		slog.Info("canary: stopped", "log", c.file.Name,
			"lines", c.lines.Load(), "records", c.records.Load())
	})
}

// SetErrorDenylist updates the error filter of a running canary.
func (c *Canary) SetErrorDenylist(extra []string) {
	c.dispatcher.SetErrorDenylist(extra)
}

// States returns the current detector states.
func (c *Canary) States() map[string]detector.State {
	return c.dispatcher.States()
}

// Stats returns how many lines were read and how many parsed into records.
func (c *Canary) Stats() (lines, records uint64) {
	return c.lines.Load(), c.records.Load()
}

// Set is a group of canaries run together.
type Set struct {
	canaries []*Canary
}

// NewSet builds one canary per file. sinksFor returns the sinks for a file.
func NewSet(files []logfile.File, s detector.Settings, sinksFor func(logfile.File) []dispatch.Sink, opts ...Option) *Set {
	set := &Set{}
	for _, f := range files {
		set.canaries = append(set.canaries, New(f, s, sinksFor(f), opts...))
	}
	return set
}

// Canaries returns the members of the set.
func (s *Set) Canaries() []*Canary { return s.canaries }

// Run runs every canary until ctx is cancelled or one of them fails.
func (s *Set) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range s.canaries {
		c := c
		g.Go(func() error { return c.Run(gctx) })
	}
	err := g.Wait()
	s.Shutdown()
	return err
}

// Shutdown stops every canary.
func (s *Set) Shutdown() {
	for _, c := range s.canaries {
		c.Shutdown()
	}
}

// SetErrorDenylist updates every canary.
func (s *Set) SetErrorDenylist(extra []string) {
	for _, c := range s.canaries {
		c.SetErrorDenylist(extra)
	}
}
