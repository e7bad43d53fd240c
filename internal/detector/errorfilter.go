package detector

import (
	"strings"

	"github.com/felixbrucker/chia-canary/internal/logline"
)

// DefaultErrorDenylist holds substrings of ERROR messages that are routine
// for a farming node and never reported.
var DefaultErrorDenylist = []string{
	"Failed to fetch block",
	"Proof of space has required iters",
	"Partial not good enough",
	"Error using prover object",
	"File: ",
}

// ErrorFilter passes through ERROR records that match no denylist entry.
type ErrorFilter struct {
	denylist []string
	handlers []func(ErrorEvent)
}

// NewErrorFilter returns a filter using DefaultErrorDenylist plus extra.
func NewErrorFilter(extra []string) *ErrorFilter {
	f := &ErrorFilter{}
	f.SetDenylist(extra)
	return f
}

// SetDenylist replaces the user supplied part of the denylist.
func (f *ErrorFilter) SetDenylist(extra []string) {
	merged := make([]string, 0, len(DefaultErrorDenylist)+len(extra))
	merged = append(merged, DefaultErrorDenylist...)
	for _, s := range extra {
		if s != "" {
			merged = append(merged, s)
		}
	}
	f.denylist = merged
}

// OnError registers fn to receive every accepted error.
func (f *ErrorFilter) OnError(fn func(ErrorEvent)) {
	f.handlers = append(f.handlers, fn)
}

// Accepts reports whether rec would be emitted.
func (f *ErrorFilter) Accepts(rec logline.Record) bool {
	if rec.Level != logline.LevelError {
		return false
	}
	for _, s := range f.denylist {
		if strings.Contains(rec.Message, s) {
			return false
		}
	}
	return true
}

// Observe emits rec if it is accepted.
func (f *ErrorFilter) Observe(rec logline.Record) {
	if !f.Accepts(rec) {
		return
	}
	ev := ErrorEvent{Time: rec.Time, Module: rec.Module, Message: rec.Message}
	for _, fn := range f.handlers {
		fn(ev)
	}
}
