// Package tail follows a growing log file and emits each appended line.
//
// Follower watches the file's directory with fsnotify so that rotation
// (rename + re-create) and truncation are noticed, and polls on a ticker as
// a fallback for filesystems that do not deliver events.
package tail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultPollInterval is how often the file is checked without an event.
const DefaultPollInterval = time.Second

const readChunk = 32 * 1024

// Option configures a Follower.
type Option func(*Follower)

// FromStart makes the follower emit the existing content first. By default
// only lines appended after Run starts are emitted.
func FromStart() Option {
	return func(f *Follower) { f.fromStart = true }
}

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(f *Follower) {
		if d > 0 {
			f.poll = d
		}
	}
}

// WithBuffer sets the capacity of the Lines channel.
func WithBuffer(n int) Option {
	return func(f *Follower) {
		if n >= 0 {
			f.lines = make(chan string, n)
		}
	}
}

// Follower tails a single file.
type Follower struct {
	path      string
	poll      time.Duration
	fromStart bool
	lines     chan string

	file    *os.File
	info    os.FileInfo
	offset  int64
	pending []byte
}

// New returns a follower for path. Call Run to start it.
func New(path string, opts ...Option) *Follower {
	f := &Follower{
		path:  path,
		poll:  DefaultPollInterval,
		lines: make(chan string, 256),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Lines delivers complete lines without their line terminator. The channel
// is closed when Run returns.
func (f *Follower) Lines() <-chan string { return f.lines }

// Path returns the followed path.
func (f *Follower) Path() string { return f.path }

// Run follows the file until ctx is cancelled. A missing file is waited for.
func (f *Follower) Run(ctx context.Context) error {
	defer close(f.lines)
	defer f.closeFile()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("tail: new watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		return fmt.Errorf("tail: watch %s: %w", filepath.Dir(f.path), err)
	}

	if err := f.open(!f.fromStart); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if !f.read(ctx) {
		return nil
	}

	ticker := time.NewTicker(f.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(f.path) {
				continue
			}
			if !f.check(ctx) {
				return nil
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("tail: watcher error", "path", f.path, "err", err)

		case <-ticker.C:
			if !f.check(ctx) {
				return nil
			}
		}
	}
}

// check reconciles the open handle with what is on disk, then reads any new
// data. It returns false once ctx is done.
func (f *Follower) check(ctx context.Context) bool {
	cur, err := os.Stat(f.path)
	switch {
	case err != nil:
		// rotated away and not yet re-created; drain what the old handle has
		if f.file != nil {
			if !f.read(ctx) {
				return false
			}
			f.flushPending(ctx)
			f.closeFile()
			slog.Info("tail: file removed, waiting for it to reappear", "path", f.path)
		}
		return ctx.Err() == nil

	case f.file == nil:
		if err := f.open(false); err != nil {
			slog.Warn("tail: open failed", "path", f.path, "err", err)
			return ctx.Err() == nil
		}
		slog.Info("tail: file appeared", "path", f.path)

	case !os.SameFile(f.info, cur):
		if !f.read(ctx) {
			return false
		}
		f.flushPending(ctx)
		f.closeFile()
		if err := f.open(false); err != nil {
			slog.Warn("tail: reopen after rotation failed", "path", f.path, "err", err)
			return ctx.Err() == nil
		}
		slog.Info("tail: file rotated", "path", f.path)

	case cur.Size() < f.offset:
		slog.Info("tail: file truncated", "path", f.path, "size", cur.Size(), "offset", f.offset)
		if _, err := f.file.Seek(0, io.SeekStart); err != nil {
			slog.Warn("tail: seek failed", "path", f.path, "err", err)
			return ctx.Err() == nil
		}
		f.offset = 0
		f.pending = f.pending[:0]
	}
	return f.read(ctx)
}

func (f *Follower) open(atEnd bool) error {
	file, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("tail: open %s: %w", f.path, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("tail: stat %s: %w", f.path, err)
	}
	var off int64
	if atEnd {
		if off, err = file.Seek(0, io.SeekEnd); err != nil {
			file.Close()
			return fmt.Errorf("tail: seek %s: %w", f.path, err)
		}
	}
	f.file, f.info, f.offset = file, info, off
	f.pending = f.pending[:0]
	return nil
}

func (f *Follower) closeFile() {
	if f.file != nil {
		f.file.Close()
		f.file = nil
	}
}

// read consumes everything currently available and emits complete lines.
func (f *Follower) read(ctx context.Context) bool {
	if f.file == nil {
		return ctx.Err() == nil
	}
	buf := make([]byte, readChunk)
	for {
		n, err := f.file.Read(buf)
		if n > 0 {
			f.offset += int64(n)
			f.pending = append(f.pending, buf[:n]...)
			if !f.emitLines(ctx) {
				return false
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Warn("tail: read failed", "path", f.path, "err", err)
			}
			return ctx.Err() == nil
		}
	}
}

func (f *Follower) emitLines(ctx context.Context) bool {
	for {
		i := bytes.IndexByte(f.pending, '\n')
		if i < 0 {
			return true
		}
		line := string(bytes.TrimSuffix(f.pending[:i], []byte{'\r'}))
		f.pending = f.pending[i+1:]
		if !f.send(ctx, line) {
			return false
		}
	}
}

// flushPending emits a trailing line without newline from a file that is
// going away.
func (f *Follower) flushPending(ctx context.Context) {
	if len(f.pending) == 0 {
		return
	}
	line := string(f.pending)
	f.pending = f.pending[:0]
	f.send(ctx, line)
}

func (f *Follower) send(ctx context.Context, line string) bool {
	select {
	case f.lines <- line:
		return true
	case <-ctx.Done():
		return false
	}
}
