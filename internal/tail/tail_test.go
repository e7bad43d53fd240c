package tail

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func appendTo(t *testing.T, path, s string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(s)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func next(t *testing.T, f *Follower) string {
	t.Helper()
	select {
	case l, ok := <-f.Lines():
		require.True(t, ok, "lines channel closed")
		return l
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a line")
	}
	return ""
}

func start(t *testing.T, path string, opts ...Option) (*Follower, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	opts = append(opts, WithPollInterval(20*time.Millisecond))
	f := New(path, opts...)
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("Run did not return after cancel")
		}
	})
	// give the watcher a moment to register
	time.Sleep(50 * time.Millisecond)
	return f, cancel
}

func TestFollower_OnlyNewLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	appendTo(t, path, "old line\n")

	f, _ := start(t, path)
	appendTo(t, path, "first\nsecond\r\n")
	require.Equal(t, "first", next(t, f))
	require.Equal(t, "second", next(t, f))
}

func TestFollower_FromStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	appendTo(t, path, "old line\n")

	f, _ := start(t, path, FromStart())
	require.Equal(t, "old line", next(t, f))
}

func TestFollower_PartialLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	appendTo(t, path, "")

	f, _ := start(t, path)
	appendTo(t, path, "hello ")
	time.Sleep(60 * time.Millisecond)
	appendTo(t, path, "world\n")
	require.Equal(t, "hello world", next(t, f))
}

func TestFollower_Truncation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	appendTo(t, path, "some existing content that is fairly long\n")

	f, _ := start(t, path)
	require.NoError(t, os.WriteFile(path, []byte("after truncate\n"), 0o644))
	require.Equal(t, "after truncate", next(t, f))
}

func TestFollower_Rotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "debug.log")
	appendTo(t, path, "")

	f, _ := start(t, path)
	appendTo(t, path, "before rotation\n")
	require.Equal(t, "before rotation", next(t, f))

	require.NoError(t, os.Rename(path, filepath.Join(dir, "debug.log.1")))
	appendTo(t, path, "after rotation\n")
	require.Equal(t, "after rotation", next(t, f))
}

func TestFollower_WaitsForFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")

	f, _ := start(t, path)
	appendTo(t, path, "created later\n")
	require.Equal(t, "created later", next(t, f))
}

func TestFollower_ClosesLinesOnCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	appendTo(t, path, "")

	ctx, cancel := context.WithCancel(context.Background())
	f := New(path, WithPollInterval(10*time.Millisecond))
	go f.Run(ctx) //nolint:errcheck
	cancel()

	select {
	case _, ok := <-f.Lines():
		require.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("lines channel not closed")
	}
}
