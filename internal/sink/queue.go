package sink

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultQueueSize is the capacity used when NewQueue is given size <= 0.
const DefaultQueueSize = 64

// DefaultSendTimeout bounds one delivery attempt.
const DefaultSendTimeout = 10 * time.Second

// Job is one delivery. It must honor ctx.
type Job func(ctx context.Context) error

// Queue delivers jobs on a single goroutine so that a slow remote never
// blocks the detectors. Enqueue is non-blocking; when the buffer is full the
// oldest job is evicted.
type Queue struct {
	name    string
	timeout time.Duration

	mu     sync.RWMutex
	jobs   chan Job
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewQueue starts a queue. name labels log lines.
func NewQueue(name string, size int, timeout time.Duration) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		name:    name,
		timeout: timeout,
		jobs:    make(chan Job, size),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go q.run()
	return q
}

// Enqueue schedules j. It returns false once the queue is closed.
func (q *Queue) Enqueue(j Job) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return false
	}
	for {
		select {
		case q.jobs <- j:
			return true
		default:
		}
		select {
		case <-q.jobs:
			q.dropped.Add(1)
			slog.Warn("sink: queue full, evicted oldest notification",
				"sink", q.name, "queue_cap", cap(q.jobs))
		default:
		}
	}
}

// Dropped returns how many jobs were evicted.
func (q *Queue) Dropped() uint64 { return q.dropped.Load() }

// Failed returns how many jobs returned an error.
func (q *Queue) Failed() uint64 { return q.failed.Load() }

// Close stops accepting jobs and waits for the pending ones. When ctx ends
// first the in-flight delivery is cancelled and the rest are skipped.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	select {
	case <-q.done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-q.done
		return ctx.Err()
	}
}

func (q *Queue) run() {
	defer close(q.done)
	for j := range q.jobs {
		if q.ctx.Err() != nil {
			q.dropped.Add(1)
			continue
		}
		ctx, cancel := context.WithTimeout(q.ctx, q.timeout)
		err := j(ctx)
		cancel()
		if err != nil {
			q.failed.Add(1)
			slog.Error("sink: delivery failed", "sink", q.name, "err", err)
		}
	}
}
