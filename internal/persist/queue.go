// Package persist runs store writes off the websocket read loop. Jobs that
// share a key run one at a time in submission order, so a job observes the
// effects of every earlier job for the same key. Jobs under different keys
// run independently and a slow write on one key never holds up another.
package persist

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/4xmen/peyvand/internal/metrics"
)

// Job performs one unit of persistence work.
type Job func(ctx context.Context) error

type task struct {
	name string
	fn   Job
}

// lane holds the jobs waiting under one key. A lane exists exactly while a
// goroutine is draining it.
type lane struct {
	pending []task
}

type Queue struct {
	timeout time.Duration
	backlog int
	logger  *zap.Logger

	mu      sync.Mutex
	lanes   map[string]*lane
	waiting int           // submitted jobs that have not finished
	idle    chan struct{} // closed while waiting is zero
	warned  bool
	closed  bool
}

// New returns an empty queue. timeout bounds each job. Submit never
// blocks; backlog is the number of unfinished jobs above which a warning
// is logged.
func New(backlog int, timeout time.Duration, logger *zap.Logger) *Queue {
	idle := make(chan struct{})
	close(idle)
	return &Queue{
		timeout: timeout,
		backlog: backlog,
		logger:  logger,
		lanes:   make(map[string]*lane),
		idle:    idle,
	}
}

// Submit schedules fn under key and returns immediately. Failures are
// logged. Jobs submitted after Close are dropped.
func (q *Queue) Submit(key, name string, fn Job) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		q.logger.Warn("persistence job dropped after shutdown", zap.String("job", name))
		metrics.PersistJobs.WithLabelValues(name, "dropped").Inc()
		return
	}

	if q.waiting == 0 {
		q.idle = make(chan struct{})
	}
	q.waiting++
	metrics.PersistQueueDepth.Inc()
	if q.backlog > 0 && q.waiting > q.backlog && !q.warned {
		q.warned = true
		q.logger.Warn("persistence backlog growing, store may be slow",
			zap.Int("jobs", q.waiting), zap.Int("backlog", q.backlog))
	}

	l, running := q.lanes[key]
	if !running {
		l = &lane{}
		q.lanes[key] = l
	}
	l.pending = append(l.pending, task{name: name, fn: fn})
	if !running {
		go q.drain(key, l)
	}
}

func (q *Queue) drain(key string, l *lane) {
	for {
		q.mu.Lock()
		if len(l.pending) == 0 {
			delete(q.lanes, key)
			q.mu.Unlock()
			return
		}
		t := l.pending[0]
		l.pending[0] = task{}
		l.pending = l.pending[1:]
		q.mu.Unlock()

		metrics.PersistQueueDepth.Dec()
		q.exec(t)
		q.finish()
	}
}

func (q *Queue) exec(t task) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return t.fn(ctx)
	}()

	result := "ok"
	if err != nil {
		result = "error"
		q.logger.Error("persistence job failed", zap.String("job", t.name), zap.Error(err))
	}
	metrics.PersistJobs.WithLabelValues(t.name, result).Inc()
}

func (q *Queue) finish() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.waiting--
	if q.waiting == 0 {
		q.warned = false
		close(q.idle)
	}
}

// Flush waits until every job submitted before the call has run, or ctx
// expires.
func (q *Queue) Flush(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting jobs and waits until the queued ones have run or
// ctx expires. It may be called more than once.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	return q.Flush(ctx)
}
