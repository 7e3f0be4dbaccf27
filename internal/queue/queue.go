// Package queue serializes actions against a single executor.
//
// At most one action is in flight per Queue. Enqueue appends and starts a drain
// goroutine when none is running; the drain loop pops the head, waits for the
// executor to return, and repeats until the pending list is empty. Clear drops
// pending actions but never touches the one currently executing.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/actionrelay/internal/domain"
)

// Executor runs one action to completion.
type Executor interface {
	Dispatch(ctx context.Context, a domain.Action) error
}

// Observer receives queue depth changes and per-action outcomes.
type Observer interface {
	SetDepth(n int)
	ObserveDispatch(actionType string, d time.Duration, err error)
}

type Option func(*Queue)

func WithObserver(o Observer) Option {
	return func(q *Queue) { q.observer = o }
}

func WithClock(c clockwork.Clock) Option {
	return func(q *Queue) { q.clock = c }
}

type Queue struct {
	exec     Executor
	observer Observer
	clock    clockwork.Clock
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu      sync.Mutex
	pending []domain.Action
	running bool
	closed  bool
}

func New(exec Executor, opts ...Option) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		exec:   exec,
		clock:  clockwork.NewRealClock(),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends actions to the tail in the given order. The batch is
// appended atomically, so nothing enqueued concurrently lands between its items.
func (q *Queue) Enqueue(actions ...domain.Action) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		slog.Debug("Queue closed, dropping actions", "count", len(actions))
		return
	}
	for _, a := range actions {
		if a != nil {
			q.pending = append(q.pending, a)
		}
	}
	start := !q.running && len(q.pending) > 0
	if start {
		q.running = true
		q.wg.Add(1)
	}
	q.setDepth(len(q.pending))
	q.mu.Unlock()

	if start {
		go q.drain()
	}
}

// Clear drops every pending action and returns how many were dropped.
func (q *Queue) Clear() int {
	q.mu.Lock()
	dropped := len(q.pending)
	q.pending = nil
	q.setDepth(0)
	q.mu.Unlock()

	if dropped > 0 {
		slog.Debug("Queue cleared", "dropped", dropped)
	}
	return dropped
}

// Len returns the number of pending (not yet started) actions.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Running reports whether a drain loop is active.
func (q *Queue) Running() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}

// Close drops pending actions, cancels the in-flight one and waits for the
// drain loop to exit. Later Enqueue calls are ignored.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.pending = nil
	q.setDepth(0)
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()
}

func (q *Queue) drain() {
	defer q.wg.Done()

	for {
		q.mu.Lock()
		if len(q.pending) == 0 || q.closed {
			q.running = false
			q.mu.Unlock()
			return
		}
		a := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.setDepth(len(q.pending))
		q.mu.Unlock()

		q.execute(a)
	}
}

func (q *Queue) execute(a domain.Action) {
	start := q.clock.Now()
	err := q.dispatch(a)
	elapsed := q.clock.Since(start)

	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("Action failed, continuing with next", "type", string(a.Type()), "error", err)
	}
	if q.observer != nil {
		q.observer.ObserveDispatch(string(a.Type()), elapsed, err)
	}
}

// dispatch converts executor panics into errors so the drain loop survives.
func (q *Queue) dispatch(a domain.Action) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch panic: %v", r)
		}
	}()
	return q.exec.Dispatch(q.ctx, a)
}

// setDepth must be called with q.mu held so reports arrive in mutation order.
func (q *Queue) setDepth(n int) {
	if q.observer != nil {
		q.observer.SetDepth(n)
	}
}
