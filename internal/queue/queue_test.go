package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/actionrelay/internal/dispatch"
	"github.com/pscheid92/actionrelay/internal/domain"
	"github.com/pscheid92/actionrelay/internal/target/targettest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// recordingExecutor records dispatch order and detects overlapping executions.
type recordingExecutor struct {
	mu          sync.Mutex
	order       []string
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	delay       time.Duration
	gate        chan struct{} // when set, the first dispatch blocks until closed
	started     chan string // best-effort start notifications; never blocks a dispatch
	fail        map[string]error
	panicOn     map[string]bool
	gateOnce    sync.Once
}

func newRecordingExecutor() *recordingExecutor {
	return &recordingExecutor{
		started: make(chan string, 64),
		fail:    make(map[string]error),
		panicOn: make(map[string]bool),
	}
}

func (e *recordingExecutor) Dispatch(ctx context.Context, a domain.Action) error {
	n := e.inFlight.Add(1)
	defer e.inFlight.Add(-1)
	for {
		max := e.maxInFlight.Load()
		if n <= max || e.maxInFlight.CompareAndSwap(max, n) {
			break
		}
	}

	id := label(a)
	e.mu.Lock()
	e.order = append(e.order, id)
	e.mu.Unlock()
	select {
	case e.started <- id:
	default:
	}

	if e.gate != nil {
		first := false
		e.gateOnce.Do(func() { first = true })
		if first {
			select {
			case <-e.gate:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	if e.delay > 0 {
		time.Sleep(e.delay)
	}
	if e.panicOn[id] {
		panic("executor exploded on " + id)
	}
	return e.fail[id]
}

func (e *recordingExecutor) Order() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.order))
	copy(out, e.order)
	return out
}

// label identifies test actions by motion group.
func label(a domain.Action) string {
	if m, ok := a.(domain.Motion); ok {
		return m.Group
	}
	return string(a.Type())
}

func motions(names ...string) []domain.Action {
	out := make([]domain.Action, len(names))
	for i, n := range names {
		out[i] = domain.Motion{Group: n}
	}
	return out
}

func waitIdle(t *testing.T, q *Queue) {
	t.Helper()
	require.Eventually(t, func() bool { return !q.Running() }, 2*time.Second, time.Millisecond)
}

func TestQueue_FIFOWithoutOverlap(t *testing.T) {
	defer goleak.VerifyNone(t)

	exec := newRecordingExecutor()
	exec.delay = time.Millisecond
	q := New(exec)

	var want []string
	for i := range 20 {
		name := fmt.Sprintf("A%d", i)
		want = append(want, name)
		q.Enqueue(domain.Motion{Group: name})
	}

	waitIdle(t, q)
	assert.Equal(t, want, exec.Order())
	assert.Equal(t, int32(1), exec.maxInFlight.Load())
}

func TestQueue_ConcurrentEnqueueNeverOverlaps(t *testing.T) {
	defer goleak.VerifyNone(t)

	exec := newRecordingExecutor()
	q := New(exec)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 10 {
				q.Enqueue(domain.Motion{Group: fmt.Sprintf("g%d-%d", i, j)})
			}
		}()
	}
	wg.Wait()
	waitIdle(t, q)

	assert.Len(t, exec.Order(), 80)
	assert.Equal(t, int32(1), exec.maxInFlight.Load())
}

func TestQueue_BatchStaysContiguous(t *testing.T) {
	defer goleak.VerifyNone(t)

	exec := newRecordingExecutor()
	q := New(exec)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for range 50 {
			q.Enqueue(domain.Motion{Group: "Z"})
		}
	}()
	go func() {
		defer wg.Done()
		for range 50 {
			q.Enqueue(motions("X", "Y")...)
		}
	}()
	wg.Wait()
	waitIdle(t, q)

	order := exec.Order()
	require.Len(t, order, 150)
	for i, name := range order {
		if name == "X" {
			require.Less(t, i+1, len(order))
			assert.Equal(t, "Y", order[i+1], "nothing may interleave between X and Y (position %d)", i)
		}
	}
}

func TestQueue_ClearWhileRunning(t *testing.T) {
	defer goleak.VerifyNone(t)

	exec := newRecordingExecutor()
	exec.gate = make(chan struct{})
	q := New(exec)

	q.Enqueue(motions("A1", "A2", "A3", "A4")...)

	select {
	case id := <-exec.started:
		require.Equal(t, "A1", id)
	case <-time.After(time.Second):
		t.Fatal("A1 did not start")
	}

	assert.Equal(t, 3, q.Clear())
	assert.True(t, q.Running(), "clear does not stop the in-flight action")

	close(exec.gate)
	waitIdle(t, q)

	assert.Equal(t, []string{"A1"}, exec.Order())
}

func TestQueue_ClearOnEmptyIsNoop(t *testing.T) {
	q := New(newRecordingExecutor())

	assert.NotPanics(t, func() {
		assert.Equal(t, 0, q.Clear())
		assert.Equal(t, 0, q.Clear())
	})
	assert.False(t, q.Running())
	assert.Equal(t, 0, q.Len())
}

func TestQueue_FailuresDoNotStopDrain(t *testing.T) {
	defer goleak.VerifyNone(t)

	exec := newRecordingExecutor()
	exec.fail["A1"] = errors.New("target exploded")
	exec.panicOn["A2"] = true
	q := New(exec)

	q.Enqueue(motions("A1", "A2", "A3")...)
	waitIdle(t, q)

	assert.Equal(t, []string{"A1", "A2", "A3"}, exec.Order())
}

func TestQueue_RestartsAfterDrain(t *testing.T) {
	defer goleak.VerifyNone(t)

	exec := newRecordingExecutor()
	q := New(exec)

	q.Enqueue(domain.Motion{Group: "first"})
	waitIdle(t, q)

	q.Enqueue(domain.Motion{Group: "second"})
	waitIdle(t, q)

	assert.Equal(t, []string{"first", "second"}, exec.Order())
}

func TestQueue_NilActionsSkipped(t *testing.T) {
	q := New(newRecordingExecutor())
	q.Enqueue(nil, nil)
	assert.False(t, q.Running())
	assert.Equal(t, 0, q.Len())
}

func TestQueue_CloseCancelsInFlightAndDropsPending(t *testing.T) {
	defer goleak.VerifyNone(t)

	exec := newRecordingExecutor()
	exec.gate = make(chan struct{})
	q := New(exec)

	q.Enqueue(motions("A1", "A2")...)
	<-exec.started

	q.Close()
	assert.False(t, q.Running())
	assert.Equal(t, []string{"A1"}, exec.Order())

	q.Enqueue(domain.Motion{Group: "late"})
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, []string{"A1"}, exec.Order())
}

type recordingObserver struct {
	mu       sync.Mutex
	depths   []int
	outcomes map[string]int
}

func (o *recordingObserver) SetDepth(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.depths = append(o.depths, n)
}

func (o *recordingObserver) ObserveDispatch(actionType string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	key := actionType + ":ok"
	if err != nil {
		key = actionType + ":error"
	}
	o.outcomes[key]++
}

func TestQueue_ReportsToObserver(t *testing.T) {
	exec := newRecordingExecutor()
	exec.fail["bad"] = errors.New("nope")
	obs := &recordingObserver{outcomes: make(map[string]int)}
	q := New(exec, WithObserver(obs))

	q.Enqueue(motions("ok", "bad")...)
	waitIdle(t, q)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Equal(t, 1, obs.outcomes["motion:ok"])
	assert.Equal(t, 1, obs.outcomes["motion:error"])
	assert.Equal(t, 0, obs.depths[len(obs.depths)-1])
}

func (o *recordingObserver) lastDepth() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.depths[len(o.depths)-1]
}

func TestQueue_DepthMatchesLenUnderConcurrency(t *testing.T) {
	defer goleak.VerifyNone(t)

	exec := newRecordingExecutor()
	exec.gate = make(chan struct{})
	obs := &recordingObserver{outcomes: make(map[string]int)}
	q := New(exec, WithObserver(obs))

	q.Enqueue(motions("hold")...)
	<-exec.started

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%5 == 0 {
				q.Clear()
				return
			}
			q.Enqueue(motions(fmt.Sprintf("m%d", i), fmt.Sprintf("n%d", i))...)
		}()
	}
	wg.Wait()

	assert.Equal(t, q.Len(), obs.lastDepth())

	close(exec.gate)
	waitIdle(t, q)
	assert.Equal(t, 0, obs.lastDepth())
}

func TestQueue_ManyDispatchesWithoutListener(t *testing.T) {
	defer goleak.VerifyNone(t)

	exec := newRecordingExecutor()
	q := New(exec)

	names := make([]string, 200)
	for i := range names {
		names[i] = fmt.Sprintf("m%d", i)
	}
	q.Enqueue(motions(names...)...)
	waitIdle(t, q)

	assert.Equal(t, names, exec.Order())
}

func TestQueue_AudioWithoutWaitEndDoesNotBlock(t *testing.T) {
	clock := clockwork.NewFakeClock()
	target := targettest.New()
	d := dispatch.New(clock)
	d.Attach(target)
	q := New(d, WithClock(clock))
	t.Cleanup(q.Close)

	q.Enqueue(domain.Audio{Src: "music.wav", WaitEnd: false}, domain.Ping{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1), "ping starts while audio is still playing")

	assert.Equal(t, []string{"Speak"}, target.Methods())
	assert.Equal(t, 1, target.PendingSpeech())

	clock.Advance(dispatch.PingDelay)
	waitIdle(t, q)
	assert.Equal(t, 1, target.PendingSpeech(), "background audio is not tracked by the queue")
}

func TestQueue_AudioWithWaitEndBlocksNext(t *testing.T) {
	clock := clockwork.NewFakeClock()
	target := targettest.New()
	d := dispatch.New(clock)
	d.Attach(target)
	q := New(d, WithClock(clock))
	t.Cleanup(q.Close)

	q.Enqueue(domain.Audio{Src: "line.wav", WaitEnd: true}, domain.Motion{Group: "Idle"})

	_, ok := target.Next(time.Second)
	require.True(t, ok)
	_, ok = target.Next(30 * time.Millisecond)
	assert.False(t, ok, "motion must wait for speech to finish")

	require.True(t, target.FinishSpeech())
	call, ok := target.Next(time.Second)
	require.True(t, ok)
	assert.Equal(t, "PlayMotion", call.Method)
}
