// Package targettest provides a recording render target for tests.
package targettest

import (
	"fmt"
	"sync"
	"time"

	"github.com/pscheid92/actionrelay/internal/domain"
)

// Call is one recorded render target invocation.
type Call struct {
	Method string
	Args   []any
}

func (c Call) String() string {
	return fmt.Sprintf("%s%v", c.Method, c.Args)
}

// Recorder is a domain.RenderTarget that records every call.
// Speech stays pending until FinishSpeech or Stop is called, unless
// AutoFinishSpeech is set.
type Recorder struct {
	mu               sync.Mutex
	labels           []string
	calls            []Call
	durations        map[string]time.Duration
	failures         map[string]error
	pendingSpeech    []chan struct{}
	autoFinishSpeech bool
	notify           chan Call
}

var _ domain.RenderTarget = (*Recorder)(nil)

func New(labels ...string) *Recorder {
	return &Recorder{
		labels:    labels,
		durations: make(map[string]time.Duration),
		failures:  make(map[string]error),
		notify:    make(chan Call, 256),
	}
}

// AutoFinishSpeech makes Speak return an already-closed completion channel.
func (r *Recorder) AutoFinishSpeech() *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.autoFinishSpeech = true
	return r
}

// SetMotionDuration sets the duration hint PlayMotion returns for group[index].
func (r *Recorder) SetMotionDuration(group string, index int, d time.Duration) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.durations[motionKey(group, index)] = d
	return r
}

// FailOn makes method return err (after recording the call).
func (r *Recorder) FailOn(method string, err error) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[method] = err
	return r
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Methods returns the recorded method names in call order.
func (r *Recorder) Methods() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	for i, c := range r.calls {
		out[i] = c.Method
	}
	return out
}

// Next waits for the next recorded call.
func (r *Recorder) Next(timeout time.Duration) (Call, bool) {
	select {
	case c := <-r.notify:
		return c, true
	case <-time.After(timeout):
		return Call{}, false
	}
}

// PendingSpeech reports how many Speak calls are still playing.
func (r *Recorder) PendingSpeech() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pendingSpeech)
}

// FinishSpeech completes the oldest pending Speak call.
func (r *Recorder) FinishSpeech() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.pendingSpeech) == 0 {
		return false
	}
	close(r.pendingSpeech[0])
	r.pendingSpeech = r.pendingSpeech[1:]
	return true
}

func (r *Recorder) Expressions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.labels))
	copy(out, r.labels)
	return out
}

func (r *Recorder) SetExpression(index int) error {
	return r.record("SetExpression", index)
}

func (r *Recorder) PlayMotion(group string, index, priority int) (time.Duration, error) {
	if err := r.record("PlayMotion", group, index, priority); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.durations[motionKey(group, index)], nil
}

func (r *Recorder) Speak(src string, opts domain.SpeakOptions) (<-chan struct{}, error) {
	if err := r.record("Speak", src, opts); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	done := make(chan struct{})
	if r.autoFinishSpeech {
		close(done)
		return done, nil
	}
	r.pendingSpeech = append(r.pendingSpeech, done)
	return done, nil
}

func (r *Recorder) SetView(change domain.ViewChange) error {
	return r.record("SetView", change)
}

// Stop records the call and completes all pending speech.
func (r *Recorder) Stop() error {
	err := r.record("Stop")
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range r.pendingSpeech {
		close(ch)
	}
	r.pendingSpeech = nil
	return err
}

func (r *Recorder) record(method string, args ...any) error {
	call := Call{Method: method, Args: args}
	r.mu.Lock()
	r.calls = append(r.calls, call)
	err := r.failures[method]
	r.mu.Unlock()

	select {
	case r.notify <- call:
	default:
	}
	return err
}

func motionKey(group string, index int) string {
	return fmt.Sprintf("%s/%d", group, index)
}
