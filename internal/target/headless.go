// Package target provides a headless render target that keeps model state in
// memory and simulates playback time on a clock.
package target

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/actionrelay/internal/domain"
)

const (
	DefaultSpeechDuration = 1500 * time.Millisecond
	defaultWidth          = 1280
	defaultHeight         = 720
)

// Options configures a Headless target.
type Options struct {
	// Expressions are the expression labels in index order.
	Expressions []string
	// Motions maps a motion group to the declared duration of each index.
	Motions map[string][]time.Duration
	// SpeechDuration is how long every Speak call plays.
	SpeechDuration time.Duration
	Viewport       Viewport
}

// State is a snapshot of the headless model.
type State struct {
	Expression int // -1 before the first expression is applied
	Motion     string
	Speaking   int
	Transform  Transform
	Viewport   Viewport
}

// Headless implements domain.RenderTarget without a renderer.
type Headless struct {
	clock          clockwork.Clock
	labels         []string
	motions        map[string][]time.Duration
	speechDuration time.Duration

	mu         sync.Mutex
	expression int
	motion     string
	transform  Transform
	viewport   Viewport
	speeches   map[int]chan struct{}
	nextSpeech int
	wg         sync.WaitGroup
}

var _ domain.RenderTarget = (*Headless)(nil)

func NewHeadless(clock clockwork.Clock, opts Options) *Headless {
	vp := opts.Viewport
	if vp.Width <= 0 || vp.Height <= 0 {
		vp = Viewport{Width: defaultWidth, Height: defaultHeight}
	}
	speech := opts.SpeechDuration
	if speech <= 0 {
		speech = DefaultSpeechDuration
	}

	return &Headless{
		clock:          clock,
		labels:         append([]string(nil), opts.Expressions...),
		motions:        opts.Motions,
		speechDuration: speech,
		expression:     -1,
		transform:      InitialTransform(vp),
		viewport:       vp,
		speeches:       make(map[int]chan struct{}),
	}
}

func (h *Headless) Expressions() []string {
	return append([]string(nil), h.labels...)
}

func (h *Headless) SetExpression(index int) error {
	if index < 0 || index >= len(h.labels) {
		return fmt.Errorf("expression index %d out of range [0,%d)", index, len(h.labels))
	}

	h.mu.Lock()
	h.expression = index
	h.mu.Unlock()

	slog.Debug("Expression set", "index", index, "label", h.labels[index])
	return nil
}

func (h *Headless) PlayMotion(group string, index, priority int) (time.Duration, error) {
	h.mu.Lock()
	h.motion = fmt.Sprintf("%s[%d]", group, index)
	h.mu.Unlock()

	var d time.Duration
	if defs := h.motions[group]; index >= 0 && index < len(defs) {
		d = defs[index]
	}
	slog.Debug("Motion started", "group", group, "index", index, "priority", priority, "declared", d)
	return d, nil
}

// Speak simulates playback of src for the configured speech duration. An
// expression in opts is applied for the duration of the speech and, with
// ResetExpression, the previous expression is restored afterwards.
func (h *Headless) Speak(src string, opts domain.SpeakOptions) (<-chan struct{}, error) {
	if src == "" {
		return nil, fmt.Errorf("speak: empty source")
	}

	h.mu.Lock()
	previous := h.expression
	if opts.Expression != nil && *opts.Expression >= 0 && *opts.Expression < len(h.labels) {
		h.expression = *opts.Expression
	}
	id := h.nextSpeech
	h.nextSpeech++
	stop := make(chan struct{})
	h.speeches[id] = stop
	h.wg.Add(1)
	h.mu.Unlock()

	done := make(chan struct{})
	timer := h.clock.NewTimer(h.speechDuration)
	go func() {
		defer h.wg.Done()
		defer close(done)
		defer timer.Stop()

		select {
		case <-timer.Chan():
			slog.Debug("Speech finished", "src", src)
		case <-stop:
			slog.Debug("Speech stopped", "src", src)
		}

		h.mu.Lock()
		delete(h.speeches, id)
		if opts.ResetExpression && opts.Expression != nil {
			h.expression = previous
		}
		h.mu.Unlock()
	}()

	slog.Debug("Speech started", "src", src, "volume", opts.Volume, "duration", h.speechDuration)
	return done, nil
}

func (h *Headless) SetView(change domain.ViewChange) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.transform = h.transform.Apply(change, h.viewport)
	return nil
}

// Stop ends every in-flight speech and the current motion.
func (h *Headless) Stop() error {
	h.mu.Lock()
	for id, stop := range h.speeches {
		close(stop)
		delete(h.speeches, id)
	}
	h.motion = ""
	h.mu.Unlock()
	return nil
}

// Resize changes the viewport. The transform is kept as is.
func (h *Headless) Resize(vp Viewport) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.viewport = vp
}

func (h *Headless) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return State{
		Expression: h.expression,
		Motion:     h.motion,
		Speaking:   len(h.speeches),
		Transform:  h.transform,
		Viewport:   h.viewport,
	}
}

// Close stops all speech and waits for the playback goroutines to exit.
func (h *Headless) Close() {
	_ = h.Stop()
	h.wg.Wait()
}
