package domain

import "time"

// SpeakOptions are passed through to the render target's speech playback.
type SpeakOptions struct {
	Volume          float64
	Expression      *int
	ResetExpression bool
	CrossOrigin     string
}

// RenderTarget is the stateful, asynchronous thing actions are executed against.
type RenderTarget interface {
	// Expressions returns the expression labels in index order.
	Expressions() []string
	SetExpression(index int) error
	// PlayMotion starts a motion and returns its declared duration, or 0 when unknown.
	PlayMotion(group string, index, priority int) (time.Duration, error)
	// Speak starts playback. The returned channel is closed when playback finishes or fails.
	Speak(src string, opts SpeakOptions) (<-chan struct{}, error)
	SetView(change ViewChange) error
	// Stop halts in-flight motions and speech.
	Stop() error
}
