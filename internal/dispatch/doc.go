// Package dispatch executes single actions against the render target.
//
// The Dispatcher owns the only reference to the target. Each action kind has a
// completion rule: a fixed settle delay (expression, view, ping), the motion's
// declared duration, or the target's speech completion signal. All waits run on
// a clockwork.Clock and end early when the context is cancelled.
package dispatch
