package target

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/actionrelay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHeadless(t *testing.T) (*Headless, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	h := NewHeadless(clock, Options{
		Expressions:    []string{"Normal", "Smile", "Angry"},
		Motions:        map[string][]time.Duration{"TapBody": {0, 3 * time.Second}},
		SpeechDuration: time.Second,
	})
	t.Cleanup(h.Close)
	return h, clock
}

func requireClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
}

func requireOpen(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
		t.Fatal("channel closed early")
	case <-time.After(20 * time.Millisecond):
	}
}

func blockUntilTimers(t *testing.T, clock *clockwork.FakeClock, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, n))
}

func TestHeadless_Defaults(t *testing.T) {
	h := NewHeadless(clockwork.NewFakeClock(), Options{})

	state := h.State()
	assert.Equal(t, -1, state.Expression)
	assert.Equal(t, Viewport{Width: 1280, Height: 720}, state.Viewport)
	assert.Equal(t, InitialTransform(state.Viewport), state.Transform)
	assert.Empty(t, h.Expressions())
}

func TestHeadless_SetExpression(t *testing.T) {
	h, _ := newTestHeadless(t)

	require.NoError(t, h.SetExpression(2))
	assert.Equal(t, 2, h.State().Expression)

	assert.Error(t, h.SetExpression(3))
	assert.Error(t, h.SetExpression(-1))
	assert.Equal(t, 2, h.State().Expression)
}

func TestHeadless_PlayMotionDurations(t *testing.T) {
	h, _ := newTestHeadless(t)

	d, err := h.PlayMotion("TapBody", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, d)
	assert.Equal(t, "TapBody[1]", h.State().Motion)

	d, err = h.PlayMotion("Idle", 0, 3)
	require.NoError(t, err)
	assert.Zero(t, d, "undeclared motions report no duration")
}

func TestHeadless_SpeakFinishesAndResetsExpression(t *testing.T) {
	h, clock := newTestHeadless(t)
	require.NoError(t, h.SetExpression(0))

	smile := 1
	done, err := h.Speak("a.wav", domain.SpeakOptions{Expression: &smile, ResetExpression: true})
	require.NoError(t, err)
	assert.Equal(t, 1, h.State().Expression)
	assert.Equal(t, 1, h.State().Speaking)

	blockUntilTimers(t, clock, 1)
	clock.Advance(999 * time.Millisecond)
	requireOpen(t, done)

	clock.Advance(time.Millisecond)
	requireClosed(t, done)
	require.Eventually(t, func() bool { return h.State().Expression == 0 }, time.Second, time.Millisecond)
	assert.Zero(t, h.State().Speaking)
}

func TestHeadless_SpeakKeepsExpressionWithoutReset(t *testing.T) {
	h, clock := newTestHeadless(t)

	angry := 2
	done, err := h.Speak("a.wav", domain.SpeakOptions{Expression: &angry})
	require.NoError(t, err)

	blockUntilTimers(t, clock, 1)
	clock.Advance(time.Second)
	requireClosed(t, done)
	assert.Equal(t, 2, h.State().Expression)
}

func TestHeadless_StopResolvesSpeech(t *testing.T) {
	h, _ := newTestHeadless(t)

	first, err := h.Speak("a.wav", domain.SpeakOptions{})
	require.NoError(t, err)
	second, err := h.Speak("b.wav", domain.SpeakOptions{})
	require.NoError(t, err)
	_, _ = h.PlayMotion("TapBody", 0, 3)

	require.NoError(t, h.Stop())

	requireClosed(t, first)
	requireClosed(t, second)
	assert.Empty(t, h.State().Motion)
	assert.Zero(t, h.State().Speaking)
}

func TestHeadless_SpeakEmptySource(t *testing.T) {
	h, _ := newTestHeadless(t)
	_, err := h.Speak("", domain.SpeakOptions{})
	assert.Error(t, err)
}

func TestHeadless_SetViewAndResize(t *testing.T) {
	h, _ := newTestHeadless(t)

	h.Resize(Viewport{Width: 1000, Height: 2000})
	require.NoError(t, h.SetView(domain.ViewCenter{}))

	state := h.State()
	assert.Equal(t, 500.0, state.Transform.X)
	assert.Equal(t, 1000.0, state.Transform.Y)
}
