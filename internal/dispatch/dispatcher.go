package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/actionrelay/internal/domain"
)

const (
	ExpressionSettle      = 120 * time.Millisecond
	ViewSettle            = 10 * time.Millisecond
	PingDelay             = 50 * time.Millisecond
	DefaultMotionDuration = 2 * time.Second
)

// Dispatcher maps actions to render target effects and waits for each
// action's completion condition.
type Dispatcher struct {
	clock clockwork.Clock

	mu      sync.RWMutex
	target  domain.RenderTarget
	catalog *domain.ExpressionCatalog
}

func New(clock clockwork.Clock) *Dispatcher {
	return &Dispatcher{clock: clock}
}

// Attach installs the render target and captures its expression catalog.
// Until a target is attached every action except ping is a no-op.
func (d *Dispatcher) Attach(target domain.RenderTarget) {
	var catalog *domain.ExpressionCatalog
	if target != nil {
		catalog = domain.NewExpressionCatalog(target.Expressions())
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.target = target
	d.catalog = catalog
}

// Catalog returns the expression catalog captured at Attach, or nil.
func (d *Dispatcher) Catalog() *domain.ExpressionCatalog {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.catalog
}

func (d *Dispatcher) snapshot() (domain.RenderTarget, *domain.ExpressionCatalog) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.target, d.catalog
}

// StopAll halts in-flight motion and speech on the target. It bypasses the
// queue and does not wait for anything.
func (d *Dispatcher) StopAll() error {
	target, _ := d.snapshot()
	if target == nil {
		return nil
	}
	if err := target.Stop(); err != nil {
		return fmt.Errorf("stop target: %w", err)
	}
	return nil
}

// Dispatch runs a and returns once its completion condition is met.
func (d *Dispatcher) Dispatch(ctx context.Context, a domain.Action) error {
	if a == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	target, catalog := d.snapshot()

	switch act := a.(type) {
	case domain.Ping:
		return d.sleep(ctx, PingDelay)

	case domain.Sequence:
		// A failing item does not stop the rest of the sequence.
		var errs []error
		for i, item := range act.Items {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := d.Dispatch(ctx, item); err != nil {
				if ctx.Err() != nil {
					return err
				}
				errs = append(errs, fmt.Errorf("sequence item %d (%s): %w", i, item.Type(), err))
			}
		}
		return errors.Join(errs...)

	case domain.StopAll, domain.ClearQueue:
		// Routed out of band before reaching the queue.
		return nil
	}

	if target == nil {
		return nil
	}

	switch act := a.(type) {
	case domain.Expression:
		return d.expression(ctx, target, catalog, act)
	case domain.Motion:
		return d.motion(ctx, target, act)
	case domain.Audio:
		return d.audio(ctx, target, catalog, act)
	case domain.ViewChange:
		if err := target.SetView(act); err != nil {
			return fmt.Errorf("%s: %w", act.Type(), err)
		}
		return d.sleep(ctx, ViewSettle)
	}

	return fmt.Errorf("%w: %q", domain.ErrUnknownAction, a.Type())
}

func (d *Dispatcher) expression(ctx context.Context, target domain.RenderTarget, catalog *domain.ExpressionCatalog, a domain.Expression) error {
	index := -1
	switch {
	case a.Name != nil:
		index, _ = catalog.Lookup(*a.Name)
	case a.Index != nil:
		index = *a.Index
	}

	var setErr error
	if index >= 0 {
		if err := target.SetExpression(index); err != nil {
			setErr = fmt.Errorf("set expression %d: %w", index, err)
		}
	}

	// The settle delay applies whether or not the expression was applied.
	if err := d.sleep(ctx, ExpressionSettle); err != nil {
		return err
	}
	return setErr
}

func (d *Dispatcher) motion(ctx context.Context, target domain.RenderTarget, a domain.Motion) error {
	duration, err := target.PlayMotion(a.Group, a.Index, a.Priority)
	if err != nil {
		return fmt.Errorf("play motion %s[%d]: %w", a.Group, a.Index, err)
	}
	if duration <= 0 {
		duration = DefaultMotionDuration
	}
	return d.sleep(ctx, duration)
}

func (d *Dispatcher) audio(ctx context.Context, target domain.RenderTarget, catalog *domain.ExpressionCatalog, a domain.Audio) error {
	if a.Src == "" {
		return nil
	}

	opts := domain.SpeakOptions{
		Volume:          a.Volume,
		ResetExpression: a.ResetExpression,
		CrossOrigin:     a.CrossOrigin,
	}
	if ref := a.Expression; ref != nil {
		if ref.Index != nil {
			idx := *ref.Index
			opts.Expression = &idx
		} else if idx, ok := catalog.Lookup(ref.Name); ok {
			opts.Expression = &idx
		}
	}

	done, err := target.Speak(a.Src, opts)
	if err != nil {
		return fmt.Errorf("speak %q: %w", a.Src, err)
	}
	if !a.WaitEnd || done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) sleep(ctx context.Context, duration time.Duration) error {
	select {
	case <-d.clock.After(duration):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
