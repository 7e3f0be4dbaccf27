package app

import (
	"log/slog"

	"github.com/pscheid92/actionrelay/internal/domain"
)

// Enqueuer is the part of the action queue the controller needs.
type Enqueuer interface {
	Enqueue(actions ...domain.Action)
	Clear() int
}

// Stopper halts whatever the render target is currently doing.
type Stopper interface {
	StopAll() error
}

// Controller routes actions to the queue or handles them out of band.
type Controller struct {
	queue   Enqueuer
	stopper Stopper
}

func NewController(queue Enqueuer, stopper Stopper) *Controller {
	return &Controller{queue: queue, stopper: stopper}
}

// Submit accepts one action from any source.
//
// clearQueue drops pending actions and stopAll halts motions and speech; both take
// effect immediately and are never queued. stopAll leaves pending actions in place,
// so the next one starts as soon as the interrupted action returns. A sequence is
// expanded and its items are enqueued as one contiguous batch.
func (c *Controller) Submit(a domain.Action) {
	switch action := a.(type) {
	case nil:
		return
	case domain.ClearQueue:
		dropped := c.queue.Clear()
		slog.Debug("Queue cleared on request", "dropped", dropped)
	case domain.StopAll:
		if err := c.stopper.StopAll(); err != nil {
			slog.Warn("Stop all failed", "error", err)
		}
	case domain.Sequence:
		if len(action.Items) == 0 {
			return
		}
		c.queue.Enqueue(action.Items...)
	default:
		c.queue.Enqueue(a)
	}
}

// SubmitRaw decodes an action payload and submits it.
func (c *Controller) SubmitRaw(payload []byte) error {
	a, err := domain.DecodeAction(payload)
	if err != nil {
		return err
	}
	c.Submit(a)
	return nil
}
