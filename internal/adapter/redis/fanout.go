package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	goredis "github.com/redis/go-redis/v9"
)

const (
	publishTimeout = 2 * time.Second

	breakerFailureThreshold = 3
	breakerDelay            = 30 * time.Second
)

// Fanout carries relay broadcasts between instances over a pub/sub channel.
// Every instance, the publisher included, receives each message through Listen.
type Fanout struct {
	rdb     *goredis.Client
	channel string
	breaker circuitbreaker.CircuitBreaker[any]
}

// NewFanout creates a fan-out over channel. After consecutive publish failures
// the circuit opens and Publish fails fast until the delay has passed, so the
// relay falls back to local delivery without waiting on Redis.
func NewFanout(rdb *goredis.Client, channel string) *Fanout {
	breaker := circuitbreaker.NewBuilder[any]().
		WithFailureThreshold(breakerFailureThreshold).
		WithDelay(breakerDelay).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Circuit breaker state changed",
				"component", "redis_fanout",
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
		}).
		Build()

	return &Fanout{rdb: rdb, channel: channel, breaker: breaker}
}

// Publish sends frame to every subscribed instance.
func (f *Fanout) Publish(ctx context.Context, frame []byte) error {
	if !f.breaker.TryAcquirePermit() {
		return fmt.Errorf("failed to publish broadcast: %w", circuitbreaker.ErrOpen)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := f.rdb.Publish(ctx, f.channel, frame).Err(); err != nil {
		f.breaker.RecordError(err)
		return fmt.Errorf("failed to publish broadcast: %w", err)
	}
	f.breaker.RecordSuccess()
	return nil
}

// BreakerState reports the publish circuit state.
func (f *Fanout) BreakerState() circuitbreaker.State {
	return f.breaker.State()
}

// Listen subscribes to the channel and calls deliver for every message until
// ctx is done. go-redis reconnects the subscription on its own.
func (f *Fanout) Listen(ctx context.Context, deliver func(frame []byte)) error {
	pubsub := f.rdb.Subscribe(ctx, f.channel)
	defer func() { _ = pubsub.Close() }()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", f.channel, err)
	}
	slog.Info("Subscribed to broadcast fan-out", "channel", f.channel)

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if msg.Payload == "" {
				slog.Warn("Empty fan-out message", "channel", msg.Channel)
				continue
			}
			deliver([]byte(msg.Payload))
		case <-ctx.Done():
			return nil
		}
	}
}
