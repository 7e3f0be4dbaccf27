package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pscheid92/actionrelay/internal/domain"
	"github.com/pscheid92/actionrelay/internal/platform/retry"
	"github.com/pscheid92/actionrelay/internal/transport"
	"github.com/spf13/cobra"
)

// replyPrinter writes every frame the relay delivers as one line.
type replyPrinter struct {
	mu  sync.Mutex
	out io.Writer
	got chan struct{}
}

func newReplyPrinter(out io.Writer) *replyPrinter {
	return &replyPrinter{out: out, got: make(chan struct{}, 1)}
}

func (p *replyPrinter) SubmitRaw(payload []byte) error {
	p.print(payload)
	return nil
}

func (p *replyPrinter) signal(env domain.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	p.print(data)
}

func (p *replyPrinter) print(line []byte) {
	p.mu.Lock()
	_, _ = fmt.Fprintln(p.out, string(line))
	p.mu.Unlock()

	select {
	case p.got <- struct{}{}:
	default:
	}
}

// runProducer connects, runs send once and disconnects. With a wait set it
// prints the first reply, or gives up quietly when none arrives in time.
func runProducer(cmd *cobra.Command, cfg *producerConfig, send func(*transport.Client) error) error {
	url, err := cfg.resolveURL()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
	defer cancel()

	replies := newReplyPrinter(cmd.OutOrStdout())
	connected := make(chan struct{})
	var connectedOnce sync.Once

	client := transport.New(url, replies,
		transport.WithName(cfg.name),
		transport.WithRetryPolicy(retry.Policy{MaxAttempts: cfg.attempts, Interval: cfg.interval}),
		transport.WithStateFunc(func(s domain.ConnState) {
			if s == domain.StateConnected {
				connectedOnce.Do(func() { close(connected) })
			}
		}),
		transport.WithSignalFunc(replies.signal),
	)

	runErr := make(chan error, 1)
	go func() { runErr <- client.Run(ctx) }()

	select {
	case <-connected:
	case err := <-runErr:
		if err == nil {
			err = ctx.Err()
		}
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	sendErr := send(client)
	if sendErr == nil && cfg.wait > 0 {
		select {
		case <-replies.got:
		case <-time.After(cfg.wait):
			cmd.PrintErrln("no reply within", cfg.wait)
		case <-ctx.Done():
		}
	}

	cancel()
	<-runErr

	if sendErr != nil {
		return fmt.Errorf("failed to send: %w", sendErr)
	}
	return nil
}
