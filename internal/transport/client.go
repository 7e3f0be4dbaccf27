package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pscheid92/actionrelay/internal/domain"
	"github.com/pscheid92/actionrelay/internal/platform/retry"
)

const (
	DefaultReconnectInterval = time.Second
	writeDeadline            = 5 * time.Second
	handshakeTimeout         = 10 * time.Second
)

// Submitter accepts decoded action payloads. app.Controller implements it.
type Submitter interface {
	SubmitRaw(payload []byte) error
}

type Option func(*Client)

// WithName sets the "from" field of the hello greeting.
func WithName(name string) Option {
	return func(c *Client) { c.name = name }
}

// WithReconnectInterval sets the fixed wait between connection attempts.
func WithReconnectInterval(d time.Duration) Option {
	return func(c *Client) { c.policy = retry.Constant(d) }
}

// WithRetryPolicy replaces the reconnect policy entirely. One-shot producers use
// it to bound the number of attempts.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Client) { c.policy = p }
}

// WithStateFunc registers a callback invoked on every connection state change.
func WithStateFunc(fn func(domain.ConnState)) Option {
	return func(c *Client) { c.onState = fn }
}

// WithSignalFunc registers a callback for toggle-listen frames.
func WithSignalFunc(fn func(domain.Envelope)) Option {
	return func(c *Client) { c.onSignal = fn }
}

func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// Client is a reconnecting relay connection.
type Client struct {
	url      string
	name     string
	submit   Submitter
	dialer   *websocket.Dialer
	policy   retry.Policy
	onState  func(domain.ConnState)
	onSignal func(domain.Envelope)

	running atomic.Bool
	state   atomic.Int32

	writeMu sync.Mutex
	conn    *websocket.Conn
}

func New(url string, submit Submitter, opts ...Option) *Client {
	c := &Client{
		url:    url,
		name:   "live2d-client",
		submit: submit,
		dialer: &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		policy: retry.Constant(DefaultReconnectInterval),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current connection state.
func (c *Client) State() domain.ConnState {
	return domain.ConnState(c.state.Load())
}

// Run connects and keeps the connection alive until ctx is done. It returns
// nil on context cancellation, or the last error when the retry policy gives up.
// Only one Run may be active per Client.
func (c *Client) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return domain.ErrAlreadyRunning
	}
	defer c.running.Store(false)

	policy := c.policy
	policy.OnRetry = func(attempt int, err error) {
		slog.Info("Relay connection lost, reconnecting", "url", c.url, "attempt", attempt, "error", err, "interval", policy.Interval)
	}

	err := retry.Do(ctx, policy, c.session)
	c.setState(domain.StateDisconnected)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// session runs one connection from dial to close. It always returns an error so
// the retry loop schedules the next attempt.
func (c *Client) session(ctx context.Context) error {
	c.setState(domain.StateConnecting)

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.setState(domain.StateDisconnected)
		return fmt.Errorf("dial %s: %w", c.url, err)
	}

	c.writeMu.Lock()
	c.conn = conn
	c.writeMu.Unlock()
	c.setState(domain.StateConnected)
	slog.Info("Connected to relay", "url", c.url)

	if err := c.Send(domain.HelloEnvelope(c.name)); err != nil {
		slog.Warn("Failed to send hello", "error", err)
	}

	stop := context.AfterFunc(ctx, func() { c.closeConn(conn, "client shutting down") })
	err = c.readLoop(conn)
	stop()

	c.writeMu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.writeMu.Unlock()
	_ = conn.Close()
	c.setState(domain.StateDisconnected)

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("connection closed: %w", err)
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if msgType != websocket.TextMessage {
			continue
		}
		c.handleFrame(data)
	}
}

func (c *Client) handleFrame(data []byte) {
	var env domain.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		slog.Warn("Ignoring malformed relay frame", "error", err)
		return
	}

	switch env.Kind {
	case domain.KindAction:
		if err := c.submit.SubmitRaw(env.Payload); err != nil {
			slog.Warn("Rejected action from relay", "error", err)
		}
	case domain.KindError:
		slog.Warn("Relay reported an error", "error", env.Error)
	case domain.KindToggleListen:
		if c.onSignal != nil {
			c.onSignal(env)
		}
	default:
		slog.Debug("Ignoring relay frame", "kind", env.Kind)
	}
}

// Send writes one envelope to the relay.
func (c *Client) Send(env domain.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return c.write(data)
}

// SendAction sends a bare action, which the relay echoes back to this client only.
func (c *Client) SendAction(action []byte) error {
	if !domain.IsAction(action) {
		return domain.ErrNotAction
	}
	return c.write(action)
}

// Broadcast asks the relay to deliver action to every connected client.
func (c *Client) Broadcast(action []byte) error {
	if !domain.IsAction(action) {
		return domain.ErrNotAction
	}
	return c.Send(domain.BroadcastEnvelope(action))
}

// ToggleListen broadcasts the listen toggle signal.
func (c *Client) ToggleListen() error {
	return c.Send(domain.Envelope{Kind: domain.KindToggleListen, From: c.name})
}

func (c *Client) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.conn == nil {
		return domain.ErrNotConnected
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// closeConn sends a normal close frame, which ends the read loop once the
// relay answers. The connection is force-closed if the write fails.
func (c *Client) closeConn(conn *websocket.Conn, reason string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeDeadline)); err != nil {
		_ = conn.Close()
		return
	}
	// Bound the wait for the relay's close reply.
	_ = conn.SetReadDeadline(time.Now().Add(writeDeadline))
}

func (c *Client) setState(s domain.ConnState) {
	old := domain.ConnState(c.state.Swap(int32(s)))
	if old == s {
		return
	}
	slog.Debug("Relay connection state changed", "from", old.String(), "to", s.String())
	if c.onState != nil {
		c.onState(s)
	}
}
