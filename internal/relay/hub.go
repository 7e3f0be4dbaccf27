package relay

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/actionrelay/internal/adapter/metrics"
)

const (
	commandTimeout = 5 * time.Second
	stopTimeout    = 10 * time.Second
	shutdownReason = "server shutting down"
)

var ErrHubStopped = errors.New("hub stopped")

// hubCmd is the command interface for the Hub actor.
type hubCmd interface{ isHubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) isHubCmd() {}

type registerCmd struct {
	baseHubCmd
	id           string
	connection   *websocket.Conn
	errorChannel chan error
}

type unregisterCmd struct {
	baseHubCmd
	id string
}

type broadcastCmd struct {
	baseHubCmd
	frame []byte
}

type sendCmd struct {
	baseHubCmd
	id    string
	frame []byte
}

type clientCountCmd struct {
	baseHubCmd
	replyChannel chan int
}

type stopCmd struct {
	baseHubCmd
}

// Hub tracks open connections and fans frames out to their writers.
// All state is owned by the run goroutine.
type Hub struct {
	cmdCh       chan hubCmd
	clock       clockwork.Clock
	metrics     *metrics.RelayMetrics
	clients     map[string]*clientWriter
	done        chan struct{}
	stopOnce    sync.Once
	stopTimeout time.Duration
}

// NewHub starts the hub goroutine. m may be nil.
func NewHub(clock clockwork.Clock, m *metrics.RelayMetrics) *Hub {
	h := &Hub{
		cmdCh:       make(chan hubCmd, 256),
		clock:       clock,
		metrics:     m,
		clients:     make(map[string]*clientWriter),
		done:        make(chan struct{}),
		stopTimeout: stopTimeout,
	}
	go h.run()
	return h
}

// Register starts a writer for conn under id.
func (h *Hub) Register(id string, conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	if !h.submit(registerCmd{id: id, connection: conn, errorChannel: errCh}) {
		return ErrHubStopped
	}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return err
	case <-h.done:
		return ErrHubStopped
	case <-timer.Chan():
		return fmt.Errorf("register command timed out after %v", commandTimeout)
	}
}

// Unregister stops the writer for id and closes its connection.
func (h *Hub) Unregister(id string) {
	h.submit(unregisterCmd{id: id})
}

// Broadcast queues frame for every open connection.
func (h *Hub) Broadcast(frame []byte) {
	h.submit(broadcastCmd{frame: frame})
}

// Send queues frame for the connection registered under id.
func (h *Hub) Send(id string, frame []byte) {
	h.submit(sendCmd{id: id, frame: frame})
}

// ClientCount returns the number of registered connections.
// Returns -1 if the hub is stopped or the command times out.
func (h *Hub) ClientCount() int {
	replyCh := make(chan int, 1)
	if !h.submit(clientCountCmd{replyChannel: replyCh}) {
		return -1
	}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case count := <-replyCh:
		return count
	case <-h.done:
		return -1
	case <-timer.Chan():
		slog.Warn("ClientCount timed out", "timeout", commandTimeout)
		return -1
	}
}

// Stop sends a close frame to every client and waits for the hub goroutine to
// exit. Safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		if !h.submit(stopCmd{}) {
			return
		}

		timeout := h.clock.NewTimer(h.stopTimeout)
		defer timeout.Stop()

		select {
		case <-h.done:
			slog.Info("Hub stopped gracefully")
		case <-timeout.Chan():
			slog.Warn("Hub stop timeout exceeded", "timeout", h.stopTimeout)
		}
	})
}

func (h *Hub) submit(cmd hubCmd) bool {
	select {
	case h.cmdCh <- cmd:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) run() {
	defer close(h.done)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Hub panic recovered", "panic", r)
			h.closeAllClients("internal error")
		}
	}()

	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case registerCmd:
			h.handleRegister(c)
		case unregisterCmd:
			h.handleUnregister(c)
		case broadcastCmd:
			h.handleBroadcast(c)
		case sendCmd:
			h.handleSend(c)
		case clientCountCmd:
			c.replyChannel <- len(h.clients)
		case stopCmd:
			h.handleStop()
			return
		default:
			slog.Warn("Hub received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
		}
	}
}

func (h *Hub) handleRegister(c registerCmd) {
	if _, exists := h.clients[c.id]; exists {
		c.errorChannel <- fmt.Errorf("connection %s already registered", c.id)
		return
	}

	h.clients[c.id] = newClientWriter(c.connection, h.clock)
	h.metrics.ConnectionOpened()

	slog.Debug("Client registered", "conn_id", c.id, "total_clients", len(h.clients))
	c.errorChannel <- nil
}

func (h *Hub) handleUnregister(c unregisterCmd) {
	cw, exists := h.clients[c.id]
	if !exists {
		return
	}

	cw.stop()
	delete(h.clients, c.id)
	h.metrics.ConnectionClosed()

	slog.Debug("Client unregistered", "conn_id", c.id, "remaining_clients", len(h.clients))
}

func (h *Hub) handleBroadcast(c broadcastCmd) {
	delivered := 0
	for id, cw := range h.clients {
		if h.deliver(id, cw, c.frame) {
			delivered++
		}
	}
	h.metrics.Delivered(delivered)
	slog.Debug("Broadcast delivered", "recipients", delivered, "total_clients", len(h.clients))
}

func (h *Hub) handleSend(c sendCmd) {
	cw, exists := h.clients[c.id]
	if !exists {
		slog.Debug("Dropping frame for unknown connection", "conn_id", c.id)
		return
	}
	if h.deliver(c.id, cw, c.frame) {
		h.metrics.Delivered(1)
	}
}

// deliver never blocks. Closed writers are skipped silently; a full buffer
// drops the frame for that client only.
func (h *Hub) deliver(id string, cw *clientWriter, frame []byte) bool {
	if !cw.open() {
		return false
	}
	if !cw.send(frame) {
		slog.Warn("Dropping frame for slow client", "conn_id", id, "buffer", messageBufferSize)
		h.metrics.Dropped()
		return false
	}
	return true
}

func (h *Hub) handleStop() {
	slog.Info("Hub shutting down", "total_clients", len(h.clients))
	h.closeAllClients(shutdownReason)
}

func (h *Hub) closeAllClients(reason string) {
	for id, cw := range h.clients {
		cw.stopGraceful(reason)
		delete(h.clients, id)
		h.metrics.ConnectionClosed()
	}
}
