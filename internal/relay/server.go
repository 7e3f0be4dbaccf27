package relay

import (
	"context"
	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/pscheid92/actionrelay/internal/adapter/metrics"
	"github.com/pscheid92/actionrelay/internal/platform/correlation"
)

const maxFrameSize = 1 << 20

// Fanout publishes broadcast frames to every relay instance, this one included.
// Frames come back through Server.Deliver.
type Fanout interface {
	Publish(ctx context.Context, frame []byte) error
}

// Server reads frames from connections and routes them through the hub.
type Server struct {
	hub     *Hub
	fanout  Fanout
	metrics *metrics.RelayMetrics
}

type ServerOption func(*Server)

// WithFanout routes broadcasts through f instead of delivering them locally.
func WithFanout(f Fanout) ServerOption {
	return func(s *Server) { s.fanout = f }
}

// WithMetrics records frame outcomes and fan-out failures on m.
func WithMetrics(m *metrics.RelayMetrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

func NewServer(hub *Hub, opts ...ServerOption) *Server {
	s := &Server{hub: hub}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServeConn registers conn and reads from it until the peer goes away.
// It blocks for the lifetime of the connection.
func (s *Server) ServeConn(ctx context.Context, conn *websocket.Conn) {
	id := correlation.NewConnID()
	ctx = correlation.WithConnID(ctx, id)

	if err := s.hub.Register(id, conn); err != nil {
		slog.WarnContext(ctx, "Failed to register client", "error", err)
		_ = conn.Close()
		return
	}
	defer s.hub.Unregister(id)

	conn.SetReadLimit(maxFrameSize)
	slog.InfoContext(ctx, "Client connected", "remote", conn.RemoteAddr().String())

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				slog.DebugContext(ctx, "Client read failed", "error", err)
			}
			break
		}
		s.HandleFrame(ctx, id, data)
	}

	slog.InfoContext(ctx, "Client disconnected")
}

// HandleFrame routes one inbound frame from connection id.
func (s *Server) HandleFrame(ctx context.Context, id string, data []byte) {
	d := Route(data)
	s.metrics.ObserveFrame(string(d.Outcome))

	switch {
	case d.Outcome == OutcomeIgnored:
	case d.Outcome == OutcomeHello:
		slog.InfoContext(ctx, "Client said hello", "from", d.From)
	case d.ToAll():
		s.Broadcast(ctx, d.Frame)
	default:
		if d.Outcome == OutcomeError {
			slog.DebugContext(ctx, "Rejected frame", "reply", string(d.Frame))
		}
		s.hub.Send(id, d.Frame)
	}
}

// Broadcast sends frame to every open connection, through the fan-out when one
// is configured. A failed publish falls back to local delivery.
func (s *Server) Broadcast(ctx context.Context, frame []byte) {
	if s.fanout != nil {
		err := s.fanout.Publish(ctx, frame)
		if err == nil {
			return
		}
		slog.WarnContext(ctx, "Fan-out publish failed, delivering locally", "error", err)
		s.metrics.FanoutFailed()
	}
	s.hub.Broadcast(frame)
}

// Deliver hands a frame received from the fan-out to local connections.
func (s *Server) Deliver(frame []byte) {
	s.hub.Broadcast(frame)
}

// ClientCount returns the number of open connections.
func (s *Server) ClientCount() int {
	return s.hub.ClientCount()
}
