package correlation

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	inner := slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(NewHandler(inner))
}

func TestNewID(t *testing.T) {
	ids := make(map[string]struct{}, 100)
	for range 100 {
		id := NewID()
		require.Len(t, id, 8)
		ids[id] = struct{}{}
	}
	assert.Len(t, ids, 100)
}

func TestNewConnID_IsUUID(t *testing.T) {
	id := NewConnID()
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
	assert.NotEqual(t, id, NewConnID())
}

func TestContextValues(t *testing.T) {
	ctx := WithConnID(WithID(context.Background(), "abc12345"), "conn-1")

	id, ok := ID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "abc12345", id)

	conn, ok := ConnID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "conn-1", conn)

	_, ok = ID(context.Background())
	assert.False(t, ok)
	_, ok = ConnID(WithConnID(context.Background(), ""))
	assert.False(t, ok, "empty ids are treated as absent")
}

func TestHandler_StampsIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf).With("component", "relay")

	ctx := WithConnID(WithID(context.Background(), "frame001"), "conn-7")
	logger.InfoContext(ctx, "Frame relayed", "outcome", "echo")

	out := buf.String()
	assert.Contains(t, out, "conn_id=conn-7")
	assert.Contains(t, out, "correlation_id=frame001")
	assert.Contains(t, out, "component=relay")
	assert.Contains(t, out, "outcome=echo")
}

func TestHandler_OmitsMissingIDs(t *testing.T) {
	var buf bytes.Buffer
	newTestLogger(&buf).InfoContext(context.Background(), "plain")

	assert.NotContains(t, buf.String(), "conn_id")
	assert.NotContains(t, buf.String(), "correlation_id")
}

func TestHandler_WithGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf).WithGroup("hub")

	logger.InfoContext(WithConnID(context.Background(), "c1"), "registered", "clients", 2)
	assert.Contains(t, buf.String(), "hub.clients=2")
}
