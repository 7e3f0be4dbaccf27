package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/actionrelay/internal/adapter/metrics"
	"github.com/pscheid92/actionrelay/internal/platform/config"
	"github.com/pscheid92/actionrelay/internal/relay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthOK(_ context.Context) error { return nil }

func healthErr(msg string) func(context.Context) error {
	return func(_ context.Context) error { return errors.New(msg) }
}

func newTestServer(t *testing.T, checks []HealthCheck, opts ...Option) *Server {
	t.Helper()
	hub := relay.NewHub(clockwork.NewRealClock(), nil)
	t.Cleanup(hub.Stop)
	return NewServer(&config.Relay{Port: "0"}, relay.NewServer(hub), checks, opts...)
}

func get(t *testing.T, srv http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestWebSocketRoutes(t *testing.T) {
	srv := newTestServer(t, nil)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	for _, path := range []string{"/", "/ws"} {
		t.Run(path, func(t *testing.T) {
			url := "ws" + strings.TrimPrefix(ts.URL, "http") + path
			header := http.Header{"Origin": []string{"http://somewhere.else"}}
			conn, _, err := websocket.DefaultDialer.Dial(url, header)
			require.NoError(t, err, "any origin is accepted")
			defer conn.Close()

			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
			require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
			_, msg, err := conn.ReadMessage()
			require.NoError(t, err)
			assert.JSONEq(t, `{"kind":"action","payload":{"type":"ping"}}`, string(msg))
		})
	}
}

func TestWebSocketRoute_PlainHTTP(t *testing.T) {
	rec := get(t, newTestServer(t, nil), "/")
	assert.Equal(t, http.StatusUpgradeRequired, rec.Code)
}

func TestHandleLiveness(t *testing.T) {
	rec := get(t, newTestServer(t, nil), "/health/live")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, 0.0, body["clients"])
	assert.Contains(t, body, "uptime")
}

func TestHandleReadiness(t *testing.T) {
	srv := newTestServer(t, []HealthCheck{{Name: "redis", Check: healthOK}})

	rec := get(t, srv, "/health/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready"}`, rec.Body.String())
}

func TestHandleReadiness_CheckFails(t *testing.T) {
	srv := newTestServer(t, []HealthCheck{
		{Name: "redis", Check: healthErr("connection refused")},
	})

	rec := get(t, srv, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"unhealthy","failed_check":"redis","error":"connection refused"}`, rec.Body.String())
}

func TestHandleVersion(t *testing.T) {
	rec := get(t, newTestServer(t, nil), "/version")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "relay", body["service"])
	assert.NotEmpty(t, body["go_version"])
}

func TestMetricsRoute(t *testing.T) {
	without := newTestServer(t, nil)
	assert.Equal(t, http.StatusNotFound, get(t, without, "/metrics").Code)

	reg := metrics.NewRegistry()
	metrics.NewRelayMetrics(reg)
	with := newTestServer(t, nil, WithMetrics(reg))

	get(t, with, "/version")
	rec := get(t, with, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "actionrelay_relay_active_connections")
	assert.Contains(t, rec.Body.String(), `actionrelay_http_requests_total{method="GET",route="/version",status_code="200"} 1`)
}

func TestWebSocket_RejectsUnlistedOrigin(t *testing.T) {
	hub := relay.NewHub(clockwork.NewRealClock(), nil)
	t.Cleanup(hub.Stop)
	cfg := &config.Relay{Port: "0", AppEnv: "production", AllowedOrigins: []string{"https://stream.example.com"}}
	ts := httptest.NewServer(NewServer(cfg, relay.NewServer(hub), nil))
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://evil.example.com"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://stream.example.com"}})
	require.NoError(t, err)
	conn.Close()
}

func TestWebSocket_UpgradeRateLimit(t *testing.T) {
	hub := relay.NewHub(clockwork.NewRealClock(), nil)
	t.Cleanup(hub.Stop)
	cfg := &config.Relay{Port: "0", UpgradeRate: 0.01, UpgradeBurst: 1}
	srv := NewServer(cfg, relay.NewServer(hub), nil)

	assert.Equal(t, http.StatusUpgradeRequired, get(t, srv, "/ws").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(t, srv, "/ws").Code)
	assert.Equal(t, http.StatusOK, get(t, srv, "/health/live").Code, "health routes are not limited")
}
