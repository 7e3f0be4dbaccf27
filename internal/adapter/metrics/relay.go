package metrics

import "github.com/prometheus/client_golang/prometheus"

// RelayMetrics holds Prometheus metrics for the relay hub.
type RelayMetrics struct {
	ActiveConnections prometheus.Gauge
	FramesTotal       *prometheus.CounterVec
	DeliveriesTotal   prometheus.Counter
	DroppedFrames     prometheus.Counter
	FanoutFailures    prometheus.Counter
}

// NewRelayMetrics creates and registers relay metrics on the given registry.
func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	m := &RelayMetrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "active_connections",
			Help:      "Number of open relay WebSocket connections.",
		}),
		FramesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "frames_total",
			Help:      "Inbound text frames by routing outcome.",
		}, []string{"outcome"}),
		DeliveriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "deliveries_total",
			Help:      "Outbound frames handed to connection writers.",
		}),
		DroppedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "dropped_frames_total",
			Help:      "Outbound frames dropped because a connection's send buffer was full.",
		}),
		FanoutFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "fanout_publish_failures_total",
			Help:      "Broadcasts that fell back to local delivery because the fan-out publish failed.",
		}),
	}

	reg.MustRegister(m.ActiveConnections, m.FramesTotal, m.DeliveriesTotal, m.DroppedFrames, m.FanoutFailures)
	return m
}

// The helpers below are nil-safe so the relay can run without a registry.

func (m *RelayMetrics) ObserveFrame(outcome string) {
	if m == nil {
		return
	}
	m.FramesTotal.WithLabelValues(outcome).Inc()
}

func (m *RelayMetrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.ActiveConnections.Inc()
}

func (m *RelayMetrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.ActiveConnections.Dec()
}

func (m *RelayMetrics) Delivered(n int) {
	if m == nil || n == 0 {
		return
	}
	m.DeliveriesTotal.Add(float64(n))
}

func (m *RelayMetrics) Dropped() {
	if m == nil {
		return
	}
	m.DroppedFrames.Inc()
}

func (m *RelayMetrics) FanoutFailed() {
	if m == nil {
		return
	}
	m.FanoutFailures.Inc()
}
