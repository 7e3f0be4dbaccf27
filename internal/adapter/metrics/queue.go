package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// QueueMetrics holds Prometheus metrics for the client action queue.
type QueueMetrics struct {
	Depth            prometheus.Gauge
	ActionsTotal     *prometheus.CounterVec
	DispatchDuration *prometheus.HistogramVec
}

// NewQueueMetrics creates and registers queue metrics on the given registry.
func NewQueueMetrics(reg prometheus.Registerer) *QueueMetrics {
	m := &QueueMetrics{
		Depth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Actions waiting to be dispatched.",
		}),
		ActionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "actions_total",
			Help:      "Dispatched actions by type and outcome.",
		}, []string{"type", "outcome"}),
		DispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "dispatch_duration_seconds",
			Help:      "Time from dequeue to completion signal.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2, 5, 10, 30},
		}, []string{"type"}),
	}

	reg.MustRegister(m.Depth, m.ActionsTotal, m.DispatchDuration)
	return m
}

// SetDepth implements queue.Observer.
func (m *QueueMetrics) SetDepth(n int) {
	m.Depth.Set(float64(n))
}

// ObserveDispatch implements queue.Observer.
func (m *QueueMetrics) ObserveDispatch(actionType string, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.ActionsTotal.WithLabelValues(actionType, outcome).Inc()
	m.DispatchDuration.WithLabelValues(actionType).Observe(d.Seconds())
}
