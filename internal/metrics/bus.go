package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/echoface/pbevents/internal/events"
)

// BusMetrics 事件总线相关指标, implements events.Observer
type BusMetrics struct {
	// 事件相关指标
	Emitted  *prometheus.CounterVec
	Rejected *prometheus.CounterVec
	AuditLog prometheus.Gauge

	// handler 相关指标
	Invocations *prometheus.CounterVec

	// 延迟相关指标
	DispatchLatency *prometheus.HistogramVec
}

// NewBusMetrics 创建事件总线指标, 注册到 reg
func NewBusMetrics(reg prometheus.Registerer, namespace, subsystem string) *BusMetrics {
	factory := promauto.With(reg)
	return &BusMetrics{
		Emitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "events_emitted_total",
			Help:      "Number of emitted events",
		}, []string{"event"}),
		Rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "subscriptions_rejected_total",
			Help:      "Subscriptions refused because the event name is unknown",
		}, []string{"event"}),
		AuditLog: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "audit_log_entries",
			Help:      "Number of records in the fired-event log",
		}),
		Invocations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "handler_invocations_total",
			Help:      "Handler invocations by scope and result",
		}, []string{"event", "scope", "result"}),
		DispatchLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "dispatch_latency_seconds",
			Help:      "Time spent dispatching one emission",
			Buckets:   []float64{0.00001, 0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"event"}),
	}
}

// ObserveEmit 记录一次事件派发
func (m *BusMetrics) ObserveEmit(event string, outcomes []events.Outcome, elapsed time.Duration) {
	m.Emitted.WithLabelValues(event).Inc()
	m.AuditLog.Inc()
	m.DispatchLatency.WithLabelValues(event).Observe(elapsed.Seconds())

	for _, o := range outcomes {
		result := "ok"
		if !o.OK() {
			result = "failed"
		}
		m.Invocations.WithLabelValues(event, o.Scope.String(), result).Inc()
	}
}

// ObserveRejected 记录被拒绝的订阅
func (m *BusMetrics) ObserveRejected(event string) {
	m.Rejected.WithLabelValues(event).Inc()
}
