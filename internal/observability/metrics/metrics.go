package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters/histograms for the scheduling tool flows.
type SchedulingMetrics struct {
	toolCallsTotal    *prometheus.CounterVec
	toolLatency       *prometheus.HistogramVec
	bookingsTotal     *prometheus.CounterVec
	cancellationsTotal *prometheus.CounterVec
	rollbacksTotal    *prometheus.CounterVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		toolCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voxdesk",
			Subsystem: "scheduling",
			Name:      "tool_calls_total",
			Help:      "Total voice tool invocations",
		}, []string{"tool", "status"}),
		toolLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "voxdesk",
			Subsystem: "scheduling",
			Name:      "tool_latency_seconds",
			Help:      "Latency of tool invocation handling",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voxdesk",
			Subsystem: "scheduling",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome",
		}, []string{"provider", "outcome"}),
		cancellationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voxdesk",
			Subsystem: "scheduling",
			Name:      "cancellations_total",
			Help:      "Cancellation attempts by outcome",
		}, []string{"outcome"}),
		rollbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voxdesk",
			Subsystem: "scheduling",
			Name:      "provider_rollbacks_total",
			Help:      "Compensating provider cancellations after local commit failure",
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.toolCallsTotal, m.toolLatency, m.bookingsTotal, m.cancellationsTotal, m.rollbacksTotal)
	return m
}

func (m *SchedulingMetrics) ObserveToolCall(tool, status string, seconds float64) {
	if m == nil {
		return
	}
	m.toolCallsTotal.WithLabelValues(tool, status).Inc()
	m.toolLatency.WithLabelValues(tool).Observe(seconds)
}

func (m *SchedulingMetrics) ObserveBooking(provider, outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(provider, outcome).Inc()
}

func (m *SchedulingMetrics) ObserveCancellation(outcome string) {
	if m == nil {
		return
	}
	m.cancellationsTotal.WithLabelValues(outcome).Inc()
}

func (m *SchedulingMetrics) ObserveRollback(outcome string) {
	if m == nil {
		return
	}
	m.rollbacksTotal.WithLabelValues(outcome).Inc()
}
