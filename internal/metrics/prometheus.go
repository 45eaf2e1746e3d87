package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus implements Metrics on a Prometheus registry.
type Prometheus struct {
	providerCallsTotal   *prometheus.CounterVec
	providerCallDuration *prometheus.HistogramVec
	commandsTotal        *prometheus.CounterVec
}

func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	factory := promauto.With(reg)

	return &Prometheus{
		providerCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "payments",
			Subsystem: "stripe",
			Name:      "api_calls_total",
			Help:      "Total number of Stripe API calls.",
		}, []string{"op", "status"}),

		providerCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "payments",
			Subsystem: "stripe",
			Name:      "api_call_duration_seconds",
			Help:      "Duration of Stripe API calls in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),

		commandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "payments",
			Subsystem: "subscriptions",
			Name:      "commands_total",
			Help:      "Total number of subscription commands handled.",
		}, []string{"command", "status"}),
	}
}

func (m *Prometheus) RecordProviderCall(op, status string) {
	m.providerCallsTotal.WithLabelValues(op, status).Inc()
}

func (m *Prometheus) RecordProviderCallDuration(op string, duration time.Duration) {
	m.providerCallDuration.WithLabelValues(op).Observe(duration.Seconds())
}

func (m *Prometheus) RecordCommand(command, status string) {
	m.commandsTotal.WithLabelValues(command, status).Inc()
}
