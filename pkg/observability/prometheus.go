package observability

import (
	"strconv"
	"time"

	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector records phase durations and errors as Prometheus metrics.
type PrometheusCollector struct {
	durations *prometheus.HistogramVec
	errors    *prometheus.CounterVec
}

// NewPrometheusCollector creates the collector and registers its metrics on reg.
// A nil registerer uses prometheus.DefaultRegisterer.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &PrometheusCollector{
		durations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentgraph_phase_duration_seconds",
				Help:    "Duration of agent graph phase executions",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"phase", "errored"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentgraph_phase_errors_total",
				Help: "Total number of failed phase executions",
			},
			[]string{"phase"},
		),
	}
	reg.MustRegister(c.durations, c.errors)
	return c
}

// RecordDuration implements ports.PerformanceCollector.
func (c *PrometheusCollector) RecordDuration(phase domain.Phase, d time.Duration, errored bool) {
	c.durations.WithLabelValues(phase.String(), strconv.FormatBool(errored)).Observe(d.Seconds())
	if errored {
		c.errors.WithLabelValues(phase.String()).Inc()
	}
}
