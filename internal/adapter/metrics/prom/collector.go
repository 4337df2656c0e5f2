// Package prom exports step metrics to Prometheus.
package prom

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"agentbridge/internal/app/ports"
)

type Collector struct {
	steps        *prometheus.CounterVec
	stepLatency  *prometheus.HistogramVec
	rescues      prometheus.Counter
	sessionsLost prometheus.Counter
	gatherer     prometheus.Gatherer
}

var _ ports.StepMetrics = (*Collector)(nil)

// NewCollector registers the bridge metrics on a fresh registry so several
// collectors can coexist in tests.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_steps_total",
			Help: "Total number of step submissions by outcome",
		}, []string{"outcome"}),
		stepLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bridge_step_duration_seconds",
			Help:    "Wall time of a step from arming to response",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300, 600},
		}, []string{"outcome"}),
		rescues: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bridge_liveness_rescues_total",
			Help: "Total number of stalled-agent rescues",
		}),
		sessionsLost: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bridge_sessions_lost_total",
			Help: "Total number of world sessions lost unexpectedly",
		}),
		gatherer: reg,
	}
	reg.MustRegister(c.steps, c.stepLatency, c.rescues, c.sessionsLost)
	return c
}

func (c *Collector) RecordStep(outcome string, elapsed time.Duration) {
	c.steps.WithLabelValues(outcome).Inc()
	c.stepLatency.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (c *Collector) RecordRescue() {
	c.rescues.Inc()
}

func (c *Collector) RecordSessionLost() {
	c.sessionsLost.Inc()
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
