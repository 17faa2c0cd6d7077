// Package metrics exposes Prometheus instrumentation for the login server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dtroode/srplogin/internal/model"
)

const namespace = "srplogin"

// Metrics holds the handshake collectors.
type Metrics struct {
	registry *prometheus.Registry

	Results    *prometheus.CounterVec
	Violations *prometheus.CounterVec
	Latency    *prometheus.HistogramVec
	Reaped     prometheus.Counter
	Active     prometheus.GaugeFunc
}

// New registers the collectors on a fresh registry. authenticated reports
// the current number of authenticated connections.
func New(authenticated func() int) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		Results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshake_results_total",
			Help:      "Handshake outcomes by result code.",
		}, []string{"result"}),
		Violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_violations_total",
			Help:      "Connections dropped for protocol violations by message kind.",
		}, []string{"kind"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handshake_step_seconds",
			Help:      "Time spent handling one handshake message.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		Reaped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reaped_connections_total",
			Help:      "Idle handshakes force-ended.",
		}),
		Active: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "authenticated_connections",
			Help:      "Connections currently authenticated.",
		}, func() float64 { return float64(authenticated()) }),
	}

	reg.MustRegister(m.Results, m.Violations, m.Latency, m.Reaped, m.Active)
	return m
}

// ObserveResult counts a result sent to a client.
func (m *Metrics) ObserveResult(code model.ResultCode) {
	m.Results.WithLabelValues(code.String()).Inc()
}

// ObserveViolation counts a protocol violation.
func (m *Metrics) ObserveViolation(kind string) {
	m.Violations.WithLabelValues(kind).Inc()
}

// ObserveStep records how long a message took to handle.
func (m *Metrics) ObserveStep(kind string, d time.Duration) {
	m.Latency.WithLabelValues(kind).Observe(d.Seconds())
}

// ObserveReaped counts force-ended handshakes.
func (m *Metrics) ObserveReaped(n int) {
	m.Reaped.Add(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
