package observability

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// unknownFunction labels requests that did not name a registered command,
// keeping label cardinality bounded.
const unknownFunction = "unknown"

// Metrics holds the agent's collectors.
type Metrics struct {
	registry *prometheus.Registry
	dialed   atomic.Bool

	Dispatches *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
	Sessions   prometheus.Gauge
	Transport  prometheus.Gauge
	Reconnects prometheus.Counter
}

// NewMetrics creates the collectors and registers them on a private registry
// together with the Go and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tendril_dispatch_total",
				Help: "Total number of dispatched requests",
			},
			[]string{"function", "status"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tendril_dispatch_duration_seconds",
				Help:    "Duration of command executions",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"function"},
		),
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tendril_sessions_active",
			Help: "Number of sessions holding a driver",
		}),
		Transport: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tendril_transport_state",
			Help: "Backend connection state (0 disconnected, 1 connecting, 2 connected, 3 stopped)",
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tendril_transport_reconnects_total",
			Help: "Total number of reconnection attempts to the backend",
		}),
	}
	m.registry.MustRegister(
		m.Dispatches, m.Duration, m.Sessions, m.Transport, m.Reconnects,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Hooks returns dispatcher hooks that record every dispatch.
func (m *Metrics) Hooks() domain.Hooks {
	return domain.Hooks{
		OnDispatch: func(_ context.Context, e *domain.DispatchEvent) {
			fn := e.Function
			if !e.Resolved {
				fn = unknownFunction
			}
			m.Dispatches.WithLabelValues(fn, string(e.Status)).Inc()
			if e.Resolved {
				m.Duration.WithLabelValues(fn).Observe(e.Duration.Seconds())
			}
		},
	}
}

// SetSessions is a session registry change callback.
func (m *Metrics) SetSessions(active int) {
	m.Sessions.Set(float64(active))
}

// transportConnecting is the numeric value of the transport's connecting state.
const transportConnecting = 1

// ObserveTransport records a transport state transition. Every connecting
// state after the first one counts as a reconnect.
func (m *Metrics) ObserveTransport(state int) {
	m.Transport.Set(float64(state))
	if state == transportConnecting && m.dialed.Swap(true) {
		m.Reconnects.Inc()
	}
}
