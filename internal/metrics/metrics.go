// Package metrics exposes coordinator and gateway counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lobbysync"

// Metrics holds every collector and the registry they are registered on
type Metrics struct {
	registry *prometheus.Registry

	events      *prometheus.CounterVec
	eventTime   *prometheus.HistogramVec
	connections prometheus.Gauge
	dropped     prometheus.Counter
}

// New creates the collectors on a fresh registry. users and rooms are read
// on every scrape.
func New(users, rooms func() int) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Inbound events handled, by event name and outcome.",
		}, []string{"event", "outcome"}),
		eventTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_duration_seconds",
			Help:      "Time spent handling an inbound event, including waiting for the coordinator.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"event"}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Open WebSocket connections.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Outbound frames dropped because a client's buffer was full.",
		}),
	}

	m.registry.MustRegister(
		m.events,
		m.eventTime,
		m.connections,
		m.dropped,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_users",
			Help:      "Users currently logged in.",
		}, func() float64 { return float64(users()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_rooms",
			Help:      "Rooms currently open.",
		}, func() float64 { return float64(rooms()) }),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler exposes the registry at /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// EventHandled records one handled inbound event
func (m *Metrics) EventHandled(event string, outcome string, elapsed time.Duration) {
	m.events.WithLabelValues(event, outcome).Inc()
	m.eventTime.WithLabelValues(event).Observe(elapsed.Seconds())
}

// ConnectionOpened records a new WebSocket connection
func (m *Metrics) ConnectionOpened() { m.connections.Inc() }

// ConnectionClosed records a closed WebSocket connection
func (m *Metrics) ConnectionClosed() { m.connections.Dec() }

// FrameDropped records a frame lost to a full send buffer
func (m *Metrics) FrameDropped() { m.dropped.Inc() }
