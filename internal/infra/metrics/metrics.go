// Package metrics exposes jukebox counters and gauges in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tubejuke"

// Metrics holds the collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	tierAttempts *prometheus.CounterVec
	playbacks    *prometheus.CounterVec
	enqueued     prometheus.Counter
	skips        *prometheus.CounterVec
	queueDepth   prometheus.Gauge
	watchers     prometheus.Gauge
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tierAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "tier_attempts_total",
			Help:      "Resolver tier attempts by mode, tier and outcome.",
		}, []string{"mode", "tier", "outcome"}),
		playbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "playback",
			Name:      "items_total",
			Help:      "Finished queue items by outcome.",
		}, []string{"outcome"}),
		enqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "enqueued_total",
			Help:      "Items added to the queue.",
		}),
		skips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "playback",
			Name:      "skip_requests_total",
			Help:      "Skip requests by whether something was playing.",
		}, []string{"result"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "pending_items",
			Help:      "Items waiting in the queue.",
		}),
		watchers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "notification",
			Name:      "watchers",
			Help:      "Active watch subscriptions.",
		}),
	}

	m.registry.MustRegister(
		m.tierAttempts,
		m.playbacks,
		m.enqueued,
		m.skips,
		m.queueDepth,
		m.watchers,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveTier counts one resolver tier attempt.
func (m *Metrics) ObserveTier(mode, tier, outcome string) {
	m.tierAttempts.WithLabelValues(mode, tier, outcome).Inc()
}

// ObservePlayback counts one finished item.
func (m *Metrics) ObservePlayback(outcome string) {
	m.playbacks.WithLabelValues(outcome).Inc()
}

// ObserveEnqueue counts one enqueue and records the new depth.
func (m *Metrics) ObserveEnqueue(pending int) {
	m.enqueued.Inc()
	m.queueDepth.Set(float64(pending))
}

// ObserveSkip counts one skip request.
func (m *Metrics) ObserveSkip(skipped bool) {
	result := "idle"
	if skipped {
		result = "skipped"
	}
	m.skips.WithLabelValues(result).Inc()
}

// SetQueueDepth records the number of pending items.
func (m *Metrics) SetQueueDepth(pending int) {
	m.queueDepth.Set(float64(pending))
}

// SetWatchers records the number of watch subscriptions.
func (m *Metrics) SetWatchers(n int) {
	m.watchers.Set(float64(n))
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
