package prometheus

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	sessionkit "github.com/mindwell-app/sessionkit"
)

// MetricsSource is the read surface the collector scrapes. A
// [sessionkit.Coordinator] satisfies it.
type MetricsSource interface {
	MetricsSnapshot() sessionkit.MetricsSnapshot
	EventsDropped() uint64
}

// Collector implements [prometheus.Collector] over a [MetricsSource].
type Collector struct {
	source      MetricsSource
	descs       map[sessionkit.MetricID]*prometheus.Desc
	droppedDesc *prometheus.Desc
}

// NewCollector creates a collector that scrapes source.
func NewCollector(source MetricsSource) *Collector {
	descs := make(map[sessionkit.MetricID]*prometheus.Desc, len(sessionkit.MetricDefs))
	for _, def := range sessionkit.MetricDefs {
		descs[def.ID] = prometheus.NewDesc(def.Name, def.Help, nil, nil)
	}

	return &Collector{
		source: source,
		descs:  descs,
		droppedDesc: prometheus.NewDesc(
			"sessionkit_events_dropped_total",
			"Lifecycle events discarded due to dispatcher backpressure.",
			nil, nil,
		),
	}
}

// Describe implements [prometheus.Collector].
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, def := range sessionkit.MetricDefs {
		ch <- c.descs[def.ID]
	}
	ch <- c.droppedDesc
}

// Collect implements [prometheus.Collector].
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snapshot := c.source.MetricsSnapshot()
	for _, def := range sessionkit.MetricDefs {
		ch <- prometheus.MustNewConstMetric(
			c.descs[def.ID], prometheus.CounterValue, float64(snapshot.Counters[def.ID]),
		)
	}
	ch <- prometheus.MustNewConstMetric(
		c.droppedDesc, prometheus.CounterValue, float64(c.source.EventsDropped()),
	)
}

// Handler returns an http.Handler serving the source's metrics on a private
// registry, ready to mount on /metrics.
func Handler(source MetricsSource) http.Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(NewCollector(source))
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
