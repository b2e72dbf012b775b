// Package metrics exposes Prometheus instruments for the viewer backend.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "mapview"

// Metrics holds the registered instruments.
type Metrics struct {
	reg *prometheus.Registry

	selectionChanges *prometheus.CounterVec
	sessions         prometheus.Gauge
	sessionsCreated  prometheus.Counter
	catalogReloads   prometheus.Counter
	catalogLayers    prometheus.Gauge
	geocodeRequests  *prometheus.CounterVec
	geocodeDuration  *prometheus.HistogramVec
	sseStreams       prometheus.Gauge
}

// New registers the instruments on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg)
}

// NewWithRegistry registers the instruments on reg.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		reg: reg,

		selectionChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "selection_changes_total",
			Help:      "Layer selection changes by tree and resulting status",
		}, []string{"tree", "status"}),

		sessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "active_sessions",
			Help:      "Number of live viewer sessions",
		}),

		sessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "sessions_created_total",
			Help:      "Total number of viewer sessions created",
		}),

		catalogReloads: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "catalog_reloads_total",
			Help:      "Total number of map description reloads",
		}),

		catalogLayers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "catalog_overlay_layers",
			Help:      "Number of overlay layers in the catalogue",
		}),

		geocodeRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoder requests by kind and outcome",
		}, []string{"kind", "outcome"}),

		geocodeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "geocode_duration_seconds",
			Help:      "Geocoder request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),

		sseStreams: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "sse_streams",
			Help:      "Number of open server-sent event streams",
		}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) SelectionChanged(tree, status string) {
	if m == nil {
		return
	}
	m.selectionChanges.WithLabelValues(tree, status).Inc()
}

func (m *Metrics) SessionCreated() {
	if m == nil {
		return
	}
	m.sessionsCreated.Inc()
}

func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.sessions.Set(float64(n))
}

// CatalogReloaded counts a reload and records the resulting layer count.
func (m *Metrics) CatalogReloaded(layers int) {
	if m == nil {
		return
	}
	m.catalogReloads.Inc()
	m.catalogLayers.Set(float64(layers))
}

func (m *Metrics) SetCatalogLayers(n int) {
	if m == nil {
		return
	}
	m.catalogLayers.Set(float64(n))
}

// ObserveGeocode records one geocoder round trip.
func (m *Metrics) ObserveGeocode(kind string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.geocodeRequests.WithLabelValues(kind, outcome).Inc()
	m.geocodeDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// StreamOpened tracks an SSE stream; call the returned func when it closes.
func (m *Metrics) StreamOpened() func() {
	if m == nil {
		return func() {}
	}
	m.sseStreams.Inc()
	return m.sseStreams.Dec
}
