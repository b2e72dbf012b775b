package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SelectionChanged("overlays", "selected")
		m.SessionCreated()
		m.SetSessions(3)
		m.CatalogReloaded(4)
		m.SetCatalogLayers(1)
		m.ObserveGeocode("search", time.Second, nil)
		m.StreamOpened()()
	})
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCounters(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.SelectionChanged("overlays", "selected")
	m.SelectionChanged("overlays", "selected")
	m.SelectionChanged("base", "unselected")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.selectionChanges.WithLabelValues("overlays", "selected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.selectionChanges.WithLabelValues("base", "unselected")))

	m.SetSessions(5)
	assert.Equal(t, 5.0, testutil.ToFloat64(m.sessions))

	m.CatalogReloaded(12)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.catalogReloads))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.catalogLayers))

	m.ObserveGeocode("search", 20*time.Millisecond, nil)
	m.ObserveGeocode("search", 20*time.Millisecond, errors.New("boom"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.geocodeRequests.WithLabelValues("search", "error")))

	done := m.StreamOpened()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sseStreams))
	done()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.sseStreams))
}

func TestHandler(t *testing.T) {
	m := New()
	m.SessionCreated()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mapview_sessions_created_total 1")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
