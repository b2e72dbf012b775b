package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-mapview/internal/service"
)

const layerdef = `{
  "baseLayers": [{"label": "OpenStreetMap", "type": "XYZ"}],
  "overlays": [
    {"thema": "Energie", "label": "Biogasanlagen", "type": "GeoJSON"},
    {"thema": "Verkehr", "label": "Strassennetz", "type": "WMS"}
  ]
}`

func get(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestServer(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, service.DefaultCatalogFile), []byte(layerdef), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "tiles"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tiles", "base.pmtiles"), []byte("0123456789"), 0o644))

	srv, err := New(Config{Host: "localhost", Port: "8086", DataDir: dir, SessionTTL: time.Hour, InMemoryDB: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv.Start(ctx)

	rec := get(t, srv, http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"plat-mapview"`)
	assert.Equal(t, http.StatusNotFound, get(t, srv, http.MethodGet, "/nope").Code)

	rec = get(t, srv, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	var health struct {
		Status string `json:"status"`
		Layers int    `json:"layers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, 2, health.Layers)

	rec = get(t, srv, http.MethodGet, "/viewer")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "overlay-panel")
	require.Len(t, rec.Result().Cookies(), 1)

	rec = get(t, srv, http.MethodOptions, "/tiles/base.pmtiles")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest(http.MethodGet, "/tiles/base.pmtiles", nil)
	req.Header.Set("Range", "bytes=2-4")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "234", rec.Body.String())

	rec = get(t, srv, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mapview_catalog_overlay_layers 2")

	require.Eventually(t, func() bool {
		rec := get(t, srv, http.MethodGet, "/api/v1/tables")
		return rec.Code == http.StatusOK && strings.Contains(rec.Body.String(), "catalog_layers")
	}, 5*time.Second, 20*time.Millisecond)

	doc := srv.OpenAPI()
	assert.Equal(t, "plat-mapview API", doc.Info.Title)
	assert.Contains(t, doc.Paths, "/api/v1/sessions/{sid}/trees/{tree}")
}
