package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-mapview/internal/geocode"
	"github.com/joeblew999/plat-mapview/internal/service"
	"github.com/joeblew999/plat-mapview/internal/tree"
)

const layerdef = `{
  "baseLayers": [{"label": "OpenStreetMap", "type": "XYZ"}, {"label": "Luftbild", "type": "WMS"}],
  "overlays": [
    {"thema": "Energie", "label": "Biogasanlagen", "type": "GeoJSON"},
    {"thema": "Energie", "label": "Umspannwerke", "type": "GeoJSON"},
    {"thema": "Verkehr", "label": "Strassennetz", "type": "WMS"}
  ]
}`

func setup(t *testing.T) (humatest.TestAPI, *Services) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, service.DefaultCatalogFile), []byte(layerdef), 0o644))

	bus := service.NewEventBus()
	cat, err := service.NewCatalogService(dir, "", bus)
	require.NoError(t, err)
	svc := &Services{
		Catalog:  cat,
		Tile:     service.NewTileService(dir),
		Sessions: service.NewSessionStore(cat, bus, nil, 0),
	}

	config := huma.DefaultConfig("mapview test", Version)
	config.Transformers = append(config.Transformers, LinkTransformer())
	api := humatest.Wrap(t, humago.New(http.NewServeMux(), config))
	RegisterRoutes(api, svc)
	NewInfoHandler(dir, false, false).RegisterRoutes(api)
	NewDBHandler(nil).RegisterRoutes(api)
	return api, svc
}

func decode[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &v), resp.Body.String())
	return v
}

func TestHealthAndInfo(t *testing.T) {
	api, svc := setup(t)
	svc.Sessions.Create(nil)

	resp := api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)
	health := decode[HealthBody](t, resp)
	assert.Equal(t, HealthBody{Status: "ok", Version: Version, Layers: 3, Sessions: 1}, health)
	assert.Contains(t, resp.Header().Values("Link"), `</api/v1/map>; rel="map"`)

	info := decode[InfoBody](t, api.Get("/api/v1/info"))
	assert.Equal(t, "plat-mapview", info.Name)
	assert.NotContains(t, info.Features, "duckdb")

	assert.Equal(t, http.StatusServiceUnavailable, api.Get("/api/v1/tables").Code)
}

func TestMapEndpoints(t *testing.T) {
	api, _ := setup(t)

	desc := decode[service.MapDescription](t, api.Get("/api/v1/map"))
	assert.Equal(t, service.DefaultView, desc.View)
	assert.Len(t, desc.Overlays, 3)

	themes := decode[[]service.Theme](t, api.Get("/api/v1/themes"))
	require.Len(t, themes, 2)
	assert.Equal(t, "Verkehr", themes[1].Name)

	bases := decode[[]service.LayerDescription](t, api.Get("/api/v1/baselayers"))
	assert.Equal(t, "luftbild", bases[1].ID)

	tiles := decode[[]service.TileFile](t, api.Get("/api/v1/tiles"))
	assert.Empty(t, tiles)
}

func TestLayerCRUD(t *testing.T) {
	api, svc := setup(t)

	resp := api.Get("/api/v1/layers?limit=2")
	require.Equal(t, http.StatusOK, resp.Code)
	page := decode[struct {
		Total int                        `json:"total"`
		Data  []service.LayerDescription `json:"data"`
	}](t, resp)
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Data, 2)
	assert.Contains(t, resp.Header().Values("Link"), `</api/v1/layers?offset=2&limit=2>; rel="next"`)

	page = decode[struct {
		Total int                        `json:"total"`
		Data  []service.LayerDescription `json:"data"`
	}](t, api.Get("/api/v1/layers?thema=Verkehr"))
	assert.Equal(t, 1, page.Total)

	resp = api.Post("/api/v1/layers", map[string]any{"thema": "Energie", "label": "Solarparks", "type": "GeoJSON"})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	created := decode[CreatedLayerBody](t, resp)
	assert.Equal(t, "solarparks", created.ID)

	assert.Equal(t, http.StatusConflict, api.Post("/api/v1/layers", map[string]any{"label": "Solarparks"}).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, api.Post("/api/v1/layers", map[string]any{"thema": "x"}).Code)

	resp = api.Get("/api/v1/layers/solarparks")
	require.Equal(t, http.StatusOK, resp.Code)
	links := resp.Header().Values("Link")
	assert.Contains(t, links, `</api/v1/layers/solarparks>; rel="self"`)
	assert.Contains(t, links, `</api/v1/layers/solarparks>; rel="delete"; method="DELETE"; title="Delete layer"`)

	resp = api.Put("/api/v1/layers/solarparks", map[string]any{"thema": "Verkehr", "label": "Solar"})
	require.Equal(t, http.StatusOK, resp.Code)
	got, err := svc.Catalog.Get("solarparks")
	require.NoError(t, err)
	assert.Equal(t, "Solar", got.Label)

	assert.Equal(t, http.StatusOK, api.Delete("/api/v1/layers/solarparks").Code)
	assert.Equal(t, http.StatusNotFound, api.Delete("/api/v1/layers/solarparks").Code)
	assert.Equal(t, http.StatusNotFound, api.Get("/api/v1/layers/solarparks").Code)
}

func TestSessionEndpoints(t *testing.T) {
	api, _ := setup(t)

	resp := api.Post("/api/v1/sessions", map[string]any{"layers": []string{"Strassennetz"}})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	sess := decode[SessionBody](t, resp)
	require.NotNil(t, sess.BaseLayer)
	assert.Equal(t, "openstreetmap", sess.BaseLayer.ID)
	require.Len(t, sess.Overlays, 1)
	assert.Equal(t, "strassennetz", sess.Overlays[0].ID)

	base := "/api/v1/sessions/" + sess.ID
	snap := decode[[]tree.Snapshot](t, api.Get(base+"/trees/overlays"))
	require.Len(t, snap, 1)
	energie := snap[0].Children[0]
	assert.Equal(t, "Energie", energie.Label)
	assert.Equal(t, "unselected", energie.Status)
	assert.Equal(t, "selected", snap[0].Children[1].Status, "a preselected layer selects its theme")
	assert.Equal(t, "indeterminate", snap[0].Status)

	resp = api.Put(base+"/trees/overlays/nodes/"+energie.ID+"/selected", map[string]any{"selected": true})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, byte('['), resp.Body.Bytes()[0], "the tree is always a JSON array")
	snap = decode[[]tree.Snapshot](t, resp)
	assert.Equal(t, "selected", snap[0].Children[0].Status)
	assert.Equal(t, "selected", snap[0].Status)

	resp = api.Post(base+"/trees/base/select", map[string]any{"value": "Luftbild"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	path := decode[SelectBody](t, resp)
	assert.Len(t, path.Path, 2)

	sess = decode[SessionBody](t, api.Get(base+"/selected"))
	assert.Equal(t, "luftbild", sess.BaseLayer.ID)
	assert.Len(t, sess.Overlays, 3)

	assert.Equal(t, http.StatusNotFound, api.Post(base+"/trees/base/select", map[string]any{"value": "Mars"}).Code)
	assert.Equal(t, http.StatusNotFound, api.Put(base+"/trees/overlays/nodes/nope/selected", map[string]any{"selected": true}).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, api.Get(base+"/trees/sideways").Code)

	assert.Equal(t, http.StatusOK, api.Delete(base).Code)
	assert.Equal(t, http.StatusNotFound, api.Get(base).Code)
	assert.Equal(t, http.StatusNotFound, api.Get("/api/v1/sessions/"+uuid.NewString()+"/trees/base").Code)
}

func TestSearchEndpoints(t *testing.T) {
	api, svc := setup(t)

	body := decode[SearchBody](t, api.Get("/api/v1/search?q=anlagen"))
	require.Len(t, body.Layers, 1)
	assert.Equal(t, "Biogasanlagen", body.Layers[0].Layer.Label)
	assert.Nil(t, body.Places)

	assert.Equal(t, http.StatusServiceUnavailable, api.Get("/api/v1/search?q=markt&places=true").Code)
	assert.Equal(t, http.StatusServiceUnavailable, api.Get("/api/v1/geocode/reverse?lon=12.1&lat=54.1").Code)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(upstream.Close)
	svc.Geocoder = geocode.New(upstream.URL, "")
	assert.Equal(t, http.StatusBadGateway, api.Get("/api/v1/search?q=markt&places=true").Code)
}
