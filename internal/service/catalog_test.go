package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const sampleDescription = `{
  "default_wms_legend_icon": "img/legend.png",
  "baseLayers": [
    {"label": "OpenStreetMap", "type": "XYZ", "url": "https://tile.openstreetmap.org/{z}/{x}/{y}.png"},
    {"label": "Luftbild", "type": "WMS", "url": "https://example.org/wms"}
  ],
  "overlays": [
    {"thema": "Energie", "label": "Windenergieanlagen Onshore", "type": "GeoJSON", "geomType": "Point"},
    {"thema": "Energie", "label": "Biogasanlagen", "type": "GeoJSON", "abstract": "Anlagen <250 kW"},
    {"thema": "Verkehr", "label": "Strassennetz", "type": "WMS", "url_legend": "img/strassen.png", "options": {"layers": "strassen", "transparent": true}},
    {"thema": "Energie", "label": "Umspannwerke", "type": "GeoJSON"}
  ]
}`

func writeDescription(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestCatalog(t *testing.T, bus *EventBus) *CatalogService {
	t.Helper()
	dir := t.TempDir()
	writeDescription(t, dir, DefaultCatalogFile, sampleDescription)
	s, err := NewCatalogService(dir, "", bus)
	require.NoError(t, err)
	return s
}

func TestCatalogLoad(t *testing.T) {
	s := newTestCatalog(t, nil)
	desc := s.Description()

	assert.Equal(t, "img/legend.png", desc.DefaultWMSLegendIcon)
	assert.Equal(t, DefaultView, desc.View)
	require.Len(t, desc.BaseLayers, 2)
	assert.Equal(t, "openstreetmap", desc.BaseLayers[0].ID)

	ids := make([]string, 0, len(desc.Overlays))
	for _, l := range desc.Overlays {
		ids = append(ids, l.ID)
	}
	assert.Equal(t, []string{"windenergieanlagen_onshore", "biogasanlagen", "strassennetz", "umspannwerke"}, ids)
	assert.Equal(t, "strassen", desc.Overlays[2].Options["layers"])

	themes := s.Themes()
	require.Len(t, themes, 2)
	assert.Equal(t, "Energie", themes[0].Name)
	assert.Len(t, themes[0].Layers, 3)
	assert.Equal(t, "Umspannwerke", themes[0].Layers[2].Label)
	assert.Equal(t, "Verkehr", themes[1].Name)
}

func TestCatalogMissingFile(t *testing.T) {
	dir := t.TempDir()
	s, err := NewCatalogService(dir, "", nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, DefaultCatalogFile), s.Path())
	assert.Empty(t, s.Overlays())
	assert.Equal(t, DefaultView, s.Description().View)
}

func TestCatalogInvalidFile(t *testing.T) {
	dir := t.TempDir()
	writeDescription(t, dir, DefaultCatalogFile, `{"overlays": [`)
	_, err := NewCatalogService(dir, "", nil)
	assert.Error(t, err)
}

func TestCatalogCRUD(t *testing.T) {
	bus := NewEventBus()
	s := newTestCatalog(t, bus)
	ch := bus.Subscribe()

	created, err := s.Create(LayerDescription{Thema: "Energie", Label: "Freileitungen ab 110kV", Type: TypeWMS})
	require.NoError(t, err)
	assert.Equal(t, "freileitungen_ab_110kv", created.ID)
	assert.Equal(t, Event{Resource: ResourceLayers, Action: ActionCreated, ID: created.ID}, <-ch)

	_, err = s.Create(LayerDescription{Label: "Freileitungen ab 110kV"})
	assert.ErrorIs(t, err, ErrLayerExists)
	_, err = s.Create(LayerDescription{ID: "luftbild", Label: "Clash"})
	assert.ErrorIs(t, err, ErrLayerExists)

	updated, err := s.Update(created.ID, LayerDescription{ID: "ignored", Thema: "Netze", Label: "Freileitungen"})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, ActionUpdated, (<-ch).Action)

	_, err = s.Update("nope", LayerDescription{Label: "x"})
	assert.ErrorIs(t, err, ErrLayerNotFound)

	reopened, err := NewCatalogService(filepath.Dir(s.Path()), "", nil)
	require.NoError(t, err)
	got, err := reopened.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Netze", got.Thema)
	assert.Len(t, reopened.Overlays(), 5)

	require.NoError(t, s.Delete(created.ID))
	assert.Equal(t, Event{Resource: ResourceLayers, Action: ActionDeleted, ID: created.ID}, <-ch)
	_, err = s.Get(created.ID)
	assert.ErrorIs(t, err, ErrLayerNotFound)
	assert.ErrorIs(t, s.Delete(created.ID), ErrLayerNotFound)
}

func TestCatalogYAML(t *testing.T) {
	dir := t.TempDir()
	writeDescription(t, dir, "layerdef.yaml", `
view:
  center: [54.1, 12.1]
  zoom: 10
  minZoom: 7
  maxBounds: [[53, 9.8], [55.5, 15]]
baseLayers:
  - label: OpenStreetMap
    type: XYZ
overlays:
  - thema: Wasser
    label: Seen
`)
	s, err := NewCatalogService(dir, "layerdef.yaml", nil)
	require.NoError(t, err)
	assert.Equal(t, 10, s.Description().View.Zoom)

	_, err = s.Create(LayerDescription{Thema: "Wasser", Label: "Flüsse"})
	require.NoError(t, err)

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	var desc MapDescription
	require.NoError(t, yaml.Unmarshal(data, &desc))
	require.Len(t, desc.Overlays, 2)
	assert.Equal(t, "fluesse", desc.Overlays[1].ID)
	assert.True(t, s.savedContent(data))
}

func TestGenerateID(t *testing.T) {
	tests := map[string]string{
		"Freiflächenanlagen ATKIS": "freiflaechenanlagen_atkis",
		"Straße":                   "strasse",
		"A-B c!":                   "a_b_c",
		"":                         "layer",
		"???":                      "layer",
	}
	for in, want := range tests {
		assert.Equal(t, want, generateID(in), in)
	}
}

func TestNormalizeDeduplicatesIDs(t *testing.T) {
	desc := MapDescription{
		BaseLayers: []LayerDescription{{Label: "Karte"}},
		Overlays:   []LayerDescription{{Label: "Karte"}, {Label: "Karte"}, {ID: "fixed", Label: "x"}},
	}
	normalize(&desc)
	assert.Equal(t, "karte", desc.BaseLayers[0].ID)
	assert.Equal(t, "karte_2", desc.Overlays[0].ID)
	assert.Equal(t, "karte_3", desc.Overlays[1].ID)
	assert.Equal(t, "fixed", desc.Overlays[2].ID)
	assert.Equal(t, DefaultView, desc.View)
}

func TestViewGeometry(t *testing.T) {
	assert.Equal(t, orb.Point{12.45, 53.9}, DefaultView.CenterPoint())
	b := DefaultView.Bound()
	assert.Equal(t, orb.Point{9.8, 53}, b.Min)
	assert.Equal(t, orb.Point{15, 55.5}, b.Max)
	assert.True(t, b.Contains(DefaultView.CenterPoint()))
}

func TestCatalogWatchReloads(t *testing.T) {
	bus := NewEventBus()
	s := newTestCatalog(t, bus)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx, 10*time.Millisecond) }()

	edited := `{"overlays": [{"thema": "Neu", "label": "Neue Ebene"}]}`
	require.Eventually(t, func() bool {
		if _, err := s.Get("neue_ebene"); err == nil {
			return true
		}
		// Rewrite until the watcher has picked up the directory.
		_ = os.WriteFile(s.Path(), []byte(edited), 0o644)
		return false
	}, 5*time.Second, 50*time.Millisecond)
	assert.Len(t, s.Overlays(), 1)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
