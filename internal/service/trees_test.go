package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-mapview/internal/tree"
)

func layerLabels(ls []LayerDescription) []string {
	out := make([]string, 0, len(ls))
	for _, l := range ls {
		out = append(out, l.Label)
	}
	return out
}

func TestBuildTreesDefaults(t *testing.T) {
	desc := newTestCatalog(t, nil).Description()
	trees := BuildTrees(desc, nil)

	bases := trees.BaseGroup.Children()
	require.Len(t, bases, 2)
	assert.True(t, bases[0].IsSelected())
	assert.False(t, bases[1].IsSelected())
	assert.True(t, trees.BaseGroup.IsRadioGroup())

	themes := trees.OverlayRoot.Children()
	require.Len(t, themes, 2)
	assert.Equal(t, "Energie", themes[0].Text())
	assert.Equal(t, "Verkehr", themes[1].Text())
	assert.Equal(t, "Umspannwerke", themes[0].Children()[2].Text())
	assert.Equal(t, tree.Multi, themes[0].Children()[0].SelectionMode())
	assert.Empty(t, selectedLayers(trees.Overlays))
	assert.Equal(t, tree.Unselected, trees.OverlayRoot.Status())
}

func TestBuildTreesPreselect(t *testing.T) {
	desc := newTestCatalog(t, nil).Description()
	trees := BuildTrees(desc, []string{"Biogasanlagen", "Strassennetz", "Luftbild", "Unbekannt"})

	assert.Equal(t, []string{"Biogasanlagen", "Strassennetz"}, layerLabels(selectedLayers(trees.Overlays)))

	bases := trees.BaseGroup.Children()
	assert.False(t, bases[0].IsSelected())
	assert.True(t, bases[1].IsSelected())

	themes := trees.OverlayRoot.Children()
	assert.Equal(t, tree.Indeterminate, themes[0].Status())
	assert.True(t, themes[0].Expanded())
	assert.Equal(t, tree.Selected, themes[1].Status())
	assert.True(t, themes[1].Expanded())
	assert.True(t, trees.OverlayRoot.Expanded())
}

func TestLayerRenderer(t *testing.T) {
	l := LayerDescription{Label: "Biogas & Co", Img: "img/bio.png", Abstract: "Anlagen <250 kW"}
	n := tree.New(&l, nil, tree.Params{Renderer: LayerRenderer})
	html := string(n.Render().Label)

	assert.Contains(t, html, `title="Anlagen &lt;250 kW"`)
	assert.Contains(t, html, `<img class="layer-icon" src="img/bio.png" alt="">`)
	assert.True(t, strings.HasSuffix(html, "Biogas &amp; Co</div>"))
	assert.Equal(t, "Biogas & Co", n.Text())

	folder := tree.New(&Folder{Name: "Energie"}, nil, tree.Params{Renderer: LayerRenderer})
	assert.Equal(t, "Energie", folder.Text())
	assert.Contains(t, string(folder.Render().Label), ">Energie</div>")
}

func TestGroupThemesDefault(t *testing.T) {
	themes := GroupThemes([]LayerDescription{{Label: "a"}, {Thema: "T", Label: "b"}, {Label: "c"}})
	require.Len(t, themes, 2)
	assert.Equal(t, DefaultTheme, themes[0].Name)
	assert.Equal(t, []string{"a", "c"}, layerLabels(themes[0].Layers))
}
