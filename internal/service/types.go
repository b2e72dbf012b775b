// Package service contains the business logic of the map viewer: the layer
// catalogue, per-session selection trees and the event bus tying them
// together.
package service

import "github.com/paulmach/orb"

// Layer types understood by the viewer.
const (
	TypeGeoJSON = "GeoJSON"
	TypeWMS     = "WMS"
	TypeXYZ     = "XYZ"
)

// DefaultTheme groups overlays that carry no thema.
const DefaultTheme = "Other"

// MapDescription is the map definition file (layerdef.json): the initial
// view, the base layers and the overlay layers.
type MapDescription struct {
	DefaultWMSLegendIcon string             `json:"default_wms_legend_icon,omitempty" yaml:"default_wms_legend_icon,omitempty" doc:"Legend icon used by WMS layers without url_legend"`
	View                 ViewSettings       `json:"view" yaml:"view" doc:"Initial map view"`
	BaseLayers           []LayerDescription `json:"baseLayers" yaml:"baseLayers" doc:"Mutually exclusive background layers"`
	Overlays             []LayerDescription `json:"overlays" yaml:"overlays" doc:"Overlay layers, grouped by thema"`
}

// ViewSettings positions the map. Coordinates are [lat, lon] pairs as in
// the map description file.
type ViewSettings struct {
	Center    [2]float64    `json:"center" yaml:"center" doc:"Map center as [lat, lon]" example:"[53.9,12.45]"`
	Zoom      int           `json:"zoom" yaml:"zoom" minimum:"0" maximum:"22" doc:"Initial zoom level" example:"8"`
	MinZoom   int           `json:"minZoom" yaml:"minZoom" minimum:"0" maximum:"22" doc:"Minimum zoom level" example:"8"`
	MaxBounds [2][2]float64 `json:"maxBounds" yaml:"maxBounds" doc:"Panning limits as [[lat, lon], [lat, lon]]"`
}

// DefaultView covers Mecklenburg-Vorpommern.
var DefaultView = ViewSettings{
	Center:    [2]float64{53.9, 12.45},
	Zoom:      8,
	MinZoom:   8,
	MaxBounds: [2][2]float64{{53, 9.8}, {55.5, 15}},
}

// IsZero reports whether no view was configured.
func (v ViewSettings) IsZero() bool {
	return v == ViewSettings{}
}

// CenterPoint returns the center as an orb point (lon, lat).
func (v ViewSettings) CenterPoint() orb.Point {
	return orb.Point{v.Center[1], v.Center[0]}
}

// Bound returns the panning limits as an orb bound.
func (v ViewSettings) Bound() orb.Bound {
	a := orb.Point{v.MaxBounds[0][1], v.MaxBounds[0][0]}
	b := orb.Point{v.MaxBounds[1][1], v.MaxBounds[1][0]}
	return orb.MultiPoint{a, b}.Bound()
}

// LayerDescription describes one map layer. Options are passed to the
// client map library untouched.
type LayerDescription struct {
	ID        string         `json:"id,omitempty" yaml:"id,omitempty" doc:"Unique layer identifier, derived from the label when empty" example:"windenergieanlagen"`
	Thema     string         `json:"thema,omitempty" yaml:"thema,omitempty" maxLength:"100" doc:"Theme the overlay is grouped under" example:"Energie"`
	Label     string         `json:"label" yaml:"label" required:"true" minLength:"1" maxLength:"200" doc:"Display label, also used by ?layers= preselection" example:"Windenergieanlagen"`
	Type      string         `json:"type,omitempty" yaml:"type,omitempty" enum:"GeoJSON,WMS,XYZ" doc:"Layer type" example:"WMS"`
	URL       string         `json:"url,omitempty" yaml:"url,omitempty" doc:"Data or service URL"`
	URLLegend string         `json:"url_legend,omitempty" yaml:"url_legend,omitempty" doc:"Legend image URL"`
	Img       string         `json:"img,omitempty" yaml:"img,omitempty" doc:"Icon shown next to the label"`
	GeomType  string         `json:"geomType,omitempty" yaml:"geomType,omitempty" enum:"Point,Linestring,Polygon" doc:"Geometry type of GeoJSON layers"`
	Abstract  string         `json:"abstract,omitempty" yaml:"abstract,omitempty" doc:"Description shown as tooltip"`
	Options   map[string]any `json:"options,omitempty" yaml:"options,omitempty" doc:"Client layer options (attribution, WMS layers, crs, ...)"`
}

// ThemeName returns the theme the layer is grouped under.
func (l LayerDescription) ThemeName() string {
	if l.Thema == "" {
		return DefaultTheme
	}
	return l.Thema
}

// Theme is a named group of overlay layers.
type Theme struct {
	Name   string             `json:"thema" doc:"Theme name"`
	Layers []LayerDescription `json:"layers" doc:"Layers in file order"`
}

// GroupThemes groups overlays by thema, in first-seen order.
func GroupThemes(overlays []LayerDescription) []Theme {
	var themes []Theme
	index := map[string]int{}
	for _, l := range overlays {
		name := l.ThemeName()
		i, ok := index[name]
		if !ok {
			i = len(themes)
			index[name] = i
			themes = append(themes, Theme{Name: name})
		}
		themes[i].Layers = append(themes[i].Layers, l)
	}
	return themes
}

// TileFile represents a PMTiles file served under /tiles/.
type TileFile struct {
	Name     string      `json:"name" doc:"PMTiles file name" example:"basemap.pmtiles"`
	Size     string      `json:"size" doc:"Human-readable file size" example:"5.4 MB"`
	URL      string      `json:"url" doc:"Path the archive is served under" example:"/tiles/basemap.pmtiles"`
	TileType string      `json:"tileType,omitempty" doc:"Tile format" example:"mvt"`
	MinZoom  int         `json:"minZoom" doc:"Lowest zoom level in the archive"`
	MaxZoom  int         `json:"maxZoom" doc:"Highest zoom level in the archive" example:"14"`
	Bounds   *[4]float64 `json:"bounds,omitempty" doc:"Extent as [minLon, minLat, maxLon, maxLat]"`
	Center   *[2]float64 `json:"center,omitempty" doc:"Suggested center as [lon, lat]"`
}
