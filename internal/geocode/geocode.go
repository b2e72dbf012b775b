// Package geocode is a thin client for a geocodr address and parcel search
// service. Responses are GeoJSON feature collections.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-mapview/internal/logging"
	"github.com/joeblew999/plat-mapview/internal/metrics"
)

var log = logging.NewLogger("geocode")

// Defaults of the Rostock geocodr service.
const (
	DefaultServiceURL = "https://geo.sv.rostock.de/geocodr/query"
	DefaultClass      = "address,parcel"
	DefaultLimit      = 30
	DefaultEPSG       = "4326"
)

var (
	ErrEmptyQuery = errors.New("geocode: empty query")
	ErrDisabled   = errors.New("geocode: no service configured")
	ErrUpstream   = errors.New("geocode: upstream error")
)

// Result is one geocoding hit.
type Result struct {
	Label      string         `json:"label" doc:"Display title of the hit" example:"Neuer Markt 1, 18055 Rostock"`
	Center     orb.Point      `json:"center" doc:"Representative point as [lon, lat]"`
	BBox       [4]float64     `json:"bbox" doc:"Bounding box as [minLon, minLat, maxLon, maxLat]"`
	Properties map[string]any `json:"properties,omitempty" doc:"Raw feature properties"`

	Geometry orb.Geometry `json:"-"`
}

// Bound returns the bounding box as an orb bound.
func (r Result) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{r.BBox[0], r.BBox[1]}, Max: orb.Point{r.BBox[2], r.BBox[3]}}
}

// Client queries a geocodr endpoint.
type Client struct {
	ServiceURL string
	APIKey     string
	Class      string
	Limit      int
	HTTPClient *http.Client
	Metrics    *metrics.Metrics
}

// New returns a client with the default class and limit.
func New(serviceURL, apiKey string) *Client {
	return &Client{
		ServiceURL: serviceURL,
		APIKey:     apiKey,
		Class:      DefaultClass,
		Limit:      DefaultLimit,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether a service URL is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.ServiceURL != ""
}

// Search geocodes a free-text query.
func (c *Client) Search(ctx context.Context, q string) ([]Result, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, ErrEmptyQuery
	}
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	params := c.params()
	params.Set("type", "search")
	params.Set("query", q)
	params.Set("shape", "geometry")
	return c.do(ctx, "search", params)
}

// Reverse finds the objects nearest to a point.
func (c *Client) Reverse(ctx context.Context, p orb.Point) ([]Result, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	params := c.params()
	params.Set("type", "reverse")
	params.Set("query", formatFloat(p.Lon())+","+formatFloat(p.Lat()))
	params.Set("in_epsg", DefaultEPSG)
	params.Set("shape", "centroid")
	return c.do(ctx, "reverse", params)
}

func (c *Client) params() url.Values {
	v := url.Values{}
	if c.APIKey != "" {
		v.Set("key", c.APIKey)
	}
	class := c.Class
	if class == "" {
		class = DefaultClass
	}
	limit := c.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	v.Set("class", class)
	v.Set("limit", strconv.Itoa(limit))
	v.Set("out_epsg", DefaultEPSG)
	return v
}

func (c *Client) do(ctx context.Context, kind string, params url.Values) (results []Result, err error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	start := time.Now()
	defer func() { c.Metrics.ObserveGeocode(kind, time.Since(start), err) }()

	u, err := url.Parse(c.ServiceURL)
	if err != nil {
		return nil, fmt.Errorf("geocode: service url: %w", err)
	}
	q := u.Query()
	for k, vs := range params {
		q[k] = vs
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("geocode: %w", err)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUpstream, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	results, err = Decode(body)
	if err != nil {
		return nil, err
	}
	log.WithField("kind", kind).Debugf("%d results in %v", len(results), time.Since(start))
	return results, nil
}

// Decode converts a GeoJSON feature collection into results.
func Decode(data []byte) ([]Result, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("geocode: decode response: %w", err)
	}

	results := make([]Result, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		b := f.Geometry.Bound()
		if f.BBox.Valid() {
			b = f.BBox.Bound()
		}
		center := b.Center()
		if p, ok := f.Geometry.(orb.Point); ok {
			center = p
		}
		results = append(results, Result{
			Label:      title(f.Properties),
			Center:     center,
			BBox:       [4]float64{b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat()},
			Properties: map[string]any(f.Properties),
			Geometry:   f.Geometry,
		})
	}
	return results, nil
}

func title(props geojson.Properties) string {
	for _, key := range []string{"_title_", "title", "name"} {
		if s := props.MustString(key, ""); s != "" {
			return s
		}
	}
	return ""
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
