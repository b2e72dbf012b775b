package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleResponse = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"_title_": "Neuer Markt 1, 18055 Rostock", "objektgruppe": "Adresse"},
      "geometry": {"type": "Point", "coordinates": [12.1403, 54.0887]}
    },
    {
      "type": "Feature",
      "properties": {"_title_": "Flurstück 42", "objektgruppe": "Flurstück"},
      "geometry": {"type": "Polygon", "coordinates": [[[12.0, 54.0], [12.2, 54.0], [12.2, 54.1], [12.0, 54.1], [12.0, 54.0]]]}
    },
    {
      "type": "Feature",
      "properties": {"name": "ohne Geometrie"},
      "geometry": null
    }
  ]
}`

func newServer(t *testing.T, status int, body string) (*httptest.Server, *url.Values) {
	t.Helper()
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestSearch(t *testing.T) {
	srv, got := newServer(t, http.StatusOK, sampleResponse)
	c := New(srv.URL, "secret")

	results, err := c.Search(context.Background(), " Neuer Markt ")
	require.NoError(t, err)
	require.Len(t, results, 2)

	q := *got
	assert.Equal(t, "Neuer Markt", q.Get("query"))
	assert.Equal(t, "search", q.Get("type"))
	assert.Equal(t, "secret", q.Get("key"))
	assert.Equal(t, "address,parcel", q.Get("class"))
	assert.Equal(t, "30", q.Get("limit"))
	assert.Equal(t, "4326", q.Get("out_epsg"))
	assert.Equal(t, "geometry", q.Get("shape"))

	addr := results[0]
	assert.Equal(t, "Neuer Markt 1, 18055 Rostock", addr.Label)
	assert.Equal(t, orb.Point{12.1403, 54.0887}, addr.Center)
	assert.Equal(t, "Adresse", addr.Properties["objektgruppe"])

	parcel := results[1]
	assert.Equal(t, [4]float64{12.0, 54.0, 12.2, 54.1}, parcel.BBox)
	assert.InDelta(t, 12.1, parcel.Center.Lon(), 1e-9)
	assert.InDelta(t, 54.05, parcel.Center.Lat(), 1e-9)
	assert.True(t, parcel.Bound().Contains(parcel.Center))
}

func TestReverse(t *testing.T) {
	srv, got := newServer(t, http.StatusOK, sampleResponse)
	c := New(srv.URL, "")
	c.Class = "parcel"
	c.Limit = 5

	_, err := c.Reverse(context.Background(), orb.Point{12.14, 54.09})
	require.NoError(t, err)

	q := *got
	assert.Equal(t, "reverse", q.Get("type"))
	assert.Equal(t, "12.14,54.09", q.Get("query"))
	assert.Equal(t, "4326", q.Get("in_epsg"))
	assert.Equal(t, "centroid", q.Get("shape"))
	assert.Equal(t, "parcel", q.Get("class"))
	assert.Equal(t, "5", q.Get("limit"))
	assert.False(t, q.Has("key"))
}

func TestErrors(t *testing.T) {
	_, err := New("http://unused", "").Search(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = New("", "").Search(context.Background(), "x")
	assert.ErrorIs(t, err, ErrDisabled)

	var nilClient *Client
	assert.False(t, nilClient.Enabled())
	_, err = nilClient.Reverse(context.Background(), orb.Point{12, 54})
	assert.ErrorIs(t, err, ErrDisabled)

	srv, _ := newServer(t, http.StatusBadGateway, "upstream down")
	_, err = New(srv.URL, "").Search(context.Background(), "x")
	assert.ErrorIs(t, err, ErrUpstream)

	bad, _ := newServer(t, http.StatusOK, "<html>")
	_, err = New(bad.URL, "").Search(context.Background(), "x")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUpstream)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = New(srv.URL, "").Search(ctx, "x")
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestDecodeEmpty(t *testing.T) {
	results, err := Decode([]byte(`{"type":"FeatureCollection","features":[]}`))
	require.NoError(t, err)
	assert.Empty(t, results)
}
