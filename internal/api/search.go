package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-mapview/internal/geocode"
	"github.com/joeblew999/plat-mapview/internal/service"
)

type SearchInput struct {
	Q      string `query:"q" required:"true" minLength:"1" doc:"Search text" example:"biogas"`
	Limit  int    `query:"limit" minimum:"0" maximum:"100" default:"10" doc:"Maximum layer hits, 0 for all"`
	Places bool   `query:"places" doc:"Also geocode the text as an address or parcel"`
}

type SearchBody struct {
	Layers []service.SearchHit `json:"layers" doc:"Catalogue hits, best first"`
	Places []geocode.Result    `json:"places,omitempty" doc:"Geocoder hits, when requested"`
}

type ReverseInput struct {
	Lon float64 `query:"lon" required:"true" minimum:"-180" maximum:"180" doc:"Longitude (EPSG:4326)" example:"12.14"`
	Lat float64 `query:"lat" required:"true" minimum:"-90" maximum:"90" doc:"Latitude (EPSG:4326)" example:"54.09"`
}

// RegisterSearch registers catalogue search and geocoding routes.
func (h *APIHandler) RegisterSearch(api huma.API) {
	huma.Get(api, "/api/v1/search", h.Search, huma.OperationTags("search"))
	huma.Get(api, "/api/v1/geocode/reverse", h.Reverse, huma.OperationTags("search"))
}

func (h *APIHandler) Search(ctx context.Context, input *SearchInput) (*struct{ Body SearchBody }, error) {
	var body SearchBody
	if h.svc.Catalog != nil {
		body.Layers = h.svc.Catalog.Search(input.Q, input.Limit)
	}
	body.Layers = nonNil(body.Layers)

	if input.Places {
		places, err := h.svc.Geocoder.Search(ctx, input.Q)
		if err != nil {
			return nil, serviceError(err)
		}
		body.Places = nonNil(places)
	}
	return &struct{ Body SearchBody }{Body: body}, nil
}

func (h *APIHandler) Reverse(ctx context.Context, input *ReverseInput) (*struct{ Body []geocode.Result }, error) {
	places, err := h.svc.Geocoder.Reverse(ctx, orb.Point{input.Lon, input.Lat})
	if err != nil {
		return nil, serviceError(err)
	}
	return &struct{ Body []geocode.Result }{Body: nonNil(places)}, nil
}
