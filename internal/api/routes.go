// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-mapview/internal/geocode"
	"github.com/joeblew999/plat-mapview/internal/humastar"
	"github.com/joeblew999/plat-mapview/internal/logging"
	"github.com/joeblew999/plat-mapview/internal/service"
)

// Version is reported by /health and /api/v1/info.
const Version = "0.1.0"

var log = logging.NewLogger("api")

// Services holds the service dependencies for API handlers.
type Services struct {
	Catalog  *service.CatalogService
	Tile     *service.TileService
	Sessions *service.SessionStore
	Geocoder *geocode.Client
}

// RegisterRoutes registers every REST handler of svc.
func RegisterRoutes(api huma.API, svc *Services) {
	huma.AutoRegister(api, NewAPIHandler(svc))
}

// Types

type IDInput struct {
	ID string `path:"id" doc:"Layer ID" example:"windenergieanlagen"`
}

type ListLayersInput struct {
	Thema  string `query:"thema" doc:"Only layers of this theme" example:"Energie"`
	Offset int    `query:"offset" minimum:"0" default:"0" doc:"Index of the first layer"`
	Limit  int    `query:"limit" minimum:"0" maximum:"500" default:"100" doc:"Page size, 0 for all"`
}

type LayerOutput struct {
	Body LayerBody
}

// LayerBody is a layer with its hypermedia actions.
type LayerBody struct {
	service.LayerDescription
}

var layerActions = []humastar.ActionDef{
	{Rel: "edit", Pattern: "/api/v1/layers/%s", Method: http.MethodPut, Title: "Update layer"},
	{Rel: "delete", Pattern: "/api/v1/layers/%s", Method: http.MethodDelete, Title: "Delete layer"},
}

// Actions lists what can be done with the layer.
func (b LayerBody) Actions() []humastar.Action {
	return humastar.ActionsFor(b.ID, layerActions)
}

type LayersOutput struct {
	Body humastar.PageBody[service.LayerDescription]
}

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

type CreatedLayerBody struct {
	ID      string                   `json:"id" doc:"Generated layer ID"`
	Layer   service.LayerDescription `json:"layer" doc:"Created layer"`
	Message string                   `json:"message" doc:"Result message"`
}

type HealthBody struct {
	Status   string `json:"status" doc:"Health status" example:"ok"`
	Version  string `json:"version" doc:"API version" example:"0.1.0"`
	Layers   int    `json:"layers" doc:"Overlay layers in the catalogue"`
	Sessions int    `json:"sessions" doc:"Live viewer sessions"`
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	if svc == nil {
		svc = &Services{}
	}
	return &APIHandler{svc: svc}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterMap registers the map description routes.
func (h *APIHandler) RegisterMap(api huma.API) {
	huma.Get(api, "/api/v1/map", h.GetMap, huma.OperationTags("map"))
	huma.Get(api, "/api/v1/themes", h.GetThemes, huma.OperationTags("map"))
	huma.Get(api, "/api/v1/baselayers", h.GetBaseLayers, huma.OperationTags("map"))
}

// RegisterLayers registers overlay CRUD routes.
func (h *APIHandler) RegisterLayers(api huma.API) {
	huma.Get(api, "/api/v1/layers", h.GetLayers, huma.OperationTags("layers"))
	huma.Post(api, "/api/v1/layers", h.CreateLayer, huma.OperationTags("layers"), created)
	huma.Get(api, "/api/v1/layers/{id}", h.GetLayer, huma.OperationTags("layers"))
	huma.Put(api, "/api/v1/layers/{id}", h.PutLayer, huma.OperationTags("layers"))
	huma.Delete(api, "/api/v1/layers/{id}", h.DeleteLayer, huma.OperationTags("layers"))
}

// RegisterTiles registers tile listing routes.
func (h *APIHandler) RegisterTiles(api huma.API) {
	huma.Get(api, "/api/v1/tiles", h.GetTiles, huma.OperationTags("tiles"))
}

func created(op *huma.Operation) {
	op.DefaultStatus = http.StatusCreated
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	body := HealthBody{Status: "ok", Version: Version}
	if h.svc.Catalog != nil {
		body.Layers = len(h.svc.Catalog.Overlays())
	}
	if h.svc.Sessions != nil {
		body.Sessions = h.svc.Sessions.Len()
	}
	return &struct{ Body HealthBody }{Body: body}, nil
}

func (h *APIHandler) GetMap(ctx context.Context, input *struct{}) (*struct{ Body service.MapDescription }, error) {
	if h.svc.Catalog == nil {
		return nil, huma.Error503ServiceUnavailable("catalog not available")
	}
	return &struct{ Body service.MapDescription }{Body: h.svc.Catalog.Description()}, nil
}

func (h *APIHandler) GetThemes(ctx context.Context, input *struct{}) (*struct{ Body []service.Theme }, error) {
	if h.svc.Catalog == nil {
		return nil, huma.Error503ServiceUnavailable("catalog not available")
	}
	themes := h.svc.Catalog.Themes()
	if themes == nil {
		themes = []service.Theme{}
	}
	return &struct{ Body []service.Theme }{Body: themes}, nil
}

func (h *APIHandler) GetBaseLayers(ctx context.Context, input *struct{}) (*struct{ Body []service.LayerDescription }, error) {
	if h.svc.Catalog == nil {
		return nil, huma.Error503ServiceUnavailable("catalog not available")
	}
	return &struct{ Body []service.LayerDescription }{Body: nonNil(h.svc.Catalog.BaseLayers())}, nil
}

func (h *APIHandler) GetLayers(ctx context.Context, input *ListLayersInput) (*LayersOutput, error) {
	if h.svc.Catalog == nil {
		return nil, huma.Error503ServiceUnavailable("catalog not available")
	}
	layers := h.svc.Catalog.Overlays()
	if input.Thema != "" {
		var filtered []service.LayerDescription
		for _, l := range layers {
			if l.ThemeName() == input.Thema {
				filtered = append(filtered, l)
			}
		}
		layers = filtered
	}
	return &LayersOutput{Body: humastar.Paginate(nonNil(layers), input.Offset, input.Limit)}, nil
}

func (h *APIHandler) CreateLayer(ctx context.Context, input *struct{ Body service.LayerDescription }) (*struct{ Body CreatedLayerBody }, error) {
	if h.svc.Catalog == nil {
		return nil, huma.Error503ServiceUnavailable("catalog not available")
	}
	layer, err := h.svc.Catalog.Create(input.Body)
	if err != nil {
		return nil, serviceError(err)
	}
	return &struct{ Body CreatedLayerBody }{Body: CreatedLayerBody{
		ID: layer.ID, Layer: layer, Message: "Layer created",
	}}, nil
}

func (h *APIHandler) GetLayer(ctx context.Context, input *IDInput) (*LayerOutput, error) {
	if h.svc.Catalog == nil {
		return nil, huma.Error503ServiceUnavailable("catalog not available")
	}
	layer, err := h.svc.Catalog.Get(input.ID)
	if err != nil {
		return nil, serviceError(err)
	}
	return &LayerOutput{Body: LayerBody{layer}}, nil
}

func (h *APIHandler) PutLayer(ctx context.Context, input *struct {
	IDInput
	Body service.LayerDescription
}) (*LayerOutput, error) {
	if h.svc.Catalog == nil {
		return nil, huma.Error503ServiceUnavailable("catalog not available")
	}
	updated, err := h.svc.Catalog.Update(input.ID, input.Body)
	if err != nil {
		return nil, serviceError(err)
	}
	return &LayerOutput{Body: LayerBody{updated}}, nil
}

func (h *APIHandler) DeleteLayer(ctx context.Context, input *IDInput) (*struct{ Body MessageBody }, error) {
	if h.svc.Catalog == nil {
		return nil, huma.Error503ServiceUnavailable("catalog not available")
	}
	if err := h.svc.Catalog.Delete(input.ID); err != nil {
		return nil, serviceError(err)
	}
	return &struct{ Body MessageBody }{Body: MessageBody{Message: "Layer deleted"}}, nil
}

func (h *APIHandler) GetTiles(ctx context.Context, input *struct{}) (*struct{ Body []service.TileFile }, error) {
	if h.svc.Tile == nil {
		return &struct{ Body []service.TileFile }{Body: []service.TileFile{}}, nil
	}
	tiles, err := h.svc.Tile.List()
	if err != nil {
		log.WithError(err).Warn("Listing tiles failed")
	}
	return &struct{ Body []service.TileFile }{Body: nonNil(tiles)}, nil
}

// serviceError maps service and geocoder errors onto HTTP errors.
func serviceError(err error) error {
	switch {
	case errors.Is(err, service.ErrLayerNotFound),
		errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrNodeNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, service.ErrLayerExists):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, service.ErrUnknownTree),
		errors.Is(err, geocode.ErrEmptyQuery):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, geocode.ErrDisabled):
		return huma.Error503ServiceUnavailable(err.Error())
	case errors.Is(err, geocode.ErrUpstream):
		return huma.Error502BadGateway(err.Error())
	}
	log.WithError(err).Error("Request failed")
	return huma.Error500InternalServerError("internal error", err)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
