// Package viewer contains the Datastar SSE handlers behind the /viewer page.
// The session is carried in a cookie; every handler answers with fragments
// of the affected tree and the signals the map client listens to.
package viewer

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-mapview/internal/geocode"
	"github.com/joeblew999/plat-mapview/internal/humastar"
	"github.com/joeblew999/plat-mapview/internal/logging"
	"github.com/joeblew999/plat-mapview/internal/metrics"
	"github.com/joeblew999/plat-mapview/internal/service"
	"github.com/joeblew999/plat-mapview/internal/templates"
)

var log = logging.NewLogger("viewer")

// CookieName carries the viewer session ID.
const CookieName = "mapview_session"

// panels maps tree names to the page element holding the tree.
var panels = map[string]string{
	service.TreeBase:     "#base-panel",
	service.TreeOverlays: "#overlay-panel",
}

// Handler serves the viewer page and its SSE endpoints.
type Handler struct {
	humastar.Handler
	Sessions *service.SessionStore
	Catalog  *service.CatalogService
	Geocoder *geocode.Client
	Bus      *service.EventBus
	Metrics  *metrics.Metrics
}

// New creates a viewer handler.
func New(r *templates.Renderer, sessions *service.SessionStore, catalog *service.CatalogService, bus *service.EventBus) *Handler {
	return &Handler{
		Handler:  humastar.Handler{Renderer: r},
		Sessions: sessions,
		Catalog:  catalog,
		Bus:      bus,
	}
}

type SessionInput struct {
	Session string `cookie:"mapview_session" doc:"Viewer session ID"`
}

type TreeInput struct {
	SessionInput
	Tree string `query:"tree" required:"true" enum:"base,overlays" doc:"Tree name"`
}

type NodeInput struct {
	TreeInput
	Node string `query:"node" required:"true" doc:"Node ID"`
}

type ToggleInput struct {
	NodeInput
	Checked bool `query:"checked" doc:"New state of the checkbox or radio button"`
}

type ActionInput struct {
	NodeInput
	Index int `query:"index" minimum:"0" doc:"Action index"`
}

type SelectInput struct {
	SessionInput
	Layer string `query:"layer" required:"true" doc:"Layer ID"`
}

type SearchInput struct {
	SessionInput
	Datastar string `query:"datastar" doc:"Datastar signals as JSON"`
}

func (h *Handler) RegisterRoutes(api huma.API) {
	tags := huma.OperationTags("viewer")
	huma.Get(api, "/api/v1/viewer/tree", h.Tree, tags)
	huma.Post(api, "/api/v1/viewer/toggle", h.Toggle, tags)
	huma.Post(api, "/api/v1/viewer/click", h.Click, tags)
	huma.Post(api, "/api/v1/viewer/expand", h.Expand, tags)
	huma.Post(api, "/api/v1/viewer/action", h.Action, tags)
	huma.Post(api, "/api/v1/viewer/select", h.Select, tags)
	huma.Get(api, "/api/v1/viewer/search", h.Search, tags)
	huma.Get(api, "/api/v1/viewer/events", h.Events, tags)
}

func (h *Handler) viewer(id string) (*service.Viewer, error) {
	if id == "" {
		return nil, huma.Error400BadRequest("missing viewer session, reload the page")
	}
	v, err := h.Sessions.Get(id)
	if errors.Is(err, service.ErrSessionNotFound) {
		return nil, huma.Error404NotFound("viewer session expired, reload the page")
	}
	return v, err
}

// Tree sends the full tree fragment.
func (h *Handler) Tree(ctx context.Context, input *TreeInput) (*huma.StreamResponse, error) {
	v, err := h.viewer(input.Session)
	if err != nil {
		return nil, err
	}
	return h.Stream(func(sse humastar.SSE) {
		h.patchTree(sse, v, input.Tree)
		h.patchLayers(sse, v)
	}), nil
}

// Toggle applies a checkbox or radio button change.
func (h *Handler) Toggle(ctx context.Context, input *ToggleInput) (*huma.StreamResponse, error) {
	v, err := h.viewer(input.Session)
	if err != nil {
		return nil, err
	}
	return h.Stream(func(sse humastar.SSE) {
		if err := v.Toggle(input.Tree, input.Node, input.Checked); err != nil {
			sse.Error(err.Error())
			return
		}
		h.patchTree(sse, v, input.Tree)
		h.patchLayers(sse, v)
	}), nil
}

// Click handles a click on a row label.
func (h *Handler) Click(ctx context.Context, input *NodeInput) (*huma.StreamResponse, error) {
	v, err := h.viewer(input.Session)
	if err != nil {
		return nil, err
	}
	return h.Stream(func(sse humastar.SSE) {
		changed, err := v.Click(input.Tree, input.Node)
		if err != nil {
			sse.Error(err.Error())
			return
		}
		if changed {
			h.patchTree(sse, v, input.Tree)
			h.patchLayers(sse, v)
		}
	}), nil
}

// Expand opens or closes a node.
func (h *Handler) Expand(ctx context.Context, input *NodeInput) (*huma.StreamResponse, error) {
	v, err := h.viewer(input.Session)
	if err != nil {
		return nil, err
	}
	return h.Stream(func(sse humastar.SSE) {
		if _, err := v.Expand(input.Tree, input.Node); err != nil {
			sse.Error(err.Error())
			return
		}
		h.patchTree(sse, v, input.Tree)
	}), nil
}

// Action runs a row action; the legend action publishes the legend URL.
func (h *Handler) Action(ctx context.Context, input *ActionInput) (*huma.StreamResponse, error) {
	v, err := h.viewer(input.Session)
	if err != nil {
		return nil, err
	}
	return h.Stream(func(sse humastar.SSE) {
		ran, err := v.Activate(input.Tree, input.Node, input.Index)
		if err != nil {
			sse.Error(err.Error())
			return
		}
		if ran {
			sse.Signals(map[string]any{"legend": v.Legend()})
		}
	}), nil
}

// Select selects a layer picked from the search results.
func (h *Handler) Select(ctx context.Context, input *SelectInput) (*huma.StreamResponse, error) {
	v, err := h.viewer(input.Session)
	if err != nil {
		return nil, err
	}
	return h.Stream(func(sse humastar.SSE) {
		name, err := v.SelectLayer(input.Layer)
		if err != nil {
			sse.Error(err.Error())
			return
		}
		h.patchTree(sse, v, name)
		h.patchLayers(sse, v)
	}), nil
}

// Events streams catalogue changes to the page until the client goes away.
func (h *Handler) Events(ctx context.Context, input *SessionInput) (*huma.StreamResponse, error) {
	v, err := h.viewer(input.Session)
	if err != nil {
		return nil, err
	}
	return h.Stream(func(sse humastar.SSE) {
		defer h.Metrics.StreamOpened()()
		ch := h.Bus.Subscribe()
		defer h.Bus.Unsubscribe(ch)

		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-ch:
				switch ev.Resource {
				case service.ResourceSessions:
					h.patchTree(sse, v, service.TreeBase)
					h.patchTree(sse, v, service.TreeOverlays)
					h.patchLayers(sse, v)
				case service.ResourceLayers:
					sse.DispatchCustomEvent("resource-changed", map[string]any{
						"resource": ev.Resource,
						"action":   ev.Action,
						"id":       ev.ID,
					})
				}
			}
		}
	}), nil
}

// renderTree renders one tree under the viewer lock.
func (h *Handler) renderTree(v *service.Viewer, name string) (string, error) {
	var html string
	err := v.Do(func(t service.Trees) error {
		tr := t.Overlays
		if name == service.TreeBase {
			tr = t.Base
		}
		var err error
		html, err = h.Renderer.Render("tree", map[string]any{"Tree": name, "Views": tr.Render()})
		return err
	})
	return html, err
}

func (h *Handler) patchTree(sse humastar.SSE, v *service.Viewer, name string) {
	html, err := h.renderTree(v, name)
	if err != nil {
		log.WithError(err).WithField("tree", name).Error("Rendering tree failed")
		sse.Error("rendering failed")
		return
	}
	sse.Patch(html, panels[name])
}

// patchLayers sends the list of drawn overlays and the signals the map
// client draws from.
func (h *Handler) patchLayers(sse humastar.SSE, v *service.Viewer) {
	html, err := h.Renderer.Render("layer-list", v.SelectedLayers())
	if err != nil {
		log.WithError(err).Error("Rendering layer list failed")
		sse.Error("rendering failed")
		return
	}
	sse.Patch(html, "#active-layers")
	sse.Signals(layerSignals(v))
}

// layerSignals are the signals the map client draws from.
func layerSignals(v *service.Viewer) map[string]any {
	ids := []string{}
	for _, l := range v.SelectedLayers() {
		ids = append(ids, l.ID)
	}
	base := ""
	if l, ok := v.BaseLayer(); ok {
		base = l.ID
	}
	return map[string]any{"layers": ids, "baseLayer": base}
}
