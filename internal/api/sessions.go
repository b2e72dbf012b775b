package api

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-mapview/internal/service"
	"github.com/joeblew999/plat-mapview/internal/tree"
)

type SessionInput struct {
	SID string `path:"sid" doc:"Viewer session ID" format:"uuid"`
}

type TreeInput struct {
	SessionInput
	Tree string `path:"tree" enum:"base,overlays" doc:"Tree name"`
}

type NodeInput struct {
	TreeInput
	Node string `path:"node" doc:"Node ID" example:"n12"`
}

type CreateSessionInput struct {
	Body struct {
		Layers []string `json:"layers,omitempty" doc:"Labels of layers to preselect, as the ?layers= URL parameter"`
	} `required:"false"`
}

type SessionBody struct {
	ID        string                     `json:"id" doc:"Session ID"`
	Created   time.Time                  `json:"created" doc:"Creation time"`
	BaseLayer *service.LayerDescription  `json:"baseLayer,omitempty" doc:"Selected base layer"`
	Overlays  []service.LayerDescription `json:"overlays" doc:"Selected overlay layers"`
}

type SelectedInput struct {
	NodeInput
	Body struct {
		Selected bool `json:"selected" doc:"Requested selection state"`
	}
}

type SelectInput struct {
	TreeInput
	Body struct {
		Value string `json:"value" minLength:"1" doc:"Value to look for" example:"Biogasanlagen"`
		Field string `json:"field,omitempty" default:"label" doc:"Payload field to compare" example:"label"`
	}
}

type SelectBody struct {
	Path []string `json:"path" doc:"Node IDs from the selected node up to the root"`
}

type TreeOutput struct {
	Body []tree.Snapshot
}

// RegisterSessions registers the viewer session routes.
func (h *APIHandler) RegisterSessions(api huma.API) {
	huma.Post(api, "/api/v1/sessions", h.CreateSession, huma.OperationTags("sessions"), created)
	huma.Get(api, "/api/v1/sessions/{sid}", h.GetSession, huma.OperationTags("sessions"))
	huma.Delete(api, "/api/v1/sessions/{sid}", h.DeleteSession, huma.OperationTags("sessions"))
	huma.Get(api, "/api/v1/sessions/{sid}/selected", h.GetSession, huma.OperationTags("sessions"))
	huma.Get(api, "/api/v1/sessions/{sid}/trees/{tree}", h.GetTree, huma.OperationTags("sessions"))
	huma.Put(api, "/api/v1/sessions/{sid}/trees/{tree}/nodes/{node}/selected", h.PutSelected, huma.OperationTags("sessions"))
	huma.Post(api, "/api/v1/sessions/{sid}/trees/{tree}/select", h.SelectNode, huma.OperationTags("sessions"))
}

func (h *APIHandler) CreateSession(ctx context.Context, input *CreateSessionInput) (*struct{ Body SessionBody }, error) {
	if h.svc.Sessions == nil {
		return nil, huma.Error503ServiceUnavailable("sessions not available")
	}
	v := h.svc.Sessions.Create(input.Body.Layers)
	return &struct{ Body SessionBody }{Body: sessionBody(v)}, nil
}

func (h *APIHandler) GetSession(ctx context.Context, input *SessionInput) (*struct{ Body SessionBody }, error) {
	v, err := h.viewer(input.SID)
	if err != nil {
		return nil, err
	}
	return &struct{ Body SessionBody }{Body: sessionBody(v)}, nil
}

func (h *APIHandler) DeleteSession(ctx context.Context, input *SessionInput) (*struct{ Body MessageBody }, error) {
	if h.svc.Sessions == nil {
		return nil, huma.Error503ServiceUnavailable("sessions not available")
	}
	if err := h.svc.Sessions.Delete(input.SID); err != nil {
		return nil, serviceError(err)
	}
	return &struct{ Body MessageBody }{Body: MessageBody{Message: "Session deleted"}}, nil
}

func (h *APIHandler) GetTree(ctx context.Context, input *TreeInput) (*TreeOutput, error) {
	v, err := h.viewer(input.SID)
	if err != nil {
		return nil, err
	}
	snap, err := v.Snapshot(input.Tree)
	if err != nil {
		return nil, serviceError(err)
	}
	return &TreeOutput{Body: nonNil(snap)}, nil
}

func (h *APIHandler) PutSelected(ctx context.Context, input *SelectedInput) (*TreeOutput, error) {
	v, err := h.viewer(input.SID)
	if err != nil {
		return nil, err
	}
	if err := v.SetSelected(input.Tree, input.Node, input.Body.Selected); err != nil {
		return nil, serviceError(err)
	}
	snap, err := v.Snapshot(input.Tree)
	if err != nil {
		return nil, serviceError(err)
	}
	return &TreeOutput{Body: nonNil(snap)}, nil
}

func (h *APIHandler) SelectNode(ctx context.Context, input *SelectInput) (*struct{ Body SelectBody }, error) {
	v, err := h.viewer(input.SID)
	if err != nil {
		return nil, err
	}
	field := input.Body.Field
	if field == "" {
		field = "label"
	}
	path, err := v.SelectNode(input.Tree, input.Body.Value, field)
	if err != nil {
		return nil, serviceError(err)
	}
	return &struct{ Body SelectBody }{Body: SelectBody{Path: path}}, nil
}

func (h *APIHandler) viewer(sid string) (*service.Viewer, error) {
	if h.svc.Sessions == nil {
		return nil, huma.Error503ServiceUnavailable("sessions not available")
	}
	v, err := h.svc.Sessions.Get(sid)
	if err != nil {
		return nil, serviceError(err)
	}
	return v, nil
}

func sessionBody(v *service.Viewer) SessionBody {
	body := SessionBody{
		ID:       v.ID(),
		Created:  v.Created(),
		Overlays: nonNil(v.SelectedLayers()),
	}
	if l, ok := v.BaseLayer(); ok {
		body.BaseLayer = &l
	}
	return body
}
