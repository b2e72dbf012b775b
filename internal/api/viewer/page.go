package viewer

import (
	"encoding/json"
	"html/template"
	"net/http"
	"strings"

	"github.com/joeblew999/plat-mapview/internal/service"
)

// DatastarScript is the client bundle loaded by the page.
const DatastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0/bundles/datastar.js"

// PageData feeds the viewer page template.
type PageData struct {
	Title       string
	DatastarURL string
	Session     string
	Signals     string
	Layers      template.HTML
}

// Page serves /viewer. It reuses the session of the cookie unless the URL
// preselects layers with ?layers=a,b, in which case a new session starts.
func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	preselect := splitLabels(r.URL.Query().Get("layers"))

	var v *service.Viewer
	if c, err := r.Cookie(CookieName); err == nil && len(preselect) == 0 {
		v, _ = h.Sessions.Get(c.Value)
	}
	if v == nil {
		v = h.Sessions.Create(preselect)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    v.ID(),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	view := h.Catalog.Description().View
	signals := layerSignals(v)
	signals["query"] = ""
	signals["error"] = ""
	signals["success"] = ""
	signals["legend"] = v.Legend()
	signals["center"] = view.Center
	signals["zoom"] = view.Zoom
	signals["minZoom"] = view.MinZoom
	signals["maxBounds"] = view.MaxBounds
	raw, err := json.Marshal(signals)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	layers, err := h.Renderer.Render("layer-list", v.SelectedLayers())
	if err != nil {
		log.WithError(err).Error("Rendering layer list failed")
		http.Error(w, "rendering failed", http.StatusInternalServerError)
		return
	}

	html, err := h.Renderer.Render("viewer", PageData{
		Title:       "Kartenviewer",
		DatastarURL: DatastarScript,
		Session:     v.ID(),
		Signals:     string(raw),
		Layers:      template.HTML(layers),
	})
	if err != nil {
		log.WithError(err).Error("Rendering viewer page failed")
		http.Error(w, "rendering failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(html))
}

func splitLabels(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
