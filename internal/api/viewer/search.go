package viewer

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-mapview/internal/humastar"
)

// searchLimit caps the catalogue hits shown under the search box.
const searchLimit = 10

// Search answers the search box: catalogue layers first, then places from
// the geocoder when one is configured.
func (h *Handler) Search(ctx context.Context, input *SearchInput) (*huma.StreamResponse, error) {
	if _, err := h.viewer(input.Session); err != nil {
		return nil, err
	}
	signals, err := humastar.ParseSignals([]byte(input.Datastar))
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid request data: " + err.Error())
	}
	q := signals.String("query")

	return h.Stream(func(sse humastar.SSE) {
		if q == "" {
			sse.Patch("", "#search-results")
			return
		}

		var items []any
		for _, hit := range h.Catalog.Search(q, searchLimit) {
			items = append(items, hit)
		}
		html, err := h.RenderList("layer-hit", items, "Keine Ebenen", "Keine passende Ebene gefunden.")
		if err != nil {
			log.WithError(err).Error("Rendering search hits failed")
			sse.Error("rendering failed")
			return
		}

		if h.Geocoder.Enabled() {
			places, err := h.Geocoder.Search(ctx, q)
			if err != nil {
				log.WithError(err).Warn("Geocoder search failed")
				sse.Error("Adresssuche nicht erreichbar")
			}
			for _, p := range places {
				frag, err := h.Renderer.Render("place-hit", p)
				if err != nil {
					log.WithError(err).Error("Rendering place failed")
					break
				}
				html += frag
			}
		}
		sse.Patch(html, "#search-results")
	}), nil
}
