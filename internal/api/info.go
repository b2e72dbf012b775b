package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

type InfoHandler struct {
	dataDir  string
	dbOK     bool
	geocoder bool
}

func NewInfoHandler(dataDir string, dbOK, geocoder bool) *InfoHandler {
	return &InfoHandler{dataDir: dataDir, dbOK: dbOK, geocoder: geocoder}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name     string   `json:"name" doc:"Service name"`
	Version  string   `json:"version" doc:"Service version"`
	DataDir  string   `json:"data_dir" doc:"Data directory path"`
	DB       bool     `json:"db" doc:"Whether database is available"`
	Features []string `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	features := []string{"layer-tree", "catalog", "pmtiles", "metrics"}
	if h.dbOK {
		features = append(features, "duckdb")
	}
	if h.geocoder {
		features = append(features, "geocoder")
	}
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:     "plat-mapview",
		Version:  Version,
		DataDir:  h.dataDir,
		DB:       h.dbOK,
		Features: features,
	}}, nil
}
