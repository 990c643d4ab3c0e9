package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

// InfoConfig describes how the service was started.
type InfoConfig struct {
	DataDir string
	DB      bool
	// Upstream is the base URL overlay data is fetched from.
	Upstream string
}

type InfoHandler struct {
	svc *Services
}

func NewInfoHandler(svc *Services) *InfoHandler {
	return &InfoHandler{svc: svc}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name     string   `json:"name" doc:"Service name"`
	Version  string   `json:"version" doc:"Service version"`
	DataDir  string   `json:"data_dir" doc:"Data directory path"`
	DB       bool     `json:"db" doc:"Whether preferences are persisted"`
	Upstream string   `json:"upstream,omitempty" doc:"Base URL of the overlay data API"`
	Views    int      `json:"views" doc:"Number of live map views"`
	Features []string `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	features := []string{"state", "shortlink", "layers"}
	views := 0
	if h.svc.Views != nil {
		features = append(features, "views", "overlays", "export")
		views = h.svc.Views.Len()
	}
	if h.svc.Data != nil {
		features = append(features, "fixture-data", "vector-tiles")
	}
	if h.svc.Info.DB {
		features = append(features, "duckdb")
	}

	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:     "plat-map",
		Version:  Version,
		DataDir:  h.svc.Info.DataDir,
		DB:       h.svc.Info.DB,
		Upstream: h.svc.Info.Upstream,
		Views:    views,
		Features: features,
	}}, nil
}
