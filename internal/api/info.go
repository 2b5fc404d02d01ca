package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-waterwatch/internal/geo"
)

// InfoConfig describes the running service.
type InfoConfig struct {
	DataDir    string
	Store      string
	BackendURL string
	MinZoom    float64
	Center     geo.LatLon
}

type InfoHandler struct {
	cfg InfoConfig
}

func NewInfoHandler(cfg InfoConfig) *InfoHandler {
	return &InfoHandler{cfg: cfg}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name       string     `json:"name" doc:"Service name"`
	Version    string     `json:"version" doc:"Service version"`
	DataDir    string     `json:"data_dir" doc:"Data directory path"`
	Store      string     `json:"store" doc:"Key-value store driver" example:"duckdb"`
	BackendURL string     `json:"backend_url" doc:"Data service base URL"`
	MinZoom    float64    `json:"min_zoom" doc:"Minimum zoom for map clicks" example:"16"`
	Center     geo.LatLon `json:"center" doc:"Where the viewer map opens"`
	Features   []string   `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:       "plat-waterwatch",
		Version:    "0.1.0",
		DataDir:    h.cfg.DataDir,
		Store:      h.cfg.Store,
		BackendURL: h.cfg.BackendURL,
		MinZoom:    h.cfg.MinZoom,
		Center:     h.cfg.Center,
		Features:   []string{"timeseries", "forecast", "details", "mndwi", "ponds"},
	}}, nil
}
