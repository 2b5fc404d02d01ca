// Package api defines the Huma REST routes and handlers.
package api

import (
	"context"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-waterwatch/internal/backend"
	"github.com/joeblew999/plat-waterwatch/internal/humastar"
	"github.com/joeblew999/plat-waterwatch/internal/layers"
	"github.com/joeblew999/plat-waterwatch/internal/pondcache"
)

// PondLister lists the monitored ponds.
type PondLister interface {
	PondsList(ctx context.Context) backend.Result[backend.PondsList]
}

// Services holds the dependencies of the REST handlers.
type Services struct {
	Catalog  *layers.Catalog
	Ponds    PondLister
	PondsURL *pondcache.Cache
	Boundary orb.MultiPolygon
}

// Types

type IDInput struct {
	ID string `path:"id" doc:"Layer handle" example:"ponds"`
}

// LayerBody is a layer with its hypermedia actions.
type LayerBody struct {
	layers.Layer
}

var layerActions = []humastar.ActionDef{
	{Rel: "toggle", Pattern: "/api/v1/viewer/layers/%s/toggle", Method: "POST", Title: "Show or hide in the viewer"},
}

func (b LayerBody) Actions() []humastar.Action {
	return humastar.ActionsFor(string(b.ID), layerActions)
}

type LayerOutput struct {
	Body LayerBody
}

type LayersOutput struct {
	Body []layers.Layer
}

type PondsOutput struct {
	Body humastar.PageBody[backend.Pond]
}

type PondsURLBody struct {
	URL       string `json:"url" doc:"Tile URL template of the ponds overlay" example:"https://earthengine.googleapis.com/map/abc/{z}/{x}/{y}?token=def"`
	FetchedAt string `json:"fetched_at" doc:"When the URL was fetched (RFC 3339)"`
}

type BoundaryOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterLayers registers layer catalog routes.
func (h *APIHandler) RegisterLayers(api huma.API) {
	huma.Get(api, "/api/v1/layers", h.GetLayers, huma.OperationTags("layers"))
	huma.Get(api, "/api/v1/layers/{id}", h.GetLayer, huma.OperationTags("layers"))
	huma.Put(api, "/api/v1/layers/{id}", h.PutLayer, huma.OperationTags("layers"))
}

// RegisterPonds registers pond routes.
func (h *APIHandler) RegisterPonds(api huma.API) {
	huma.Get(api, "/api/v1/ponds", h.GetPonds, huma.OperationTags("ponds"))
	huma.Get(api, "/api/v1/ponds/url", h.GetPondsURL, huma.OperationTags("ponds"))
	huma.Get(api, "/api/v1/boundary", h.GetBoundary, huma.OperationTags("ponds"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: "1.0.0"}}, nil
}

func (h *APIHandler) GetLayers(ctx context.Context, input *struct{}) (*LayersOutput, error) {
	if h.svc == nil || h.svc.Catalog == nil {
		return &LayersOutput{Body: []layers.Layer{}}, nil
	}
	return &LayersOutput{Body: h.svc.Catalog.List()}, nil
}

func (h *APIHandler) GetLayer(ctx context.Context, input *IDInput) (*LayerOutput, error) {
	if h.svc == nil || h.svc.Catalog == nil {
		return nil, huma.Error404NotFound("service not available")
	}
	layer, ok := h.svc.Catalog.Get(layers.Name(input.ID))
	if !ok {
		return nil, huma.Error404NotFound("layer not found")
	}
	return &LayerOutput{Body: LayerBody{layer}}, nil
}

func (h *APIHandler) PutLayer(ctx context.Context, input *struct {
	IDInput
	Body layers.Layer
}) (*LayerOutput, error) {
	if h.svc == nil || h.svc.Catalog == nil {
		return nil, huma.Error400BadRequest("service not available")
	}
	id := layers.Name(input.ID)
	if !id.Valid() {
		return nil, huma.Error404NotFound("layer not found")
	}
	updated, err := h.svc.Catalog.Update(id, input.Body)
	if err != nil {
		return nil, huma.Error500InternalServerError("saving layer", err)
	}
	return &LayerOutput{Body: LayerBody{updated}}, nil
}

func (h *APIHandler) GetPonds(ctx context.Context, input *humastar.PageInput) (*PondsOutput, error) {
	if h.svc == nil || h.svc.Ponds == nil {
		return nil, huma.Error503ServiceUnavailable("data service not configured")
	}
	res := h.svc.Ponds.PondsList(ctx)
	if !res.OK() {
		return nil, failureError(res.Err)
	}
	return &PondsOutput{Body: humastar.Page(res.Value.Ponds(), *input)}, nil
}

func (h *APIHandler) GetPondsURL(ctx context.Context, input *struct{}) (*struct{ Body PondsURLBody }, error) {
	if h.svc == nil || h.svc.PondsURL == nil {
		return nil, huma.Error503ServiceUnavailable("data service not configured")
	}
	e, err := h.svc.PondsURL.Load(ctx)
	if err != nil {
		var f *backend.Failure
		if errors.As(err, &f) {
			return nil, failureError(f)
		}
		return nil, huma.Error502BadGateway(err.Error())
	}
	return &struct{ Body PondsURLBody }{Body: PondsURLBody{
		URL:       e.URL,
		FetchedAt: e.FetchedAt.Format(time.RFC3339),
	}}, nil
}

func (h *APIHandler) GetBoundary(ctx context.Context, input *struct{}) (*BoundaryOutput, error) {
	fc := geojson.NewFeatureCollection()
	if h.svc != nil {
		for _, poly := range h.svc.Boundary {
			fc.Append(geojson.NewFeature(poly))
		}
	}
	b, err := fc.MarshalJSON()
	if err != nil {
		return nil, huma.Error500InternalServerError("encoding boundary", err)
	}
	return &BoundaryOutput{ContentType: "application/geo+json", Body: b}, nil
}

// failureError maps a data service failure to an HTTP error.
func failureError(f *backend.Failure) error {
	if f.Kind == backend.FailureTransport {
		return huma.Error502BadGateway("data service unreachable: " + f.Message)
	}
	return huma.Error502BadGateway(f.Message)
}

// RegisterRoutes registers every REST route.
func RegisterRoutes(api huma.API, svc *Services) {
	huma.AutoRegister(api, NewAPIHandler(svc))
}
