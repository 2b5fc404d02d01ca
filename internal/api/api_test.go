package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-waterwatch/internal/backend"
	"github.com/joeblew999/plat-waterwatch/internal/geo"
	"github.com/joeblew999/plat-waterwatch/internal/humastar"
	"github.com/joeblew999/plat-waterwatch/internal/layers"
	"github.com/joeblew999/plat-waterwatch/internal/pondcache"
	"github.com/joeblew999/plat-waterwatch/internal/store"
)

type fakeData struct {
	ponds backend.Result[backend.PondsList]
	url   backend.Result[backend.PondsURL]
}

func (f fakeData) PondsList(ctx context.Context) backend.Result[backend.PondsList] { return f.ponds }
func (f fakeData) PondsURL(ctx context.Context) backend.Result[backend.PondsURL]   { return f.url }

func setup(t *testing.T, data fakeData) humatest.TestAPI {
	t.Helper()
	cfg := huma.DefaultConfig("waterwatch test", "1.0.0")
	cfg.CreateHooks = nil
	cfg.Transformers = append(cfg.Transformers, humastar.LinkTransformer())
	_, api := humatest.New(t, cfg)

	svc := &Services{
		Catalog:  layers.NewCatalog(t.TempDir()),
		Ponds:    data,
		PondsURL: pondcache.New(store.NewMemory(), data, time.Hour, nil),
		Boundary: geo.DefaultBoundary(),
	}
	RegisterRoutes(api, svc)
	NewInfoHandler(InfoConfig{Store: "memory", MinZoom: 16, Center: geo.DefaultCenter}).RegisterRoutes(api)
	return api
}

func defaultData() fakeData {
	names := []string{"A", "B", "C"}
	centers := [][]float64{{-14.1, 15.1}, {-14.2, 15.2}, {-14.3, 15.3}}
	return fakeData{
		ponds: backend.Ok(backend.PondsList{Names: names, Centers: centers}),
		url:   backend.Ok(backend.PondsURL{URL: "https://tiles/ponds/{z}/{x}/{y}"}),
	}
}

func TestHealthAndInfo(t *testing.T) {
	api := setup(t, defaultData())

	resp := api.Get("/health")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"status":"ok"`)

	resp = api.Get("/api/v1/info")
	assert.Equal(t, http.StatusOK, resp.Code)
	var info InfoBody
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &info))
	assert.Equal(t, "plat-waterwatch", info.Name)
	assert.Equal(t, 16.0, info.MinZoom)
	assert.Equal(t, geo.DefaultCenter, info.Center)
}

func TestLayers(t *testing.T) {
	api := setup(t, defaultData())

	resp := api.Get("/api/v1/layers")
	require.Equal(t, http.StatusOK, resp.Code)
	var list []layers.Layer
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &list))
	require.Len(t, list, len(layers.All))
	assert.Equal(t, layers.Base, list[0].ID)

	resp = api.Get("/api/v1/layers/aerial")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Header().Values("Link"),
		`</api/v1/viewer/layers/aerial/toggle>; rel="toggle"; method="POST"; title="Show or hide in the viewer"`)

	resp = api.Get("/api/v1/layers/nope")
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = api.Put("/api/v1/layers/ponds", map[string]any{
		"title": "Classified ponds", "kind": "xyz", "opacity": 0.6, "defaultVisible": false,
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var updated layers.Layer
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &updated))
	assert.Equal(t, layers.Ponds, updated.ID)
	assert.Equal(t, 0.6, updated.Opacity)

	resp = api.Put("/api/v1/layers/ponds", map[string]any{
		"title": "", "kind": "xyz", "opacity": 0.6, "defaultVisible": false,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func TestPonds(t *testing.T) {
	api := setup(t, defaultData())

	resp := api.Get("/api/v1/ponds?offset=1&limit=1")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var page humastar.PageBody[backend.Pond]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &page))
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "B", page.Data[0].Name)
	assert.Equal(t, 15.2, page.Data[0].Center.Lat)

	links := strings.Join(resp.Header().Values("Link"), ",")
	assert.Contains(t, links, `rel="next"`)
	assert.Contains(t, links, `rel="prev"`)
}

func TestPonds_BackendFailure(t *testing.T) {
	data := defaultData()
	data.ponds = backend.Fail[backend.PondsList](backend.FailureBackend, "earth engine quota")
	api := setup(t, data)

	resp := api.Get("/api/v1/ponds")
	assert.Equal(t, http.StatusBadGateway, resp.Code)
	assert.Contains(t, resp.Body.String(), "earth engine quota")
}

func TestPondsURL(t *testing.T) {
	api := setup(t, defaultData())

	resp := api.Get("/api/v1/ponds/url")
	require.Equal(t, http.StatusOK, resp.Code)
	var body PondsURLBody
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "https://tiles/ponds/{z}/{x}/{y}", body.URL)
	_, err := time.Parse(time.RFC3339, body.FetchedAt)
	assert.NoError(t, err)
}

func TestBoundary(t *testing.T) {
	api := setup(t, defaultData())

	resp := api.Get("/api/v1/boundary")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "application/geo+json", resp.Header().Get("Content-Type"))

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type string `json:"type"`
			} `json:"geometry"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "Polygon", fc.Features[0].Geometry.Type)
}
