package chart

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-waterwatch/internal/backend"
	"github.com/joeblew999/plat-waterwatch/internal/geo"
)

func f(v float64) *float64 { return &v }

func TestBuild_SinglePoint(t *testing.T) {
	spec := Build(PanelHistory, "t", []backend.Sample{
		{Timestamp: 1000, Water: f(0.42), StdDev: f(0.05)},
	})

	require.Len(t, spec.Primary, 1)
	assert.Equal(t, Point{X: 1000, Y: 0.42}, spec.Primary[0])
	require.Len(t, spec.Band, 1)
	assert.InDelta(t, 0.37, spec.Band[0].Low, 1e-9)
	assert.InDelta(t, 0.47, spec.Band[0].High, 1e-9)
}

func TestBuild_DropsNullFractions(t *testing.T) {
	spec := Build(PanelHistory, "t", []backend.Sample{
		{Timestamp: 1, Water: f(0.1)},
		{Timestamp: 2},
		{Timestamp: 3, StdDev: f(0.2)},
		{Timestamp: 4, Water: f(0.9)},
	})

	require.Len(t, spec.Primary, 2)
	assert.Equal(t, int64(1), spec.Primary[0].X)
	assert.Equal(t, int64(4), spec.Primary[1].X)
	for _, p := range spec.Primary {
		assert.NotEqual(t, int64(2), p.X)
		assert.NotEqual(t, int64(3), p.X)
	}
	assert.Len(t, spec.Band, 2)
}

func TestBuild_ClampsBand(t *testing.T) {
	spec := Build(PanelHistory, "t", []backend.Sample{
		{Timestamp: 1, Water: f(0.02), StdDev: f(0.3)},
		{Timestamp: 2, Water: f(0.95), StdDev: f(0.2)},
		{Timestamp: 3, Water: f(0.5)},
	})

	for _, b := range spec.Band {
		assert.GreaterOrEqual(t, b.Low, 0.0)
		assert.LessOrEqual(t, b.High, 1.0)
	}
	assert.Equal(t, 0.0, spec.Band[0].Low)
	assert.Equal(t, 1.0, spec.Band[1].High)
	assert.Equal(t, BandPoint{X: 3, Low: 0.5, High: 0.5}, spec.Band[2])
}

func TestHistory(t *testing.T) {
	ts := backend.TimeSeries{
		Name:   "Lac A",
		Values: []backend.Sample{{Timestamp: 1, Water: f(0.42), StdDev: f(0.05)}},
	}
	spec := History(ts, geo.LatLon{Lat: 15.23456, Lon: -14.45678})

	assert.Equal(t, PanelHistory, spec.Panel)
	assert.Contains(t, spec.Title, "Lac A")
	assert.Contains(t, spec.Title, "-14.457,15.235")
	assert.Equal(t, PointAction, spec.PointAction)
}

func TestForecastUnnamed(t *testing.T) {
	spec := Forecast(backend.TimeSeries{Name: "x"})
	assert.Equal(t, PanelForecast, spec.Panel)
	assert.Equal(t, "Unnamed Pond: forecast water coverage", spec.Title)
	assert.Empty(t, spec.PointAction)
	assert.NotNil(t, spec.Primary)
}

func TestSpecJSON(t *testing.T) {
	spec := Build(PanelHistory, "t", []backend.Sample{{Timestamp: 5, Water: f(0.5), StdDev: f(0.1)}})
	b, err := json.Marshal(spec)
	require.NoError(t, err)

	var decoded struct {
		Primary [][]float64 `json:"primary"`
		Band    [][]float64 `json:"band"`
	}
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, [][]float64{{5, 0.5}}, decoded.Primary)
	require.Len(t, decoded.Band, 1)
	assert.InDelta(t, 0.4, decoded.Band[0][1], 1e-9)
	assert.InDelta(t, 0.6, decoded.Band[0][2], 1e-9)
}
