// Package chart turns water-coverage time series into declarative chart
// descriptions for the browser chart widget.
package chart

import (
	"encoding/json"
	"fmt"

	"github.com/joeblew999/plat-waterwatch/internal/backend"
	"github.com/joeblew999/plat-waterwatch/internal/geo"
)

// Panels the viewer renders charts into.
const (
	PanelHistory  = "plotter"
	PanelForecast = "forecast-plotter"
)

// PointAction is the Datastar action the chart widget fires when a point of
// the history chart is clicked. The widget sets $pointx and $pointy first.
const PointAction = "@post('/api/v1/viewer/point')"

// Point is one (timestamp, water fraction) pair. It encodes as [x, y].
type Point struct {
	X int64
	Y float64
}

func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.X, p.Y})
}

// BandPoint is the error band at one timestamp. It encodes as [x, low, high].
type BandPoint struct {
	X    int64
	Low  float64
	High float64
}

func (b BandPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]any{b.X, b.Low, b.High})
}

// Spec is everything the chart widget needs to draw one panel.
type Spec struct {
	Panel       string      `json:"panel"`
	Title       string      `json:"title"`
	SeriesName  string      `json:"seriesName"`
	Primary     []Point     `json:"primary"`
	Band        []BandPoint `json:"band"`
	YMax        float64     `json:"yMax"`
	PointAction string      `json:"pointAction,omitempty"`
}

// Build filters out samples without a water fraction and derives the
// primary and error-band series. Band edges are clamped to [0, 1].
func Build(panel, title string, samples []backend.Sample) Spec {
	spec := Spec{
		Panel:      panel,
		Title:      title,
		SeriesName: "Percent coverage of water",
		Primary:    make([]Point, 0, len(samples)),
		Band:       make([]BandPoint, 0, len(samples)),
		YMax:       1,
	}

	for _, s := range samples {
		if s.Water == nil {
			continue
		}
		w := *s.Water
		sd := 0.0
		if s.StdDev != nil {
			sd = *s.StdDev
		}
		spec.Primary = append(spec.Primary, Point{X: s.Timestamp, Y: w})
		spec.Band = append(spec.Band, BandPoint{
			X:    s.Timestamp,
			Low:  clamp(w - sd),
			High: clamp(w + sd),
		})
	}
	return spec
}

// History builds the clickable history chart for a pond.
func History(ts backend.TimeSeries, at geo.LatLon) Spec {
	spec := Build(PanelHistory, HistoryTitle(ts.Name, at), ts.Values)
	spec.PointAction = PointAction
	return spec
}

// Forecast builds the forecast chart for a pond.
func Forecast(ts backend.TimeSeries) Spec {
	spec := Build(PanelForecast, ForecastTitle(ts.Name), ts.Values)
	spec.SeriesName = "Forecast coverage of water"
	return spec
}

// HistoryTitle names the history chart after the pond and the clicked location.
func HistoryTitle(name string, at geo.LatLon) string {
	return fmt.Sprintf("%s: percent coverage of water at %.3f,%.3f", pondName(name), at.Lon, at.Lat)
}

// ForecastTitle names the forecast chart after the pond.
func ForecastTitle(name string) string {
	return pondName(name) + ": forecast water coverage"
}

func pondName(name string) string {
	if len(name) < 2 {
		return "Unnamed Pond"
	}
	return name
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
