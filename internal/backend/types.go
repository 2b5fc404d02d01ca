package backend

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/joeblew999/plat-waterwatch/internal/geo"
)

// Sample is one entry of a water-coverage time series. Water is nil when the
// scene had no usable pixels; StdDev is nil when the service did not report it.
type Sample struct {
	Timestamp int64    // milliseconds since the Unix epoch
	Water     *float64 // fraction of the pond surface classified as water, 0-1
	StdDev    *float64
}

// UnmarshalJSON accepts both [t, fraction] and [t, {"water": f, "stddev": s}].
func (s *Sample) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("sample: %w", err)
	}
	if len(raw) < 2 {
		return fmt.Errorf("sample: want [time, value], got %d elements", len(raw))
	}

	var ts float64
	if err := json.Unmarshal(raw[0], &ts); err != nil {
		return fmt.Errorf("sample time: %w", err)
	}
	*s = Sample{Timestamp: int64(ts)}

	v := bytes.TrimSpace(raw[1])
	switch {
	case bytes.Equal(v, []byte("null")):
	case len(v) > 0 && v[0] == '{':
		var obj struct {
			Water  *float64 `json:"water"`
			StdDev *float64 `json:"stddev"`
		}
		if err := json.Unmarshal(v, &obj); err != nil {
			return fmt.Errorf("sample value: %w", err)
		}
		s.Water, s.StdDev = obj.Water, obj.StdDev
	default:
		var f float64
		if err := json.Unmarshal(v, &f); err != nil {
			return fmt.Errorf("sample value: %w", err)
		}
		s.Water = &f
	}
	return nil
}

// Rings are polygon coordinates as returned by the service: [ring][position][lon, lat].
type Rings [][][]float64

// TimeSeries is the payload of the timeseries and forecast operations.
type TimeSeries struct {
	Values      []Sample `json:"values"`
	Coordinates Rings    `json:"coordinates"`
	Name        string   `json:"name"`
}

// Details describes the pond under a location and its administrative units.
type Details struct {
	NamePond           string  `json:"namePond"`
	SupPond            float64 `json:"sup_Pond"`
	NameRegion         string  `json:"nameRegion"`
	NameCommune        string  `json:"nameCommune"`
	NameArrondissement string  `json:"nameArrondissement"`
	Coordinates        Rings   `json:"coordinates"`
}

// PointQuery selects one scene of a time series: X is the scene timestamp in
// milliseconds, Y the plotted water fraction.
type PointQuery struct {
	X  int64
	Y  float64
	At geo.LatLon
}

// Imagery carries the tile URL templates for the scene picked on a chart.
type Imagery struct {
	TrueMapURL  string  `json:"true_mapurl"`
	WaterMapURL string  `json:"water_mapurl"`
	Date        string  `json:"date"`
	CloudCover  float64 `json:"cloud_cover"`
}

// PondsURL is the tile URL template of the ponds overlay.
type PondsURL struct {
	URL string `json:"url"`
}

// PondsList names every monitored pond with its center as [lon, lat].
type PondsList struct {
	Names   []string    `json:"names"`
	Centers [][]float64 `json:"centers"`
}

// Pond pairs a name with its center.
type Pond struct {
	Name   string     `json:"name" doc:"Pond name" example:"Mare de Khadiatou"`
	Center geo.LatLon `json:"center" doc:"Pond center"`
}

// Ponds zips names and centers. Entries without a usable center are skipped.
func (l PondsList) Ponds() []Pond {
	out := make([]Pond, 0, len(l.Names))
	for i, name := range l.Names {
		if i >= len(l.Centers) || len(l.Centers[i]) < 2 {
			continue
		}
		c := l.Centers[i]
		out = append(out, Pond{Name: name, Center: geo.LatLon{Lat: c[1], Lon: c[0]}})
	}
	return out
}
