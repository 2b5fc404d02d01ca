package geo

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// ErrEmptyGeometry is returned when a backend response carries no rings.
var ErrEmptyGeometry = errors.New("geometry has no coordinates")

// DecodePolygon builds a polygon from GeoJSON-style ring coordinates
// ([ring][position][lon, lat]). Open rings are closed.
func DecodePolygon(rings [][][]float64) (orb.Polygon, error) {
	if len(rings) == 0 {
		return nil, ErrEmptyGeometry
	}

	poly := make(orb.Polygon, 0, len(rings))
	for i, coords := range rings {
		if len(coords) < 3 {
			return nil, fmt.Errorf("ring %d has %d positions, need at least 3", i, len(coords))
		}
		ring := make(orb.Ring, 0, len(coords)+1)
		for j, pos := range coords {
			if len(pos) < 2 {
				return nil, fmt.Errorf("ring %d position %d has %d values", i, j, len(pos))
			}
			ring = append(ring, orb.Point{pos[0], pos[1]})
		}
		if !ring.Closed() {
			ring = append(ring, ring[0])
		}
		poly = append(poly, ring)
	}
	return poly, nil
}

// Feature wraps a geometry into a GeoJSON feature for the map widget.
func Feature(g orb.Geometry, props map[string]any) *geojson.Feature {
	f := geojson.NewFeature(g)
	for k, v := range props {
		f.Properties[k] = v
	}
	return f
}

// Centroid returns the area-weighted center of a polygon.
func Centroid(poly orb.Polygon) LatLon {
	c, _ := planar.CentroidArea(poly)
	return FromPoint(c)
}
