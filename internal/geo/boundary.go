package geo

import (
	"fmt"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// ferloMercator is the Ferlo study area in EPSG:3857.
var ferloMercator = orb.Bound{
	Min: orb.Point{-2025275.5014440303, 1364859.5770601076},
	Max: orb.Point{-1247452.3016140766, 1898084.286377496},
}

// DefaultCenter is where the viewer opens.
var DefaultCenter = LatLon{Lat: 14.4974, Lon: -14.45}

// DefaultBoundary returns the built-in study area outline in WGS84.
func DefaultBoundary() orb.MultiPolygon {
	poly := project.Polygon(ferloMercator.ToPolygon(), project.Mercator.ToWGS84)
	return orb.MultiPolygon{poly}
}

// LoadBoundary reads polygon shapes from an ESRI shapefile. Every part
// becomes its own polygon; the outline layer does not distinguish holes.
// Coordinates must already be WGS84.
func LoadBoundary(path string) (orb.MultiPolygon, error) {
	r, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open shapefile: %w", err)
	}
	defer r.Close()

	var mp orb.MultiPolygon
	for r.Next() {
		_, shape := r.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok {
			continue
		}
		for i, start := range poly.Parts {
			end := len(poly.Points)
			if i+1 < len(poly.Parts) {
				end = int(poly.Parts[i+1])
			}
			ring := make(orb.Ring, 0, end-int(start))
			for _, pt := range poly.Points[start:end] {
				ring = append(ring, orb.Point{pt.X, pt.Y})
			}
			if len(ring) >= 3 {
				mp = append(mp, orb.Polygon{ring})
			}
		}
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("read shapefile: %w", err)
	}
	if len(mp) == 0 {
		return nil, fmt.Errorf("shapefile %s has no polygons", path)
	}
	return mp, nil
}

// Boundary loads the outline from path, or the built-in one when path is empty.
func Boundary(path string) (orb.MultiPolygon, error) {
	if path == "" {
		return DefaultBoundary(), nil
	}
	return LoadBoundary(path)
}
