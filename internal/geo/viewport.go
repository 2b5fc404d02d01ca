// Package geo converts between screen pixels, Web Mercator and WGS84
// coordinates for the map viewer.
package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// tileSize is the pixel width of one Web Mercator tile at zoom 0.
const tileSize = 256

// maxLat is the latitude limit of the Web Mercator projection.
const maxLat = 85.05112878

// LatLon is a WGS84 coordinate.
type LatLon struct {
	Lat float64 `json:"lat" doc:"Latitude (WGS84)" example:"15.2341"`
	Lon float64 `json:"lon" doc:"Longitude (WGS84)" example:"-14.4974"`
}

// Point returns the coordinate as an orb point (lon, lat order).
func (ll LatLon) Point() orb.Point {
	return orb.Point{ll.Lon, ll.Lat}
}

// FromPoint converts an orb point (lon, lat order) into a LatLon.
func FromPoint(p orb.Point) LatLon {
	return LatLon{Lat: p.Lat(), Lon: p.Lon()}
}

func (ll LatLon) String() string {
	return fmt.Sprintf("%.6f,%.6f", ll.Lat, ll.Lon)
}

// Pixel is a screen position relative to the top-left corner of the map.
type Pixel struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Viewport describes what the map widget is showing when a click happens.
type Viewport struct {
	Center LatLon  `json:"center"`
	Zoom   float64 `json:"zoom"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
}

// Validate reports whether the viewport can be used for projection.
func (v Viewport) Validate() error {
	if v.Width <= 0 || v.Height <= 0 {
		return fmt.Errorf("viewport size %dx%d is empty", v.Width, v.Height)
	}
	if v.Zoom < 0 || v.Zoom > 28 || math.IsNaN(v.Zoom) {
		return fmt.Errorf("zoom %v out of range", v.Zoom)
	}
	if math.Abs(v.Center.Lat) > maxLat || math.Abs(v.Center.Lon) > 180 {
		return fmt.Errorf("center %s out of range", v.Center)
	}
	return nil
}

// Resolution returns the Web Mercator meters per screen pixel at the
// viewport zoom.
func (v Viewport) Resolution() float64 {
	return 2 * math.Pi * orb.EarthRadius / (tileSize * math.Exp2(v.Zoom))
}

// Project converts a screen pixel to a geographic coordinate.
func (v Viewport) Project(p Pixel) LatLon {
	c := project.WGS84.ToMercator(v.Center.Point())
	res := v.Resolution()

	m := orb.Point{
		c[0] + (p.X-float64(v.Width)/2)*res,
		c[1] - (p.Y-float64(v.Height)/2)*res,
	}
	return FromPoint(project.Mercator.ToWGS84(m))
}
