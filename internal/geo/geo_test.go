package geo

import (
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewportProjectCenter(t *testing.T) {
	v := Viewport{Center: LatLon{Lat: 15.2, Lon: -14.5}, Zoom: 16, Width: 800, Height: 600}

	got := v.Project(Pixel{X: 400, Y: 300})
	assert.InDelta(t, 15.2, got.Lat, 1e-9)
	assert.InDelta(t, -14.5, got.Lon, 1e-9)
}

func TestViewportProjectOffsets(t *testing.T) {
	v := Viewport{Center: LatLon{Lat: 15.2, Lon: -14.5}, Zoom: 16, Width: 800, Height: 600}

	right := v.Project(Pixel{X: 800, Y: 300})
	assert.Greater(t, right.Lon, -14.5, "pixels to the right are further east")
	assert.InDelta(t, 15.2, right.Lat, 1e-9)

	below := v.Project(Pixel{X: 400, Y: 600})
	assert.Less(t, below.Lat, 15.2, "pixels below are further south")

	// 400 px at zoom 16 is roughly 400 * 2.39 m, i.e. about 0.0086 degrees of longitude.
	assert.InDelta(t, 0.0086, right.Lon+14.5, 0.0005)
}

func TestViewportProjectSymmetric(t *testing.T) {
	v := Viewport{Center: DefaultCenter, Zoom: 12.5, Width: 1024, Height: 768}

	west := v.Project(Pixel{X: 0, Y: 384})
	east := v.Project(Pixel{X: 1024, Y: 384})
	assert.InDelta(t, DefaultCenter.Lon-west.Lon, east.Lon-DefaultCenter.Lon, 1e-9)
	assert.InDelta(t, west.Lat, east.Lat, 1e-9)

	center := v.Project(Pixel{X: 512, Y: 384})
	assert.InDelta(t, DefaultCenter.Lat, center.Lat, 1e-9)
	assert.InDelta(t, DefaultCenter.Lon, center.Lon, 1e-9)
}

func TestViewportValidate(t *testing.T) {
	assert.NoError(t, Viewport{Center: DefaultCenter, Zoom: 10, Width: 1, Height: 1}.Validate())
	assert.Error(t, Viewport{Center: DefaultCenter, Zoom: 10}.Validate())
	assert.Error(t, Viewport{Center: DefaultCenter, Zoom: -1, Width: 1, Height: 1}.Validate())
	assert.Error(t, Viewport{Center: LatLon{Lat: 89}, Zoom: 3, Width: 1, Height: 1}.Validate())
}

func TestDecodePolygon(t *testing.T) {
	poly, err := DecodePolygon([][][]float64{{{-14.5, 15.2}, {-14.4, 15.2}, {-14.4, 15.3}}})
	require.NoError(t, err)
	require.Len(t, poly, 1)
	assert.True(t, poly[0].Closed())
	assert.Len(t, poly[0], 4)

	c := Centroid(poly)
	assert.InDelta(t, -14.4333, c.Lon, 1e-3)
	assert.InDelta(t, 15.2333, c.Lat, 1e-3)
}

func TestDecodePolygonErrors(t *testing.T) {
	_, err := DecodePolygon(nil)
	assert.ErrorIs(t, err, ErrEmptyGeometry)

	_, err = DecodePolygon([][][]float64{{{0, 0}, {1, 1}}})
	assert.Error(t, err)

	_, err = DecodePolygon([][][]float64{{{0, 0}, {1}, {1, 1}}})
	assert.Error(t, err)
}

func TestFeatureProperties(t *testing.T) {
	f := Feature(orb.Point{1, 2}, map[string]any{"name": "Lac A"})
	assert.Equal(t, "Lac A", f.Properties["name"])
	assert.Equal(t, orb.Point{1, 2}, f.Geometry)
}

func TestDefaultBoundary(t *testing.T) {
	mp := DefaultBoundary()
	require.Len(t, mp, 1)

	b := mp.Bound()
	assert.InDelta(t, -18.19, b.Min.Lon(), 0.01)
	assert.InDelta(t, -11.21, b.Max.Lon(), 0.01)
	assert.InDelta(t, 12.17, b.Min.Lat(), 0.01)
	assert.InDelta(t, 16.80, b.Max.Lat(), 0.01)
}

func TestLoadBoundary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ferlo.shp")

	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	line := shp.NewPolyLine([][]shp.Point{
		{{X: -15, Y: 14}, {X: -14, Y: 14}, {X: -14, Y: 15}, {X: -15, Y: 14}},
		{{X: -13, Y: 14}, {X: -12, Y: 14}, {X: -12, Y: 15}, {X: -13, Y: 14}},
	})
	poly := shp.Polygon(*line)
	w.Write(&poly)
	w.Close()

	mp, err := Boundary(path)
	require.NoError(t, err)
	require.Len(t, mp, 2)
	assert.Equal(t, orb.Point{-15, 14}, mp[0][0][0])
	assert.Equal(t, orb.Point{-13, 14}, mp[1][0][0])
}

func TestBoundaryDefaultsWithoutPath(t *testing.T) {
	mp, err := Boundary("")
	require.NoError(t, err)
	assert.Equal(t, DefaultBoundary(), mp)
}
