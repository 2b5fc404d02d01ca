package coordinator

import (
	"fmt"
	"strconv"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-waterwatch/internal/backend"
	"github.com/joeblew999/plat-waterwatch/internal/chart"
	"github.com/joeblew999/plat-waterwatch/internal/geo"
	"github.com/joeblew999/plat-waterwatch/internal/layers"
)

// MapWidget is the subset of the map widget the coordinator drives.
type MapWidget interface {
	// ClearOverlay removes every feature from the selection overlay.
	ClearOverlay()
	// AddOverlayFeature draws a feature on the selection overlay.
	AddOverlayFeature(f *geojson.Feature)
	// SetOverlayURL points an imagery layer at a new tile URL; "" empties it.
	SetOverlayURL(layer layers.Name, url string)
	CenterOn(at geo.LatLon, zoom float64)
}

// ChartWidget renders declarative chart specs into named panels.
type ChartWidget interface {
	Render(spec chart.Spec)
	Clear(panel string)
}

// Panels are the page regions around the map.
type Panels interface {
	ShowMessage(msg string)
	ClearMessage()
	SetLoading(loading bool)
	ShowDetails(d DetailsView)
	HideDetails()
	ShowMetaTable(m MetaTable)
	HideMetaTable()
}

// UI is everything the coordinator updates.
type UI interface {
	MapWidget
	ChartWidget
	Panels
}

// Row is one header/value line of a table panel.
type Row struct {
	Header string
	Value  string
}

// DetailsView describes the pond under the last click.
type DetailsView struct {
	Name           string
	AreaHa         float64
	Region         string
	Commune        string
	Arrondissement string
}

func detailsView(d backend.Details) DetailsView {
	return DetailsView{
		Name:           d.NamePond,
		AreaHa:         d.SupPond,
		Region:         d.NameRegion,
		Commune:        d.NameCommune,
		Arrondissement: d.NameArrondissement,
	}
}

func (d DetailsView) Rows() []Row {
	return []Row{
		{"Name", d.Name},
		{"Area (ha)", strconv.FormatFloat(d.AreaHa, 'f', 2, 64)},
		{"Region", d.Region},
		{"Commune", d.Commune},
		{"Arrondissement", d.Arrondissement},
	}
}

// MetaTable describes the scene picked on the history chart.
type MetaTable struct {
	At         geo.LatLon
	Date       string
	CloudCover float64
}

func (m MetaTable) Rows() []Row {
	return []Row{
		{"Latitude", fmt.Sprintf("%.6f", m.At.Lat)},
		{"Longitude", fmt.Sprintf("%.6f", m.At.Lon)},
		{"Current Date", m.Date},
		{"Scene Cloud Cover", strconv.FormatFloat(m.CloudCover, 'f', -1, 64)},
	}
}
