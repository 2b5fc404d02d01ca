package viewer

import (
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/joeblew999/plat-waterwatch/internal/chart"
	"github.com/joeblew999/plat-waterwatch/internal/coordinator"
	"github.com/joeblew999/plat-waterwatch/internal/geo"
	"github.com/joeblew999/plat-waterwatch/internal/layers"
	"github.com/joeblew999/plat-waterwatch/internal/service"
	"github.com/joeblew999/plat-waterwatch/internal/templates"
)

// Browser events consumed by the map and chart widgets.
const (
	EventFeature = "map-feature"
	EventOverlay = "map-overlay"
	EventLayer   = "map-layer"
	EventCenter  = "map-center"
	EventChart   = "chart-render"
	EventClear   = "chart-clear"
)

// Page regions patched with table rows.
const (
	SelectorDetails = "#details-table"
	SelectorMeta    = "#meta-table"
	SelectorPonds   = "#pond-select"
	SelectorLayers  = "#layer-toggles"
)

// Sink publishes UI updates of one session on the event bus. It implements
// coordinator.UI and layers.Widget.
type Sink struct {
	session  string
	bus      *service.EventBus
	renderer *templates.Renderer
	logger   *zap.Logger
}

var (
	_ coordinator.UI = (*Sink)(nil)
	_ layers.Widget  = (*Sink)(nil)
)

func NewSink(session string, bus *service.EventBus, renderer *templates.Renderer, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{session: session, bus: bus, renderer: renderer, logger: logger}
}

func (s *Sink) signals(m map[string]any) {
	s.bus.Publish(service.Event{Session: s.session, Kind: service.KindSignals, Payload: m})
}

func (s *Sink) event(name string, detail any) {
	s.bus.Publish(service.Event{Session: s.session, Kind: service.KindEvent, Target: name, Payload: detail})
}

func (s *Sink) rows(selector string, rows []coordinator.Row) {
	html, err := s.renderer.Render("table-rows", rows)
	if err != nil {
		s.logger.Error("rendering fragment failed",
			zap.String("template", "table-rows"),
			zap.String("selector", selector),
			zap.Error(err))
		return
	}
	s.bus.Publish(service.Event{Session: s.session, Kind: service.KindPatch, Target: selector, Payload: html})
}

func (s *Sink) ClearOverlay() {
	s.event(EventFeature, map[string]any{"action": "clear"})
}

func (s *Sink) AddOverlayFeature(f *geojson.Feature) {
	s.event(EventFeature, map[string]any{"action": "add", "feature": f})
}

func (s *Sink) SetOverlayURL(layer layers.Name, url string) {
	s.event(EventOverlay, map[string]any{"layer": layer, "url": url})
}

func (s *Sink) CenterOn(at geo.LatLon, zoom float64) {
	s.event(EventCenter, map[string]any{"lat": at.Lat, "lon": at.Lon, "zoom": zoom})
}

func (s *Sink) Render(spec chart.Spec) {
	s.event(EventChart, spec)
	s.signals(map[string]any{"chartHidden": map[string]any{spec.Panel: false}})
}

func (s *Sink) Clear(panel string) {
	s.event(EventClear, map[string]any{"panel": panel})
	s.signals(map[string]any{"chartHidden": map[string]any{panel: true}})
}

func (s *Sink) ShowMessage(msg string) {
	s.signals(map[string]any{"message": msg, "infoHidden": false})
}

func (s *Sink) ClearMessage() {
	s.signals(map[string]any{"message": "", "infoHidden": true})
}

func (s *Sink) SetLoading(loading bool) {
	s.signals(map[string]any{"loading": loading})
}

func (s *Sink) ShowDetails(d coordinator.DetailsView) {
	s.rows(SelectorDetails, d.Rows())
	s.signals(map[string]any{"detailsHidden": false})
}

func (s *Sink) HideDetails() {
	s.rows(SelectorDetails, nil)
	s.signals(map[string]any{"detailsHidden": true})
}

func (s *Sink) ShowMetaTable(m coordinator.MetaTable) {
	s.rows(SelectorMeta, m.Rows())
	s.signals(map[string]any{"metaHidden": false})
}

func (s *Sink) HideMetaTable() {
	s.rows(SelectorMeta, nil)
	s.signals(map[string]any{"metaHidden": true})
}

func (s *Sink) SetLayerVisible(name layers.Name, visible bool) {
	s.event(EventLayer, map[string]any{"layer": name, "visible": visible})
	s.signals(map[string]any{"layers": map[string]any{string(name): visible}})
}

// PublishPondsURL tells every open viewer about a new ponds overlay URL.
func PublishPondsURL(bus *service.EventBus, url string) {
	bus.Publish(service.Event{
		Kind:    service.KindEvent,
		Target:  EventOverlay,
		Payload: map[string]any{"layer": layers.Ponds, "url": url},
	})
}
