// Package coordinator turns map clicks into data requests and merges their
// independently arriving results into the viewer state.
//
// Every accepted click starts a new generation. Results are tagged with the
// generation they were issued under and dropped when a newer click has
// superseded them, so the last click always wins.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/joeblew999/plat-waterwatch/internal/backend"
	"github.com/joeblew999/plat-waterwatch/internal/chart"
	"github.com/joeblew999/plat-waterwatch/internal/geo"
	"github.com/joeblew999/plat-waterwatch/internal/layers"
	"github.com/joeblew999/plat-waterwatch/internal/metrics"
)

var (
	ErrZoomTooLow  = errors.New("zoom level below minimum")
	ErrNoSelection = errors.New("no location selected")
	ErrInvalidView = errors.New("invalid map view")
	ErrUnknownPond = errors.New("unknown pond")
)

const (
	DefaultMinZoom = 16
	// PondZoom is the zoom the map is set to when a pond is picked from the list.
	PondZoom = 16

	failurePrefix = "Error processing the request. Please be sure to click on a feature. "
)

// Backend is the subset of the data service the coordinator calls.
type Backend interface {
	Timeseries(ctx context.Context, at geo.LatLon) backend.Result[backend.TimeSeries]
	Forecast(ctx context.Context, at geo.LatLon) backend.Result[backend.TimeSeries]
	Details(ctx context.Context, at geo.LatLon) backend.Result[backend.Details]
	MNDWI(ctx context.Context, q backend.PointQuery) backend.Result[backend.Imagery]
	PondsList(ctx context.Context) backend.Result[backend.PondsList]
}

// Config holds coordinator settings.
type Config struct {
	MinZoom float64
	// FetchTimeout bounds every fetch of a click. Zero disables the bound.
	FetchTimeout time.Duration
}

// ClickEvent is a raw map click: a pixel within the current view.
type ClickEvent struct {
	Pixel    geo.Pixel
	Viewport geo.Viewport
}

// RequestContext is an accepted click.
type RequestContext struct {
	Generation uint64
	At         geo.LatLon
	Zoom       float64
}

// SelectedFeature is the outline of the pond under the current click.
type SelectedFeature struct {
	Generation uint64
	// Source is the operation whose geometry was drawn last.
	Source  string
	Name    string
	Polygon orb.Polygon
}

// Feature is the outline as drawn on the map, with its name, source
// operation and centroid as properties.
func (s SelectedFeature) Feature() *geojson.Feature {
	c := geo.Centroid(s.Polygon)
	return geo.Feature(s.Polygon, map[string]any{
		"name":     s.Name,
		"source":   s.Source,
		"centroid": []float64{c.Lon, c.Lat},
	})
}

// State is the viewer state owned by a coordinator.
type State struct {
	Generation uint64
	Current    *RequestContext
	Selected   *SelectedFeature
	Message    string
	Loading    bool
	Overlays   map[layers.Name]string
	Details    *DetailsView
	Meta       *MetaTable
	// Charts holds the spec drawn in each chart panel, keyed by panel.
	Charts map[string]chart.Spec
	// Pending counts fetches of the current generation still in flight.
	Pending int
}

func (s State) clone() State {
	out := s
	out.Overlays = make(map[layers.Name]string, len(s.Overlays))
	for k, v := range s.Overlays {
		out.Overlays[k] = v
	}
	out.Charts = make(map[string]chart.Spec, len(s.Charts))
	for k, v := range s.Charts {
		out.Charts[k] = v
	}
	if s.Current != nil {
		c := *s.Current
		out.Current = &c
	}
	if s.Selected != nil {
		sel := *s.Selected
		sel.Polygon = s.Selected.Polygon.Clone()
		out.Selected = &sel
	}
	if s.Details != nil {
		d := *s.Details
		out.Details = &d
	}
	if s.Meta != nil {
		m := *s.Meta
		out.Meta = &m
	}
	return out
}

// Dispatch tracks the fetches issued for one click.
type Dispatch struct {
	Request RequestContext
	wg      sync.WaitGroup
}

// Wait blocks until every fetch of the dispatch has been handled.
func (d *Dispatch) Wait() { d.wg.Wait() }

// Coordinator owns the state of one viewer. UI calls are made with the
// coordinator lock held, so a UI never sees interleaved updates.
type Coordinator struct {
	cfg     Config
	backend Backend
	ui      UI
	logger  *zap.Logger

	mu        sync.Mutex
	state     State
	pointGen  uint64
	clickCtx  context.Context
	cancel    context.CancelFunc
	pointStop context.CancelFunc
}

// New creates a coordinator.
func New(cfg Config, b Backend, ui UI, logger *zap.Logger) *Coordinator {
	if cfg.MinZoom <= 0 {
		cfg.MinZoom = DefaultMinZoom
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		cfg:     cfg,
		backend: b,
		ui:      ui,
		logger:  logger,
		state:   State{Overlays: map[layers.Name]string{}, Charts: map[string]chart.Spec{}},
	}
}

// ZoomMessage is the text shown when a click is rejected for its zoom.
func (c *Coordinator) ZoomMessage() string {
	return fmt.Sprintf("The zoom level has to be %g or greater. Please check and try again.", c.cfg.MinZoom)
}

// HandleClick validates a click and fans out the timeseries, forecast and
// details requests for the projected location. A rejected click issues no
// request and returns ErrZoomTooLow.
//
// Fetches run detached from ctx's cancellation; they end when they complete,
// time out, or a newer click supersedes them.
func (c *Coordinator) HandleClick(ctx context.Context, ev ClickEvent) (*Dispatch, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ev.Viewport.Zoom < c.cfg.MinZoom {
		metrics.ClicksTotal.WithLabelValues("rejected").Inc()
		c.setMessage(c.ZoomMessage())
		return nil, fmt.Errorf("%w: %g < %g", ErrZoomTooLow, ev.Viewport.Zoom, c.cfg.MinZoom)
	}
	if err := ev.Viewport.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidView, err)
	}
	metrics.ClicksTotal.WithLabelValues("accepted").Inc()

	at := ev.Viewport.Project(ev.Pixel)

	c.stopLocked()
	clickCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.clickCtx, c.cancel = clickCtx, cancel

	c.state.Generation++
	gen := c.state.Generation
	req := RequestContext{Generation: gen, At: at, Zoom: ev.Viewport.Zoom}
	c.state.Current = &req
	c.state.Selected = nil
	c.state.Details = nil
	c.state.Pending = 3

	c.setMessage("")
	c.setLoading(true)
	c.ui.ClearOverlay()
	c.clearChart(chart.PanelHistory)
	c.clearChart(chart.PanelForecast)
	c.ui.HideDetails()

	c.logger.Debug("click accepted",
		zap.Uint64("generation", gen),
		zap.Float64("lat", at.Lat),
		zap.Float64("lon", at.Lon),
		zap.Float64("zoom", ev.Viewport.Zoom))

	d := &Dispatch{Request: req}
	d.wg.Add(3)
	go c.fetch(d, clickCtx, func(ctx context.Context) { c.applyTimeseries(gen, c.backend.Timeseries(ctx, at)) })
	go c.fetch(d, clickCtx, func(ctx context.Context) { c.applyForecast(gen, c.backend.Forecast(ctx, at)) })
	go c.fetch(d, clickCtx, func(ctx context.Context) { c.applyDetails(gen, c.backend.Details(ctx, at)) })
	return d, nil
}

// HandlePointClick looks up the scene behind a point of the history chart at
// the location of the current click. Returns ErrNoSelection when no click has
// been accepted yet.
func (c *Coordinator) HandlePointClick(x int64, y float64) (*Dispatch, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Current == nil || c.clickCtx == nil {
		return nil, ErrNoSelection
	}
	req := *c.state.Current

	if c.pointStop != nil {
		c.pointStop()
	}
	pointCtx, stop := context.WithCancel(c.clickCtx)
	c.pointStop = stop
	c.pointGen++
	pgen := c.pointGen

	c.setMessage("")
	c.state.Meta = nil
	c.ui.HideMetaTable()

	q := backend.PointQuery{X: x, Y: y, At: req.At}
	d := &Dispatch{Request: req}
	d.wg.Add(1)
	go c.fetch(d, pointCtx, func(ctx context.Context) {
		c.applyImagery(req.Generation, pgen, q, c.backend.MNDWI(ctx, q))
	})
	return d, nil
}

// Reset clears the imagery overlays and the scene metadata.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pointStop != nil {
		c.pointStop()
		c.pointStop = nil
	}
	c.pointGen++
	c.clearImageryLocked()
	c.setMessage("")
}

// Ponds lists the monitored ponds.
func (c *Coordinator) Ponds(ctx context.Context) ([]backend.Pond, error) {
	res := c.backend.PondsList(ctx)
	if !res.OK() {
		return nil, res.Err
	}
	return res.Value.Ponds(), nil
}

// SelectPond centers the map on a pond from the ponds list.
func (c *Coordinator) SelectPond(ctx context.Context, name string) (backend.Pond, error) {
	ponds, err := c.Ponds(ctx)
	if err != nil {
		c.mu.Lock()
		c.setMessage(failurePrefix + failureText(err))
		c.mu.Unlock()
		return backend.Pond{}, err
	}
	for _, p := range ponds {
		if p.Name == name {
			c.mu.Lock()
			c.ui.CenterOn(p.Center, PondZoom)
			c.mu.Unlock()
			return p, nil
		}
	}
	return backend.Pond{}, fmt.Errorf("%w: %q", ErrUnknownPond, name)
}

// Snapshot returns a copy of the current state.
func (c *Coordinator) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Close cancels in-flight fetches.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Coordinator) stopLocked() {
	if c.pointStop != nil {
		c.pointStop()
		c.pointStop = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Coordinator) fetch(d *Dispatch, parent context.Context, run func(ctx context.Context)) {
	defer d.wg.Done()
	ctx := parent
	if c.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, c.cfg.FetchTimeout)
		defer cancel()
	}
	run(ctx)
}

// begin locks the coordinator for a completion of generation gen. It returns
// false, with the lock released, when the result is stale.
func (c *Coordinator) begin(gen uint64, op string) bool {
	c.mu.Lock()
	if gen != c.state.Generation {
		c.mu.Unlock()
		metrics.StaleResultsTotal.WithLabelValues(op).Inc()
		c.logger.Debug("stale result dropped",
			zap.String("operation", op),
			zap.Uint64("generation", gen),
			zap.Uint64("current", c.state.Generation))
		return false
	}
	return true
}

func (c *Coordinator) done() {
	c.state.Pending--
	if c.state.Pending <= 0 {
		c.state.Pending = 0
		c.setLoading(false)
	}
}

func (c *Coordinator) applyTimeseries(gen uint64, res backend.Result[backend.TimeSeries]) {
	if !c.begin(gen, backend.OpTimeseries) {
		return
	}
	defer c.mu.Unlock()
	defer c.done()

	if !res.OK() {
		c.fail(backend.OpTimeseries, res.Err)
		c.clearChart(chart.PanelHistory)
		return
	}
	c.setMessage("")
	c.clearImageryLocked()
	c.setSelection(gen, backend.OpTimeseries, res.Value.Coordinates, res.Value.Name)
	c.renderChart(chart.History(res.Value, c.state.Current.At))
}

func (c *Coordinator) applyForecast(gen uint64, res backend.Result[backend.TimeSeries]) {
	if !c.begin(gen, backend.OpForecast) {
		return
	}
	defer c.mu.Unlock()
	defer c.done()

	if !res.OK() {
		c.fail(backend.OpForecast, res.Err)
		c.clearChart(chart.PanelForecast)
		return
	}
	c.setSelection(gen, backend.OpForecast, res.Value.Coordinates, res.Value.Name)
	c.renderChart(chart.Forecast(res.Value))
}

func (c *Coordinator) applyDetails(gen uint64, res backend.Result[backend.Details]) {
	if !c.begin(gen, backend.OpDetails) {
		return
	}
	defer c.mu.Unlock()
	defer c.done()

	if !res.OK() {
		c.fail(backend.OpDetails, res.Err)
		c.state.Details = nil
		c.ui.HideDetails()
		return
	}
	c.setSelection(gen, backend.OpDetails, res.Value.Coordinates, res.Value.NamePond)
	view := detailsView(res.Value)
	c.state.Details = &view
	c.ui.ShowDetails(view)
}

func (c *Coordinator) applyImagery(gen, pgen uint64, q backend.PointQuery, res backend.Result[backend.Imagery]) {
	if !c.begin(gen, backend.OpMNDWI) {
		return
	}
	defer c.mu.Unlock()

	if pgen != c.pointGen {
		metrics.StaleResultsTotal.WithLabelValues(backend.OpMNDWI).Inc()
		return
	}
	if !res.OK() {
		c.clearImageryLocked()
		c.fail(backend.OpMNDWI, res.Err)
		return
	}
	img := res.Value
	c.setOverlay(layers.TrueColor, img.TrueMapURL)
	c.setOverlay(layers.Water, img.WaterMapURL)
	meta := MetaTable{At: q.At, Date: img.Date, CloudCover: img.CloudCover}
	c.state.Meta = &meta
	c.ui.ShowMetaTable(meta)
}

// setSelection replaces the selected outline with the geometry of one result.
// Results without usable geometry leave the outline untouched.
func (c *Coordinator) setSelection(gen uint64, op string, rings backend.Rings, name string) {
	poly, err := geo.DecodePolygon(rings)
	if err != nil {
		c.logger.Warn("result without outline", zap.String("operation", op), zap.Error(err))
		return
	}
	sel := SelectedFeature{Generation: gen, Source: op, Name: name, Polygon: poly}
	c.state.Selected = &sel
	c.ui.ClearOverlay()
	c.ui.AddOverlayFeature(sel.Feature())
}

func (c *Coordinator) renderChart(spec chart.Spec) {
	c.state.Charts[spec.Panel] = spec
	c.ui.Render(spec)
}

func (c *Coordinator) clearChart(panel string) {
	delete(c.state.Charts, panel)
	c.ui.Clear(panel)
}

func (c *Coordinator) clearImageryLocked() {
	c.setOverlay(layers.TrueColor, "")
	c.setOverlay(layers.Water, "")
	c.state.Meta = nil
	c.ui.HideMetaTable()
}

func (c *Coordinator) setOverlay(name layers.Name, url string) {
	c.state.Overlays[name] = url
	c.ui.SetOverlayURL(name, url)
}

func (c *Coordinator) setMessage(msg string) {
	c.state.Message = msg
	if msg == "" {
		c.ui.ClearMessage()
		return
	}
	c.ui.ShowMessage(msg)
}

func (c *Coordinator) setLoading(loading bool) {
	c.state.Loading = loading
	c.ui.SetLoading(loading)
}

func (c *Coordinator) fail(op string, f *backend.Failure) {
	c.logger.Info("fetch failed",
		zap.String("operation", op),
		zap.Stringer("kind", f.Kind),
		zap.String("error", f.Message))
	c.setMessage(failurePrefix + f.Message)
}

func failureText(err error) string {
	var f *backend.Failure
	if errors.As(err, &f) {
		return f.Message
	}
	return err.Error()
}
