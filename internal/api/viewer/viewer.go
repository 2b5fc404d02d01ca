// Package viewer contains the Datastar SSE handlers of the map viewer.
//
// Each browser holds a session cookie. POST handlers feed map and chart
// interactions to the session's coordinator; the coordinator's UI updates
// travel over the event bus to the session's open event stream.
package viewer

import (
	"context"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/joeblew999/plat-waterwatch/internal/chart"
	"github.com/joeblew999/plat-waterwatch/internal/coordinator"
	"github.com/joeblew999/plat-waterwatch/internal/geo"
	"github.com/joeblew999/plat-waterwatch/internal/humastar"
	"github.com/joeblew999/plat-waterwatch/internal/layers"
	"github.com/joeblew999/plat-waterwatch/internal/service"
	"github.com/joeblew999/plat-waterwatch/internal/templates"
)

// DefaultIdleTimeout drops viewer sessions nobody has used for a while.
const DefaultIdleTimeout = 2 * time.Hour

// Viewer is the state of one browser session.
type Viewer struct {
	ID          string
	Sink        *Sink
	Coordinator *coordinator.Coordinator
	Layers      *layers.Controller
}

// Config wires a Handler.
type Config struct {
	Backend     coordinator.Backend
	Coordinator coordinator.Config
	Catalog     *layers.Catalog
	Bus         *service.EventBus
	Renderer    *templates.Renderer
	Logger      *zap.Logger
	IdleTimeout time.Duration
}

// Handler serves the viewer endpoints.
type Handler struct {
	humastar.Handler
	cfg      Config
	bus      *service.EventBus
	sessions *service.Sessions[*Viewer]
	logger   *zap.Logger
}

func NewHandler(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Bus == nil {
		cfg.Bus = service.NewEventBus()
	}
	if cfg.Renderer == nil {
		cfg.Renderer = templates.MustBuiltin()
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	h := &Handler{
		Handler: humastar.Handler{Renderer: cfg.Renderer, Logger: cfg.Logger},
		cfg:     cfg,
		bus:     cfg.Bus,
		logger:  cfg.Logger,
	}
	h.sessions = service.NewSessions(cfg.IdleTimeout, h.newViewer, func(v *Viewer) {
		v.Coordinator.Close()
	})
	return h
}

func (h *Handler) newViewer(id string) *Viewer {
	logger := h.logger.With(zap.String("session", id))
	sink := NewSink(id, h.bus, h.cfg.Renderer, logger)
	visibility := map[layers.Name]bool{}
	if h.cfg.Catalog != nil {
		visibility = h.cfg.Catalog.Visibility()
	}
	h.logger.Debug("viewer session created", zap.String("session", id))
	return &Viewer{
		ID:          id,
		Sink:        sink,
		Coordinator: coordinator.New(h.cfg.Coordinator, h.cfg.Backend, sink, logger),
		Layers:      layers.NewController(visibility, sink),
	}
}

// NewSessionID returns a fresh viewer session ID.
func NewSessionID() string {
	return uuid.NewString()
}

// NewSession creates a viewer session and returns its ID.
func (h *Handler) NewSession() string {
	id := NewSessionID()
	h.sessions.GetOrCreate(id)
	return id
}

// HasSession reports whether id names a live session.
func (h *Handler) HasSession(id string) bool {
	_, ok := h.sessions.Get(id)
	return ok
}

// Sessions exposes the session registry for sweeping and shutdown.
func (h *Handler) Sessions() *service.Sessions[*Viewer] {
	return h.sessions
}

func (h *Handler) RegisterRoutes(api huma.API) {
	tags := huma.OperationTags(humastar.TagSSE)
	huma.Get(api, "/api/v1/viewer/events", h.Events, tags)
	huma.Get(api, "/api/v1/viewer/ponds", h.PondOptions, tags)
	huma.Get(api, "/api/v1/viewer/layers", h.LayerToggles, tags)
	huma.Post(api, "/api/v1/viewer/click", h.Click, tags)
	huma.Post(api, "/api/v1/viewer/point", h.Point, tags)
	huma.Post(api, "/api/v1/viewer/reset", h.Reset, tags)
	huma.Post(api, "/api/v1/viewer/layers/{name}/toggle", h.Toggle, tags)
	huma.Post(api, "/api/v1/viewer/view", h.View, tags)
	huma.Post(api, "/api/v1/viewer/ponds/select", h.SelectPond, tags)
}

// viewer looks up a session created by the viewer page. Unknown IDs are
// rejected so clients cannot mint sessions with made-up cookies.
func (h *Handler) viewer(session string) (*Viewer, error) {
	if session == "" {
		return nil, huma.Error400BadRequest("missing viewer session; open /viewer first")
	}
	v, ok := h.sessions.Get(session)
	if !ok {
		return nil, huma.Error400BadRequest("unknown or expired viewer session; reload /viewer")
	}
	return v, nil
}

// Events streams the session's UI updates, starting with its current state.
func (h *Handler) Events(ctx context.Context, input *humastar.SessionInput) (*huma.StreamResponse, error) {
	v, err := h.viewer(input.Session)
	if err != nil {
		return nil, err
	}

	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			sse := humastar.NewSSE(humaCtx)
			ch := h.bus.Subscribe(v.ID)
			defer h.bus.Unsubscribe(ch)

			h.sendState(sse, v)

			for {
				select {
				case <-ctx.Done():
					return
				case ev := <-ch:
					if h.bus.Lagged(ch) {
						// Updates were dropped; discard the backlog and
						// replay the current state instead.
						discardBacklog(ch)
						h.logger.Debug("event stream lagged, resyncing", zap.String("session", v.ID))
						h.sendState(sse, v)
						continue
					}
					switch ev.Kind {
					case service.KindSignals:
						if m, ok := ev.Payload.(map[string]any); ok {
							sse.Signals(m)
						}
					case service.KindPatch:
						if html, ok := ev.Payload.(string); ok {
							sse.Patch(html, ev.Target)
						}
					case service.KindEvent:
						sse.Event(ev.Target, ev.Payload)
					}
				}
			}
		},
	}, nil
}

// sendState replays the session's state onto a fresh or resynced stream.
func (h *Handler) sendState(sse humastar.SSE, v *Viewer) {
	st := v.Coordinator.Snapshot()
	visible := map[string]any{}
	for name, on := range v.Layers.Snapshot() {
		visible[string(name)] = on
	}
	chartHidden := map[string]any{}
	for _, panel := range []string{chart.PanelHistory, chart.PanelForecast} {
		_, shown := st.Charts[panel]
		chartHidden[panel] = !shown
	}
	sse.Signals(map[string]any{
		"message":       st.Message,
		"infoHidden":    st.Message == "",
		"loading":       st.Loading,
		"detailsHidden": st.Details == nil,
		"metaHidden":    st.Meta == nil,
		"chartHidden":   chartHidden,
		"layers":        visible,
	})

	sse.Event(EventFeature, map[string]any{"action": "clear"})
	if st.Selected != nil {
		sse.Event(EventFeature, map[string]any{"action": "add", "feature": st.Selected.Feature()})
	}

	for _, panel := range []string{chart.PanelHistory, chart.PanelForecast} {
		if spec, ok := st.Charts[panel]; ok {
			sse.Event(EventChart, spec)
		} else {
			sse.Event(EventClear, map[string]any{"panel": panel})
		}
	}

	var details, meta []coordinator.Row
	if st.Details != nil {
		details = st.Details.Rows()
	}
	if st.Meta != nil {
		meta = st.Meta.Rows()
	}
	sse.Patch(h.Render("table-rows", details), SelectorDetails)
	sse.Patch(h.Render("table-rows", meta), SelectorMeta)

	for name, url := range st.Overlays {
		sse.Event(EventOverlay, map[string]any{"layer": name, "url": url})
	}
	if h.cfg.Catalog != nil {
		if ponds, ok := h.cfg.Catalog.Get(layers.Ponds); ok && ponds.URL != "" {
			sse.Event(EventOverlay, map[string]any{"layer": layers.Ponds, "url": ponds.URL})
		}
	}
}

func discardBacklog(ch chan service.Event) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

// PondOptions fills the pond picker.
func (h *Handler) PondOptions(ctx context.Context, input *humastar.SessionInput) (*huma.StreamResponse, error) {
	v, err := h.viewer(input.Session)
	if err != nil {
		return nil, err
	}
	ponds, err := v.Coordinator.Ponds(ctx)
	return h.Stream(func(sse humastar.SSE) {
		if err != nil {
			sse.Error("Ponds unavailable: " + err.Error())
			return
		}
		sse.Patch(h.Render("pond-options", ponds), SelectorPonds)
	}), nil
}

// LayerToggle is one row of the layer switcher.
type LayerToggle struct {
	ID      layers.Name
	Title   string
	Visible bool
}

// LayerToggles renders the layer switcher with the session's visibility.
func (h *Handler) LayerToggles(ctx context.Context, input *humastar.SessionInput) (*huma.StreamResponse, error) {
	v, err := h.viewer(input.Session)
	if err != nil {
		return nil, err
	}
	visible := v.Layers.Snapshot()
	var rows []LayerToggle
	if h.cfg.Catalog != nil {
		for _, l := range h.cfg.Catalog.List() {
			rows = append(rows, LayerToggle{ID: l.ID, Title: l.Title, Visible: visible[l.ID]})
		}
	}
	return h.Stream(func(sse humastar.SSE) {
		sse.Patch(h.Render("layer-toggles", rows), SelectorLayers)
	}), nil
}

// Click handles a map click. The view geometry comes with the click so the
// pixel can be projected the way the browser sees the map.
func (h *Handler) Click(ctx context.Context, input *humastar.SessionSignalsInput) (*huma.StreamResponse, error) {
	v, err := h.viewer(input.Session)
	if err != nil {
		return nil, err
	}
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}

	ev := coordinator.ClickEvent{
		Pixel: geo.Pixel{X: signals.Float("x"), Y: signals.Float("y")},
		Viewport: geo.Viewport{
			Center: geo.LatLon{Lat: signals.Float("centerlat"), Lon: signals.Float("centerlon")},
			Zoom:   signals.Float("zoom"),
			Width:  signals.Int("width"),
			Height: signals.Int("height"),
		},
	}
	// The zoom precondition is checked before the view, so a low-zoom click
	// always gets the zoom message.
	d, err := v.Coordinator.HandleClick(ctx, ev)
	if errors.Is(err, coordinator.ErrInvalidView) {
		return nil, huma.Error400BadRequest("Invalid map view: " + err.Error())
	}
	return h.Stream(func(sse humastar.SSE) {
		if err != nil {
			sse.Signals(map[string]any{"message": v.Coordinator.Snapshot().Message, "infoHidden": false})
			return
		}
		sse.Signals(map[string]any{
			"generation": d.Request.Generation,
			"currentlat": d.Request.At.Lat,
			"currentlon": d.Request.At.Lon,
		})
	}), nil
}

// Point handles a click on a point of the history chart.
func (h *Handler) Point(ctx context.Context, input *humastar.SessionSignalsInput) (*huma.StreamResponse, error) {
	v, err := h.viewer(input.Session)
	if err != nil {
		return nil, err
	}
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	x, okX := signals.Number("pointx")
	y, okY := signals.Number("pointy")
	if !okX || !okY {
		return nil, huma.Error400BadRequest("pointx and pointy are required")
	}

	_, err = v.Coordinator.HandlePointClick(int64(x), y)
	return h.Stream(func(sse humastar.SSE) {
		if err != nil {
			sse.Error("Click on the map first.")
		}
	}), nil
}

// Reset clears the scene overlays and metadata.
func (h *Handler) Reset(ctx context.Context, input *humastar.SessionInput) (*huma.StreamResponse, error) {
	v, err := h.viewer(input.Session)
	if err != nil {
		return nil, err
	}
	v.Coordinator.Reset()
	return h.Stream(func(sse humastar.SSE) {}), nil
}

type ToggleInput struct {
	Session string `cookie:"ww_session" doc:"Viewer session"`
	Name    string `path:"name" doc:"Layer handle" example:"ponds"`
}

// Toggle flips a layer's visibility.
func (h *Handler) Toggle(ctx context.Context, input *ToggleInput) (*huma.StreamResponse, error) {
	v, err := h.viewer(input.Session)
	if err != nil {
		return nil, err
	}
	visible, err := v.Layers.Toggle(layers.Name(input.Name))
	if err != nil {
		return nil, huma.Error404NotFound(err.Error())
	}
	return h.Stream(func(sse humastar.SSE) {
		sse.Signals(map[string]any{"layers": map[string]any{input.Name: visible}})
	}), nil
}

// View follows the map view after it moved.
func (h *Handler) View(ctx context.Context, input *humastar.SessionSignalsInput) (*huma.StreamResponse, error) {
	v, err := h.viewer(input.Session)
	if err != nil {
		return nil, err
	}
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	zoom, ok := signals.Number("zoom")
	if !ok {
		return nil, huma.Error400BadRequest("zoom is required")
	}
	v.Layers.ApplyZoom(zoom)
	return h.Stream(func(sse humastar.SSE) {}), nil
}

// SelectPond centers the map on a pond picked from the ponds list.
func (h *Handler) SelectPond(ctx context.Context, input *humastar.SessionSignalsInput) (*huma.StreamResponse, error) {
	v, err := h.viewer(input.Session)
	if err != nil {
		return nil, err
	}
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	name := signals.String("pond")
	if name == "" {
		return nil, huma.Error400BadRequest("pond is required")
	}

	_, err = v.Coordinator.SelectPond(ctx, name)
	return h.Stream(func(sse humastar.SSE) {
		if errors.Is(err, coordinator.ErrUnknownPond) {
			sse.Error("Unknown pond: " + name)
		}
	}), nil
}
