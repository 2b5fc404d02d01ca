package server

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/joeblew999/plat-waterwatch/internal/api"
	"github.com/joeblew999/plat-waterwatch/internal/api/viewer"
	"github.com/joeblew999/plat-waterwatch/internal/backend"
	"github.com/joeblew999/plat-waterwatch/internal/coordinator"
	"github.com/joeblew999/plat-waterwatch/internal/geo"
	"github.com/joeblew999/plat-waterwatch/internal/humastar"
	"github.com/joeblew999/plat-waterwatch/internal/layers"
	"github.com/joeblew999/plat-waterwatch/internal/metrics"
	"github.com/joeblew999/plat-waterwatch/internal/pondcache"
	"github.com/joeblew999/plat-waterwatch/internal/service"
	"github.com/joeblew999/plat-waterwatch/internal/store"
	"github.com/joeblew999/plat-waterwatch/internal/templates"
)

// sweepInterval is how often idle viewer sessions are dropped.
const sweepInterval = 5 * time.Minute

// Config holds the server configuration.
type Config struct {
	Host    string
	Port    string
	DataDir string
	WebDir  string // Path to web/ directory for static files and templates

	BackendURL   string
	FetchTimeout time.Duration
	MinZoom      float64
	Store        store.Config
	BoundaryShp  string
	RefreshCron  string // empty disables the scheduled refresh
	IdleTimeout  time.Duration

	Logger *zap.Logger
}

// Server is the waterwatch HTTP server.
type Server struct {
	config   Config
	mux      *http.ServeMux
	humaAPI  huma.API
	logger   *zap.Logger
	kv       store.KV
	client   *backend.Client
	bus      *service.EventBus
	catalog  *layers.Catalog
	ponds    *pondcache.Cache
	viewer   *viewer.Handler
	renderer *templates.Renderer

	mu     sync.Mutex
	sched  *cron.Cron
	cancel context.CancelFunc
}

// New assembles the server. It opens the key-value store but starts no
// background work; call Start for that.
func New(ctx context.Context, cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	boundary, err := geo.Boundary(cfg.BoundaryShp)
	if err != nil {
		return nil, fmt.Errorf("loading boundary: %w", err)
	}

	kv, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Store.Driver, err)
	}

	mux := http.NewServeMux()

	// Create Huma API with humago (pure stdlib) adapter
	humaConfig := huma.DefaultConfig("plat-waterwatch API", "1.0.0")
	humaConfig.Info.Description = "Water-body monitor: pond time series, forecasts and scene imagery for the Ferlo ponds."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, humastar.LinkTransformer())

	humaAPI := humago.New(mux, humaConfig)

	// Fragments in web/templates/fragments override the built-in ones
	fragmentsDir := ""
	if cfg.WebDir != "" {
		fragmentsDir = filepath.Join(cfg.WebDir, "templates", "fragments")
	}
	renderer, err := templates.New(fragmentsDir)
	if err != nil {
		kv.Close()
		return nil, fmt.Errorf("loading fragments: %w", err)
	}

	client := backend.New(backend.Config{BaseURL: cfg.BackendURL, Timeout: cfg.FetchTimeout}, logger.Named("backend"))
	bus := service.NewEventBus()
	catalog := layers.NewCatalog(cfg.DataDir)

	ponds := pondcache.New(kv, client, pondcache.DefaultTTL, logger.Named("pondcache"))
	ponds.OnRefresh = func(url string) {
		catalog.SetURL(layers.Ponds, url)
		viewer.PublishPondsURL(bus, url)
	}

	s := &Server{
		config:   cfg,
		mux:      mux,
		humaAPI:  humaAPI,
		logger:   logger,
		kv:       kv,
		client:   client,
		bus:      bus,
		catalog:  catalog,
		ponds:    ponds,
		renderer: renderer,
		viewer: viewer.NewHandler(viewer.Config{
			Backend:     client,
			Coordinator: coordinator.Config{MinZoom: cfg.MinZoom, FetchTimeout: cfg.FetchTimeout},
			Catalog:     catalog,
			Bus:         bus,
			Renderer:    renderer,
			Logger:      logger.Named("viewer"),
			IdleTimeout: cfg.IdleTimeout,
		}),
	}

	s.routes(&api.Services{
		Catalog:  catalog,
		Ponds:    client,
		PondsURL: ponds,
		Boundary: boundary,
	})
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// PondsURL exposes the ponds URL cache.
func (s *Server) PondsURL() *pondcache.Cache {
	return s.ponds
}

// Start warms the ponds URL and starts the refresh schedule and the session
// sweeper.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	if s.config.RefreshCron != "" {
		sched, err := s.ponds.Schedule(s.config.RefreshCron)
		if err != nil {
			cancel()
			return err
		}
		s.sched = sched
	}

	go s.viewer.Sessions().Run(ctx, sweepInterval)

	go func() {
		e, err := s.ponds.Load(ctx)
		if err != nil {
			s.logger.Warn("ponds url unavailable", zap.Error(err))
			return
		}
		s.catalog.SetURL(layers.Ponds, e.URL)
		viewer.PublishPondsURL(s.bus, e.URL)
	}()
	return nil
}

// Close stops background work and closes server resources.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sched != nil {
		<-s.sched.Stop().Done()
		s.sched = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.viewer.Sessions().Close()
	return s.kv.Close()
}

func (s *Server) routes(svc *api.Services) {
	// Register Huma REST API routes (OpenAPI-documented JSON endpoints)
	api.RegisterRoutes(s.humaAPI, svc)
	api.NewInfoHandler(api.InfoConfig{
		DataDir:    s.config.DataDir,
		Store:      s.config.Store.Driver,
		BackendURL: s.config.BackendURL,
		MinZoom:    s.config.MinZoom,
		Center:     geo.DefaultCenter,
	}).RegisterRoutes(s.humaAPI)

	// Register viewer SSE routes using Huma + Datastar SDK
	s.viewer.RegisterRoutes(s.humaAPI)

	// Links are derived once every operation is registered
	humastar.AutoLinks(s.humaAPI)

	s.mux.Handle("/metrics", metrics.Handler())

	// Static files
	if s.config.WebDir != "" {
		staticDir := filepath.Join(s.config.WebDir, "static")
		s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	}

	// Page routes
	s.mux.HandleFunc("/viewer", s.handleViewer)
	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, "/viewer", http.StatusFound)
}

// handleViewer serves the map page. Viewer sessions are only created here;
// a browser without a live session gets a new cookie.
func (s *Server) handleViewer(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(humastar.SessionCookieName); err != nil || !s.viewer.HasSession(c.Value) {
		http.SetCookie(w, humastar.SessionCookie(s.viewer.NewSession()))
	}
	templatePath := filepath.Join(s.config.WebDir, "templates", "viewer.html")
	http.ServeFile(w, r, templatePath)
}
