package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-waterwatch/internal/backend"
	"github.com/joeblew999/plat-waterwatch/internal/server"
	"github.com/joeblew999/plat-waterwatch/internal/store"
)

// Options defines all CLI flags and env vars for the waterwatch server.
// Flags: --host, --port, --data-dir, --backend-url, ...
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_BACKEND_URL, ...
type Options struct {
	Host         string `doc:"Host to bind to" default:"0.0.0.0" validate:"required"`
	Port         int    `doc:"Port to listen on" short:"p" default:"8086" validate:"min=1,max=65535"`
	DataDir      string `doc:"Directory for the layer catalog and local stores" default:".data" validate:"required"`
	WebDir       string `doc:"Path to web/ directory" default:"web"`
	BackendURL   string `doc:"Base URL of the water-body data service" default:"http://localhost:8000/apps/ferlo-ponds/" validate:"required,url"`
	MinZoom      int    `doc:"Minimum map zoom accepted for a click" default:"16" validate:"min=0,max=28"`
	FetchTimeout int    `doc:"Data service request timeout in seconds" default:"60" validate:"min=1"`
	Store        string `doc:"Ponds URL store: duckdb, sqlite, redis or memory" default:"duckdb" validate:"oneof=duckdb sqlite redis memory"`
	RedisAddr    string `doc:"Redis address for the redis store" default:"localhost:6379" validate:"required_if=Store redis"`
	RedisDB      int    `doc:"Redis database number" default:"0" validate:"min=0"`
	BoundaryShp  string `doc:"Shapefile with the study area outline; built-in outline when empty"`
	RefreshCron  string `doc:"Cron schedule of the ponds URL refresh; empty disables it" default:"@daily"`
	LogLevel     string `doc:"Log level" default:"info" validate:"oneof=debug info warn error"`
}

func (o *Options) validate() error {
	return validator.New().Struct(o)
}

func newLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func newServer(ctx context.Context, opts *Options, logger *zap.Logger) (*server.Server, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	return server.New(ctx, server.Config{
		Host:         opts.Host,
		Port:         fmt.Sprintf("%d", opts.Port),
		DataDir:      opts.DataDir,
		WebDir:       opts.WebDir,
		BackendURL:   opts.BackendURL,
		FetchTimeout: time.Duration(opts.FetchTimeout) * time.Second,
		MinZoom:      float64(opts.MinZoom),
		Store: store.Config{
			Driver:    opts.Store,
			DataDir:   opts.DataDir,
			RedisAddr: opts.RedisAddr,
			RedisDB:   opts.RedisDB,
			// The password stays out of flags and help output.
			RedisPassword: os.Getenv("SERVICE_REDIS_PASSWORD"),
		},
		BoundaryShp: opts.BoundaryShp,
		RefreshCron: opts.RefreshCron,
		Logger:      logger,
	})
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func printOutput(cmd *cobra.Command, v any) {
	useYAML, _ := cmd.Flags().GetBool("yaml")

	var output []byte
	var err error
	if useYAML {
		output, err = yaml.Marshal(v)
	} else {
		output, err = json.MarshalIndent(v, "", "  ")
	}
	if err != nil {
		fatal("Error marshaling output: %v", err)
	}
	fmt.Println(string(output))
}

func main() {
	// .env values become SERVICE_* env vars before humacli reads them
	_ = godotenv.Load()

	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Subcommands also pass through here, so the server is only built
		// once the serve command starts.
		logger := newLogger(opts.LogLevel)
		ctx, cancel := context.WithCancel(context.Background())

		var srv *server.Server
		var httpServer *http.Server

		hooks.OnStart(func() {
			var err error
			srv, err = newServer(ctx, opts, logger)
			if err != nil {
				fatal("Error: %v", err)
			}

			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			httpServer = &http.Server{Addr: addr, Handler: srv}

			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("plat-waterwatch server starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Data:    %s (store: %s)\n", opts.DataDir, opts.Store)
			fmt.Printf("  Backend: %s\n", opts.BackendURL)
			fmt.Println()
			fmt.Printf("  Viewer:  %s/viewer\n", baseURL)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Printf("  Metrics: %s/metrics\n", baseURL)
			fmt.Println()

			if err := srv.Start(ctx); err != nil {
				logger.Fatal("starting background jobs", zap.Error(err))
			}
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Fatal("server error", zap.Error(err))
			}
		})

		hooks.OnStop(func() {
			defer cancel()
			if httpServer == nil {
				return
			}
			shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
			defer done()
			httpServer.Shutdown(shutdownCtx)
			if err := srv.Close(); err != nil {
				logger.Warn("closing server", zap.Error(err))
			}
			logger.Sync()
		})
	})

	cli.Root().Use = "waterwatch"
	cli.Root().Short = "Water-body monitor for the Ferlo ponds"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			// The OpenAPI document does not depend on the store
			opts.Store = store.DriverMemory
			srv, err := newServer(context.Background(), opts, zap.NewNop())
			if err != nil {
				fatal("Error: %v", err)
			}
			defer srv.Close()
			printOutput(cmd, srv.OpenAPI())
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// ponds subcommand: list the monitored ponds
	pondsCmd := &cobra.Command{
		Use:   "ponds",
		Short: "List the monitored ponds with their centers",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			if err := opts.validate(); err != nil {
				fatal("Error: invalid options: %v", err)
			}
			client := backend.New(backend.Config{
				BaseURL: opts.BackendURL,
				Timeout: time.Duration(opts.FetchTimeout) * time.Second,
			}, newLogger(opts.LogLevel))

			res := client.PondsList(cmd.Context())
			if !res.OK() {
				fatal("Error: %v", res.Err)
			}
			printOutput(cmd, res.Value.Ponds())
		}),
	}
	pondsCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(pondsCmd)

	// refresh-ponds-url subcommand: force a refresh of the cached overlay URL
	refreshCmd := &cobra.Command{
		Use:   "refresh-ponds-url",
		Short: "Fetch the ponds overlay URL and store it",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			logger := newLogger(opts.LogLevel)
			defer logger.Sync()

			srv, err := newServer(cmd.Context(), opts, logger)
			if err != nil {
				fatal("Error: %v", err)
			}
			defer srv.Close()

			e, err := srv.PondsURL().Refresh(cmd.Context())
			if err != nil {
				fatal("Error refreshing ponds url: %v", err)
			}
			fmt.Printf("%s (fetched %s)\n", e.URL, e.FetchedAt.Format(time.RFC3339))
		}),
	}
	cli.Root().AddCommand(refreshCmd)

	cli.Run()
}
