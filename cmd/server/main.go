// Card kiosk print broker server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/cardkiosk/printbroker/internal/api"
	"github.com/cardkiosk/printbroker/internal/config"
	"github.com/cardkiosk/printbroker/internal/generator"
	"github.com/cardkiosk/printbroker/internal/health"
	"github.com/cardkiosk/printbroker/internal/middleware"
	"github.com/cardkiosk/printbroker/internal/notify"
	"github.com/cardkiosk/printbroker/internal/printqueue"
	"github.com/cardkiosk/printbroker/internal/render"
	"github.com/cardkiosk/printbroker/internal/session"
	"github.com/cardkiosk/printbroker/internal/station"
	"github.com/cardkiosk/printbroker/web"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		os.Exit(runHealthcheck(cfg))
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(),
		"trusted_proxy", cfg.TrustedProxy)
	if !cfg.GeneratorConfigured() {
		slog.Warn("LLM_API_KEY not set, generation requests will fail unless the backend needs no key")
	}

	// Initialize core components.
	hub := notify.NewHub(logger)
	queue := printqueue.New(printqueue.Config{
		JobTTL:   cfg.Queue.JobTTL,
		ClaimTTL: cfg.Queue.ClaimTTL,
	}, hub, logger)
	sessions := session.NewStore(cfg.Sessions.TTL, logger)

	backend := generator.NewChatClient(generator.ChatOptions{
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		APIKey:  cfg.LLM.APIKey,
	})
	gen := generator.New(backend, cfg.LLM.Timeout, logger)
	slog.Info("Generator configured", "llm_base_url", cfg.LLM.BaseURL, "llm_model", backend.Model())
	stations := station.NewRegistry(logger)

	// Initialize handlers.
	apiHandler := api.NewHandler(api.Deps{
		Generator:     gen,
		Renderer:      render.NewCardRenderer(),
		Sessions:      sessions,
		Queue:         queue,
		Subscribers:   hub,
		Stations:      stations,
		MaxImageBytes: cfg.MaxImageBytes,
		Logger:        logger,
	})
	wsHandler := station.NewHandler(hub, queue, stations, cfg.FrontendURL, cfg.IsDevelopment(), logger)
	limiter := middleware.NewRateLimiter(cfg.GenerateRatePerMinute)

	r := newRouter(cfg, apiHandler, wsHandler, limiter)

	// WebSocket streams need no write timeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	queue.StartSweeper(gctx, cfg.Queue.SweepInterval)
	sessions.StartSweeper(gctx, cfg.Sessions.SweepInterval)

	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.HealthGRPCAddr != "" {
		healthSrv := health.NewServer(cfg.GeneratorConfigured(), logger)
		g.Go(func() error {
			return healthSrv.ListenAndServe(gctx, cfg.HealthGRPCAddr)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")

		stations.CloseAll()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server forced to shutdown", "error", err)
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully",
		"pending_jobs", queue.PendingCount(), "dropped_events", hub.Dropped())
}

// newRouter builds the HTTP routes. RealIP is mounted only behind a trusted
// proxy, since forwarded headers also key the rate limiter.
func newRouter(cfg *config.Config, apiHandler *api.Handler, wsHandler http.Handler, limiter *middleware.RateLimiter) chi.Router {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	if cfg.TrustedProxy {
		r.Use(chiMiddleware.RealIP)
	}
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(allowedOrigins(cfg)))

	apiHandler.RegisterRoutes(r, limiter.Handler)
	r.Get("/ws/print", wsHandler.ServeHTTP)
	r.Handle("/*", web.SPAHandler())
	return r
}

func runHealthcheck(cfg *config.Config) int {
	if cfg.HealthGRPCAddr == "" {
		slog.Error("Health server disabled, HEALTH_GRPC_ADDR is empty")
		return 1
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := health.Probe(ctx, probeAddr(cfg.HealthGRPCAddr), health.ServicePrintQueue); err != nil {
		slog.Error("Health check failed", "error", err)
		return 1
	}
	return 0
}

// probeAddr turns a listen address like ":9090" into a dialable one.
func probeAddr(listen string) string {
	if len(listen) > 0 && listen[0] == ':' {
		return "localhost" + listen
	}
	return listen
}

func allowedOrigins(cfg *config.Config) []string {
	if cfg.IsDevelopment() {
		return []string{"*"}
	}
	return []string{cfg.FrontendURL}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
