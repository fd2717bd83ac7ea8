// Launchpad - gamified startup mentoring server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/launchpad/internal/agent"
	"github.com/ashureev/launchpad/internal/api"
	"github.com/ashureev/launchpad/internal/catalog"
	"github.com/ashureev/launchpad/internal/config"
	"github.com/ashureev/launchpad/internal/gamification"
	"github.com/ashureev/launchpad/internal/identity"
	"github.com/ashureev/launchpad/internal/learning"
	"github.com/ashureev/launchpad/internal/metrics"
	"github.com/ashureev/launchpad/internal/middleware"
	"github.com/ashureev/launchpad/internal/progress"
	"github.com/ashureev/launchpad/internal/store"
	"github.com/ashureev/launchpad/internal/tools"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
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
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	slog.Info("Starting server", "port", cfg.Port, "grpc_port", cfg.GRPCPort, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.Open(context.Background(), cfg.DatabaseURL, logger)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	if cfg.SeedCatalog {
		c, err := catalog.Default()
		if err != nil {
			slog.Error("Failed to load reference catalog", "error", err)
			os.Exit(1)
		}
		if err := repo.SeedCatalog(context.Background(), c); err != nil {
			slog.Error("Failed to seed reference catalog", "error", err)
			os.Exit(1)
		}
	}

	// Initialize services.
	m := metrics.New()
	gamify := gamification.New(repo, gamification.Options{
		Metrics:         m,
		Logger:          logger,
		UnlockWindow:    cfg.AchievementUnlockWindow,
		DefaultTimezone: cfg.DefaultTimezone,
	})
	engine := progress.NewEngine(repo, gamify.Orchestrator, progress.Options{Metrics: m, Logger: logger})
	lessons := learning.New(repo, gamify.Orchestrator, learning.Options{Metrics: m, Logger: logger})
	dispatcher := tools.NewDispatcher(tools.NewDefaultRegistry(tools.Deps{Engine: engine, Learning: lessons}), m, logger)

	verifier := identity.NewVerifier(cfg.JWTSecret)
	authenticate := func(ctx context.Context, token string) (*identity.Account, error) {
		return identity.Authenticate(ctx, verifier, repo, cfg.DefaultTimezone, token)
	}

	handler := api.NewHandler(api.Deps{
		Repo:         repo,
		Engine:       engine,
		Gamification: gamify,
		Learning:     lessons,
		Tools:        dispatcher,
		Logger:       logger,
	})

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins()))

	r.Handle("/metrics", m.Handler())
	handler.RegisterRoutes(r, identity.Middleware(verifier, repo, cfg.DefaultTimezone, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	grpcServer := agent.NewGRPCServer(agent.NewServer(dispatcher, authenticate, logger), logger)
	grpcLis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		slog.Error("Failed to listen for gRPC", "port", cfg.GRPCPort, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start servers.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()
	go func() {
		slog.Info("Tool gateway listening", "addr", grpcLis.Addr().String())
		if err := grpcServer.Serve(grpcLis); err != nil {
			slog.Error("Tool gateway failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	grpcServer.GracefulStop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
