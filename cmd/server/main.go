// Cosmic Guide - astrology chat server
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

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/ashureev/cosmic-guide/internal/api"
	"github.com/ashureev/cosmic-guide/internal/bootstrap"
	"github.com/ashureev/cosmic-guide/internal/chatlog"
	"github.com/ashureev/cosmic-guide/internal/config"
	"github.com/ashureev/cosmic-guide/internal/healthgrpc"
	"github.com/ashureev/cosmic-guide/internal/identity"
	"github.com/ashureev/cosmic-guide/internal/middleware"
	"github.com/ashureev/cosmic-guide/internal/store"
	"github.com/ashureev/cosmic-guide/web"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "session_store", cfg.SessionStore)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize dependencies.
	repo, err := store.Open(ctx, store.Options{
		Backend:     cfg.SessionStore,
		DBPath:      cfg.DBPath,
		DatabaseURL: cfg.DatabaseURL,
	})
	if err != nil {
		slog.Error("Failed to initialize session store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(ctx); err != nil {
		slog.Error("Session store health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Session store connected")

	engine, provider, err := bootstrap.Engine(cfg, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation engine", "error", err)
		os.Exit(1)
	}
	slog.Info("Conversation engine ready", "provider", provider.Name(), "upsell_policy", cfg.Conversation.UpsellPolicy)

	conversationLogger, err := chatlog.New(chatlog.Config{
		Enabled:       cfg.ConversationLog.Enabled,
		Dir:           cfg.ConversationLog.Dir,
		GlobalEnabled: cfg.ConversationLog.GlobalEnabled,
		GlobalPath:    cfg.ConversationLog.GlobalPath,
		QueueSize:     cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := conversationLogger.Close(); closeErr != nil {
			slog.Warn("Failed to close conversation logger", "error", closeErr)
		}
	}()

	limiter := api.NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration)
	defer limiter.Stop()

	// Initialize handlers.
	chatHandler := api.NewHandler(api.Deps{
		Repo:         repo,
		Engine:       engine,
		ChatLog:      conversationLogger,
		Limiter:      limiter,
		DefaultGuide: bootstrap.DefaultGuide(cfg, logger),
	})
	healthHandler := api.NewHealthHandler(repo, provider.Name())
	wsHandler := api.NewWebSocketHandler(chatHandler, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.AllowedOrigins()))
	r.Use(identity.Middleware(cfg.IsDevelopment()))

	// Public routes.
	healthHandler.RegisterHealth(r)
	chatHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/chat", wsHandler.ServeHTTP)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // WebSocket connections are long lived
		IdleTimeout:  120 * time.Second,
	}

	// Start TTL worker.
	ttlDone := store.StartTTLWorker(ctx, repo, cfg.SessionTTL, store.DefaultTTLInterval, chatHandler.ForgetSession)
	slog.Info("TTL worker started", "session_ttl", cfg.SessionTTL)

	healthSrv := healthgrpc.New(repo, logger)
	grpcLis, err := net.Listen("tcp", ":"+cfg.GRPCHealthPort)
	if err != nil {
		slog.Error("Failed to listen for gRPC health", "error", err, "port", cfg.GRPCHealthPort)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return healthSrv.Serve(grpcLis)
	})
	g.Go(func() error {
		healthSrv.Monitor(gctx, healthgrpc.DefaultCheckInterval)
		return nil
	})
	g.Go(func() error {
		// Wait for shutdown signal or a server failure.
		<-gctx.Done()
		stop()

		slog.Info("Shutting down gracefully...")
		healthSrv.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server stopped with error", "error", err)
		<-ttlDone
		os.Exit(1)
	}
	<-ttlDone

	slog.Info("Server stopped successfully")
}
