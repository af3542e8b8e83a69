package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/neel92654/PDF-QA-Bot/internal/audit"
	"github.com/neel92654/PDF-QA-Bot/internal/auth"
	"github.com/neel92654/PDF-QA-Bot/internal/config"
	"github.com/neel92654/PDF-QA-Bot/internal/gateway"
	"github.com/neel92654/PDF-QA-Bot/internal/ragclient"
	"github.com/neel92654/PDF-QA-Bot/internal/ratelimit"
	"github.com/neel92654/PDF-QA-Bot/internal/server"
	"github.com/neel92654/PDF-QA-Bot/internal/session"
	"github.com/neel92654/PDF-QA-Bot/internal/telemetry"
	"github.com/neel92654/PDF-QA-Bot/internal/upload"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	shutdownTracer, err := telemetry.InitTracer("docqa-gateway", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	validator, err := upload.New(upload.Config{
		Dir:               cfg.Upload.Dir,
		MaxBytes:          cfg.Upload.MaxBytes,
		AllowedExtensions: cfg.Upload.AllowedExtensions,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to set up upload staging: %v", err)
	}

	sessions := session.NewStore(cfg.Session.SweepIntervalDuration(),
		session.WithIdleTTL(cfg.Session.IdleTTLDuration()),
		session.WithLogger(logger),
	)
	defer sessions.Close()

	rag := ragclient.New(cfg.RAG.BaseURL,
		ragclient.WithCallTimeout(cfg.RAG.CallTimeoutDuration()),
		ragclient.WithHealthTimeout(cfg.RAG.HealthTimeoutDuration()),
	)

	var recorder audit.Recorder = audit.Nop{}
	if cfg.Audit.Enabled {
		if err := os.MkdirAll(filepath.Dir(cfg.Audit.Path), 0o750); err != nil {
			log.Fatalf("Failed to create audit directory: %v", err)
		}
		store, err := audit.New(cfg.Audit.Path)
		if err != nil {
			log.Fatalf("Failed to open audit store: %v", err)
		}
		defer store.Close()
		recorder = store
		logger.Info("audit recording enabled", slog.String("path", cfg.Audit.Path))
	}

	identity := auth.NewResolver(cfg.Auth.JWTSecret).Identity
	limiters := gateway.Limiters{
		Upload:    ratelimit.New(cfg.RateLimit.Upload.Max, cfg.RateLimit.Upload.WindowDuration()),
		Ask:       ratelimit.New(cfg.RateLimit.Ask.Max, cfg.RateLimit.Ask.WindowDuration()),
		Summarize: ratelimit.New(cfg.RateLimit.Summarize.Max, cfg.RateLimit.Summarize.WindowDuration()),
		Compare:   ratelimit.New(cfg.RateLimit.Compare.Max, cfg.RateLimit.Compare.WindowDuration()),
	}

	handler := gateway.NewHandler(validator, sessions, rag, recorder, logger)

	srv := server.New(cfg.Server.Port, cfg.Server.RequestTimeoutDuration(), logger)
	handler.RegisterRoutes(srv.Router, limiters, identity)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	logger.Info("gateway started",
		slog.Int("port", cfg.Server.Port),
		slog.String("rag_base_url", cfg.RAG.BaseURL),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server failed: %v", err)
		}
		return
	case <-sigChan:
	}

	logger.Info("shutdown signal received, draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("gateway shutdown complete")
}
