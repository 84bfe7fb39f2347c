package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xiaot623/treeleaf/internal/auth"
	"github.com/xiaot623/treeleaf/internal/config"
	"github.com/xiaot623/treeleaf/internal/hub"
	"github.com/xiaot623/treeleaf/internal/logger"
	"github.com/xiaot623/treeleaf/internal/outcome"
	"github.com/xiaot623/treeleaf/internal/policy"
	store "github.com/xiaot623/treeleaf/internal/repository"
	"github.com/xiaot623/treeleaf/internal/service"
	server "github.com/xiaot623/treeleaf/internal/transport/http"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("game service stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	zlog.Info("starting game service",
		zap.Int("http_port", cfg.HTTPPort),
		zap.Int("internal_port", cfg.InternalPort),
		zap.String("database", cfg.DatabaseURL),
		zap.Int("win_threshold", cfg.WinThreshold),
		zap.Float64("win_probability", cfg.WinProbability),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer db.Close()

	if err := db.SeedProducts(ctx); err != nil {
		return fmt.Errorf("seed products: %w", err)
	}

	outcomes, codes := newSources(cfg.RNGSeed)
	if cfg.RNGSeed != 0 {
		zlog.Warn("using a seeded outcome source; outcomes are reproducible", zap.Int64("seed", cfg.RNGSeed))
	}
	if cfg.JWTSecret == config.DevJWTSecret {
		zlog.Warn("JWT_SECRET is the built-in development secret; set a real one before exposing the service")
	}

	// Initialize policy engine
	policyEngine, err := policy.NewEngineFromFile(ctx, cfg.PolicyFile)
	if err != nil {
		return fmt.Errorf("initialize policy engine: %w", err)
	}

	feed := hub.NewHub(zlog.Named("hub"))

	// Initialize service
	svc := service.New(db, outcome.NewGenerator(outcomes), codes, policyEngine, feed, cfg, zlog.Named("service"))

	verifier := auth.NewVerifier(cfg.JWTSecret)
	externalServer := server.NewExternalServer(svc, verifier, feed, cfg, zlog.Named("http"))
	internalServer := server.NewInternalServer(svc, verifier, zlog.Named("internal"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return serve(externalServer, fmt.Sprintf(":%d", cfg.HTTPPort))
	})
	g.Go(func() error {
		return serve(internalServer, fmt.Sprintf(":%d", cfg.InternalPort))
	})
	g.Go(func() error {
		feed.Run(gctx)
		return nil
	})
	g.Go(func() error {
		svc.RunExpiryMonitor(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zlog.Info("shutting down game service")

		// Graceful shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		var errs []error
		if err := externalServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown external server: %w", err))
		}
		if err := internalServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown internal server: %w", err))
		}
		return errors.Join(errs...)
	})

	zlog.Info("game service started")
	if err := g.Wait(); err != nil {
		return err
	}
	zlog.Info("game service stopped")
	return nil
}

// newSources returns the outcome source, seeded when seed is non-zero, and the prize
// code source, which is always secure.
func newSources(seed int64) (outcomes, codes outcome.Source) {
	return outcome.NewSource(seed), outcome.NewSecureSource()
}

func serve(e *echo.Echo, addr string) error {
	if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve %s: %w", addr, err)
	}
	return nil
}
