package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"coupon-share-service/internal/cache"
	"coupon-share-service/internal/config"
	"coupon-share-service/internal/logger"
	"coupon-share-service/internal/metrics"
	"coupon-share-service/internal/redis"
	"coupon-share-service/internal/render"
	"coupon-share-service/internal/server"
	"coupon-share-service/internal/storage"
	"coupon-share-service/internal/token"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config.yaml or config.json")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	zl, err := logger.New(cfg.Log.Env, cfg.Log.Level)
	if err != nil {
		log.Fatalf("Error initializing logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	// Rendered PNGs are short-lived; keep the heap bounded under bursts
	debug.SetMemoryLimit(512 << 20)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zl); err != nil {
		zl.Fatal("service stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, zl *zap.Logger) error {
	store, closeStore, err := newStore(ctx, cfg, zl)
	if err != nil {
		return err
	}
	defer closeStore()

	imageCache, err := cache.NewCache(store, cfg.Cache)
	if err != nil {
		return err
	}
	defer imageCache.Close()

	assets := render.NewDirAssets(cfg.Render.AssetDir)
	renderer := render.New(assets, render.Options{
		Variant:    render.Variant(cfg.Render.Variant),
		Background: cfg.Render.CardBackground,
	})

	deps := server.Deps{
		Renderer: renderer,
		Cache:    imageCache,
		Assets:   assets,
		Metrics:  metrics.New(),
		Logger:   zl,
	}
	if cfg.Token.Secret != "" {
		codec, err := token.NewCodec(cfg.Token.Secret)
		if err != nil {
			return err
		}
		deps.Codec = codec
	}

	srv := server.New(cfg, deps)
	defer srv.Close()

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
		IdleTimeout:  cfg.Server.IdleTimeout.Duration,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info("🚀 Coupon share service listening",
			zap.String("addr", cfg.Server.Addr),
			zap.String("storage", cfg.Storage.Driver),
			zap.String("variant", cfg.Render.Variant),
			zap.String("input", cfg.Links.Input),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zl.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	m := imageCache.GetMetrics()
	zl.Info("✅ Server stopped",
		zap.Uint64("renders", m.Renders),
		zap.Float64("l1_hit_rate", m.L1HitRate),
	)
	return nil
}

// newStore opens the image store selected by storage.driver.
func newStore(ctx context.Context, cfg *config.Config, zl *zap.Logger) (storage.Store, func(), error) {
	switch cfg.Storage.Driver {
	case "redis":
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		client, err := redis.New(dialCtx, cfg.Storage.Redis, zl)
		if err != nil {
			return nil, nil, fmt.Errorf("error initializing Redis: %w", err)
		}
		return storage.NewRedisStore(client), func() { _ = client.Close() }, nil
	case "s3":
		client, err := storage.NewS3Client(ctx, cfg.Storage.S3)
		if err != nil {
			return nil, nil, fmt.Errorf("error initializing S3: %w", err)
		}
		zl.Info("✓ S3 store ready", zap.String("bucket", cfg.Storage.S3.Bucket))
		return storage.NewS3Store(client, cfg.Storage.S3.Bucket, cfg.Storage.S3.Prefix), func() {}, nil
	default:
		store, err := storage.NewFileStore(cfg.Storage.Dir)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}
}
