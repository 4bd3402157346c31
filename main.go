package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"repairshop-backend/cache"
	"repairshop-backend/config"
	"repairshop-backend/database"
	"repairshop-backend/logger"
	"repairshop-backend/middlewares"
	"repairshop-backend/printing"
	"repairshop-backend/routes"
	"repairshop-backend/server"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	defer func() { _ = log.Sync() }()

	// ---- Database
	db, err := database.Connect(cfg.Database, log)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}

	deps := routes.Deps{
		Shop: cfg.Shop,
		Log:  log,
		Auth: middlewares.NewJWTAuth(cfg.JWT),
	}

	// ---- Optional redis cache for dashboard stats
	if cfg.Redis.Enabled() {
		statsCache, err := cache.NewRedisStatsCache(cfg.Redis)
		if err != nil {
			log.Warn("redis unavailable, dashboard cache disabled", zap.Error(err))
		} else {
			defer statsCache.Close()
			deps.StatsCache = statsCache
		}
	}

	// ---- Printing: chromedp for PDFs, S3 for stored copies when configured
	renderer := printing.NewChromedpRenderer(printing.ChromedpConfig{
		RemoteURL: cfg.PDF.RemoteURL,
		Timeout:   cfg.PDF.Timeout,
		NoSandbox: cfg.PDF.NoSandbox,
		Logger:    log.Named("pdf"),
	})
	defer renderer.Close()

	var storage printing.ObjectStorage
	if cfg.Storage.Enabled() {
		s3Storage, err := printing.NewS3Storage(context.Background(), cfg.Storage)
		if err != nil {
			log.Warn("object storage disabled", zap.Error(err))
		} else {
			storage = s3Storage
		}
	}
	deps.Printer = printing.NewPrinter(cfg.Shop, renderer, storage, log.Named("printing"))

	app := server.New(cfg, deps)

	// ---- Start, and drain in-flight requests on SIGINT/SIGTERM
	go func() {
		log.Info("API server starting", zap.String("port", cfg.App.Port), zap.String("env", cfg.App.Env))
		if err := app.Listen(":" + cfg.App.Port); err != nil {
			log.Fatal("server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	if err := app.ShutdownWithTimeout(15 * time.Second); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
