package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/aquasight/aquasight/internal/adapters/earthengine"
	"github.com/aquasight/aquasight/internal/adapters/http"
	"github.com/aquasight/aquasight/internal/adapters/memory"
	natsadapter "github.com/aquasight/aquasight/internal/adapters/nats"
	"github.com/aquasight/aquasight/internal/adapters/postgres"
	"github.com/aquasight/aquasight/internal/adapters/valkey"
	"github.com/aquasight/aquasight/internal/core/ports"
	"github.com/aquasight/aquasight/internal/core/usecases"
	"github.com/aquasight/aquasight/internal/pkg/config"
	"github.com/aquasight/aquasight/internal/pkg/logging"
	"github.com/aquasight/aquasight/internal/pkg/metrics"
	"github.com/aquasight/aquasight/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("aquasight-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup(logLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	if err := os.MkdirAll(cfg.Uploads.Dir, 0o755); err != nil {
		log.Fatalf("uploads dir: %v", err)
	}

	// Cache. Also backs the result store when available; everything degrades
	// to in-process fallbacks so the upload path works on a bare laptop.
	var cacheSvc ports.CacheService
	var resultStore ports.ResultStore
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable, using in-process result store", "error", err)
		cache = nil
		resultStore = memory.NewResultStore()
	} else {
		defer cache.Close()
		cacheSvc = cache
		resultStore = valkey.NewResultStore(cache)
	}

	// Database (optional): analysis history only
	var db *postgres.DB
	var historyRepo ports.AnalysisHistoryRepository
	if cfg.Database.Enabled {
		db, err = postgres.New(ctx, cfg.Database.DSN())
		if err != nil {
			slog.Warn("database unavailable, analysis history disabled", "error", err)
			db = nil
		} else {
			defer db.Close()
			historyRepo = postgres.NewAnalysisRepo(db)

			// Export pool stats for Prometheus
			go func() {
				ticker := time.NewTicker(15 * time.Second)
				defer ticker.Stop()
				for {
					select {
					case <-ticker.C:
						metrics.UpdateDBPoolMetrics(db.Pool.Stat())
					case <-ctx.Done():
						return
					}
				}
			}()
		}
	}

	// NATS (optional)
	var publisher ports.EventPublisher
	nc, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, events disabled", "error", err)
	} else {
		defer nc.Close()
		publisher = nc
	}

	// Raw NATS connection for WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
		natsConn = nil
	}

	// Earth-observation delegate (optional): without a project the remote
	// analysis path returns degraded results, uploads still work.
	var delegate ports.EarthObservationDelegate
	if cfg.EarthEngine.Project != "" {
		client, err := earthengine.New(ctx, cfg.EarthEngine, cfg.Heuristics)
		if err != nil {
			slog.Warn("earth observation delegate unavailable", "error", err)
		} else {
			delegate = client
		}
	} else {
		slog.Warn("earthengine.project not set, remote analysis disabled")
	}

	// Use cases
	capacitySvc := usecases.NewCapacityService(resultStore, cfg.Curve)
	analysisSvc := usecases.NewAnalysisService(delegate, historyRepo, publisher, cacheSvc, cfg.Heuristics)
	reportSvc := usecases.NewReportService(resultStore, publisher, cfg.Uploads.Dir)

	deps := &http.Dependencies{
		Capacity:           capacitySvc,
		Analysis:           analysisSvc,
		Reports:            reportSvc,
		Results:            resultStore,
		NATS:               natsConn,
		DB:                 db,
		Cache:              cache,
		UploadsDir:         cfg.Uploads.Dir,
		DelegateConfigured: delegate != nil,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    16 * 1024 * 1024, // bathymetry CSVs can run large
		AppName:      "AquaSight API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps, cfg.Server.StaticDir)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
