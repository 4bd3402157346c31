// Package server assembles the fiber application: global middleware, health and metrics
// endpoints, and the API routes.
package server

import (
	"context"
	"time"

	"repairshop-backend/config"
	"repairshop-backend/database"
	"repairshop-backend/metrics"
	"repairshop-backend/middlewares"
	"repairshop-backend/routes"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

// New builds the app. deps.Log and deps.Auth must be set.
func New(cfg *config.Config, deps routes.Deps) *fiber.App {
	log := deps.Log

	// ---- Fiber app with global error handler + body limit
	app := fiber.New(fiber.Config{
		AppName:      cfg.Shop.Name,
		ErrorHandler: middlewares.ErrorHandler(log),
		BodyLimit:    cfg.HTTP.BodyLimitBytes,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second, // PDF rendering can be slow
	})

	app.Use(recover.New(recover.Config{
		EnableStackTrace: !cfg.IsProduction(),
		StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
			log.Error("panic recovered", zap.Any("panic", e), zap.String("path", c.Path()))
		},
	}))
	app.Use(middlewares.RequestLogger(log))
	app.Use(metrics.Middleware())

	// ---- CORS
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.HTTP.AllowedOrigins,
		AllowCredentials: false, // using Bearer tokens, not cookies
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Idempotency-Key",
		ExposeHeaders:    "Idempotent-Replayed, X-Cache, Content-Disposition",
	}))

	// ---- Global rate limiter (applies to all routes; tune via env)
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.HTTP.RateLimitMax,
		Expiration: cfg.HTTP.RateLimitWindow,
		Next: func(c *fiber.Ctx) bool {
			// never throttle the scraper or the orchestrator's probes
			return c.Path() == "/metrics" || c.Path() == "/healthz"
		},
	}))

	app.Get("/healthz", Healthz)
	app.Get("/metrics", metrics.Handler())

	routes.Register(app, deps)
	return app
}

// Healthz pings the database.
func Healthz(c *fiber.Ctx) error {
	if database.DB == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "down", "database": "not connected"})
	}
	sqlDB, err := database.DB.DB()
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "down", "database": err.Error()})
	}
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "down", "database": err.Error()})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}
