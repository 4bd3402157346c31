package controllers

import (
	"strings"

	"repairshop-backend/cache"
	"repairshop-backend/middlewares"
	"repairshop-backend/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type CopyTableDTO struct {
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
	DryRun bool   `json:"dry_run"`
}

// dropDashboardCache forgets cached statistics after totals were rebuilt.
func dropDashboardCache(c *fiber.Ctx, statsCache cache.StatsCache, log *zap.Logger) {
	if statsCache == nil {
		return
	}
	if err := statsCache.Invalidate(c.UserContext()); err != nil {
		log.Warn("dashboard cache invalidation failed", zap.Error(err))
	}
}

// POST /api/admin/maintenance/recompute-parts
func RecomputeParts(statsCache cache.StatsCache, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		db, err := requestDB(c)
		if err != nil {
			return err
		}
		changed, err := services.RecomputeAllParts(db)
		if err != nil {
			return err
		}
		log.Info("parts recomputed", zap.Int("changed", changed), zap.String("user_id", middlewares.CurrentUserID(c)))
		dropDashboardCache(c, statsCache, log)
		return c.JSON(fiber.Map{"changed": changed})
	}
}

// POST /api/admin/maintenance/recompute-customers
func RecomputeCustomers(statsCache cache.StatsCache, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		db, err := requestDB(c)
		if err != nil {
			return err
		}
		changed, err := services.RecomputeCustomers(db)
		if err != nil {
			return err
		}
		log.Info("customers recomputed", zap.Int("changed", changed), zap.String("user_id", middlewares.CurrentUserID(c)))
		dropDashboardCache(c, statsCache, log)
		return c.JSON(fiber.Map{"changed": changed})
	}
}

// GET /api/admin/debug/inventory-returns?invoice_id=
func GetInventoryReturns(c *fiber.Ctx) error {
	db, err := requestDB(c)
	if err != nil {
		return err
	}
	rows, err := services.InventoryReturns(db, strings.TrimSpace(c.Query("invoice_id")))
	if err != nil {
		return err
	}
	return listJSON(c, "returns", rows, int64(len(rows)))
}

// POST /api/admin/maintenance/copy-table
func CopyTable(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var in CopyTableDTO
		if err := middlewares.BindAndValidate(c, &in); err != nil {
			return err
		}
		db, err := requestDB(c)
		if err != nil {
			return err
		}
		result, err := services.CopyTable(db, strings.TrimSpace(in.Source), strings.TrimSpace(in.Target), in.DryRun)
		if err != nil {
			return err
		}
		log.Info("table copied",
			zap.String("source", result.Source),
			zap.String("target", result.Target),
			zap.Int64("copied", result.Copied),
			zap.Bool("dry_run", result.DryRun))
		return c.JSON(result)
	}
}

// GET /api/admin/maintenance/copy-table
func GetCopyTablePairs(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"pairs": services.CopyTablePairs()})
}
