package controllers

import (
	"time"

	"repairshop-backend/cache"
	"repairshop-backend/database"
	"repairshop-backend/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// dashboardRange reads ?from=&to=. A date-only "to" includes that whole day.
func dashboardRange(c *fiber.Ctx, now time.Time) (services.DashboardRange, error) {
	r := services.DefaultDashboardRange(now.UTC().Truncate(time.Minute))
	from, err := queryTime(c, "from")
	if err != nil {
		return r, err
	}
	to, err := queryRangeEnd(c, "to")
	if err != nil {
		return r, err
	}
	if from != nil {
		r.From = from.UTC()
	}
	if to != nil {
		r.To = to.UTC()
	}
	return r, nil
}

func dashboardKey(r services.DashboardRange) string {
	return "dashboard:" + r.From.Format(time.RFC3339) + ":" + r.To.Format(time.RFC3339)
}

// GET /api/dashboard?from=&to=&fresh=
// statsCache may be nil when redis is not configured. Cache failures only cost a recompute.
func GetDashboard(statsCache cache.StatsCache, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		r, err := dashboardRange(c, time.Now())
		if err != nil {
			return err
		}
		key := dashboardKey(r)
		ctx := c.UserContext()

		if statsCache != nil && !queryBool(c, "fresh") {
			var cached services.DashboardStats
			hit, err := statsCache.Get(ctx, key, &cached)
			if err != nil {
				log.Warn("dashboard cache read failed", zap.Error(err))
			}
			if hit {
				c.Set("X-Cache", "HIT")
				return c.JSON(cached)
			}
		}

		// aggregates run concurrently, so they need the pool rather than a request transaction
		if database.DB == nil {
			return fiber.NewError(fiber.StatusInternalServerError, "database unavailable")
		}
		stats, err := services.Dashboard(ctx, database.DB, r)
		if err != nil {
			return err
		}
		if statsCache != nil {
			if err := statsCache.Set(ctx, key, stats); err != nil {
				log.Warn("dashboard cache write failed", zap.Error(err))
			}
		}
		c.Set("X-Cache", "MISS")
		return c.JSON(stats)
	}
}
