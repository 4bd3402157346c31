package controllers

import (
	"strconv"
	"strings"
	"time"

	"repairshop-backend/database"
	"repairshop-backend/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const defaultPageSize = 50

func requestDB(c *fiber.Ctx) (*gorm.DB, error) {
	db, err := database.GetDB(c)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "database unavailable")
	}
	return db, nil
}

func pathID(c *fiber.Ctx, name string) (string, error) {
	id := strings.TrimSpace(c.Params(name))
	if id == "" {
		return "", fiber.NewError(fiber.StatusBadRequest, "missing "+name+" in path")
	}
	return id, nil
}

// page reads ?limit=&offset= with a default page size.
func page(c *fiber.Ctx) (limit, offset int) {
	return utils.ParseIntDefault(c.Query("limit"), defaultPageSize), utils.ParseIntDefault(c.Query("offset"), 0)
}

func queryBool(c *fiber.Ctx, key string) bool {
	v, _ := strconv.ParseBool(c.Query(key))
	return v
}

// queryTime accepts RFC3339 or a plain date (YYYY-MM-DD, taken as UTC midnight).
func queryTime(c *fiber.Ctx, key string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid "+key+": use YYYY-MM-DD or RFC3339")
	}
	return &t, nil
}

// queryRangeEnd reads the upper bound of a date range as an exclusive instant. A plain date
// covers that whole day, so "to=2026-01-31" stops at midnight on Feb 1.
func queryRangeEnd(c *fiber.Ctx, key string) (*time.Time, error) {
	t, err := queryTime(c, key)
	if err != nil || t == nil {
		return t, err
	}
	if len(strings.TrimSpace(c.Query(key))) == len(time.DateOnly) {
		end := t.AddDate(0, 0, 1)
		return &end, nil
	}
	return t, nil
}

func listJSON(c *fiber.Ctx, key string, items any, total int64) error {
	return c.JSON(fiber.Map{
		key:       items,
		"total":   total,
		"message": "success",
	})
}
