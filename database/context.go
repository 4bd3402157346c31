package database

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// LocalsTx is the fiber.Ctx locals key holding the per-request transaction.
const LocalsTx = "tx"

// GetDB returns the request's transaction when middlewares.RequestTx opened one,
// else a context-bound session on the shared pool.
func GetDB(c *fiber.Ctx) (*gorm.DB, error) {
	if v := c.Locals(LocalsTx); v != nil {
		if tx, ok := v.(*gorm.DB); ok && tx != nil {
			return tx, nil
		}
	}
	if DB == nil {
		return nil, errors.New("database not initialized")
	}
	return DB.WithContext(c.UserContext()), nil
}
