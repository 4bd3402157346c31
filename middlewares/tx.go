package middlewares

import (
	"repairshop-backend/database"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// RequestTx opens a per-request DB transaction for mutating requests and stores it in c.Locals("tx").
// Reads go straight to the pool. Order: run AFTER IsAuthenticatedHeader() and Idempotency()
// so idempotency records aren't tied to the handler TX.
func RequestTx(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		if !isMutating(c.Method()) {
			return c.Next()
		}

		tx := database.DB.WithContext(c.UserContext()).Begin()
		if tx.Error != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to begin transaction")
		}

		// Ensure we always cleanup.
		defer func() {
			if r := recover(); r != nil {
				_ = tx.Rollback()
				panic(r) // re-panic after rollback so the recover middleware can answer
			}
			if err != nil || c.Response().StatusCode() >= fiber.StatusBadRequest {
				_ = tx.Rollback()
				return
			}
			if e := tx.Commit().Error; e != nil {
				log.Error("tx commit failed", zap.Error(e), zap.String("path", c.Path()))
				err = fiber.NewError(fiber.StatusInternalServerError, "transaction commit failed")
			}
		}()

		c.Locals(database.LocalsTx, tx)
		err = c.Next()
		return err
	}
}
