package middlewares

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"repairshop-backend/database"
	"repairshop-backend/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"
	maxIdempotencyKey = 128

	// IdempotencyWindow is how long a stored response stays replayable.
	IdempotencyWindow = 24 * time.Hour
)

func isMutating(method string) bool {
	switch strings.ToUpper(method) {
	case fiber.MethodPost, fiber.MethodPut, fiber.MethodPatch, fiber.MethodDelete:
		return true
	}
	return false
}

func requestHash(method, path, userID string, body []byte) string {
	h := sha256.New()
	for _, part := range [][]byte{[]byte(method), []byte(path), body, []byte(userID)} {
		h.Write(part)
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// claimKey loads the record for (user, key), creating it when missing or expired.
func claimKey(tx *gorm.DB, rec models.IdempotencyKey, now time.Time) (models.IdempotencyKey, error) {
	var existing models.IdempotencyKey
	err := tx.Where("user_id = ? AND key = ?", rec.UserID, rec.Key).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		// lost a race with a concurrent first use: the insert is skipped and we read theirs
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rec).Error; err != nil {
			return rec, err
		}
		if rec.ID != 0 {
			return rec, nil
		}
		err = tx.Where("user_id = ? AND key = ?", rec.UserID, rec.Key).First(&existing).Error
		return existing, err
	case err != nil:
		return existing, err
	}

	if existing.CreatedAt.Before(now.Add(-IdempotencyWindow)) {
		rec.ID = existing.ID
		rec.CreatedAt = now
		err := tx.Model(&existing).Select("*").Updates(&rec).Error
		return rec, err
	}
	return existing, nil
}

// Idempotency makes mutating requests carrying an Idempotency-Key safe to retry: the first
// successful response is stored and replayed for identical retries, and reusing the key for
// a different request is a 409. Bookkeeping uses its own short transactions so it survives
// the handler's rollback.
func Idempotency() fiber.Handler {
	return func(c *fiber.Ctx) error {
		method := strings.ToUpper(c.Method())
		key := strings.TrimSpace(c.Get(idempotencyHeader))
		if !isMutating(method) || key == "" {
			return c.Next()
		}
		if len(key) > maxIdempotencyKey {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Idempotency-Key too long"})
		}
		userID := CurrentUserID(c)
		if userID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "auth context missing"})
		}

		path := c.OriginalURL()
		hash := requestHash(method, path, userID, c.Body())

		var rec models.IdempotencyKey
		err := database.DB.Transaction(func(tx *gorm.DB) error {
			var err error
			rec, err = claimKey(tx, models.IdempotencyKey{
				UserID:      userID,
				Key:         key,
				RequestHash: hash,
				Method:      method,
				Path:        path,
			}, time.Now().UTC())
			return err
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "idempotency bookkeeping failed")
		}
		if rec.RequestHash != hash {
			return fiber.NewError(fiber.StatusConflict, "Idempotency-Key reuse with different request")
		}
		if rec.Completed() {
			c.Set(replayedHeader, "true")
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			return c.Status(rec.ResponseStatus).Send(rec.ResponseBody)
		}

		if err := c.Next(); err != nil {
			return err
		}

		status := c.Response().StatusCode()
		if status >= fiber.StatusBadRequest {
			return nil
		}
		// best effort: a failed write only means a retry runs the handler again
		body := append([]byte(nil), c.Response().Body()...)
		now := time.Now().UTC()
		_ = database.DB.Model(&models.IdempotencyKey{}).
			Where("id = ?", rec.ID).
			Updates(map[string]any{
				"response_status": status,
				"response_body":   body,
				"completed_at":    &now,
			}).Error
		return nil
	}
}
