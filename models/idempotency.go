package models

import "time"

// IdempotencyKey remembers the first successful response sent for a client-chosen key.
// Keys are scoped per user.
type IdempotencyKey struct {
	ID             uint       `json:"id" gorm:"primaryKey"`
	UserID         string     `json:"user_id" gorm:"size:36;not null;uniqueIndex:idx_idempotency_user_key,priority:1"`
	Key            string     `json:"key" gorm:"size:128;not null;uniqueIndex:idx_idempotency_user_key,priority:2"`
	RequestHash    string     `json:"request_hash" gorm:"size:64;not null"`
	Method         string     `json:"method" gorm:"size:10"`
	Path           string     `json:"path" gorm:"size:255"`
	ResponseStatus int        `json:"response_status"` // 0 until the handler succeeded
	ResponseBody   []byte     `json:"-"`
	CreatedAt      time.Time  `json:"created_at" gorm:"index"`
	CompletedAt    *time.Time `json:"completed_at"`
}

// Completed reports whether a response was stored for replay.
func (k *IdempotencyKey) Completed() bool {
	return k.ResponseStatus != 0 && k.ResponseBody != nil
}
