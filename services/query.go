package services

import "gorm.io/gorm"

// MaxPageSize caps list endpoints.
const MaxPageSize = 200

// paginate applies limit/offset; a non-positive limit means no limit.
func paginate(limit, offset int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if limit > 0 {
			db = db.Limit(min(limit, MaxPageSize))
		}
		if offset > 0 {
			db = db.Offset(offset)
		}
		return db
	}
}
