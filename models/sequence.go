package models

// Sequence backs the human readable document numbers (INV-000001 and friends).
type Sequence struct {
	Name  string `gorm:"primaryKey;size:32"`
	Value int64  `gorm:"not null;default:0"`
}
