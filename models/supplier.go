package models

import (
	"time"

	"gorm.io/gorm"
)

type Supplier struct {
	Id          string         `json:"id" gorm:"primaryKey;size:36"`
	Name        string         `json:"name" gorm:"not null;uniqueIndex"`
	ContactName string         `json:"contact_name"`
	Phone       string         `json:"phone"`
	Email       string         `json:"email"`
	Address     string         `json:"address"`
	Notes       string         `json:"notes"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

func (supplier *Supplier) BeforeCreate(tx *gorm.DB) (err error) {
	assignID(&supplier.Id)
	return
}
