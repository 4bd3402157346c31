package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WalkInCustomerID is the fixed id of the sentinel customer used for anonymous sales.
const WalkInCustomerID = "walk-in"

type Customer struct {
	Id         string          `json:"id" gorm:"primaryKey;size:36"`
	Name       string          `json:"name" gorm:"not null;index"`
	Phone      string          `json:"phone" gorm:"not null;index"`
	Email      string          `json:"email"`
	Address    string          `json:"address"`
	Notes      string          `json:"notes"`
	TotalSpent decimal.Decimal `json:"total_spent" gorm:"type:numeric(12,2);not null;default:0"`
	Debt       decimal.Decimal `json:"debt" gorm:"type:numeric(12,2);not null;default:0"`
	IsWalkIn   bool            `json:"is_walk_in" gorm:"not null;default:false"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	DeletedAt  gorm.DeletedAt  `json:"-" gorm:"index"`
}

func (customer *Customer) BeforeCreate(tx *gorm.DB) (err error) {
	assignID(&customer.Id)
	return
}

// NewWalkInCustomer returns the sentinel record created by migrations.
func NewWalkInCustomer() Customer {
	return Customer{
		Id:       WalkInCustomerID,
		Name:     "Walk-in Customer",
		Phone:    "-",
		IsWalkIn: true,
	}
}
