package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CreditNote records value returned to a customer against an invoice.
type CreditNote struct {
	Id         string           `json:"id" gorm:"primaryKey;size:36"`
	Number     string           `json:"number" gorm:"uniqueIndex;not null"`
	CustomerID string           `json:"customer_id" gorm:"size:36;not null;index"`
	InvoiceID  string           `json:"invoice_id" gorm:"size:36;not null;index"`
	Items      []CreditNoteItem `json:"items" gorm:"foreignKey:CreditNoteID;constraint:OnDelete:CASCADE"`
	Total      decimal.Decimal  `json:"total" gorm:"type:numeric(12,2);not null"`
	Reason     string           `json:"reason"`
	CreatedAt  time.Time        `json:"created_at" gorm:"index"`
}

func (note *CreditNote) BeforeCreate(tx *gorm.DB) (err error) {
	assignID(&note.Id)
	return
}

type CreditNoteItem struct {
	ID            uint            `json:"id" gorm:"primaryKey"`
	CreditNoteID  string          `json:"-" gorm:"size:36;not null;index"`
	InvoiceItemID uint            `json:"invoice_item_id" gorm:"not null;index"`
	Description   string          `json:"description"`
	Quantity      int             `json:"quantity" gorm:"not null"`
	UnitAmount    decimal.Decimal `json:"unit_amount" gorm:"type:numeric(12,2);not null"`
	Amount        decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	Restocked     bool            `json:"restocked"`
}
