package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	PurchaseOrderDraft     = "draft"
	PurchaseOrderCommitted = "committed"
	PurchaseOrderCancelled = "cancelled"
)

type PurchaseOrder struct {
	Id          string              `json:"id" gorm:"primaryKey;size:36"`
	Number      string              `json:"number" gorm:"uniqueIndex;not null"`
	SupplierID  string              `json:"supplier_id" gorm:"size:36;not null;index"`
	Supplier    *Supplier           `json:"supplier,omitempty" gorm:"foreignKey:SupplierID"`
	Status      string              `json:"status" gorm:"size:16;not null;default:draft;index"`
	Items       []PurchaseOrderItem `json:"items" gorm:"foreignKey:PurchaseOrderID;constraint:OnDelete:CASCADE"`
	Total       decimal.Decimal     `json:"total" gorm:"type:numeric(12,2);not null;default:0"`
	Notes       string              `json:"notes"`
	CommittedAt *time.Time          `json:"committed_at"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

func (order *PurchaseOrder) BeforeCreate(tx *gorm.DB) (err error) {
	assignID(&order.Id)
	return
}

type PurchaseOrderItem struct {
	ID               uint            `json:"id" gorm:"primaryKey"`
	PurchaseOrderID  string          `json:"-" gorm:"size:36;not null;index"`
	PartID           string          `json:"part_id" gorm:"size:36;not null;index"`
	Quantity         int             `json:"quantity" gorm:"not null"`
	UnitCost         decimal.Decimal `json:"unit_cost" gorm:"type:numeric(12,2);not null"`
	ReceivedQuantity int             `json:"received_quantity" gorm:"not null;default:0"`
}
