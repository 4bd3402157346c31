package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Part is a repair component whose stock is tracked as cost batches.
// TotalQuantity and AverageCost are derived from Batches.
type Part struct {
	Id               string          `json:"id" gorm:"primaryKey;size:36"`
	SKU              string          `json:"sku" gorm:"not null;uniqueIndex"`
	Name             string          `json:"name" gorm:"not null"`
	CompatibleModels string          `json:"compatible_models"`
	SellPrice        decimal.Decimal `json:"sell_price" gorm:"type:numeric(12,2);not null;default:0"`
	AverageCost      decimal.Decimal `json:"average_cost" gorm:"type:numeric(12,2);not null;default:0"`
	TotalQuantity    int             `json:"total_quantity" gorm:"not null;default:0"`
	MinQuantity      int             `json:"min_quantity" gorm:"not null;default:0"`
	Batches          []PartBatch     `json:"batches,omitempty" gorm:"foreignKey:PartID"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	DeletedAt        gorm.DeletedAt  `json:"-" gorm:"index"`
}

func (part *Part) BeforeCreate(tx *gorm.DB) (err error) {
	assignID(&part.Id)
	return
}

// LowStock reports whether the part is at or below its reorder threshold.
func (part *Part) LowStock() bool {
	return part.TotalQuantity <= part.MinQuantity
}

// PartBatch is a received lot of a part with its own unit cost.
type PartBatch struct {
	Id               string          `json:"id" gorm:"primaryKey;size:36"`
	PartID           string          `json:"part_id" gorm:"size:36;not null;index:idx_part_batches_fifo,priority:1"`
	Quantity         int             `json:"quantity" gorm:"not null"`
	OriginalQuantity int             `json:"original_quantity" gorm:"not null"`
	UnitCost         decimal.Decimal `json:"unit_cost" gorm:"type:numeric(12,2);not null"`
	SupplierID       *string         `json:"supplier_id,omitempty" gorm:"size:36"`
	PurchaseOrderID  *string         `json:"purchase_order_id,omitempty" gorm:"size:36;index"`
	Note             string          `json:"note"`
	ReceivedAt       time.Time       `json:"received_at" gorm:"not null;index:idx_part_batches_fifo,priority:2"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (batch *PartBatch) BeforeCreate(tx *gorm.DB) (err error) {
	assignID(&batch.Id)
	if batch.ReceivedAt.IsZero() {
		batch.ReceivedAt = time.Now().UTC()
	}
	return
}
