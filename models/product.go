package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ProductStatusInStock = "in_stock"
	ProductStatusSoldOut = "sold_out"
)

var (
	ProductCategories = []string{"phone", "tablet", "accessory", "other"}
	ProductConditions = []string{"new", "used", "refurbished"}
)

// Product is a sellable stock item: a handset, a tablet or an accessory.
type Product struct {
	Id           string          `json:"id" gorm:"primaryKey;size:36"`
	SKU          string          `json:"sku" gorm:"not null;uniqueIndex"`
	Name         string          `json:"name" gorm:"not null"`
	Category     string          `json:"category" gorm:"size:32;not null;index"`
	Brand        string          `json:"brand"`
	Model        string          `json:"model"`
	IMEI         *string         `json:"imei,omitempty" gorm:"uniqueIndex"`
	Condition    string          `json:"condition" gorm:"size:16;not null;default:new"`
	CostPrice    decimal.Decimal `json:"cost_price" gorm:"type:numeric(12,2);not null;default:0"`
	SellPrice    decimal.Decimal `json:"sell_price" gorm:"type:numeric(12,2);not null;default:0"`
	Quantity     int             `json:"quantity" gorm:"not null;default:0"`
	Status       string          `json:"status" gorm:"size:16;not null;default:in_stock"`
	SupplierID   *string         `json:"supplier_id,omitempty" gorm:"size:36;index"`
	CustomFields datatypes.JSON  `json:"custom_fields,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	DeletedAt    gorm.DeletedAt  `json:"-" gorm:"index"`
}

func (product *Product) BeforeCreate(tx *gorm.DB) (err error) {
	assignID(&product.Id)
	product.SyncStatus()
	return
}

// SyncStatus derives Status from Quantity.
func (product *Product) SyncStatus() {
	if product.Quantity > 0 {
		product.Status = ProductStatusInStock
	} else {
		product.Status = ProductStatusSoldOut
	}
}
