package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	InvoiceTypeSale     = "sale"
	InvoiceTypeExchange = "exchange"
)

const (
	InvoiceUnpaid            = "unpaid"
	InvoicePartial           = "partial"
	InvoicePaid              = "paid"
	InvoicePartiallyRefunded = "partially_refunded"
	InvoiceRefunded          = "refunded"
	InvoiceVoid              = "void"
)

const (
	ItemTypeProduct = "product"
	ItemTypePart    = "part"
	ItemTypeService = "service"
	ItemTypeRepair  = "repair"
	ItemTypeCustom  = "custom"
)

// Invoice is a sale document. Totals are tax exclusive: Total = Subtotal - Discount + TaxTotal.
type Invoice struct {
	Id             string          `json:"id" gorm:"primaryKey;size:36"`
	Number         string          `json:"number" gorm:"uniqueIndex;not null"`
	CustomerID     string          `json:"customer_id" gorm:"size:36;not null;index"`
	Customer       *Customer       `json:"customer,omitempty" gorm:"foreignKey:CustomerID"`
	Type           string          `json:"type" gorm:"size:16;not null;default:sale"`
	Status         string          `json:"status" gorm:"size:24;not null;index"`
	Items          []InvoiceItem   `json:"items" gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
	Subtotal       decimal.Decimal `json:"subtotal" gorm:"type:numeric(12,2);not null;default:0"`
	Discount       decimal.Decimal `json:"discount" gorm:"type:numeric(12,2);not null;default:0"`
	TaxRate        decimal.Decimal `json:"tax_rate" gorm:"type:numeric(6,4);not null;default:0"`
	TaxTotal       decimal.Decimal `json:"tax_total" gorm:"type:numeric(12,2);not null;default:0"`
	Total          decimal.Decimal `json:"total" gorm:"type:numeric(12,2);not null;default:0"`
	AmountPaid     decimal.Decimal `json:"amount_paid" gorm:"type:numeric(12,2);not null;default:0"`
	// AmountCredited is the sum of credit notes raised against this invoice.
	AmountCredited decimal.Decimal `json:"amount_credited" gorm:"type:numeric(12,2);not null;default:0"`
	Balance        decimal.Decimal `json:"balance" gorm:"type:numeric(12,2);not null;default:0"`
	PaymentMethod  string          `json:"payment_method" gorm:"size:32"`
	Notes          string          `json:"notes"`
	CreditNoteID   *string         `json:"credit_note_id,omitempty" gorm:"size:36;index"`
	RepairJobID    *string         `json:"repair_job_id,omitempty" gorm:"size:36;index"`
	Payments       []Payment       `json:"payments,omitempty" gorm:"foreignKey:InvoiceID"`
	CreatedAt      time.Time       `json:"created_at" gorm:"index"`
	UpdatedAt      time.Time       `json:"updated_at"`
	VoidedAt       *time.Time      `json:"voided_at,omitempty"`
}

func (invoice *Invoice) BeforeCreate(tx *gorm.DB) (err error) {
	assignID(&invoice.Id)
	return
}

// RefreshPaymentState recomputes Balance (what is still owed after payments and credits,
// never below zero) and the payment part of Status. Refund and void states are left untouched.
func (invoice *Invoice) RefreshPaymentState() {
	invoice.Balance = decimal.Max(invoice.Total.Sub(invoice.AmountPaid).Sub(invoice.AmountCredited), decimal.Zero)
	switch invoice.Status {
	case InvoiceVoid, InvoiceRefunded, InvoicePartiallyRefunded:
		return
	}
	switch {
	case invoice.Balance.LessThanOrEqual(decimal.Zero):
		invoice.Status = InvoicePaid
	case invoice.AmountPaid.IsPositive():
		invoice.Status = InvoicePartial
	default:
		invoice.Status = InvoiceUnpaid
	}
}

type InvoiceItem struct {
	ID               uint            `json:"id" gorm:"primaryKey"`
	InvoiceID        string          `json:"-" gorm:"size:36;not null;index"`
	ItemType         string          `json:"item_type" gorm:"size:16;not null"`
	RefID            *string         `json:"ref_id,omitempty" gorm:"size:36;index"`
	Description      string          `json:"description"`
	Quantity         int             `json:"quantity" gorm:"not null"`
	UnitPrice        decimal.Decimal `json:"unit_price" gorm:"type:numeric(12,2);not null"`
	UnitCost         decimal.Decimal `json:"unit_cost" gorm:"type:numeric(12,2);not null;default:0"`
	LineTotal        decimal.Decimal `json:"line_total" gorm:"type:numeric(12,2);not null"`
	ReturnedQuantity int             `json:"returned_quantity" gorm:"not null;default:0"`
	Restocked        int             `json:"restocked" gorm:"not null;default:0"`
}

// Returnable is the quantity that can still be credited.
func (item *InvoiceItem) Returnable() int {
	return item.Quantity - item.ReturnedQuantity
}

const (
	PaymentKindPayment = "payment"
	PaymentKindRefund  = "refund"
)

// Payment is money received from (kind payment) or paid back to (kind refund) a customer.
// Refund amounts are stored negative.
type Payment struct {
	ID           uint            `json:"id" gorm:"primaryKey"`
	InvoiceID    *string         `json:"invoice_id,omitempty" gorm:"size:36;index:idx_payments_invoice_paid_at,priority:1"`
	CustomerID   string          `json:"customer_id" gorm:"size:36;not null;index"`
	CreditNoteID *string         `json:"credit_note_id,omitempty" gorm:"size:36"`
	Kind         string          `json:"kind" gorm:"size:16;not null;default:payment"`
	Amount       decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	Method       string          `json:"method" gorm:"size:32"`
	Reference    string          `json:"reference"`
	Note         string          `json:"note"`
	PaidAt       time.Time       `json:"paid_at" gorm:"index:idx_payments_invoice_paid_at,priority:2"`
	CreatedAt    time.Time       `json:"created_at"`
}
