package services

import (
	"fmt"
	"strings"
	"time"

	"repairshop-backend/database"
	"repairshop-backend/models"
	"repairshop-backend/utils"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InvoiceLine is a requested sale line. UnitPrice overrides the catalog price when set.
type InvoiceLine struct {
	ItemType    string           `json:"item_type" validate:"required,oneof=product part service custom"`
	RefID       string           `json:"ref_id" validate:"required_unless=ItemType custom"`
	Description string           `json:"description" validate:"required_if=ItemType custom"`
	Quantity    int              `json:"quantity" validate:"required,gt=0"`
	UnitPrice   *decimal.Decimal `json:"unit_price"`
}

// InvoiceInput is everything needed to ring up a sale.
type InvoiceInput struct {
	CustomerID    string          `json:"customer_id"`
	Items         []InvoiceLine   `json:"items" validate:"required,min=1,dive"`
	Discount      decimal.Decimal `json:"discount"`
	Paid          decimal.Decimal `json:"paid"`
	PaymentMethod string          `json:"payment_method" validate:"omitempty,max=32"`
	Notes         string          `json:"notes"`
}

// draftInvoice carries an invoice through totals, numbering and customer bookkeeping.
type draftInvoice struct {
	invoice *models.Invoice
	// credit is applied towards AmountPaid without a payment record (exchanges)
	credit decimal.Decimal
	// paid is real money taken now and recorded as a payment
	paid decimal.Decimal
}

// CreateInvoice resolves lines against stock, takes the stock and books the sale.
func CreateInvoice(tx *gorm.DB, in InvoiceInput, taxRate decimal.Decimal) (*models.Invoice, error) {
	if in.Paid.IsNegative() {
		return nil, invalidf("paid must not be negative")
	}
	items, err := resolveLines(tx, in.Items)
	if err != nil {
		return nil, err
	}
	inv := &models.Invoice{
		CustomerID:    customerOrWalkIn(in.CustomerID),
		Type:          models.InvoiceTypeSale,
		Items:         items,
		Discount:      utils.Round2(in.Discount),
		TaxRate:       taxRate,
		PaymentMethod: strings.TrimSpace(in.PaymentMethod),
		Notes:         strings.TrimSpace(in.Notes),
	}
	return bookInvoice(tx, draftInvoice{invoice: inv, paid: in.Paid})
}

func customerOrWalkIn(id string) string {
	if strings.TrimSpace(id) == "" {
		return models.WalkInCustomerID
	}
	return strings.TrimSpace(id)
}

func resolveLines(tx *gorm.DB, lines []InvoiceLine) ([]models.InvoiceItem, error) {
	if len(lines) == 0 {
		return nil, invalidf("at least one item is required")
	}
	items := make([]models.InvoiceItem, 0, len(lines))
	for i, line := range lines {
		item, err := resolveLine(tx, line)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func resolveLine(tx *gorm.DB, line InvoiceLine) (models.InvoiceItem, error) {
	if line.Quantity <= 0 {
		return models.InvoiceItem{}, invalidf("quantity must be positive")
	}
	if line.UnitPrice != nil && line.UnitPrice.IsNegative() {
		return models.InvoiceItem{}, invalidf("unit price must not be negative")
	}

	refID := strings.TrimSpace(line.RefID)
	item := models.InvoiceItem{
		ItemType:    line.ItemType,
		Description: strings.TrimSpace(line.Description),
		Quantity:    line.Quantity,
	}
	var listPrice decimal.Decimal

	switch line.ItemType {
	case models.ItemTypeProduct:
		product, err := takeProduct(tx, refID, line.Quantity)
		if err != nil {
			return item, err
		}
		listPrice = product.SellPrice
		item.UnitCost = product.CostPrice
		if item.Description == "" {
			item.Description = product.Name
			if product.IMEI != nil && *product.IMEI != "" {
				item.Description += " (IMEI " + *product.IMEI + ")"
			}
		}
	case models.ItemTypePart:
		var part models.Part
		if err := tx.First(&part, "id = ?", refID).Error; err != nil {
			return item, notFound("part", err)
		}
		consumed, err := ConsumePartStock(tx, refID, line.Quantity)
		if err != nil {
			return item, err
		}
		listPrice = part.SellPrice
		item.UnitCost = consumed.UnitCost
		if item.Description == "" {
			item.Description = part.Name
		}
	case models.ItemTypeService:
		var service models.Service
		if err := tx.First(&service, "id = ? AND active = ?", refID, true).Error; err != nil {
			return item, notFound("service", err)
		}
		listPrice = service.Price
		if item.Description == "" {
			item.Description = service.Name
		}
	case models.ItemTypeCustom:
		if item.Description == "" || line.UnitPrice == nil {
			return item, invalidf("custom lines need a description and a unit price")
		}
		refID = ""
	default:
		return item, invalidf("unsupported item type %q", line.ItemType)
	}

	if refID != "" {
		item.RefID = &refID
	}
	item.UnitPrice = listPrice
	if line.UnitPrice != nil {
		item.UnitPrice = *line.UnitPrice
	}
	item.UnitPrice = utils.Round2(item.UnitPrice)
	item.LineTotal = utils.Round2(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	return item, nil
}

// computeTotals fills Subtotal, TaxTotal and Total from the items:
// total = subtotal - discount + round2((subtotal - discount) × rate).
func computeTotals(inv *models.Invoice) error {
	subtotal := decimal.Zero
	for _, it := range inv.Items {
		subtotal = subtotal.Add(it.LineTotal)
	}
	if inv.Discount.IsNegative() || inv.Discount.GreaterThan(subtotal) {
		return invalidf("discount must be between 0 and the subtotal")
	}
	net := subtotal.Sub(inv.Discount)
	inv.Subtotal = subtotal
	inv.TaxTotal = utils.Round2(net.Mul(inv.TaxRate))
	inv.Total = net.Add(inv.TaxTotal)
	return nil
}

// bookInvoice stores the invoice and moves the customer's totals by the invoice total and its balance.
func bookInvoice(tx *gorm.DB, d draftInvoice) (*models.Invoice, error) {
	inv, err := storeInvoice(tx, d)
	if err != nil {
		return nil, err
	}
	if _, err := applyCustomerDelta(tx, inv.CustomerID, inv.Total, inv.Balance); err != nil {
		return nil, err
	}
	return inv, nil
}

// storeInvoice computes totals, numbers and inserts the invoice, and records the payment if any.
func storeInvoice(tx *gorm.DB, d draftInvoice) (*models.Invoice, error) {
	inv := d.invoice
	if err := computeTotals(inv); err != nil {
		return nil, err
	}

	paid := utils.MinDecimal(d.paid, decimal.Max(inv.Total.Sub(d.credit), decimal.Zero))
	inv.AmountPaid = utils.MinDecimal(d.credit.Add(paid), inv.Total)
	inv.Status = models.InvoiceUnpaid
	inv.RefreshPaymentState()

	number, err := database.NextNumber(tx, database.SeqInvoice)
	if err != nil {
		return nil, err
	}
	inv.Number = number

	if err := tx.Create(inv).Error; err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}

	if paid.IsPositive() {
		payment := models.Payment{
			InvoiceID:  &inv.Id,
			CustomerID: inv.CustomerID,
			Kind:       models.PaymentKindPayment,
			Amount:     paid,
			Method:     inv.PaymentMethod,
			Reference:  inv.Number,
			PaidAt:     time.Now().UTC(),
		}
		if err := tx.Create(&payment).Error; err != nil {
			return nil, fmt.Errorf("create payment: %w", err)
		}
		inv.Payments = []models.Payment{payment}
	}
	return inv, nil
}

// InvoiceQuery filters the invoice list.
type InvoiceQuery struct {
	CustomerID string
	Status     string
	From       *time.Time
	To         *time.Time // exclusive
	Limit      int
	Offset     int
}

// ListInvoices returns invoices newest first.
func ListInvoices(tx *gorm.DB, q InvoiceQuery) ([]models.Invoice, int64, error) {
	query := tx.Model(&models.Invoice{})
	if q.CustomerID != "" {
		query = query.Where("customer_id = ?", q.CustomerID)
	}
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}
	if q.From != nil {
		query = query.Where("created_at >= ?", *q.From)
	}
	if q.To != nil {
		query = query.Where("created_at < ?", *q.To)
	}

	query = query.Session(&gorm.Session{})
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}
	var invoices []models.Invoice
	if err := query.Preload("Customer").Order("created_at DESC").Order("number DESC").
		Scopes(paginate(q.Limit, q.Offset)).Find(&invoices).Error; err != nil {
		return nil, 0, fmt.Errorf("list invoices: %w", err)
	}
	return invoices, total, nil
}

// LoadInvoice returns an invoice with customer, items and payments.
func LoadInvoice(tx *gorm.DB, id string) (*models.Invoice, error) {
	var inv models.Invoice
	err := tx.Preload("Customer", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("paid_at ASC") }).
		First(&inv, "id = ?", id).Error
	if err != nil {
		return nil, notFound("invoice", err)
	}
	return &inv, nil
}

func lockInvoice(tx *gorm.DB, id string) (*models.Invoice, error) {
	var inv models.Invoice
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&inv, "id = ?", id).Error; err != nil {
		return nil, notFound("invoice", err)
	}
	return &inv, nil
}

// PaymentInput is a payment taken against an open invoice.
type PaymentInput struct {
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method" validate:"omitempty,max=32"`
	Reference string          `json:"reference"`
	Note      string          `json:"note"`
}

// RecordPayment adds a payment of at most the invoice's balance (total less payments and
// credit notes) and lowers the customer's debt.
func RecordPayment(tx *gorm.DB, invoiceID string, in PaymentInput) (*models.Payment, *models.Invoice, error) {
	amount := utils.Round2(in.Amount)
	if !amount.IsPositive() {
		return nil, nil, invalidf("amount must be positive")
	}
	inv, err := lockInvoice(tx, invoiceID)
	if err != nil {
		return nil, nil, err
	}
	if inv.Status == models.InvoiceVoid {
		return nil, nil, fmt.Errorf("%w: invoice is %s", ErrInvalidState, inv.Status)
	}
	inv.RefreshPaymentState()
	balance := inv.Balance
	if !balance.IsPositive() {
		return nil, nil, fmt.Errorf("%w: invoice %s has nothing left to pay", ErrInvalidState, inv.Number)
	}
	if amount.GreaterThan(balance) {
		return nil, nil, invalidf("amount %s exceeds balance %s", amount.StringFixed(2), balance.StringFixed(2))
	}

	inv.AmountPaid = inv.AmountPaid.Add(amount)
	inv.RefreshPaymentState()
	if err := tx.Model(inv).Updates(map[string]any{
		"amount_paid": inv.AmountPaid,
		"balance":     inv.Balance,
		"status":      inv.Status,
	}).Error; err != nil {
		return nil, nil, fmt.Errorf("update invoice: %w", err)
	}

	payment := models.Payment{
		InvoiceID:  &inv.Id,
		CustomerID: inv.CustomerID,
		Kind:       models.PaymentKindPayment,
		Amount:     amount,
		Method:     strings.TrimSpace(in.Method),
		Reference:  strings.TrimSpace(in.Reference),
		Note:       strings.TrimSpace(in.Note),
		PaidAt:     time.Now().UTC(),
	}
	if payment.Reference == "" {
		payment.Reference = inv.Number
	}
	if err := tx.Create(&payment).Error; err != nil {
		return nil, nil, fmt.Errorf("create payment: %w", err)
	}
	if _, err := applyCustomerDelta(tx, inv.CustomerID, decimal.Zero, amount.Neg()); err != nil {
		return nil, nil, err
	}
	return &payment, inv, nil
}

// VoidInvoice cancels an untouched sale: no payments, no returns, not an exchange.
// Stock comes back and the customer's totals are reversed.
func VoidInvoice(tx *gorm.DB, id string) (*models.Invoice, error) {
	inv, err := lockInvoice(tx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status == models.InvoiceVoid {
		return nil, fmt.Errorf("%w: invoice already void", ErrInvalidState)
	}
	if inv.Type == models.InvoiceTypeExchange {
		return nil, fmt.Errorf("%w: exchange invoices are settled through their credit note", ErrInvalidState)
	}
	var payments int64
	if err := tx.Model(&models.Payment{}).Where("invoice_id = ?", inv.Id).Count(&payments).Error; err != nil {
		return nil, fmt.Errorf("count payments: %w", err)
	}
	if payments > 0 {
		return nil, fmt.Errorf("%w: invoice has payments", ErrInvalidState)
	}
	for _, it := range inv.Items {
		if it.ReturnedQuantity > 0 {
			return nil, fmt.Errorf("%w: invoice has returns", ErrInvalidState)
		}
	}

	fromRepair := inv.RepairJobID != nil
	for _, it := range inv.Items {
		// parts billed from a repair job stay fitted to the device
		if fromRepair && it.ItemType == models.ItemTypePart {
			continue
		}
		if err := restockLine(tx, it, it.Quantity, "void "+inv.Number); err != nil {
			return nil, err
		}
	}
	if fromRepair {
		if err := tx.Model(&models.RepairJob{}).Where("id = ?", *inv.RepairJobID).
			Update("invoice_id", nil).Error; err != nil {
			return nil, fmt.Errorf("unlink repair job: %w", err)
		}
	}

	if _, err := applyCustomerDelta(tx, inv.CustomerID, inv.Total.Neg(), inv.Total.Sub(inv.AmountPaid).Neg()); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	inv.Status = models.InvoiceVoid
	inv.VoidedAt = &now
	if err := tx.Model(inv).Updates(map[string]any{"status": inv.Status, "voided_at": now}).Error; err != nil {
		return nil, fmt.Errorf("update invoice: %w", err)
	}
	return inv, nil
}

// restockLine returns qty units of a sold line to stock. Parts come back as a batch at the billed cost.
func restockLine(tx *gorm.DB, it models.InvoiceItem, qty int, note string) error {
	if it.RefID == nil || qty <= 0 {
		return nil
	}
	switch it.ItemType {
	case models.ItemTypeProduct:
		return restockProduct(tx, *it.RefID, qty)
	case models.ItemTypePart:
		_, err := AddPartStock(tx.Unscoped(), *it.RefID, StockIn{Quantity: qty, UnitCost: it.UnitCost, Note: note})
		return err
	}
	return nil
}

// Restockable reports whether an invoice line refers to stock that can be returned.
func Restockable(itemType string) bool {
	return itemType == models.ItemTypeProduct || itemType == models.ItemTypePart
}
