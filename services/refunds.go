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
)

type ReturnLine struct {
	InvoiceItemID uint `json:"invoice_item_id" validate:"required"`
	Quantity      int  `json:"quantity" validate:"required,gt=0"`
	Restock       bool `json:"restock"`
}

// RefundInput returns lines of an invoice, optionally swaps them for new goods,
// and settles the difference with PaymentMade (negative means cash handed back).
type RefundInput struct {
	Items         []ReturnLine    `json:"items" validate:"required,min=1,dive"`
	ExchangeItems []InvoiceLine   `json:"exchange_items" validate:"omitempty,dive"`
	PaymentMade   decimal.Decimal `json:"payment_made"`
	PaymentMethod string          `json:"payment_method" validate:"omitempty,max=32"`
	Reason        string          `json:"reason"`
}

// RefundResult is everything written by a refund.
type RefundResult struct {
	CreditNote      *models.CreditNote `json:"credit_note"`
	Invoice         *models.Invoice    `json:"invoice"`
	ExchangeInvoice *models.Invoice    `json:"exchange_invoice,omitempty"`
	Payment         *models.Payment    `json:"payment,omitempty"`
	Customer        *models.Customer   `json:"customer"`
	DebtDelta       decimal.Decimal    `json:"debt_delta"`
}

// ProcessRefund credits returned lines, restocks them on request, books an exchange invoice
// and moves the customer's debt by exchangeTotal - totalCredit - paymentMade.
func ProcessRefund(tx *gorm.DB, invoiceID string, in RefundInput, taxRate decimal.Decimal) (*RefundResult, error) {
	if len(in.Items) == 0 {
		return nil, invalidf("at least one returned item is required")
	}
	inv, err := lockInvoice(tx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status == models.InvoiceVoid {
		return nil, fmt.Errorf("%w: invoice is void", ErrInvalidState)
	}

	byID := make(map[uint]*models.InvoiceItem, len(inv.Items))
	for i := range inv.Items {
		byID[inv.Items[i].ID] = &inv.Items[i]
	}
	requested := map[uint]int{}
	for _, line := range in.Items {
		item, ok := byID[line.InvoiceItemID]
		if !ok {
			return nil, fmt.Errorf("%w: item %d is not on invoice %s", ErrInvalidInput, line.InvoiceItemID, inv.Number)
		}
		if line.Quantity <= 0 {
			return nil, invalidf("return quantity must be positive")
		}
		requested[item.ID] += line.Quantity
		if requested[item.ID] > item.Returnable() {
			return nil, invalidf("item %d: only %d left to return", item.ID, item.Returnable())
		}
	}

	number, err := database.NextNumber(tx, database.SeqCreditNote)
	if err != nil {
		return nil, err
	}
	note := &models.CreditNote{
		Number:     number,
		CustomerID: inv.CustomerID,
		InvoiceID:  inv.Id,
		Total:      decimal.Zero,
		Reason:     strings.TrimSpace(in.Reason),
	}
	shares := creditShares(inv)
	for _, line := range in.Items {
		item := byID[line.InvoiceItemID]
		share := shares[item.ID]
		unit := share.Div(decimal.NewFromInt(int64(item.Quantity)))
		amount := returnCredit(share, item.Quantity, item.ReturnedQuantity, line.Quantity)
		restock := line.Restock && Restockable(item.ItemType)

		if restock {
			if err := restockLine(tx, *item, line.Quantity, "return "+inv.Number); err != nil {
				return nil, err
			}
			item.Restocked += line.Quantity
		}
		item.ReturnedQuantity += line.Quantity
		if err := tx.Model(item).Updates(map[string]any{
			"returned_quantity": item.ReturnedQuantity,
			"restocked":         item.Restocked,
		}).Error; err != nil {
			return nil, fmt.Errorf("update invoice item: %w", err)
		}

		note.Items = append(note.Items, models.CreditNoteItem{
			InvoiceItemID: item.ID,
			Description:   item.Description,
			Quantity:      line.Quantity,
			UnitAmount:    utils.Round2(unit),
			Amount:        amount,
			Restocked:     restock,
		})
		note.Total = note.Total.Add(amount)
	}
	if err := tx.Create(note).Error; err != nil {
		return nil, fmt.Errorf("create credit note: %w", err)
	}

	inv.Status = models.InvoiceRefunded
	for _, it := range inv.Items {
		if it.Returnable() > 0 {
			inv.Status = models.InvoicePartiallyRefunded
			break
		}
	}
	inv.AmountCredited = inv.AmountCredited.Add(note.Total)
	inv.RefreshPaymentState()
	if err := tx.Model(inv).Updates(map[string]any{
		"status":          inv.Status,
		"amount_credited": inv.AmountCredited,
		"balance":         inv.Balance,
	}).Error; err != nil {
		return nil, fmt.Errorf("update invoice: %w", err)
	}

	result := &RefundResult{CreditNote: note, Invoice: inv}
	payment := utils.Round2(in.PaymentMade)
	totalCredit := note.Total
	exchangeTotal := decimal.Zero

	if len(in.ExchangeItems) > 0 {
		items, err := resolveLines(tx, in.ExchangeItems)
		if err != nil {
			return nil, err
		}
		exchange := &models.Invoice{
			CustomerID:    inv.CustomerID,
			Type:          models.InvoiceTypeExchange,
			Items:         items,
			TaxRate:       taxRate,
			PaymentMethod: strings.TrimSpace(in.PaymentMethod),
			Notes:         "Exchange for " + inv.Number,
			CreditNoteID:  &note.Id,
		}
		applied := totalCredit.Add(decimal.Max(payment, decimal.Zero))
		if _, err := storeInvoice(tx, draftInvoice{invoice: exchange, credit: applied}); err != nil {
			return nil, err
		}
		exchangeTotal = exchange.Total
		result.ExchangeInvoice = exchange
	}

	debtDelta := exchangeTotal.Sub(totalCredit).Sub(payment)
	customer, err := applyCustomerDelta(tx, inv.CustomerID, exchangeTotal.Sub(totalCredit), debtDelta)
	if err != nil {
		return nil, err
	}
	result.Customer = customer
	result.DebtDelta = debtDelta

	if !payment.IsZero() {
		p := models.Payment{
			InvoiceID:    &inv.Id,
			CustomerID:   inv.CustomerID,
			CreditNoteID: &note.Id,
			Kind:         models.PaymentKindPayment,
			Amount:       payment,
			Method:       strings.TrimSpace(in.PaymentMethod),
			Reference:    note.Number,
			PaidAt:       time.Now().UTC(),
		}
		if result.ExchangeInvoice != nil {
			p.InvoiceID = &result.ExchangeInvoice.Id
		}
		if payment.IsNegative() {
			p.Kind = models.PaymentKindRefund
		}
		if err := tx.Create(&p).Error; err != nil {
			return nil, fmt.Errorf("create payment: %w", err)
		}
		result.Payment = &p
	}
	return result, nil
}

// creditShares splits what the invoice actually charged (after discount and tax) across its
// lines in proportion to their line totals. The last line takes the rounding remainder, so a
// full return credits exactly the invoice total.
func creditShares(inv *models.Invoice) map[uint]decimal.Decimal {
	shares := make(map[uint]decimal.Decimal, len(inv.Items))
	if !inv.Subtotal.IsPositive() {
		return shares
	}
	allocated := decimal.Zero
	for i, it := range inv.Items {
		if i == len(inv.Items)-1 {
			shares[it.ID] = inv.Total.Sub(allocated)
			break
		}
		share := utils.Round2(it.LineTotal.Mul(inv.Total).Div(inv.Subtotal))
		shares[it.ID] = share
		allocated = allocated.Add(share)
	}
	return shares
}

// returnCredit is the credit for returning qty more units of a line of lineQty units of which
// returned were already taken back. Credits are cumulative, so returning a line unit by unit
// adds up to its full share.
func returnCredit(share decimal.Decimal, lineQty, returned, qty int) decimal.Decimal {
	upTo := func(n int) decimal.Decimal {
		if n >= lineQty {
			return share
		}
		return utils.Round2(share.Mul(decimal.NewFromInt(int64(n))).Div(decimal.NewFromInt(int64(lineQty))))
	}
	return upTo(returned + qty).Sub(upTo(returned))
}

// CreditNoteQuery filters the credit note list.
type CreditNoteQuery struct {
	CustomerID string
	InvoiceID  string
	Limit      int
	Offset     int
}

func ListCreditNotes(tx *gorm.DB, q CreditNoteQuery) ([]models.CreditNote, int64, error) {
	query := tx.Model(&models.CreditNote{})
	if q.CustomerID != "" {
		query = query.Where("customer_id = ?", q.CustomerID)
	}
	if q.InvoiceID != "" {
		query = query.Where("invoice_id = ?", q.InvoiceID)
	}
	query = query.Session(&gorm.Session{})
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count credit notes: %w", err)
	}
	var notes []models.CreditNote
	if err := query.Preload("Items").Order("created_at DESC").Order("number DESC").
		Scopes(paginate(q.Limit, q.Offset)).Find(&notes).Error; err != nil {
		return nil, 0, fmt.Errorf("list credit notes: %w", err)
	}
	return notes, total, nil
}

func LoadCreditNote(tx *gorm.DB, id string) (*models.CreditNote, error) {
	var note models.CreditNote
	if err := tx.Preload("Items").First(&note, "id = ?", id).Error; err != nil {
		return nil, notFound("credit note", err)
	}
	return &note, nil
}
