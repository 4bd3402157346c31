package services

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"repairshop-backend/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CustomerQuery filters the customer list.
type CustomerQuery struct {
	Search        string
	IncludeWalkIn bool
	Limit         int
	Offset        int
}

// SearchCustomers matches Search against name, phone and email, case-insensitively.
func SearchCustomers(tx *gorm.DB, q CustomerQuery) ([]models.Customer, int64, error) {
	query := tx.Model(&models.Customer{})
	if !q.IncludeWalkIn {
		query = query.Where("is_walk_in = ?", false)
	}
	if s := strings.ToLower(strings.TrimSpace(q.Search)); s != "" {
		like := "%" + s + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(phone) LIKE ? OR LOWER(email) LIKE ?", like, like, like)
	}

	query = query.Session(&gorm.Session{})
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count customers: %w", err)
	}

	var customers []models.Customer
	if err := query.Order("name ASC").Scopes(paginate(q.Limit, q.Offset)).Find(&customers).Error; err != nil {
		return nil, 0, fmt.Errorf("list customers: %w", err)
	}
	return customers, total, nil
}

func loadCustomer(tx *gorm.DB, id string, lock bool) (*models.Customer, error) {
	query := tx
	if lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var customer models.Customer
	if err := query.First(&customer, "id = ?", id).Error; err != nil {
		return nil, notFound("customer", err)
	}
	return &customer, nil
}

// UpdateCustomer applies a column map; the walk-in sentinel cannot be edited.
func UpdateCustomer(tx *gorm.DB, id string, updates map[string]any) (*models.Customer, error) {
	customer, err := loadCustomer(tx, id, true)
	if err != nil {
		return nil, err
	}
	if customer.IsWalkIn {
		return nil, fmt.Errorf("walk-in customer: %w", ErrProtected)
	}
	// Denormalized balances only move through sales, payments and refunds.
	delete(updates, "total_spent")
	delete(updates, "debt")
	delete(updates, "is_walk_in")
	if len(updates) > 0 {
		if err := tx.Model(customer).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update customer: %w", err)
		}
	}
	return loadCustomer(tx, id, false)
}

// DeleteCustomer soft-deletes a customer without an open balance.
func DeleteCustomer(tx *gorm.DB, id string) error {
	customer, err := loadCustomer(tx, id, true)
	if err != nil {
		return err
	}
	if customer.IsWalkIn {
		return fmt.Errorf("walk-in customer: %w", ErrProtected)
	}
	if !customer.Debt.IsZero() {
		return fmt.Errorf("%w: customer has an outstanding balance of %s", ErrConflict, customer.Debt.StringFixed(2))
	}
	return tx.Delete(customer).Error
}

// applyCustomerDelta moves the denormalized totals of a customer.
// The walk-in customer never carries debt.
func applyCustomerDelta(tx *gorm.DB, customerID string, spent, debt decimal.Decimal) (*models.Customer, error) {
	customer, err := loadCustomer(tx, customerID, true)
	if err != nil {
		return nil, err
	}
	if customer.IsWalkIn && !debt.IsZero() {
		return nil, fmt.Errorf("%w (difference %s)", ErrWalkInDebt, debt.StringFixed(2))
	}
	customer.TotalSpent = customer.TotalSpent.Add(spent)
	customer.Debt = customer.Debt.Add(debt)
	if err := tx.Model(customer).Updates(map[string]any{
		"total_spent": customer.TotalSpent,
		"debt":        customer.Debt,
	}).Error; err != nil {
		return nil, fmt.Errorf("update customer totals: %w", err)
	}
	return customer, nil
}

// StatementEntry is one line of a customer account statement.
type StatementEntry struct {
	Date      time.Time       `json:"date"`
	Kind      string          `json:"kind"` // invoice, payment, refund, credit_note
	Reference string          `json:"reference"`
	Amount    decimal.Decimal `json:"amount"` // positive increases what the customer owes
	Balance   decimal.Decimal `json:"balance"`
}

// CustomerStatement lists invoices, payments and credit notes in date order with a running balance.
func CustomerStatement(tx *gorm.DB, customerID string) ([]StatementEntry, error) {
	if _, err := loadCustomer(tx, customerID, false); err != nil {
		return nil, err
	}

	var invoices []models.Invoice
	if err := tx.Where("customer_id = ? AND status <> ?", customerID, models.InvoiceVoid).Find(&invoices).Error; err != nil {
		return nil, fmt.Errorf("load invoices: %w", err)
	}
	var payments []models.Payment
	if err := tx.Where("customer_id = ?", customerID).Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("load payments: %w", err)
	}
	var notes []models.CreditNote
	if err := tx.Where("customer_id = ?", customerID).Find(&notes).Error; err != nil {
		return nil, fmt.Errorf("load credit notes: %w", err)
	}

	entries := make([]StatementEntry, 0, len(invoices)+len(payments)+len(notes))
	for _, inv := range invoices {
		entries = append(entries, StatementEntry{Date: inv.CreatedAt, Kind: "invoice", Reference: inv.Number, Amount: inv.Total})
	}
	for _, p := range payments {
		entries = append(entries, StatementEntry{Date: p.PaidAt, Kind: p.Kind, Reference: p.Reference, Amount: p.Amount.Neg()})
	}
	for _, n := range notes {
		entries = append(entries, StatementEntry{Date: n.CreatedAt, Kind: "credit_note", Reference: n.Number, Amount: n.Total.Neg()})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Date.Before(entries[j].Date) })

	running := decimal.Zero
	for i := range entries {
		running = running.Add(entries[i].Amount)
		entries[i].Balance = running
	}
	return entries, nil
}

// RecomputeCustomers rebuilds total_spent and debt for every regular customer:
// debt = Σ invoice totals − Σ credit notes − Σ payments (refunds are negative payments).
func RecomputeCustomers(tx *gorm.DB) (int, error) {
	var customers []models.Customer
	if err := tx.Where("is_walk_in = ?", false).Find(&customers).Error; err != nil {
		return 0, fmt.Errorf("load customers: %w", err)
	}

	changed := 0
	for _, c := range customers {
		invoiced, err := sumDecimal(tx.Model(&models.Invoice{}).
			Where("customer_id = ? AND status <> ?", c.Id, models.InvoiceVoid), "total")
		if err != nil {
			return changed, fmt.Errorf("sum invoices: %w", err)
		}
		credited, err := sumDecimal(tx.Model(&models.CreditNote{}).Where("customer_id = ?", c.Id), "total")
		if err != nil {
			return changed, fmt.Errorf("sum credit notes: %w", err)
		}
		paid, err := sumDecimal(tx.Model(&models.Payment{}).Where("customer_id = ?", c.Id), "amount")
		if err != nil {
			return changed, fmt.Errorf("sum payments: %w", err)
		}

		spent := invoiced.Sub(credited).Round(2)
		debt := spent.Sub(paid).Round(2)
		if spent.Equal(c.TotalSpent) && debt.Equal(c.Debt) {
			continue
		}
		if err := tx.Model(&c).Updates(map[string]any{"total_spent": spent, "debt": debt}).Error; err != nil {
			return changed, fmt.Errorf("update customer: %w", err)
		}
		changed++
	}
	return changed, nil
}

// sumDecimal returns SUM(expr) over query, zero when there are no rows.
func sumDecimal(query *gorm.DB, expr string) (decimal.Decimal, error) {
	var out decimal.NullDecimal
	if err := query.Select("SUM(" + expr + ")").Row().Scan(&out); err != nil {
		return decimal.Zero, err
	}
	return out.Decimal, nil
}
