package services

import (
	"context"
	"fmt"
	"time"

	"repairshop-backend/models"
	"repairshop-backend/utils"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// DashboardRange is the half-open period [From, To) the sales figures cover.
type DashboardRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// DefaultDashboardRange is the last 30 days up to now.
func DefaultDashboardRange(now time.Time) DashboardRange {
	return DashboardRange{From: now.AddDate(0, 0, -30), To: now}
}

type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

type TopProduct struct {
	ProductID   string          `json:"product_id"`
	Description string          `json:"description"`
	Quantity    int64           `json:"quantity"`
	Revenue     decimal.Decimal `json:"revenue"`
}

type DashboardStats struct {
	Range           DashboardRange  `json:"range"`
	SalesTotal      decimal.Decimal `json:"sales_total"`
	InvoiceCount    int64           `json:"invoice_count"`
	GrossProfit     decimal.Decimal `json:"gross_profit"`
	RefundsTotal    decimal.Decimal `json:"refunds_total"`
	OutstandingDebt decimal.Decimal `json:"outstanding_debt"`
	InventoryValue  decimal.Decimal `json:"inventory_value"`
	LowStockParts   int64           `json:"low_stock_parts"`
	RepairsByStatus []StatusCount   `json:"repairs_by_status"`
	TopProducts     []TopProduct    `json:"top_products"`
	GeneratedAt     time.Time       `json:"generated_at"`
}

// Dashboard runs the aggregates concurrently on db. db must be a pool, not a transaction.
func Dashboard(ctx context.Context, db *gorm.DB, r DashboardRange) (*DashboardStats, error) {
	if !r.To.After(r.From) {
		return nil, invalidf("dashboard range must end after it starts")
	}
	stats := &DashboardStats{Range: r, GeneratedAt: time.Now().UTC()}
	g, ctx := errgroup.WithContext(ctx)
	conn := func() *gorm.DB { return db.WithContext(ctx) }

	sales := func(tx *gorm.DB) *gorm.DB {
		return tx.Where("invoices.status <> ? AND invoices.created_at >= ? AND invoices.created_at < ?",
			models.InvoiceVoid, r.From, r.To)
	}

	g.Go(func() error {
		var err error
		stats.SalesTotal, err = sumDecimal(sales(conn().Model(&models.Invoice{})), "invoices.total")
		if err != nil {
			return fmt.Errorf("sales total: %w", err)
		}
		return sales(conn().Model(&models.Invoice{})).Count(&stats.InvoiceCount).Error
	})
	g.Go(func() error {
		var err error
		stats.GrossProfit, err = sumDecimal(sales(conn().Model(&models.InvoiceItem{}).
			Joins("JOIN invoices ON invoices.id = invoice_items.invoice_id")),
			"(invoice_items.unit_price - invoice_items.unit_cost) * (invoice_items.quantity - invoice_items.returned_quantity)")
		if err != nil {
			return fmt.Errorf("gross profit: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		stats.RefundsTotal, err = sumDecimal(conn().Model(&models.CreditNote{}).
			Where("created_at >= ? AND created_at < ?", r.From, r.To), "total")
		if err != nil {
			return fmt.Errorf("refunds total: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		stats.OutstandingDebt, err = sumDecimal(conn().Model(&models.Customer{}), "debt")
		if err != nil {
			return fmt.Errorf("outstanding debt: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		products, err := sumDecimal(conn().Model(&models.Product{}), "cost_price * quantity")
		if err != nil {
			return fmt.Errorf("product stock value: %w", err)
		}
		parts, err := sumDecimal(conn().Model(&models.PartBatch{}).
			Joins("JOIN parts ON parts.id = part_batches.part_id AND parts.deleted_at IS NULL"),
			"part_batches.quantity * part_batches.unit_cost")
		if err != nil {
			return fmt.Errorf("part stock value: %w", err)
		}
		stats.InventoryValue = products.Add(parts)
		return nil
	})
	g.Go(func() error {
		return conn().Model(&models.Part{}).Where("total_quantity <= min_quantity").Count(&stats.LowStockParts).Error
	})
	g.Go(func() error {
		stats.RepairsByStatus = []StatusCount{}
		return conn().Model(&models.RepairJob{}).Select("status, COUNT(*) AS count").
			Group("status").Order("status ASC").Scan(&stats.RepairsByStatus).Error
	})
	g.Go(func() error {
		stats.TopProducts = []TopProduct{}
		return sales(conn().Model(&models.InvoiceItem{}).
			Joins("JOIN invoices ON invoices.id = invoice_items.invoice_id")).
			Where("invoice_items.item_type = ?", models.ItemTypeProduct).
			Select("invoice_items.ref_id AS product_id, MAX(invoice_items.description) AS description, " +
				"SUM(invoice_items.quantity - invoice_items.returned_quantity) AS quantity, " +
				"SUM(invoice_items.line_total) AS revenue").
			Group("invoice_items.ref_id").
			Order("quantity DESC").Limit(5).
			Scan(&stats.TopProducts).Error
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	stats.SalesTotal = utils.Round2(stats.SalesTotal)
	stats.GrossProfit = utils.Round2(stats.GrossProfit)
	stats.RefundsTotal = utils.Round2(stats.RefundsTotal)
	stats.OutstandingDebt = utils.Round2(stats.OutstandingDebt)
	stats.InventoryValue = utils.Round2(stats.InventoryValue)
	for i := range stats.TopProducts {
		stats.TopProducts[i].Revenue = utils.Round2(stats.TopProducts[i].Revenue)
	}
	return stats, nil
}
