package services

import (
	"fmt"
	"slices"
	"strings"

	"repairshop-backend/models"

	"gorm.io/gorm"
)

// InventoryReturn is a returned invoice line next to the current stock of what it refers to.
type InventoryReturn struct {
	InvoiceID        string `json:"invoice_id"`
	InvoiceNumber    string `json:"invoice_number"`
	InvoiceItemID    uint   `json:"invoice_item_id"`
	ItemType         string `json:"item_type"`
	RefID            string `json:"ref_id"`
	Description      string `json:"description"`
	Quantity         int    `json:"quantity"`
	ReturnedQuantity int    `json:"returned_quantity"`
	Restocked        int    `json:"restocked"`
	CurrentStock     *int   `json:"current_stock"`
}

// InventoryReturns lists returned lines, optionally for one invoice.
func InventoryReturns(tx *gorm.DB, invoiceID string) ([]InventoryReturn, error) {
	query := tx.Table("invoice_items").
		Select("invoices.id AS invoice_id, invoices.number AS invoice_number, invoice_items.id AS invoice_item_id, " +
			"invoice_items.item_type, COALESCE(invoice_items.ref_id, '') AS ref_id, invoice_items.description, " +
			"invoice_items.quantity, invoice_items.returned_quantity, invoice_items.restocked").
		Joins("JOIN invoices ON invoices.id = invoice_items.invoice_id").
		Where("invoice_items.returned_quantity > 0")
	if invoiceID != "" {
		query = query.Where("invoices.id = ?", invoiceID)
	}
	var rows []InventoryReturn
	if err := query.Order("invoices.number ASC").Order("invoice_items.id ASC").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("list returns: %w", err)
	}

	for i := range rows {
		r := &rows[i]
		if r.RefID == "" {
			continue
		}
		switch r.ItemType {
		case models.ItemTypeProduct:
			var p models.Product
			if err := tx.Unscoped().Select("quantity").First(&p, "id = ?", r.RefID).Error; err == nil {
				r.CurrentStock = &p.Quantity
			}
		case models.ItemTypePart:
			var p models.Part
			if err := tx.Unscoped().Select("total_quantity").First(&p, "id = ?", r.RefID).Error; err == nil {
				r.CurrentStock = &p.TotalQuantity
			}
		}
	}
	return rows, nil
}

// copyTablePairs are the only source -> target copies the maintenance endpoint accepts.
var copyTablePairs = map[string]string{
	"legacy_customers":    "customers",
	"legacy_products":     "products",
	"legacy_suppliers":    "suppliers",
	"legacy_parts":        "parts",
	"legacy_part_batches": "part_batches",
	"legacy_services":     "services",
}

// CopyTablePairs returns the allowed source tables with their targets.
func CopyTablePairs() map[string]string {
	out := make(map[string]string, len(copyTablePairs))
	for k, v := range copyTablePairs {
		out[k] = v
	}
	return out
}

type CopyTableResult struct {
	Source     string   `json:"source"`
	Target     string   `json:"target"`
	Columns    []string `json:"columns"`
	SourceRows int64    `json:"source_rows"`
	Copied     int64    `json:"copied"`
	DryRun     bool     `json:"dry_run"`
}

// CopyTable inserts the rows of source whose id is not yet in target, over the columns both share.
func CopyTable(tx *gorm.DB, source, target string, dryRun bool) (*CopyTableResult, error) {
	if allowed, ok := copyTablePairs[source]; !ok || allowed != target {
		return nil, invalidf("copying %s to %s is not allowed", source, target)
	}
	m := tx.Migrator()
	if !m.HasTable(source) {
		return nil, fmt.Errorf("%w: table %s", ErrNotFound, source)
	}

	columns, err := sharedColumns(tx, source, target)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(columns, "id") {
		return nil, invalidf("%s and %s share no id column", source, target)
	}

	res := &CopyTableResult{Source: source, Target: target, Columns: columns, DryRun: dryRun}
	if err := tx.Table(source).Count(&res.SourceRows).Error; err != nil {
		return nil, fmt.Errorf("count %s: %w", source, err)
	}
	missing := tx.Table(source).Where("id NOT IN (?)", tx.Table(target).Select("id"))
	if dryRun {
		if err := missing.Count(&res.Copied).Error; err != nil {
			return nil, fmt.Errorf("count missing rows: %w", err)
		}
		return res, nil
	}

	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = tx.Statement.Quote(c)
	}
	list := strings.Join(quoted, ", ")
	result := tx.Exec("INSERT INTO "+tx.Statement.Quote(target)+" ("+list+") SELECT "+list+
		" FROM "+tx.Statement.Quote(source)+" WHERE id NOT IN (SELECT id FROM "+tx.Statement.Quote(target)+")")
	if result.Error != nil {
		return nil, fmt.Errorf("copy %s to %s: %w", source, target, result.Error)
	}
	res.Copied = result.RowsAffected
	return res, nil
}

func sharedColumns(tx *gorm.DB, source, target string) ([]string, error) {
	m := tx.Migrator()
	src, err := m.ColumnTypes(source)
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", source, err)
	}
	dst, err := m.ColumnTypes(target)
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", target, err)
	}
	have := make(map[string]bool, len(dst))
	for _, c := range dst {
		have[c.Name()] = true
	}
	var out []string
	for _, c := range src {
		if have[c.Name()] {
			out = append(out, c.Name())
		}
	}
	return out, nil
}
