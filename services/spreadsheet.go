package services

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"repairshop-backend/models"
	"repairshop-backend/utils"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

var productColumns = []any{
	"sku", "name", "category", "brand", "model", "imei", "condition",
	"cost_price", "sell_price", "quantity", "status",
}

var partColumns = []any{
	"sku", "name", "compatible_models", "sell_price", "average_cost",
	"total_quantity", "min_quantity", "low_stock",
}

func writeSheet(w io.Writer, header []any, rows [][]any) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	return f.Write(w)
}

// ExportProducts writes every product as an xlsx sheet ordered by SKU.
func ExportProducts(tx *gorm.DB, w io.Writer) error {
	var products []models.Product
	if err := tx.Order("sku ASC").Find(&products).Error; err != nil {
		return fmt.Errorf("load products: %w", err)
	}
	rows := make([][]any, 0, len(products))
	for _, p := range products {
		imei := ""
		if p.IMEI != nil {
			imei = *p.IMEI
		}
		rows = append(rows, []any{
			p.SKU, p.Name, p.Category, p.Brand, p.Model, imei, p.Condition,
			p.CostPrice.InexactFloat64(), p.SellPrice.InexactFloat64(), p.Quantity, p.Status,
		})
	}
	return writeSheet(w, productColumns, rows)
}

// ExportParts writes every part with its derived stock figures.
func ExportParts(tx *gorm.DB, w io.Writer) error {
	var parts []models.Part
	if err := tx.Order("sku ASC").Find(&parts).Error; err != nil {
		return fmt.Errorf("load parts: %w", err)
	}
	rows := make([][]any, 0, len(parts))
	for _, p := range parts {
		rows = append(rows, []any{
			p.SKU, p.Name, p.CompatibleModels, p.SellPrice.InexactFloat64(), p.AverageCost.InexactFloat64(),
			p.TotalQuantity, p.MinQuantity, p.LowStock(),
		})
	}
	return writeSheet(w, partColumns, rows)
}

type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

type ImportResult struct {
	Created int        `json:"created"`
	Updated int        `json:"updated"`
	Errors  []RowError `json:"errors"`
}

// ImportProducts creates or updates products by SKU from the first sheet of an xlsx file.
// The first row is a header naming the columns; sku and name are required.
// Rows that fail validation are reported and skipped.
func ImportProducts(tx *gorm.DB, r io.Reader) (*ImportResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, invalidf("cannot read xlsx: %v", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(f.GetSheetName(f.GetActiveSheetIndex()))
	if err != nil {
		return nil, invalidf("cannot read sheet: %v", err)
	}
	if len(rows) < 1 {
		return nil, invalidf("sheet is empty")
	}

	index := map[string]int{}
	for i, h := range rows[0] {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"sku", "name"} {
		if _, ok := index[required]; !ok {
			return nil, invalidf("missing %s column", required)
		}
	}

	res := &ImportResult{Errors: []RowError{}}
	for i, row := range rows[1:] {
		line := i + 2
		get := func(col string) (string, bool) {
			idx, ok := index[col]
			if !ok || idx >= len(row) {
				return "", false
			}
			return strings.TrimSpace(row[idx]), true
		}
		sku, _ := get("sku")
		if sku == "" {
			continue
		}

		created, err := importProductRow(tx, sku, get)
		if err != nil {
			res.Errors = append(res.Errors, RowError{Row: line, Message: err.Error()})
			continue
		}
		if created {
			res.Created++
		} else {
			res.Updated++
		}
	}
	return res, nil
}

func importProductRow(tx *gorm.DB, sku string, get func(string) (string, bool)) (bool, error) {
	var product models.Product
	err := tx.Where("sku = ?", sku).First(&product).Error
	isNew := errors.Is(err, gorm.ErrRecordNotFound)
	if err != nil && !isNew {
		return false, err
	}
	if isNew {
		product = models.Product{SKU: sku, Category: "other", Condition: "new"}
	}

	if v, ok := get("name"); ok && v != "" {
		product.Name = v
	}
	if product.Name == "" {
		return false, errors.New("name is required")
	}
	if v, ok := get("category"); ok && v != "" {
		if !slices.Contains(models.ProductCategories, v) {
			return false, fmt.Errorf("unknown category %q", v)
		}
		product.Category = v
	}
	if v, ok := get("condition"); ok && v != "" {
		if !slices.Contains(models.ProductConditions, v) {
			return false, fmt.Errorf("unknown condition %q", v)
		}
		product.Condition = v
	}
	if v, ok := get("brand"); ok {
		product.Brand = v
	}
	if v, ok := get("model"); ok {
		product.Model = v
	}
	if v, ok := get("imei"); ok {
		if v == "" {
			product.IMEI = nil
		} else {
			product.IMEI = &v
		}
	}
	for col, dst := range map[string]*decimal.Decimal{"cost_price": &product.CostPrice, "sell_price": &product.SellPrice} {
		v, ok := get(col)
		if !ok || v == "" {
			continue
		}
		d, err := decimal.NewFromString(v)
		if err != nil || d.IsNegative() {
			return false, fmt.Errorf("invalid %s %q", col, v)
		}
		*dst = utils.Round2(d)
	}
	if v, ok := get("quantity"); ok && v != "" {
		q, err := strconv.Atoi(v)
		if err != nil || q < 0 {
			return false, fmt.Errorf("invalid quantity %q", v)
		}
		product.Quantity = q
	}

	product.SyncStatus()
	if err := tx.Transaction(func(row *gorm.DB) error { return row.Save(&product).Error }); err != nil {
		return false, err
	}
	return isNew, nil
}
