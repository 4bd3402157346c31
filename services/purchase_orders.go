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

type PurchaseOrderLine struct {
	PartID   string          `json:"part_id" validate:"required"`
	Quantity int             `json:"quantity" validate:"required,gt=0"`
	UnitCost decimal.Decimal `json:"unit_cost"`
}

type PurchaseOrderInput struct {
	SupplierID string              `json:"supplier_id" validate:"required"`
	Items      []PurchaseOrderLine `json:"items" validate:"required,min=1,dive"`
	Notes      string              `json:"notes"`
}

func buildOrderItems(tx *gorm.DB, lines []PurchaseOrderLine) ([]models.PurchaseOrderItem, decimal.Decimal, error) {
	if len(lines) == 0 {
		return nil, decimal.Zero, invalidf("at least one item is required")
	}
	items := make([]models.PurchaseOrderItem, 0, len(lines))
	total := decimal.Zero
	for i, line := range lines {
		if line.Quantity <= 0 {
			return nil, decimal.Zero, invalidf("item %d: quantity must be positive", i)
		}
		if line.UnitCost.IsNegative() {
			return nil, decimal.Zero, invalidf("item %d: unit cost must not be negative", i)
		}
		var part models.Part
		if err := tx.Select("id").First(&part, "id = ?", line.PartID).Error; err != nil {
			return nil, decimal.Zero, fmt.Errorf("item %d: %w", i, notFound("part", err))
		}
		cost := utils.Round2(line.UnitCost)
		items = append(items, models.PurchaseOrderItem{PartID: part.Id, Quantity: line.Quantity, UnitCost: cost})
		total = total.Add(cost.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return items, total, nil
}

// CreatePurchaseOrder stores a draft order.
func CreatePurchaseOrder(tx *gorm.DB, in PurchaseOrderInput) (*models.PurchaseOrder, error) {
	var supplier models.Supplier
	if err := tx.First(&supplier, "id = ?", in.SupplierID).Error; err != nil {
		return nil, notFound("supplier", err)
	}
	items, total, err := buildOrderItems(tx, in.Items)
	if err != nil {
		return nil, err
	}
	number, err := database.NextNumber(tx, database.SeqPurchaseOrder)
	if err != nil {
		return nil, err
	}
	order := &models.PurchaseOrder{
		Number:     number,
		SupplierID: supplier.Id,
		Status:     models.PurchaseOrderDraft,
		Items:      items,
		Total:      total,
		Notes:      strings.TrimSpace(in.Notes),
	}
	if err := tx.Create(order).Error; err != nil {
		return nil, fmt.Errorf("create purchase order: %w", err)
	}
	return order, nil
}

func lockPurchaseOrder(tx *gorm.DB, id string) (*models.PurchaseOrder, error) {
	var order models.PurchaseOrder
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&order, "id = ?", id).Error; err != nil {
		return nil, notFound("purchase order", err)
	}
	return &order, nil
}

func requireDraft(order *models.PurchaseOrder) error {
	if order.Status != models.PurchaseOrderDraft {
		return fmt.Errorf("%w: purchase order %s is %s", ErrInvalidState, order.Number, order.Status)
	}
	return nil
}

// LoadPurchaseOrder returns an order with its supplier and items.
func LoadPurchaseOrder(tx *gorm.DB, id string) (*models.PurchaseOrder, error) {
	var order models.PurchaseOrder
	if err := tx.Preload("Supplier", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&order, "id = ?", id).Error; err != nil {
		return nil, notFound("purchase order", err)
	}
	return &order, nil
}

func ListPurchaseOrders(tx *gorm.DB, status, supplierID string) ([]models.PurchaseOrder, error) {
	query := tx.Model(&models.PurchaseOrder{}).Preload("Items")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if supplierID != "" {
		query = query.Where("supplier_id = ?", supplierID)
	}
	var orders []models.PurchaseOrder
	if err := query.Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("list purchase orders: %w", err)
	}
	return orders, nil
}

// UpdatePurchaseOrder replaces the items (and optionally the supplier) of a draft.
func UpdatePurchaseOrder(tx *gorm.DB, id string, in PurchaseOrderInput) (*models.PurchaseOrder, error) {
	order, err := lockPurchaseOrder(tx, id)
	if err != nil {
		return nil, err
	}
	if err := requireDraft(order); err != nil {
		return nil, err
	}
	if in.SupplierID != "" && in.SupplierID != order.SupplierID {
		var supplier models.Supplier
		if err := tx.First(&supplier, "id = ?", in.SupplierID).Error; err != nil {
			return nil, notFound("supplier", err)
		}
		order.SupplierID = supplier.Id
	}
	items, total, err := buildOrderItems(tx, in.Items)
	if err != nil {
		return nil, err
	}
	if err := tx.Where("purchase_order_id = ?", order.Id).Delete(&models.PurchaseOrderItem{}).Error; err != nil {
		return nil, fmt.Errorf("clear items: %w", err)
	}
	for i := range items {
		items[i].PurchaseOrderID = order.Id
	}
	if err := tx.Create(&items).Error; err != nil {
		return nil, fmt.Errorf("create items: %w", err)
	}
	order.Items = items
	order.Total = total
	order.Notes = strings.TrimSpace(in.Notes)
	if err := tx.Model(order).Updates(map[string]any{
		"supplier_id": order.SupplierID,
		"total":       order.Total,
		"notes":       order.Notes,
	}).Error; err != nil {
		return nil, fmt.Errorf("update purchase order: %w", err)
	}
	return order, nil
}

// CommitPurchaseOrder receives the order: each item with a received quantity above zero
// becomes a part batch at the item's unit cost. received maps item id to quantity;
// items missing from it are received in full.
func CommitPurchaseOrder(tx *gorm.DB, id string, received map[uint]int) (*models.PurchaseOrder, error) {
	order, err := lockPurchaseOrder(tx, id)
	if err != nil {
		return nil, err
	}
	if err := requireDraft(order); err != nil {
		return nil, err
	}
	for itemID, qty := range received {
		if qty < 0 {
			return nil, invalidf("received quantity for item %d must not be negative", itemID)
		}
		found := false
		for _, it := range order.Items {
			if it.ID == itemID {
				found = true
				break
			}
		}
		if !found {
			return nil, invalidf("item %d is not on purchase order %s", itemID, order.Number)
		}
	}

	now := time.Now().UTC()
	for i := range order.Items {
		it := &order.Items[i]
		qty, ok := received[it.ID]
		if !ok {
			qty = it.Quantity
		}
		it.ReceivedQuantity = qty
		if err := tx.Model(it).Update("received_quantity", qty).Error; err != nil {
			return nil, fmt.Errorf("update item: %w", err)
		}
		if qty == 0 {
			continue
		}
		if _, err := AddPartStock(tx, it.PartID, StockIn{
			Quantity:        qty,
			UnitCost:        it.UnitCost,
			SupplierID:      &order.SupplierID,
			PurchaseOrderID: &order.Id,
			Note:            order.Number,
			ReceivedAt:      now,
		}); err != nil {
			return nil, fmt.Errorf("receive item %d: %w", it.ID, err)
		}
	}

	order.Status = models.PurchaseOrderCommitted
	order.CommittedAt = &now
	if err := tx.Model(order).Updates(map[string]any{"status": order.Status, "committed_at": now}).Error; err != nil {
		return nil, fmt.Errorf("update purchase order: %w", err)
	}
	return order, nil
}

func CancelPurchaseOrder(tx *gorm.DB, id string) (*models.PurchaseOrder, error) {
	order, err := lockPurchaseOrder(tx, id)
	if err != nil {
		return nil, err
	}
	if err := requireDraft(order); err != nil {
		return nil, err
	}
	order.Status = models.PurchaseOrderCancelled
	if err := tx.Model(order).Update("status", order.Status).Error; err != nil {
		return nil, fmt.Errorf("update purchase order: %w", err)
	}
	return order, nil
}

// DeletePurchaseOrder removes a draft or cancelled order. Committed orders are part of the stock history.
func DeletePurchaseOrder(tx *gorm.DB, id string) error {
	order, err := lockPurchaseOrder(tx, id)
	if err != nil {
		return err
	}
	if order.Status == models.PurchaseOrderCommitted {
		return fmt.Errorf("%w: purchase order %s is committed", ErrConflict, order.Number)
	}
	if err := tx.Where("purchase_order_id = ?", order.Id).Delete(&models.PurchaseOrderItem{}).Error; err != nil {
		return fmt.Errorf("delete items: %w", err)
	}
	return tx.Delete(order).Error
}

// DeleteSupplier soft-deletes a supplier that no committed purchase order references.
func DeleteSupplier(tx *gorm.DB, id string) error {
	var supplier models.Supplier
	if err := tx.First(&supplier, "id = ?", id).Error; err != nil {
		return notFound("supplier", err)
	}
	var committed int64
	if err := tx.Model(&models.PurchaseOrder{}).
		Where("supplier_id = ? AND status = ?", id, models.PurchaseOrderCommitted).
		Count(&committed).Error; err != nil {
		return fmt.Errorf("count purchase orders: %w", err)
	}
	if committed > 0 {
		return fmt.Errorf("%w: supplier has %d committed purchase orders", ErrConflict, committed)
	}
	return tx.Delete(&supplier).Error
}
