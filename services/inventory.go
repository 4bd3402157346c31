package services

import (
	"fmt"

	"repairshop-backend/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func lockProduct(tx *gorm.DB, productID string) (*models.Product, error) {
	var product models.Product
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&product, "id = ?", productID).Error; err != nil {
		return nil, notFound("product", err)
	}
	return &product, nil
}

func saveProductQuantity(tx *gorm.DB, product *models.Product) error {
	product.SyncStatus()
	return tx.Model(product).Updates(map[string]any{
		"quantity": product.Quantity,
		"status":   product.Status,
	}).Error
}

// AdjustProductStock moves a product's on-hand quantity by delta; the result must stay >= 0.
func AdjustProductStock(tx *gorm.DB, productID string, delta int) (*models.Product, error) {
	if delta == 0 {
		return nil, invalidf("delta must not be zero")
	}
	product, err := lockProduct(tx, productID)
	if err != nil {
		return nil, err
	}
	if product.Quantity+delta < 0 {
		return nil, fmt.Errorf("%w: %s has %d in stock", ErrInsufficientStock, product.Name, product.Quantity)
	}
	product.Quantity += delta
	if err := saveProductQuantity(tx, product); err != nil {
		return nil, fmt.Errorf("update product stock: %w", err)
	}
	return product, nil
}

// takeProduct removes sold units from stock.
func takeProduct(tx *gorm.DB, productID string, qty int) (*models.Product, error) {
	product, err := lockProduct(tx, productID)
	if err != nil {
		return nil, err
	}
	if product.Quantity < qty {
		return nil, fmt.Errorf("%w: %s has %d, need %d", ErrInsufficientStock, product.Name, product.Quantity, qty)
	}
	product.Quantity -= qty
	if err := saveProductQuantity(tx, product); err != nil {
		return nil, fmt.Errorf("update product stock: %w", err)
	}
	return product, nil
}

// restockProduct puts returned units back, even for a product that has since been deleted.
func restockProduct(tx *gorm.DB, productID string, qty int) error {
	var product models.Product
	if err := tx.Unscoped().Clauses(clause.Locking{Strength: "UPDATE"}).First(&product, "id = ?", productID).Error; err != nil {
		return notFound("product", err)
	}
	product.Quantity += qty
	return saveProductQuantity(tx.Unscoped(), &product)
}

// CreatePart inserts a part and, when initial is set, its first batch.
func CreatePart(tx *gorm.DB, part *models.Part, initial *StockIn) (*models.Part, error) {
	part.TotalQuantity = 0
	part.Batches = nil
	if err := tx.Create(part).Error; err != nil {
		return nil, fmt.Errorf("create part: %w", err)
	}
	if initial != nil && initial.Quantity > 0 {
		if _, err := AddPartStock(tx, part.Id, *initial); err != nil {
			return nil, err
		}
	}
	return LoadPart(tx, part.Id)
}

// LoadPart returns a part with its batches, oldest first.
func LoadPart(tx *gorm.DB, partID string) (*models.Part, error) {
	var part models.Part
	err := tx.Preload("Batches", func(db *gorm.DB) *gorm.DB {
		return db.Order("received_at ASC").Order("id ASC")
	}).First(&part, "id = ?", partID).Error
	if err != nil {
		return nil, notFound("part", err)
	}
	return &part, nil
}

// DeletePart soft-deletes a part that has no remaining stock.
func DeletePart(tx *gorm.DB, partID string) error {
	part, err := lockPart(tx, partID)
	if err != nil {
		return err
	}
	if part.TotalQuantity > 0 {
		return fmt.Errorf("%w: part still has %d in stock", ErrConflict, part.TotalQuantity)
	}
	return tx.Delete(part).Error
}
