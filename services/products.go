package services

import (
	"fmt"
	"slices"
	"strings"

	"repairshop-backend/models"

	"gorm.io/gorm"
)

// ProductQuery filters the product list.
type ProductQuery struct {
	Search   string
	Category string
	InStock  bool
	Limit    int
	Offset   int
}

// ListProducts matches Search against sku, name, brand, model and IMEI.
func ListProducts(tx *gorm.DB, q ProductQuery) ([]models.Product, int64, error) {
	query := tx.Model(&models.Product{})
	if q.Category != "" {
		query = query.Where("category = ?", q.Category)
	}
	if q.InStock {
		query = query.Where("quantity > 0")
	}
	if s := strings.ToLower(strings.TrimSpace(q.Search)); s != "" {
		like := "%" + s + "%"
		query = query.Where("LOWER(sku) LIKE ? OR LOWER(name) LIKE ? OR LOWER(brand) LIKE ? OR LOWER(model) LIKE ? OR imei LIKE ?",
			like, like, like, like, like)
	}

	query = query.Session(&gorm.Session{})
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}
	var products []models.Product
	if err := query.Order("name ASC").Scopes(paginate(q.Limit, q.Offset)).Find(&products).Error; err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	return products, total, nil
}

func checkProductEnums(category, condition string) error {
	if !slices.Contains(models.ProductCategories, category) {
		return invalidf("unknown category %q", category)
	}
	if condition != "" && !slices.Contains(models.ProductConditions, condition) {
		return invalidf("unknown condition %q", condition)
	}
	return nil
}

// CreateProduct validates enums and custom fields, then inserts the product.
func CreateProduct(tx *gorm.DB, product *models.Product, customFields map[string]any) (*models.Product, error) {
	if err := checkProductEnums(product.Category, product.Condition); err != nil {
		return nil, err
	}
	if product.Quantity < 0 {
		return nil, invalidf("quantity cannot be negative")
	}
	if product.CostPrice.IsNegative() || product.SellPrice.IsNegative() {
		return nil, invalidf("prices must not be negative")
	}
	if product.IMEI != nil && strings.TrimSpace(*product.IMEI) == "" {
		product.IMEI = nil
	}
	fields, err := ValidateCustomFields(tx, models.TemplateEntityProduct, customFields)
	if err != nil {
		return nil, err
	}
	product.CustomFields = fields
	if err := tx.Create(product).Error; err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return product, nil
}

// UpdateProduct applies a column map. Stock moves through AdjustProductStock, so quantity
// and status are not editable here.
func UpdateProduct(tx *gorm.DB, id string, updates map[string]any, customFields map[string]any) (*models.Product, error) {
	product, err := lockProduct(tx, id)
	if err != nil {
		return nil, err
	}
	delete(updates, "id")
	delete(updates, "quantity")
	delete(updates, "status")

	category, condition := product.Category, product.Condition
	if v, ok := updates["category"].(string); ok {
		category = v
	}
	if v, ok := updates["condition"].(string); ok {
		condition = v
	}
	if err := checkProductEnums(category, condition); err != nil {
		return nil, err
	}
	if v, ok := updates["imei"].(string); ok && strings.TrimSpace(v) == "" {
		updates["imei"] = nil
	}
	if customFields != nil {
		fields, err := ValidateCustomFields(tx, models.TemplateEntityProduct, customFields)
		if err != nil {
			return nil, err
		}
		updates["custom_fields"] = fields
	}
	if len(updates) > 0 {
		if err := tx.Model(product).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update product: %w", err)
		}
	}
	var out models.Product
	if err := tx.First(&out, "id = ?", id).Error; err != nil {
		return nil, notFound("product", err)
	}
	return &out, nil
}

// DeleteProduct soft-deletes a product. Invoice lines keep their description and can still restock it.
func DeleteProduct(tx *gorm.DB, id string) error {
	product, err := lockProduct(tx, id)
	if err != nil {
		return err
	}
	return tx.Delete(product).Error
}

// PartQuery filters the part list.
type PartQuery struct {
	Search   string
	LowStock bool
	Limit    int
	Offset   int
}

// ListParts matches Search against sku, name and compatible models.
func ListParts(tx *gorm.DB, q PartQuery) ([]models.Part, int64, error) {
	query := tx.Model(&models.Part{})
	if q.LowStock {
		query = query.Where("total_quantity <= min_quantity")
	}
	if s := strings.ToLower(strings.TrimSpace(q.Search)); s != "" {
		like := "%" + s + "%"
		query = query.Where("LOWER(sku) LIKE ? OR LOWER(name) LIKE ? OR LOWER(compatible_models) LIKE ?", like, like, like)
	}

	query = query.Session(&gorm.Session{})
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count parts: %w", err)
	}
	var parts []models.Part
	if err := query.Order("name ASC").Scopes(paginate(q.Limit, q.Offset)).Find(&parts).Error; err != nil {
		return nil, 0, fmt.Errorf("list parts: %w", err)
	}
	return parts, total, nil
}

// UpdatePart edits catalogue data. Totals and average cost only change through batches.
func UpdatePart(tx *gorm.DB, id string, updates map[string]any) (*models.Part, error) {
	part, err := lockPart(tx, id)
	if err != nil {
		return nil, err
	}
	delete(updates, "id")
	delete(updates, "total_quantity")
	delete(updates, "average_cost")
	if v, ok := updates["min_quantity"].(int); ok && v < 0 {
		return nil, invalidf("min_quantity cannot be negative")
	}
	if len(updates) > 0 {
		if err := tx.Model(part).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update part: %w", err)
		}
	}
	return LoadPart(tx, id)
}
