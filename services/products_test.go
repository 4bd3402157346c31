package services

import (
	"testing"
	"time"

	"repairshop-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestProductCRUD(t *testing.T) {
	db := setupDB(t)

	_, err := SaveFieldTemplate(db, &models.FieldTemplate{
		EntityType: models.TemplateEntityProduct,
		Name:       "Handsets",
		Fields: datatypes.JSONSlice[models.FieldDefinition]{
			{Key: "storage_gb", Label: "Storage", Type: models.FieldTypeNumber, Required: true},
		},
	})
	require.NoError(t, err)

	imei := "356938035643809"
	p := &models.Product{SKU: "IP12-64", Name: "iPhone 12", Category: "phone", Condition: "used", IMEI: &imei,
		CostPrice: dec("200"), SellPrice: dec("320"), Quantity: 1}

	_, err = CreateProduct(db, p, map[string]any{})
	assert.ErrorIs(t, err, ErrInvalidInput, "required custom field missing")
	_, err = CreateProduct(db, &models.Product{SKU: "X", Name: "X", Category: "laptop"}, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	created, err := CreateProduct(db, p, map[string]any{"storage_gb": 64.0})
	require.NoError(t, err)
	assert.Equal(t, models.ProductStatusInStock, created.Status)

	updated, err := UpdateProduct(db, p.Id, map[string]any{"sell_price": dec("300"), "quantity": 99}, nil)
	require.NoError(t, err)
	assertMoney(t, "300", updated.SellPrice)
	assert.Equal(t, 1, updated.Quantity, "quantity is not editable")

	_, err = UpdateProduct(db, p.Id, map[string]any{"condition": "broken"}, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	list, total, err := ListProducts(db, ProductQuery{Search: "iphone", InStock: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)

	_, total, err = ListProducts(db, ProductQuery{Category: "tablet"})
	require.NoError(t, err)
	assert.Zero(t, total)

	require.NoError(t, DeleteProduct(db, p.Id))
	_, err = UpdateProduct(db, p.Id, map[string]any{"name": "gone"}, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAndUpdateParts(t *testing.T) {
	db := setupDB(t)
	screen := newPart(t, db, "SCR-12", "90", 2)
	newPart(t, db, "BAT-12", "45", 2)
	addBatch(t, db, screen.Id, 10, "40", time.Now())

	low, total, err := ListParts(db, PartQuery{LowStock: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, low, 1)
	assert.Equal(t, "BAT-12", low[0].SKU)

	_, total, err = ListParts(db, PartQuery{Search: "scr"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	part, err := UpdatePart(db, screen.Id, map[string]any{"min_quantity": 12, "total_quantity": 0})
	require.NoError(t, err)
	assert.Equal(t, 12, part.MinQuantity)
	assert.Equal(t, 10, part.TotalQuantity)
	assert.True(t, part.LowStock())

	_, err = UpdatePart(db, screen.Id, map[string]any{"min_quantity": -1})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
