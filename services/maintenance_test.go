package services

import (
	"testing"

	"repairshop-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInventoryReturns(t *testing.T) {
	db := setupDB(t)
	customer := newCustomer(t, db, "Rita")
	phone := newProduct(t, db, "IR1", 2, "10", "20")
	inv := createInvoice(t, db, InvoiceInput{
		CustomerID: customer.Id,
		Items: []InvoiceLine{
			{ItemType: models.ItemTypeProduct, RefID: phone.Id, Quantity: 2},
			{ItemType: models.ItemTypeCustom, Description: "Cable", Quantity: 1, UnitPrice: ptr(dec("5"))},
		},
	}, "0")
	_, err := refund(db, inv.Id, RefundInput{Items: []ReturnLine{
		{InvoiceItemID: inv.Items[0].ID, Quantity: 1, Restock: true},
		{InvoiceItemID: inv.Items[1].ID, Quantity: 1, Restock: true},
	}})
	require.NoError(t, err)

	rows, err := InventoryReturns(db, inv.Id)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, inv.Number, rows[0].InvoiceNumber)
	assert.Equal(t, phone.Id, rows[0].RefID)
	assert.Equal(t, 1, rows[0].ReturnedQuantity)
	assert.Equal(t, 1, rows[0].Restocked)
	require.NotNil(t, rows[0].CurrentStock)
	assert.Equal(t, 1, *rows[0].CurrentStock)

	// custom lines have nothing to put back
	assert.Equal(t, 0, rows[1].Restocked)
	assert.Nil(t, rows[1].CurrentStock)

	none, err := InventoryReturns(db, "other")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCopyTable(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Exec(`CREATE TABLE legacy_customers (id TEXT PRIMARY KEY, name TEXT, phone TEXT, email TEXT, fax TEXT)`).Error)
	require.NoError(t, db.Exec(`INSERT INTO legacy_customers (id, name, phone, email, fax) VALUES
		('c1', 'Old One', '111', 'one@example.com', 'x'),
		('c2', 'Old Two', '222', '', 'y')`).Error)
	existing := &models.Customer{Id: "c1", Name: "Already Here", Phone: "111"}
	require.NoError(t, db.Create(existing).Error)

	dry, err := CopyTable(db, "legacy_customers", "customers", true)
	require.NoError(t, err)
	assert.True(t, dry.DryRun)
	assert.Equal(t, int64(2), dry.SourceRows)
	assert.Equal(t, int64(1), dry.Copied)
	assert.ElementsMatch(t, []string{"id", "name", "phone", "email"}, dry.Columns)

	var count int64
	db.Model(&models.Customer{}).Where("id = ?", "c2").Count(&count)
	assert.Zero(t, count)

	res, err := CopyTable(db, "legacy_customers", "customers", false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Copied)

	var copied models.Customer
	require.NoError(t, db.First(&copied, "id = ?", "c2").Error)
	assert.Equal(t, "Old Two", copied.Name)
	assert.True(t, copied.Debt.IsZero())

	var kept models.Customer
	require.NoError(t, db.First(&kept, "id = ?", "c1").Error)
	assert.Equal(t, "Already Here", kept.Name)

	_, err = CopyTable(db, "customers", "legacy_customers", false)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = CopyTable(db, "legacy_products", "products", true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func ptr[T any](v T) *T { return &v }
