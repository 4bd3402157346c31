package services

import (
	"testing"
	"time"

	"repairshop-backend/models"
	"repairshop-backend/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertMoney(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Equal(t, dec(want).StringFixed(2), got.StringFixed(2), msgAndArgs...)
}

// inTx runs fn in a transaction that is rolled back when fn fails, like a request would be.
func inTx(db *gorm.DB, fn func(tx *gorm.DB) error) error {
	return db.Transaction(fn)
}

func newCustomer(t *testing.T, db *gorm.DB, name string) *models.Customer {
	t.Helper()
	c := &models.Customer{Name: name, Phone: "07700 900" + name[:1]}
	require.NoError(t, db.Create(c).Error)
	return c
}

func newProduct(t *testing.T, db *gorm.DB, sku string, qty int, cost, price string) *models.Product {
	t.Helper()
	p := &models.Product{
		SKU:       sku,
		Name:      "Phone " + sku,
		Category:  "phone",
		Condition: "used",
		CostPrice: dec(cost),
		SellPrice: dec(price),
		Quantity:  qty,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func newPart(t *testing.T, db *gorm.DB, sku, price string, minQty int) *models.Part {
	t.Helper()
	p := &models.Part{SKU: sku, Name: "Part " + sku, SellPrice: dec(price), MinQuantity: minQty}
	require.NoError(t, db.Create(p).Error)
	return p
}

func addBatch(t *testing.T, db *gorm.DB, partID string, qty int, cost string, at time.Time) *models.PartBatch {
	t.Helper()
	b, err := AddPartStock(db, partID, StockIn{Quantity: qty, UnitCost: dec(cost), ReceivedAt: at})
	require.NoError(t, err)
	return b
}

func reloadCustomer(t *testing.T, db *gorm.DB, id string) models.Customer {
	t.Helper()
	var c models.Customer
	require.NoError(t, db.Unscoped().First(&c, "id = ?", id).Error)
	return c
}

func reloadProduct(t *testing.T, db *gorm.DB, id string) models.Product {
	t.Helper()
	var p models.Product
	require.NoError(t, db.Unscoped().First(&p, "id = ?", id).Error)
	return p
}

func reloadPart(t *testing.T, db *gorm.DB, id string) models.Part {
	t.Helper()
	var p models.Part
	require.NoError(t, db.Unscoped().First(&p, "id = ?", id).Error)
	return p
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	return testutil.NewDB(t)
}
