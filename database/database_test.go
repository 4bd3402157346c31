package database_test

import (
	"testing"

	"repairshop-backend/database"
	"repairshop-backend/models"
	"repairshop-backend/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate_CreatesWalkInCustomer(t *testing.T) {
	db := testutil.NewDB(t)

	var walkIn models.Customer
	require.NoError(t, db.First(&walkIn, "id = ?", models.WalkInCustomerID).Error)
	assert.True(t, walkIn.IsWalkIn)

	// Idempotent, and restores a soft-deleted sentinel.
	require.NoError(t, db.Delete(&walkIn).Error)
	require.NoError(t, database.Migrate(db))

	var count int64
	db.Model(&models.Customer{}).Where("id = ?", models.WalkInCustomerID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestNextNumber(t *testing.T) {
	db := testutil.NewDB(t)

	first, err := database.NextNumber(db, database.SeqInvoice)
	require.NoError(t, err)
	second, err := database.NextNumber(db, database.SeqInvoice)
	require.NoError(t, err)
	po, err := database.NextNumber(db, database.SeqPurchaseOrder)
	require.NoError(t, err)

	assert.Equal(t, "INV-000001", first)
	assert.Equal(t, "INV-000002", second)
	assert.Equal(t, "PO-000001", po)

	_, err = database.NextNumber(db, "nope")
	assert.Error(t, err)
}
