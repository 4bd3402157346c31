package services

import (
	"testing"
	"time"

	"repairshop-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestAverageCost(t *testing.T) {
	avg, qty := AverageCost([]models.PartBatch{
		{Quantity: 2, UnitCost: dec("10")},
		{Quantity: 3, UnitCost: dec("20")},
		{Quantity: 0, UnitCost: dec("99")},
	})
	assertMoney(t, "16.00", avg)
	assert.Equal(t, 5, qty)

	avg, qty = AverageCost([]models.PartBatch{{Quantity: 1, UnitCost: dec("1")}, {Quantity: 2, UnitCost: dec("2")}})
	assertMoney(t, "1.67", avg)
	assert.Equal(t, 3, qty)

	avg, qty = AverageCost(nil)
	assert.True(t, avg.IsZero())
	assert.Equal(t, 0, qty)
}

func TestAddPartStock_RecomputesTotals(t *testing.T) {
	db := setupDB(t)
	part := newPart(t, db, "SCR-1", "60", 1)
	now := time.Now().UTC()

	addBatch(t, db, part.Id, 2, "10", now.Add(-time.Hour))
	addBatch(t, db, part.Id, 3, "20", now)

	got := reloadPart(t, db, part.Id)
	assert.Equal(t, 5, got.TotalQuantity)
	assertMoney(t, "16.00", got.AverageCost)

	_, err := AddPartStock(db, part.Id, StockIn{Quantity: 0, UnitCost: dec("1")})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = AddPartStock(db, "missing", StockIn{Quantity: 1, UnitCost: dec("1")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConsumePartStock_FIFO(t *testing.T) {
	db := setupDB(t)
	part := newPart(t, db, "BAT-1", "30", 0)
	now := time.Now().UTC()
	older := addBatch(t, db, part.Id, 2, "10", now.Add(-48*time.Hour))
	newer := addBatch(t, db, part.Id, 3, "20", now)

	used, err := ConsumePartStock(db, part.Id, 3)
	require.NoError(t, err)

	require.Len(t, used.Lines, 2)
	assert.Equal(t, older.Id, used.Lines[0].BatchID)
	assert.Equal(t, 2, used.Lines[0].Quantity)
	assert.Equal(t, newer.Id, used.Lines[1].BatchID)
	assert.Equal(t, 1, used.Lines[1].Quantity)
	assertMoney(t, "40.00", used.TotalCost)
	assertMoney(t, "13.33", used.UnitCost)

	got := reloadPart(t, db, part.Id)
	assert.Equal(t, 2, got.TotalQuantity)
	assertMoney(t, "20.00", got.AverageCost)

	var emptied models.PartBatch
	require.NoError(t, db.First(&emptied, "id = ?", older.Id).Error)
	assert.Equal(t, 0, emptied.Quantity)
	assert.Equal(t, 2, emptied.OriginalQuantity)
}

func TestConsumePartStock_ShortChangesNothing(t *testing.T) {
	db := setupDB(t)
	part := newPart(t, db, "CAM-1", "15", 0)
	addBatch(t, db, part.Id, 2, "5", time.Now().UTC())

	err := inTx(db, func(tx *gorm.DB) error {
		_, err := ConsumePartStock(tx, part.Id, 3)
		return err
	})
	assert.ErrorIs(t, err, ErrInsufficientStock)

	got := reloadPart(t, db, part.Id)
	assert.Equal(t, 2, got.TotalQuantity)
	assertMoney(t, "5.00", got.AverageCost)
}

func TestAdjustPartBatch(t *testing.T) {
	db := setupDB(t)
	part := newPart(t, db, "FLEX-1", "8", 0)
	batch := addBatch(t, db, part.Id, 4, "2", time.Now().UTC())

	negative := -1
	_, err := AdjustPartBatch(db, part.Id, batch.Id, BatchAdjustment{Quantity: &negative})
	assert.ErrorIs(t, err, ErrInvalidInput)

	qty := 1
	cost := dec("3.50")
	updated, err := AdjustPartBatch(db, part.Id, batch.Id, BatchAdjustment{Quantity: &qty, UnitCost: &cost})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Quantity)

	got := reloadPart(t, db, part.Id)
	assert.Equal(t, 1, got.TotalQuantity)
	assertMoney(t, "3.50", got.AverageCost)

	_, err = AdjustPartBatch(db, part.Id, "nope", BatchAdjustment{Quantity: &qty})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecomputeAllParts(t *testing.T) {
	db := setupDB(t)
	part := newPart(t, db, "PORT-1", "12", 0)
	addBatch(t, db, part.Id, 3, "4", time.Now().UTC())
	newPart(t, db, "PORT-2", "12", 0)

	require.NoError(t, db.Model(&models.Part{}).Where("id = ?", part.Id).
		Updates(map[string]any{"total_quantity": 99, "average_cost": dec("1")}).Error)

	changed, err := RecomputeAllParts(db)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	got := reloadPart(t, db, part.Id)
	assert.Equal(t, 3, got.TotalQuantity)
	assertMoney(t, "4.00", got.AverageCost)
}

func TestCreateAndDeletePart(t *testing.T) {
	db := setupDB(t)
	part, err := CreatePart(db, &models.Part{SKU: "LCD-9", Name: "LCD", SellPrice: dec("90")},
		&StockIn{Quantity: 2, UnitCost: dec("45")})
	require.NoError(t, err)
	require.Len(t, part.Batches, 1)
	assert.Equal(t, 2, part.TotalQuantity)

	assert.ErrorIs(t, DeletePart(db, part.Id), ErrConflict)

	_, err = ConsumePartStock(db, part.Id, 2)
	require.NoError(t, err)
	require.NoError(t, DeletePart(db, part.Id))

	_, err = LoadPart(db, part.Id)
	assert.ErrorIs(t, err, ErrNotFound)
}
