package services

import (
	"fmt"
	"time"

	"repairshop-backend/models"
	"repairshop-backend/utils"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StockIn describes a new batch of a part.
type StockIn struct {
	Quantity        int
	UnitCost        decimal.Decimal
	SupplierID      *string
	PurchaseOrderID *string
	Note            string
	ReceivedAt      time.Time
}

// CostLine is the slice of one batch used by a consumption.
type CostLine struct {
	BatchID  string          `json:"batch_id"`
	Quantity int             `json:"quantity"`
	UnitCost decimal.Decimal `json:"unit_cost"`
}

// Consumption is the outcome of a FIFO draw on a part's batches.
type Consumption struct {
	Lines     []CostLine      `json:"lines"`
	TotalCost decimal.Decimal `json:"total_cost"`
	UnitCost  decimal.Decimal `json:"unit_cost"` // weighted over Lines, rounded to 2dp
}

// AverageCost returns Σ(qty×cost)/Σqty over batches with stock, and the total quantity.
// With no stock the average is zero.
func AverageCost(batches []models.PartBatch) (decimal.Decimal, int) {
	total := 0
	value := decimal.Zero
	for _, b := range batches {
		if b.Quantity <= 0 {
			continue
		}
		total += b.Quantity
		value = value.Add(b.UnitCost.Mul(decimal.NewFromInt(int64(b.Quantity))))
	}
	if total == 0 {
		return decimal.Zero, 0
	}
	return utils.Round2(value.Div(decimal.NewFromInt(int64(total)))), total
}

func lockPart(tx *gorm.DB, partID string) (*models.Part, error) {
	var part models.Part
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&part, "id = ?", partID).Error; err != nil {
		return nil, notFound("part", err)
	}
	return &part, nil
}

// RecomputePart rebuilds TotalQuantity and AverageCost from the part's batches.
func RecomputePart(tx *gorm.DB, partID string) (*models.Part, error) {
	part, err := lockPart(tx, partID)
	if err != nil {
		return nil, err
	}
	return recompute(tx, part)
}

func recompute(tx *gorm.DB, part *models.Part) (*models.Part, error) {
	var batches []models.PartBatch
	if err := tx.Where("part_id = ?", part.Id).Find(&batches).Error; err != nil {
		return nil, fmt.Errorf("load batches: %w", err)
	}
	avg, qty := AverageCost(batches)
	if err := tx.Model(part).Updates(map[string]any{
		"average_cost":   avg,
		"total_quantity": qty,
	}).Error; err != nil {
		return nil, fmt.Errorf("update part totals: %w", err)
	}
	part.AverageCost = avg
	part.TotalQuantity = qty
	return part, nil
}

// AddPartStock appends a batch and recomputes the part's totals.
func AddPartStock(tx *gorm.DB, partID string, in StockIn) (*models.PartBatch, error) {
	if in.Quantity <= 0 {
		return nil, invalidf("batch quantity must be positive")
	}
	if in.UnitCost.IsNegative() {
		return nil, invalidf("unit cost must not be negative")
	}
	part, err := lockPart(tx, partID)
	if err != nil {
		return nil, err
	}

	batch := models.PartBatch{
		PartID:           part.Id,
		Quantity:         in.Quantity,
		OriginalQuantity: in.Quantity,
		UnitCost:         utils.Round2(in.UnitCost),
		SupplierID:       in.SupplierID,
		PurchaseOrderID:  in.PurchaseOrderID,
		Note:             in.Note,
		ReceivedAt:       in.ReceivedAt,
	}
	if err := tx.Create(&batch).Error; err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}
	if _, err := recompute(tx, part); err != nil {
		return nil, err
	}
	return &batch, nil
}

// ConsumePartStock draws qty units from the oldest batches first.
// Nothing is changed when the part is short.
func ConsumePartStock(tx *gorm.DB, partID string, qty int) (*Consumption, error) {
	if qty <= 0 {
		return nil, invalidf("quantity must be positive")
	}
	part, err := lockPart(tx, partID)
	if err != nil {
		return nil, err
	}

	var batches []models.PartBatch
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("part_id = ? AND quantity > 0", part.Id).
		Order("received_at ASC").Order("id ASC").
		Find(&batches).Error; err != nil {
		return nil, fmt.Errorf("load batches: %w", err)
	}

	available := 0
	for _, b := range batches {
		available += b.Quantity
	}
	if available < qty {
		return nil, fmt.Errorf("%w: part %s has %d, need %d", ErrInsufficientStock, part.Name, available, qty)
	}

	out := &Consumption{TotalCost: decimal.Zero}
	remaining := qty
	for i := range batches {
		if remaining == 0 {
			break
		}
		b := &batches[i]
		take := min(b.Quantity, remaining)
		b.Quantity -= take
		remaining -= take
		if err := tx.Model(b).Update("quantity", b.Quantity).Error; err != nil {
			return nil, fmt.Errorf("update batch: %w", err)
		}
		out.Lines = append(out.Lines, CostLine{BatchID: b.Id, Quantity: take, UnitCost: b.UnitCost})
		out.TotalCost = out.TotalCost.Add(b.UnitCost.Mul(decimal.NewFromInt(int64(take))))
	}
	out.UnitCost = utils.Round2(out.TotalCost.Div(decimal.NewFromInt(int64(qty))))

	if _, err := recompute(tx, part); err != nil {
		return nil, err
	}
	return out, nil
}

// BatchAdjustment sets a batch's remaining quantity and/or unit cost.
type BatchAdjustment struct {
	Quantity *int
	UnitCost *decimal.Decimal
	Note     *string
}

// AdjustPartBatch corrects one batch (stock take, mistyped cost) and recomputes the part.
func AdjustPartBatch(tx *gorm.DB, partID, batchID string, adj BatchAdjustment) (*models.PartBatch, error) {
	if adj.Quantity != nil && *adj.Quantity < 0 {
		return nil, invalidf("batch quantity cannot be negative")
	}
	if adj.UnitCost != nil && adj.UnitCost.IsNegative() {
		return nil, invalidf("unit cost must not be negative")
	}
	part, err := lockPart(tx, partID)
	if err != nil {
		return nil, err
	}

	var batch models.PartBatch
	if err := tx.First(&batch, "id = ? AND part_id = ?", batchID, part.Id).Error; err != nil {
		return nil, notFound("batch", err)
	}

	updates := map[string]any{}
	if adj.Quantity != nil {
		updates["quantity"] = *adj.Quantity
		batch.Quantity = *adj.Quantity
	}
	if adj.UnitCost != nil {
		batch.UnitCost = utils.Round2(*adj.UnitCost)
		updates["unit_cost"] = batch.UnitCost
	}
	if adj.Note != nil {
		updates["note"] = *adj.Note
		batch.Note = *adj.Note
	}
	if len(updates) > 0 {
		if err := tx.Model(&batch).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update batch: %w", err)
		}
	}
	if _, err := recompute(tx, part); err != nil {
		return nil, err
	}
	return &batch, nil
}

// RecomputeAllParts rebuilds totals for every part and returns how many changed.
func RecomputeAllParts(tx *gorm.DB) (int, error) {
	var parts []models.Part
	if err := tx.Find(&parts).Error; err != nil {
		return 0, fmt.Errorf("load parts: %w", err)
	}
	changed := 0
	for i := range parts {
		before := parts[i]
		after, err := recompute(tx, &parts[i])
		if err != nil {
			return changed, err
		}
		if before.TotalQuantity != after.TotalQuantity || !before.AverageCost.Equal(after.AverageCost) {
			changed++
		}
	}
	return changed, nil
}
