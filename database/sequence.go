package database

import (
	"fmt"

	"repairshop-backend/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	SeqInvoice       = "invoice"
	SeqPurchaseOrder = "purchase_order"
	SeqCreditNote    = "credit_note"
	SeqRepairJob     = "repair_job"
)

var sequencePrefixes = map[string]string{
	SeqInvoice:       "INV",
	SeqPurchaseOrder: "PO",
	SeqCreditNote:    "CN",
	SeqRepairJob:     "RJ",
}

// NextNumber increments the named counter and formats it as PREFIX-000001.
// The UPDATE holds the row lock until tx ends, so numbers are gap free per commit.
func NextNumber(tx *gorm.DB, name string) (string, error) {
	prefix, ok := sequencePrefixes[name]
	if !ok {
		return "", fmt.Errorf("unknown sequence %q", name)
	}

	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.Sequence{Name: name}).Error; err != nil {
		return "", fmt.Errorf("sequence init failed: %w", err)
	}
	if err := tx.Model(&models.Sequence{}).Where("name = ?", name).
		Update("value", gorm.Expr("value + 1")).Error; err != nil {
		return "", fmt.Errorf("sequence increment failed: %w", err)
	}

	var seq models.Sequence
	if err := tx.First(&seq, "name = ?", name).Error; err != nil {
		return "", fmt.Errorf("sequence read failed: %w", err)
	}
	return fmt.Sprintf("%s-%06d", prefix, seq.Value), nil
}
