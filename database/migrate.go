package database

import (
	"errors"
	"fmt"

	"repairshop-backend/models"

	"gorm.io/gorm"
)

// postgresConstraints are idempotent CHECK constraints and indexes that AutoMigrate cannot express.
var postgresConstraints = []string{
	// Batch quantities never go negative
	`DO $$
	BEGIN
		IF NOT EXISTS (
			SELECT 1 FROM pg_constraint
			WHERE conrelid = 'part_batches'::regclass
			  AND conname  = 'chk_part_batches_quantity_nonneg'
		) THEN
			ALTER TABLE part_batches
			ADD CONSTRAINT chk_part_batches_quantity_nonneg
			CHECK (quantity >= 0);
		END IF;
	END $$;`,
	// Product stock never goes negative
	`DO $$
	BEGIN
		IF NOT EXISTS (
			SELECT 1 FROM pg_constraint
			WHERE conrelid = 'products'::regclass
			  AND conname  = 'chk_products_quantity_nonneg'
		) THEN
			ALTER TABLE products
			ADD CONSTRAINT chk_products_quantity_nonneg
			CHECK (quantity >= 0);
		END IF;
	END $$;`,
	// Payments carry a sign but never zero
	`DO $$
	BEGIN
		IF NOT EXISTS (
			SELECT 1 FROM pg_constraint
			WHERE conrelid = 'payments'::regclass
			  AND conname  = 'chk_payments_amount_nonzero'
		) THEN
			ALTER TABLE payments
			ADD CONSTRAINT chk_payments_amount_nonzero
			CHECK (amount <> 0);
		END IF;
	END $$;`,
	`CREATE INDEX IF NOT EXISTS idx_customers_name_lower ON customers (lower(name))`,
	`CREATE INDEX IF NOT EXISTS idx_invoice_items_type_ref ON invoice_items (item_type, ref_id)`,
}

// Migrate creates or updates the schema and makes sure the walk-in customer exists.
func Migrate(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(models.All()...); err != nil {
			return fmt.Errorf("automigrate failed: %w", err)
		}

		if tx.Dialector.Name() == "postgres" {
			if err := applyPostgresConstraints(tx); err != nil {
				return err
			}
		}

		return EnsureWalkInCustomer(tx)
	})
}

func applyPostgresConstraints(tx *gorm.DB) error {
	for _, stmt := range postgresConstraints {
		if err := tx.Exec(stmt).Error; err != nil {
			return fmt.Errorf("constraint migration failed on: %s - %w", stmt, err)
		}
	}
	return nil
}

// EnsureWalkInCustomer creates the sentinel customer, restoring it if it was soft deleted.
func EnsureWalkInCustomer(tx *gorm.DB) error {
	var existing models.Customer
	err := tx.Unscoped().First(&existing, "id = ?", models.WalkInCustomerID).Error
	switch {
	case err == nil:
		if existing.DeletedAt.Valid {
			return tx.Unscoped().Model(&existing).Update("deleted_at", nil).Error
		}
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		walkIn := models.NewWalkInCustomer()
		return tx.Create(&walkIn).Error
	default:
		return fmt.Errorf("walk-in lookup failed: %w", err)
	}
}
