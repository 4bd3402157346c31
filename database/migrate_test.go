package database

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockPostgres(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	return db, mock
}

func TestApplyPostgresConstraints(t *testing.T) {
	t.Run("runs every statement", func(t *testing.T) {
		db, mock := newMockPostgres(t)

		mock.ExpectExec(`chk_part_batches_quantity_nonneg`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`chk_products_quantity_nonneg`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`chk_payments_amount_nonzero`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`idx_customers_name_lower`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`idx_invoice_items_type_ref`).WillReturnResult(sqlmock.NewResult(0, 0))

		require.NoError(t, applyPostgresConstraints(db))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stops at the first failure", func(t *testing.T) {
		db, mock := newMockPostgres(t)

		mock.ExpectExec(`chk_part_batches_quantity_nonneg`).WillReturnError(errors.New("permission denied"))

		err := applyPostgresConstraints(db)
		assert.ErrorContains(t, err, "permission denied")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
