package main

import (
	"testing"

	"repairshop-backend/models"
	"repairshop-backend/testutil"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedData(t *testing.T) {
	db := testutil.NewDB(t)

	created, err := seedData(db, gofakeit.New(42), seedPlan{Customers: 5, Products: 6, Parts: 4, Suppliers: 2})
	require.NoError(t, err)
	assert.Equal(t, seedPlan{Customers: 5, Products: 6, Parts: 4, Suppliers: 2}, created)

	var customers, products, parts int64
	db.Model(&models.Customer{}).Where("is_walk_in = ?", false).Count(&customers)
	db.Model(&models.Product{}).Count(&products)
	db.Model(&models.Part{}).Count(&parts)
	assert.Equal(t, int64(5), customers)
	assert.Equal(t, int64(6), products)
	assert.Equal(t, int64(4), parts)

	// seeded batches leave consistent part totals behind
	changed, err := recompute(db, "parts")
	require.NoError(t, err)
	assert.Zero(t, changed)
}

func TestCreateAdmin(t *testing.T) {
	db := testutil.NewDB(t)

	user, err := createAdmin(db, " Boss@Shop.example ", "s3cret-pass", "Shop", "Owner")
	require.NoError(t, err)
	assert.Equal(t, "boss@shop.example", user.Email)
	assert.Equal(t, models.RoleAdmin, user.Role)
	assert.NoError(t, user.ComparePassword("s3cret-pass"))

	_, err = createAdmin(db, "boss@shop.example", "another-pass", "", "")
	assert.ErrorContains(t, err, "already exists")

	_, err = createAdmin(db, "x@shop.example", "short", "", "")
	assert.Error(t, err)
}

func TestRecompute_UnknownTarget(t *testing.T) {
	db := testutil.NewDB(t)
	_, err := recompute(db, "invoices")
	assert.ErrorContains(t, err, "unknown recompute target")
}
