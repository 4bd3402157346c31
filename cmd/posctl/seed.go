package main

import (
	"fmt"
	"strings"

	"repairshop-backend/models"
	"repairshop-backend/services"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type seedPlan struct {
	Customers int
	Products  int
	Parts     int
	Suppliers int
}

var (
	seedBrands = []string{"Apple", "Samsung", "Google", "Xiaomi", "OnePlus", "Motorola"}
	seedParts  = []string{"Screen", "Battery", "Charging port", "Rear camera", "Back glass", "Speaker"}
)

func money(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f).Round(2)
}

// seedData inserts fake records in one transaction and reports how many of each it created.
func seedData(db *gorm.DB, f *gofakeit.Faker, plan seedPlan) (seedPlan, error) {
	var created seedPlan
	err := db.Transaction(func(tx *gorm.DB) error {
		supplierIDs := make([]string, 0, plan.Suppliers)
		for i := 0; i < plan.Suppliers; i++ {
			s := models.Supplier{
				Name:        f.Company() + " " + strings.ToUpper(f.LetterN(4)),
				ContactName: f.Name(),
				Phone:       f.Phone(),
				Email:       strings.ToLower(f.Email()),
				Address:     f.Address().Address,
			}
			if err := tx.Create(&s).Error; err != nil {
				return fmt.Errorf("seed supplier: %w", err)
			}
			supplierIDs = append(supplierIDs, s.Id)
			created.Suppliers++
		}

		for i := 0; i < plan.Customers; i++ {
			c := models.Customer{
				Name:    f.Name(),
				Phone:   f.Phone(),
				Email:   strings.ToLower(f.Email()),
				Address: f.Address().Address,
			}
			if err := tx.Create(&c).Error; err != nil {
				return fmt.Errorf("seed customer: %w", err)
			}
			created.Customers++
		}

		for i := 0; i < plan.Products; i++ {
			brand := f.RandomString(seedBrands)
			cost := f.Price(40, 600)
			p := &models.Product{
				SKU:       "P-" + strings.ToUpper(f.LetterN(8)),
				Name:      fmt.Sprintf("%s %s", brand, strings.ToUpper(f.LetterN(2))+f.Numerify("##")),
				Category:  f.RandomString(models.ProductCategories),
				Brand:     brand,
				Condition: f.RandomString(models.ProductConditions),
				CostPrice: money(cost),
				SellPrice: money(cost * 1.4),
				Quantity:  f.Number(0, 8),
			}
			if p.Category == "phone" || p.Category == "tablet" {
				imei := f.Numerify("35###########")
				p.IMEI = &imei
			}
			if _, err := services.CreateProduct(tx, p, nil); err != nil {
				return fmt.Errorf("seed product: %w", err)
			}
			created.Products++
		}

		for i := 0; i < plan.Parts; i++ {
			brand := f.RandomString(seedBrands)
			cost := f.Price(5, 120)
			part := &models.Part{
				SKU:              "PT-" + strings.ToUpper(f.LetterN(8)),
				Name:             fmt.Sprintf("%s %s", brand, f.RandomString(seedParts)),
				CompatibleModels: brand,
				SellPrice:        money(cost * 2),
				MinQuantity:      f.Number(1, 5),
			}
			stock := &services.StockIn{Quantity: f.Number(0, 25), UnitCost: money(cost), Note: "seed"}
			if len(supplierIDs) > 0 {
				id := supplierIDs[i%len(supplierIDs)]
				stock.SupplierID = &id
			}
			if _, err := services.CreatePart(tx, part, stock); err != nil {
				return fmt.Errorf("seed part: %w", err)
			}
			created.Parts++
		}
		return nil
	})
	if err != nil {
		return seedPlan{}, err
	}
	return created, nil
}
