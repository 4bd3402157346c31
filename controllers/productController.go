package controllers

import (
	"fmt"
	"strings"
	"time"

	"repairshop-backend/middlewares"
	"repairshop-backend/models"
	"repairshop-backend/services"
	"repairshop-backend/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ProductCreateDTO struct {
	SKU          string          `json:"sku" validate:"required,max=64"`
	Name         string          `json:"name" validate:"required,max=255"`
	Category     string          `json:"category" validate:"required,oneof=phone tablet accessory other"`
	Brand        string          `json:"brand"`
	Model        string          `json:"model"`
	IMEI         string          `json:"imei" validate:"omitempty,max=32"`
	Condition    string          `json:"condition" validate:"omitempty,oneof=new used refurbished"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	SellPrice    decimal.Decimal `json:"sell_price"`
	Quantity     int             `json:"quantity" validate:"gte=0"`
	SupplierID   *string         `json:"supplier_id"`
	CustomFields map[string]any  `json:"custom_fields"`
}

type ProductUpdateDTO struct {
	SKU          *string          `json:"sku" validate:"omitempty,min=1,max=64"`
	Name         *string          `json:"name" validate:"omitempty,min=1,max=255"`
	Category     *string          `json:"category" validate:"omitempty,oneof=phone tablet accessory other"`
	Brand        *string          `json:"brand"`
	Model        *string          `json:"model"`
	IMEI         *string          `json:"imei" validate:"omitempty,max=32"`
	Condition    *string          `json:"condition" validate:"omitempty,oneof=new used refurbished"`
	CostPrice    *decimal.Decimal `json:"cost_price"`
	SellPrice    *decimal.Decimal `json:"sell_price"`
	SupplierID   *string          `json:"supplier_id"`
}

type StockAdjustDTO struct {
	Delta  int    `json:"delta" validate:"required"`
	Reason string `json:"reason" validate:"max=255"`
}

// POST /api/product
func CreateProduct(c *fiber.Ctx) error {
	var in ProductCreateDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	utils.NormalizeDTO(&in)

	db, err := requestDB(c)
	if err != nil {
		return err
	}
	product := &models.Product{
		SKU:        in.SKU,
		Name:       in.Name,
		Category:   in.Category,
		Brand:      in.Brand,
		Model:      in.Model,
		Condition:  in.Condition,
		CostPrice:  in.CostPrice,
		SellPrice:  in.SellPrice,
		Quantity:   in.Quantity,
		SupplierID: in.SupplierID,
	}
	if product.Condition == "" {
		product.Condition = "new"
	}
	if in.IMEI != "" {
		product.IMEI = &in.IMEI
	}
	product, err = services.CreateProduct(db, product, in.CustomFields)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(product)
}

// GET /api/products?q=&category=&in_stock=
func GetProducts(c *fiber.Ctx) error {
	db, err := requestDB(c)
	if err != nil {
		return err
	}
	limit, offset := page(c)
	products, total, err := services.ListProducts(db, services.ProductQuery{
		Search:   c.Query("q"),
		Category: c.Query("category"),
		InStock:  queryBool(c, "in_stock"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return err
	}
	return listJSON(c, "products", products, total)
}

// GET /api/product/:id
func GetProduct(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	db, err := requestDB(c)
	if err != nil {
		return err
	}
	var product models.Product
	if err := db.First(&product, "id = ?", id).Error; err != nil {
		return err
	}
	return c.JSON(product)
}

// PUT /api/product/:id
func UpdateProduct(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var in ProductUpdateDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	// custom_fields is a free-form object; pick it up separately so it is not treated as a column
	var extra struct {
		CustomFields map[string]any `json:"custom_fields"`
	}
	if err := c.BodyParser(&extra); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	db, err := requestDB(c)
	if err != nil {
		return err
	}
	product, err := services.UpdateProduct(db, id, utils.Patch(&in), extra.CustomFields)
	if err != nil {
		return err
	}
	return c.JSON(product)
}

// DELETE /api/product/:id
func DeleteProduct(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	db, err := requestDB(c)
	if err != nil {
		return err
	}
	if err := services.DeleteProduct(db, id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// POST /api/product/:id/adjust
func AdjustProduct(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := pathID(c, "id")
		if err != nil {
			return err
		}
		var in StockAdjustDTO
		if err := middlewares.BindAndValidate(c, &in); err != nil {
			return err
		}
		db, err := requestDB(c)
		if err != nil {
			return err
		}
		product, err := services.AdjustProductStock(db, id, in.Delta)
		if err != nil {
			return err
		}
		reason := strings.TrimSpace(in.Reason)
		log.Info("stock adjusted",
			zap.String("product_id", product.Id),
			zap.String("sku", product.SKU),
			zap.Int("delta", in.Delta),
			zap.Int("quantity", product.Quantity),
			zap.String("reason", reason),
			zap.String("user_id", middlewares.CurrentUserID(c)))
		return c.JSON(fiber.Map{
			"product": product,
			"delta":   in.Delta,
			"reason":  reason,
		})
	}
}

// GET /api/products/export
func ExportProducts(c *fiber.Ctx) error {
	db, err := requestDB(c)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, xlsxMIME)
	c.Attachment(fmt.Sprintf("products-%s.xlsx", time.Now().UTC().Format("20060102")))
	return services.ExportProducts(db, c.Response().BodyWriter())
}

// POST /api/admin/products/import (multipart, field "file")
func ImportProducts(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "missing upload field \"file\"")
	}
	f, err := fh.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "could not read upload")
	}
	defer f.Close()

	db, err := requestDB(c)
	if err != nil {
		return err
	}
	result, err := services.ImportProducts(db, f)
	if err != nil {
		return err
	}
	return c.JSON(result)
}
