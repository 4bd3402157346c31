package controllers

import (
	"fmt"
	"time"

	"repairshop-backend/middlewares"
	"repairshop-backend/models"
	"repairshop-backend/services"
	"repairshop-backend/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type BatchDTO struct {
	Quantity   int             `json:"quantity" validate:"required,gt=0"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	SupplierID *string         `json:"supplier_id"`
	Note       string          `json:"note" validate:"max=255"`
	ReceivedAt *time.Time      `json:"received_at"`
}

func (b BatchDTO) stockIn() services.StockIn {
	in := services.StockIn{
		Quantity:   b.Quantity,
		UnitCost:   b.UnitCost,
		SupplierID: b.SupplierID,
		Note:       b.Note,
	}
	if b.ReceivedAt != nil {
		in.ReceivedAt = b.ReceivedAt.UTC()
	}
	return in
}

type PartCreateDTO struct {
	SKU              string          `json:"sku" validate:"required,max=64"`
	Name             string          `json:"name" validate:"required,max=255"`
	CompatibleModels string          `json:"compatible_models"`
	SellPrice        decimal.Decimal `json:"sell_price"`
	MinQuantity      int             `json:"min_quantity" validate:"gte=0"`
	InitialBatch     *BatchDTO       `json:"initial_batch"`
}

type PartUpdateDTO struct {
	SKU              *string          `json:"sku" validate:"omitempty,min=1,max=64"`
	Name             *string          `json:"name" validate:"omitempty,min=1,max=255"`
	CompatibleModels *string          `json:"compatible_models"`
	SellPrice        *decimal.Decimal `json:"sell_price"`
	MinQuantity      *int             `json:"min_quantity" validate:"omitempty,gte=0"`
}

type BatchUpdateDTO struct {
	Quantity *int             `json:"quantity"`
	UnitCost *decimal.Decimal `json:"unit_cost"`
	Note     *string          `json:"note"`
}

// POST /api/part
func CreatePart(c *fiber.Ctx) error {
	var in PartCreateDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	utils.NormalizeDTO(&in)

	db, err := requestDB(c)
	if err != nil {
		return err
	}
	part := &models.Part{
		SKU:              in.SKU,
		Name:             in.Name,
		CompatibleModels: in.CompatibleModels,
		SellPrice:        in.SellPrice,
		MinQuantity:      in.MinQuantity,
	}
	var initial *services.StockIn
	if in.InitialBatch != nil {
		s := in.InitialBatch.stockIn()
		initial = &s
	}
	part, err = services.CreatePart(db, part, initial)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(part)
}

// GET /api/parts?q=&low_stock=
func GetParts(c *fiber.Ctx) error {
	db, err := requestDB(c)
	if err != nil {
		return err
	}
	limit, offset := page(c)
	parts, total, err := services.ListParts(db, services.PartQuery{
		Search:   c.Query("q"),
		LowStock: queryBool(c, "low_stock"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return err
	}
	return listJSON(c, "parts", parts, total)
}

// GET /api/part/:id
func GetPart(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	db, err := requestDB(c)
	if err != nil {
		return err
	}
	part, err := services.LoadPart(db, id)
	if err != nil {
		return err
	}
	return c.JSON(part)
}

// PUT /api/part/:id
func UpdatePart(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var in PartUpdateDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}

	db, err := requestDB(c)
	if err != nil {
		return err
	}
	part, err := services.UpdatePart(db, id, utils.Patch(&in))
	if err != nil {
		return err
	}
	return c.JSON(part)
}

// DELETE /api/part/:id
func DeletePart(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	db, err := requestDB(c)
	if err != nil {
		return err
	}
	if err := services.DeletePart(db, id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// POST /api/part/:id/batches
func AddPartBatch(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var in BatchDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	db, err := requestDB(c)
	if err != nil {
		return err
	}
	batch, err := services.AddPartStock(db, id, in.stockIn())
	if err != nil {
		return err
	}
	part, err := services.LoadPart(db, id)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"batch": batch,
		"part":  part,
	})
}

// PUT /api/part/:id/batches/:batchId
func UpdatePartBatch(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	batchID, err := pathID(c, "batchId")
	if err != nil {
		return err
	}
	var in BatchUpdateDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	db, err := requestDB(c)
	if err != nil {
		return err
	}
	batch, err := services.AdjustPartBatch(db, id, batchID, services.BatchAdjustment{
		Quantity: in.Quantity,
		UnitCost: in.UnitCost,
		Note:     in.Note,
	})
	if err != nil {
		return err
	}
	part, err := services.LoadPart(db, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"batch": batch,
		"part":  part,
	})
}

// GET /api/parts/export
func ExportParts(c *fiber.Ctx) error {
	db, err := requestDB(c)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, xlsxMIME)
	c.Attachment(fmt.Sprintf("parts-%s.xlsx", time.Now().UTC().Format("20060102")))
	return services.ExportParts(db, c.Response().BodyWriter())
}
