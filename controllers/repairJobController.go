package controllers

import (
	"repairshop-backend/config"
	"repairshop-backend/metrics"
	"repairshop-backend/middlewares"
	"repairshop-backend/services"
	"repairshop-backend/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type RepairJobUpdateDTO struct {
	DeviceBrand   *string          `json:"device_brand"`
	DeviceModel   *string          `json:"device_model" validate:"omitempty,min=1"`
	IMEI          *string          `json:"imei" validate:"omitempty,max=32"`
	Passcode      *string          `json:"passcode"`
	Issue         *string          `json:"issue" validate:"omitempty,min=1"`
	Diagnosis     *string          `json:"diagnosis"`
	ServiceID     *string          `json:"service_id"`
	EstimatedCost *decimal.Decimal `json:"estimated_cost"`
	LabourCharge  *decimal.Decimal `json:"labour_charge"`
	Deposit       *decimal.Decimal `json:"deposit"`
}

type RepairStatusDTO struct {
	Status string `json:"status" validate:"required,oneof=received diagnosing awaiting_parts in_progress completed collected cancelled"`
}

// POST /api/repair-job
func CreateRepairJob(c *fiber.Ctx) error {
	var in services.RepairJobInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}

	db, err := requestDB(c)
	if err != nil {
		return err
	}
	job, err := services.CreateRepairJob(db, in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(job)
}

// GET /api/repair-jobs?status=&customer_id=&q=
func GetRepairJobs(c *fiber.Ctx) error {
	db, err := requestDB(c)
	if err != nil {
		return err
	}
	limit, offset := page(c)
	jobs, total, err := services.ListRepairJobs(db, services.RepairJobQuery{
		Status:     c.Query("status"),
		CustomerID: c.Query("customer_id"),
		Search:     c.Query("q"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return err
	}
	return listJSON(c, "repair_jobs", jobs, total)
}

// GET /api/repair-job/:id
func GetRepairJob(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	db, err := requestDB(c)
	if err != nil {
		return err
	}
	job, err := services.LoadRepairJob(db, id)
	if err != nil {
		return err
	}
	return c.JSON(job)
}

// PUT /api/repair-job/:id
func UpdateRepairJob(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var in RepairJobUpdateDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
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
	job, err := services.UpdateRepairJob(db, id, utils.Patch(&in), extra.CustomFields)
	if err != nil {
		return err
	}
	return c.JSON(job)
}

// DELETE /api/repair-job/:id
func DeleteRepairJob(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	db, err := requestDB(c)
	if err != nil {
		return err
	}
	if err := services.DeleteRepairJob(db, id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// POST /api/repair-job/:id/status
func SetRepairStatus(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var in RepairStatusDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	db, err := requestDB(c)
	if err != nil {
		return err
	}
	job, err := services.SetRepairStatus(db, id, in.Status)
	if err != nil {
		return err
	}
	return c.JSON(job)
}

// POST /api/repair-job/:id/parts
func AddRepairPart(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var in services.RepairPartInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	db, err := requestDB(c)
	if err != nil {
		return err
	}
	if _, err := services.AddRepairPart(db, id, in); err != nil {
		return err
	}
	job, err := services.LoadRepairJob(db, id)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(job)
}

// POST /api/repair-job/:id/invoice
func InvoiceRepairJob(shop config.ShopConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := pathID(c, "id")
		if err != nil {
			return err
		}
		var in services.RepairInvoiceInput
		if len(c.Body()) > 0 {
			if err := middlewares.BindAndValidate(c, &in); err != nil {
				return err
			}
		}
		db, err := requestDB(c)
		if err != nil {
			return err
		}
		invoice, err := services.InvoiceRepairJob(db, id, in, shop.TaxRate)
		if err != nil {
			return err
		}
		metrics.OnSuccess(c, func() { metrics.InvoiceCreated(invoice.Type) })
		return c.Status(fiber.StatusCreated).JSON(invoice)
	}
}
