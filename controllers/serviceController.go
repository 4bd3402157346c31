package controllers

import (
	"repairshop-backend/middlewares"
	"repairshop-backend/models"
	"repairshop-backend/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type ServiceCreateDTO struct {
	Name            string          `json:"name" validate:"required,max=255"`
	Description     string          `json:"description"`
	Price           decimal.Decimal `json:"price"`
	DurationMinutes int             `json:"duration_minutes" validate:"gte=0"`
	Active          *bool           `json:"active"`
}

type ServiceUpdateDTO struct {
	Name            *string          `json:"name" validate:"omitempty,min=1,max=255"`
	Description     *string          `json:"description"`
	Price           *decimal.Decimal `json:"price"`
	DurationMinutes *int             `json:"duration_minutes" validate:"omitempty,gte=0"`
	Active          *bool            `json:"active"`
}

var errNegativePrice = fiber.NewError(fiber.StatusBadRequest, "price must not be negative")

// POST /api/service
func CreateService(c *fiber.Ctx) error {
	var in ServiceCreateDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	utils.NormalizeDTO(&in)
	if in.Price.IsNegative() {
		return errNegativePrice
	}

	db, err := requestDB(c)
	if err != nil {
		return err
	}
	service := models.Service{
		Name:            in.Name,
		Description:     in.Description,
		Price:           in.Price,
		DurationMinutes: in.DurationMinutes,
		Active:          true,
	}
	if err := db.Create(&service).Error; err != nil {
		return err
	}
	// default:true on the column swallows an explicit false at insert time
	if in.Active != nil && !*in.Active {
		if err := db.Model(&service).Update("active", false).Error; err != nil {
			return err
		}
		service.Active = false
	}
	return c.Status(fiber.StatusCreated).JSON(service)
}

// GET /api/services?active=
func GetServices(c *fiber.Ctx) error {
	db, err := requestDB(c)
	if err != nil {
		return err
	}
	query := db.Model(&models.Service{})
	if c.Query("active") != "" {
		query = query.Where("active = ?", queryBool(c, "active"))
	}
	var services []models.Service
	if err := query.Order("name ASC").Find(&services).Error; err != nil {
		return err
	}
	return listJSON(c, "services", services, int64(len(services)))
}

// GET /api/service/:id
func GetService(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	db, err := requestDB(c)
	if err != nil {
		return err
	}
	var service models.Service
	if err := db.First(&service, "id = ?", id).Error; err != nil {
		return err
	}
	return c.JSON(service)
}

// PUT /api/service/:id
func UpdateService(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var in ServiceUpdateDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	utils.NormalizePtrDTO(&in)
	if in.Price != nil && in.Price.IsNegative() {
		return errNegativePrice
	}

	db, err := requestDB(c)
	if err != nil {
		return err
	}
	var service models.Service
	if err := db.First(&service, "id = ?", id).Error; err != nil {
		return err
	}
	if updates := utils.Patch(&in); len(updates) > 0 {
		if err := db.Model(&service).Updates(updates).Error; err != nil {
			return err
		}
	}
	if err := db.First(&service, "id = ?", id).Error; err != nil {
		return err
	}
	return c.JSON(service)
}

// DELETE /api/service/:id
func DeleteService(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	db, err := requestDB(c)
	if err != nil {
		return err
	}
	var service models.Service
	if err := db.First(&service, "id = ?", id).Error; err != nil {
		return err
	}
	if err := db.Delete(&service).Error; err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
