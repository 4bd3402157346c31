package controllers

import (
	"strings"

	"repairshop-backend/middlewares"
	"repairshop-backend/models"
	"repairshop-backend/services"
	"repairshop-backend/utils"

	"github.com/gofiber/fiber/v2"
)

type SupplierCreateDTO struct {
	Name        string `json:"name" validate:"required,min=1,max=255"`
	ContactName string `json:"contact_name"`
	Phone       string `json:"phone" validate:"omitempty,max=32"`
	Email       string `json:"email" validate:"omitempty,email"`
	Address     string `json:"address"`
	Notes       string `json:"notes"`
}

type SupplierUpdateDTO struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=255"`
	ContactName *string `json:"contact_name"`
	Phone       *string `json:"phone" validate:"omitempty,max=32"`
	Email       *string `json:"email" validate:"omitempty,email"`
	Address     *string `json:"address"`
	Notes       *string `json:"notes"`
}

// POST /api/supplier
func CreateSupplier(c *fiber.Ctx) error {
	var in SupplierCreateDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	utils.NormalizeDTO(&in)

	db, err := requestDB(c)
	if err != nil {
		return err
	}

	supplier := models.Supplier{
		Name:        in.Name,
		ContactName: in.ContactName,
		Phone:       in.Phone,
		Email:       strings.ToLower(in.Email),
		Address:     in.Address,
		Notes:       in.Notes,
	}
	if err := db.Create(&supplier).Error; err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(supplier)
}

// GET /api/suppliers?q=
func GetSuppliers(c *fiber.Ctx) error {
	db, err := requestDB(c)
	if err != nil {
		return err
	}
	query := db.Model(&models.Supplier{})
	if s := strings.ToLower(strings.TrimSpace(c.Query("q"))); s != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+s+"%")
	}
	var suppliers []models.Supplier
	if err := query.Order("name ASC").Find(&suppliers).Error; err != nil {
		return err
	}
	return listJSON(c, "suppliers", suppliers, int64(len(suppliers)))
}

// GET /api/supplier/:id
func GetSupplier(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	db, err := requestDB(c)
	if err != nil {
		return err
	}
	var supplier models.Supplier
	if err := db.First(&supplier, "id = ?", id).Error; err != nil {
		return err
	}
	return c.JSON(supplier)
}

// PUT /api/supplier/:id
func UpdateSupplier(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var in SupplierUpdateDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}

	db, err := requestDB(c)
	if err != nil {
		return err
	}

	// Ensure exists
	var existing models.Supplier
	if err := db.First(&existing, "id = ?", id).Error; err != nil {
		return err
	}

	if updates := utils.Patch(&in); len(updates) > 0 {
		if err := db.Model(&existing).Updates(updates).Error; err != nil {
			return err
		}
	}

	var out models.Supplier
	if err := db.First(&out, "id = ?", id).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to reload supplier")
	}
	return c.JSON(out)
}

// DELETE /api/supplier/:id
func DeleteSupplier(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	db, err := requestDB(c)
	if err != nil {
		return err
	}
	if err := services.DeleteSupplier(db, id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
