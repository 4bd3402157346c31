package controllers

import (
	"repairshop-backend/middlewares"
	"repairshop-backend/models"
	"repairshop-backend/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
)

type FieldTemplateDTO struct {
	EntityType string                   `json:"entity_type" validate:"required,oneof=repair_job product"`
	Name       string                   `json:"name" validate:"required,max=255"`
	Fields     []models.FieldDefinition `json:"fields" validate:"dive"`
}

// POST /api/field-template
func CreateFieldTemplate(c *fiber.Ctx) error {
	var in FieldTemplateDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	db, err := requestDB(c)
	if err != nil {
		return err
	}
	tpl, err := services.SaveFieldTemplate(db, &models.FieldTemplate{
		EntityType: in.EntityType,
		Name:       in.Name,
		Fields:     datatypes.JSONSlice[models.FieldDefinition](in.Fields),
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(tpl)
}

// GET /api/field-templates?entity_type=
func GetFieldTemplates(c *fiber.Ctx) error {
	db, err := requestDB(c)
	if err != nil {
		return err
	}
	query := db.Model(&models.FieldTemplate{})
	if et := c.Query("entity_type"); et != "" {
		query = query.Where("entity_type = ?", et)
	}
	var templates []models.FieldTemplate
	if err := query.Order("entity_type ASC").Find(&templates).Error; err != nil {
		return err
	}
	return listJSON(c, "field_templates", templates, int64(len(templates)))
}

// GET /api/field-template/:id
func GetFieldTemplate(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	db, err := requestDB(c)
	if err != nil {
		return err
	}
	var tpl models.FieldTemplate
	if err := db.First(&tpl, "id = ?", id).Error; err != nil {
		return err
	}
	return c.JSON(tpl)
}

// PUT /api/field-template/:id
// Replaces name and fields; existing records keep the values they were saved with.
func UpdateFieldTemplate(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var in FieldTemplateDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	db, err := requestDB(c)
	if err != nil {
		return err
	}
	var tpl models.FieldTemplate
	if err := db.First(&tpl, "id = ?", id).Error; err != nil {
		return err
	}
	tpl.EntityType = in.EntityType
	tpl.Name = in.Name
	tpl.Fields = datatypes.JSONSlice[models.FieldDefinition](in.Fields)
	out, err := services.SaveFieldTemplate(db, &tpl)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// DELETE /api/field-template/:id
func DeleteFieldTemplate(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	db, err := requestDB(c)
	if err != nil {
		return err
	}
	var tpl models.FieldTemplate
	if err := db.First(&tpl, "id = ?", id).Error; err != nil {
		return err
	}
	if err := db.Delete(&tpl).Error; err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
