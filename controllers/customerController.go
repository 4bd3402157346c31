package controllers

import (
	"strings"

	"repairshop-backend/middlewares"
	"repairshop-backend/models"
	"repairshop-backend/services"
	"repairshop-backend/utils"

	"github.com/gofiber/fiber/v2"
)

type CustomerCreateDTO struct {
	Name    string `json:"name" validate:"required,max=255"`
	Phone   string `json:"phone" validate:"required,max=32"`
	Email   string `json:"email" validate:"omitempty,email"`
	Address string `json:"address"`
	Notes   string `json:"notes"`
}

type CustomerUpdateDTO struct {
	Name    *string `json:"name" validate:"omitempty,min=1,max=255"`
	Phone   *string `json:"phone" validate:"omitempty,min=1,max=32"`
	Email   *string `json:"email" validate:"omitempty,email"`
	Address *string `json:"address"`
	Notes   *string `json:"notes"`
}

const recentInvoiceCount = 10

// POST /api/customer
func CreateCustomer(c *fiber.Ctx) error {
	var in CustomerCreateDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	utils.NormalizeDTO(&in)

	db, err := requestDB(c)
	if err != nil {
		return err
	}
	customer := models.Customer{
		Name:    in.Name,
		Phone:   in.Phone,
		Email:   strings.ToLower(in.Email),
		Address: in.Address,
		Notes:   in.Notes,
	}
	if err := db.Create(&customer).Error; err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(customer)
}

// GET /api/customers?q=&include_walk_in=&limit=&offset=
func GetCustomers(c *fiber.Ctx) error {
	db, err := requestDB(c)
	if err != nil {
		return err
	}
	limit, offset := page(c)
	customers, total, err := services.SearchCustomers(db, services.CustomerQuery{
		Search:        c.Query("q"),
		IncludeWalkIn: queryBool(c, "include_walk_in"),
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		return err
	}
	return listJSON(c, "customers", customers, total)
}

// GET /api/customer/:id
func GetCustomer(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	db, err := requestDB(c)
	if err != nil {
		return err
	}
	var customer models.Customer
	if err := db.First(&customer, "id = ?", id).Error; err != nil {
		return err
	}
	invoices, _, err := services.ListInvoices(db, services.InvoiceQuery{CustomerID: id, Limit: recentInvoiceCount})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"customer":        customer,
		"recent_invoices": invoices,
	})
}

// PUT /api/customer/:id
func UpdateCustomer(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var in CustomerUpdateDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}

	db, err := requestDB(c)
	if err != nil {
		return err
	}
	customer, err := services.UpdateCustomer(db, id, utils.Patch(&in))
	if err != nil {
		return err
	}
	return c.JSON(customer)
}

// DELETE /api/customer/:id
func DeleteCustomer(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	db, err := requestDB(c)
	if err != nil {
		return err
	}
	if err := services.DeleteCustomer(db, id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GET /api/customer/:id/statement
func GetCustomerStatement(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	db, err := requestDB(c)
	if err != nil {
		return err
	}
	entries, err := services.CustomerStatement(db, id)
	if err != nil {
		return err
	}
	balance := "0.00"
	if n := len(entries); n > 0 {
		balance = entries[n-1].Balance.StringFixed(2)
	}
	return c.JSON(fiber.Map{
		"entries": entries,
		"balance": balance,
	})
}
