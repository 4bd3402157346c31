package controllers

import (
	"repairshop-backend/middlewares"
	"repairshop-backend/services"

	"github.com/gofiber/fiber/v2"
)

type ReceivedLineDTO struct {
	ItemID   uint `json:"item_id" validate:"required"`
	Quantity int  `json:"quantity" validate:"gte=0"`
}

// CommitDTO lists received quantities; items left out are received in full.
type CommitDTO struct {
	Received []ReceivedLineDTO `json:"received" validate:"omitempty,dive"`
}

// POST /api/purchase-order
func CreatePurchaseOrder(c *fiber.Ctx) error {
	var in services.PurchaseOrderInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	db, err := requestDB(c)
	if err != nil {
		return err
	}
	order, err := services.CreatePurchaseOrder(db, in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

// GET /api/purchase-orders?status=&supplier_id=
func GetPurchaseOrders(c *fiber.Ctx) error {
	db, err := requestDB(c)
	if err != nil {
		return err
	}
	orders, err := services.ListPurchaseOrders(db, c.Query("status"), c.Query("supplier_id"))
	if err != nil {
		return err
	}
	return listJSON(c, "purchase_orders", orders, int64(len(orders)))
}

// GET /api/purchase-order/:id
func GetPurchaseOrder(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	db, err := requestDB(c)
	if err != nil {
		return err
	}
	order, err := services.LoadPurchaseOrder(db, id)
	if err != nil {
		return err
	}
	return c.JSON(order)
}

// PUT /api/purchase-order/:id
func UpdatePurchaseOrder(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var in services.PurchaseOrderInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	db, err := requestDB(c)
	if err != nil {
		return err
	}
	order, err := services.UpdatePurchaseOrder(db, id, in)
	if err != nil {
		return err
	}
	return c.JSON(order)
}

// POST /api/purchase-order/:id/commit
func CommitPurchaseOrder(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var in CommitDTO
	if len(c.Body()) > 0 {
		if err := middlewares.BindAndValidate(c, &in); err != nil {
			return err
		}
	}
	var received map[uint]int
	if len(in.Received) > 0 {
		received = make(map[uint]int, len(in.Received))
		for _, r := range in.Received {
			received[r.ItemID] = r.Quantity
		}
	}

	db, err := requestDB(c)
	if err != nil {
		return err
	}
	order, err := services.CommitPurchaseOrder(db, id, received)
	if err != nil {
		return err
	}
	return c.JSON(order)
}

// POST /api/purchase-order/:id/cancel
func CancelPurchaseOrder(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	db, err := requestDB(c)
	if err != nil {
		return err
	}
	order, err := services.CancelPurchaseOrder(db, id)
	if err != nil {
		return err
	}
	return c.JSON(order)
}

// DELETE /api/purchase-order/:id
func DeletePurchaseOrder(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	db, err := requestDB(c)
	if err != nil {
		return err
	}
	if err := services.DeletePurchaseOrder(db, id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
