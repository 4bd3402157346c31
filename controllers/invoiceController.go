package controllers

import (
	"context"
	"errors"
	"fmt"

	"repairshop-backend/config"
	"repairshop-backend/metrics"
	"repairshop-backend/middlewares"
	"repairshop-backend/models"
	"repairshop-backend/printing"
	"repairshop-backend/services"

	"github.com/gofiber/fiber/v2"
)

// InvoicePrinter renders receipts; *printing.Printer is the production implementation.
type InvoicePrinter interface {
	HTML(invoice *models.Invoice) ([]byte, error)
	PDF(ctx context.Context, invoice *models.Invoice) ([]byte, error)
	StorePDF(ctx context.Context, invoice *models.Invoice) (string, error)
}

// POST /api/invoice
func CreateInvoice(shop config.ShopConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var in services.InvoiceInput
		if err := middlewares.BindAndValidate(c, &in); err != nil {
			return err
		}
		db, err := requestDB(c)
		if err != nil {
			return err
		}
		invoice, err := services.CreateInvoice(db, in, shop.TaxRate)
		if err != nil {
			return err
		}
		metrics.OnSuccess(c, func() { metrics.InvoiceCreated(invoice.Type) })
		return c.Status(fiber.StatusCreated).JSON(invoice)
	}
}

// GET /api/invoices?customer_id=&status=&from=&to=&limit=&offset=
func GetInvoices(c *fiber.Ctx) error {
	from, err := queryTime(c, "from")
	if err != nil {
		return err
	}
	to, err := queryRangeEnd(c, "to")
	if err != nil {
		return err
	}
	db, err := requestDB(c)
	if err != nil {
		return err
	}
	limit, offset := page(c)
	invoices, total, err := services.ListInvoices(db, services.InvoiceQuery{
		CustomerID: c.Query("customer_id"),
		Status:     c.Query("status"),
		From:       from,
		To:         to,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return err
	}
	return listJSON(c, "invoices", invoices, total)
}

// GET /api/invoice/:id
func GetInvoice(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	db, err := requestDB(c)
	if err != nil {
		return err
	}
	invoice, err := services.LoadInvoice(db, id)
	if err != nil {
		return err
	}
	return c.JSON(invoice)
}

// POST /api/invoice/:id/payments
func CreatePayment(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var in services.PaymentInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	db, err := requestDB(c)
	if err != nil {
		return err
	}
	payment, invoice, err := services.RecordPayment(db, id, in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"payment": payment,
		"invoice": invoice,
	})
}

// GET /api/invoice/:id/payments
func ListPayments(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	db, err := requestDB(c)
	if err != nil {
		return err
	}
	invoice, err := services.LoadInvoice(db, id)
	if err != nil {
		return err
	}
	return listJSON(c, "payments", invoice.Payments, int64(len(invoice.Payments)))
}

// POST /api/invoice/:id/void
func VoidInvoice(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	db, err := requestDB(c)
	if err != nil {
		return err
	}
	invoice, err := services.VoidInvoice(db, id)
	if err != nil {
		return err
	}
	return c.JSON(invoice)
}

// POST /api/invoice/:id/refund
func RefundInvoice(shop config.ShopConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := pathID(c, "id")
		if err != nil {
			return err
		}
		var in services.RefundInput
		if err := middlewares.BindAndValidate(c, &in); err != nil {
			return err
		}
		db, err := requestDB(c)
		if err != nil {
			return err
		}
		result, err := services.ProcessRefund(db, id, in, shop.TaxRate)
		if err != nil {
			return err
		}
		metrics.OnSuccess(c, func() {
			metrics.RefundIssued()
			if result.ExchangeInvoice != nil {
				metrics.InvoiceCreated(result.ExchangeInvoice.Type)
			}
		})
		return c.Status(fiber.StatusCreated).JSON(result)
	}
}

// GET /api/invoice/:id/print
func PrintInvoice(printer InvoicePrinter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		invoice, err := loadInvoiceParam(c)
		if err != nil {
			return err
		}
		html, err := printer.HTML(invoice)
		if err != nil {
			return err
		}
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.Send(html)
	}
}

// GET /api/invoice/:id/pdf?store=true
func InvoicePDF(printer InvoicePrinter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		invoice, err := loadInvoiceParam(c)
		if err != nil {
			return err
		}
		if queryBool(c, "store") {
			url, err := printer.StorePDF(c.UserContext(), invoice)
			if errors.Is(err, printing.ErrStorageDisabled) {
				return fiber.NewError(fiber.StatusServiceUnavailable, "pdf storage is not configured")
			}
			if err != nil {
				return err
			}
			return c.JSON(fiber.Map{"url": url})
		}

		pdf, err := printer.PDF(c.UserContext(), invoice)
		if err != nil {
			return err
		}
		c.Set(fiber.HeaderContentType, "application/pdf")
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", invoice.Number+".pdf"))
		return c.Send(pdf)
	}
}

func loadInvoiceParam(c *fiber.Ctx) (*models.Invoice, error) {
	id, err := pathID(c, "id")
	if err != nil {
		return nil, err
	}
	db, err := requestDB(c)
	if err != nil {
		return nil, err
	}
	return services.LoadInvoice(db, id)
}

// GET /api/credit-notes?customer_id=&invoice_id=
func GetCreditNotes(c *fiber.Ctx) error {
	db, err := requestDB(c)
	if err != nil {
		return err
	}
	limit, offset := page(c)
	notes, total, err := services.ListCreditNotes(db, services.CreditNoteQuery{
		CustomerID: c.Query("customer_id"),
		InvoiceID:  c.Query("invoice_id"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return err
	}
	return listJSON(c, "credit_notes", notes, total)
}

// GET /api/credit-note/:id
func GetCreditNote(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	db, err := requestDB(c)
	if err != nil {
		return err
	}
	note, err := services.LoadCreditNote(db, id)
	if err != nil {
		return err
	}
	return c.JSON(note)
}
