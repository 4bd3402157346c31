package routes

import (
	"repairshop-backend/cache"
	"repairshop-backend/config"
	"repairshop-backend/controllers"
	"repairshop-backend/middlewares"
	"repairshop-backend/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Deps are the long-lived collaborators handlers close over.
type Deps struct {
	Shop       config.ShopConfig
	Log        *zap.Logger
	Auth       *middlewares.JWTAuth
	StatsCache cache.StatsCache // nil without redis
	Printer    controllers.InvoicePrinter
}

// Register wires all HTTP routes.
func Register(app *fiber.App, d Deps) {
	api := app.Group("/api")

	// Public auth endpoints
	api.Post("/registration", controllers.Register)
	api.Post("/login", controllers.Login(d.Auth))
	api.Post("/logout", controllers.Logout)

	// Protected endpoints (JWT auth)
	protected := api.Group("")
	protected.Use(d.Auth.IsAuthenticatedHeader())

	// Idempotency guard FIRST (not tied to request TX)
	protected.Use(middlewares.Idempotency())

	// Then per-request transaction for writes (commits/rolls back)
	protected.Use(middlewares.RequestTx(d.Log))

	protected.Get("/me", controllers.Me)

	// Customers
	protected.Post("/customer", controllers.CreateCustomer)
	protected.Get("/customers", controllers.GetCustomers)
	protected.Get("/customer/:id", controllers.GetCustomer)
	protected.Put("/customer/:id", controllers.UpdateCustomer)
	protected.Delete("/customer/:id", controllers.DeleteCustomer)
	protected.Get("/customer/:id/statement", controllers.GetCustomerStatement)

	// Products
	protected.Post("/product", controllers.CreateProduct)
	protected.Get("/products", controllers.GetProducts)
	protected.Get("/products/export", controllers.ExportProducts)
	protected.Get("/product/:id", controllers.GetProduct)
	protected.Put("/product/:id", controllers.UpdateProduct)
	protected.Delete("/product/:id", controllers.DeleteProduct)
	protected.Post("/product/:id/adjust", controllers.AdjustProduct(d.Log))

	// Suppliers
	protected.Post("/supplier", controllers.CreateSupplier)
	protected.Get("/suppliers", controllers.GetSuppliers)
	protected.Get("/supplier/:id", controllers.GetSupplier)
	protected.Put("/supplier/:id", controllers.UpdateSupplier)
	protected.Delete("/supplier/:id", controllers.DeleteSupplier)

	// Parts and cost batches
	protected.Post("/part", controllers.CreatePart)
	protected.Get("/parts", controllers.GetParts)
	protected.Get("/parts/export", controllers.ExportParts)
	protected.Get("/part/:id", controllers.GetPart)
	protected.Put("/part/:id", controllers.UpdatePart)
	protected.Delete("/part/:id", controllers.DeletePart)
	protected.Post("/part/:id/batches", controllers.AddPartBatch)
	protected.Put("/part/:id/batches/:batchId", controllers.UpdatePartBatch)

	// Purchase orders
	protected.Post("/purchase-order", controllers.CreatePurchaseOrder)
	protected.Get("/purchase-orders", controllers.GetPurchaseOrders)
	protected.Get("/purchase-order/:id", controllers.GetPurchaseOrder)
	protected.Put("/purchase-order/:id", controllers.UpdatePurchaseOrder)
	protected.Delete("/purchase-order/:id", controllers.DeletePurchaseOrder)
	protected.Post("/purchase-order/:id/commit", controllers.CommitPurchaseOrder)
	protected.Post("/purchase-order/:id/cancel", controllers.CancelPurchaseOrder)

	// Services catalog
	protected.Post("/service", controllers.CreateService)
	protected.Get("/services", controllers.GetServices)
	protected.Get("/service/:id", controllers.GetService)
	protected.Put("/service/:id", controllers.UpdateService)
	protected.Delete("/service/:id", controllers.DeleteService)

	// Custom field templates
	protected.Post("/field-template", controllers.CreateFieldTemplate)
	protected.Get("/field-templates", controllers.GetFieldTemplates)
	protected.Get("/field-template/:id", controllers.GetFieldTemplate)
	protected.Put("/field-template/:id", controllers.UpdateFieldTemplate)
	protected.Delete("/field-template/:id", controllers.DeleteFieldTemplate)

	// Invoices, payments and refunds
	protected.Post("/invoice", controllers.CreateInvoice(d.Shop))
	protected.Get("/invoices", controllers.GetInvoices)
	protected.Get("/invoice/:id", controllers.GetInvoice)
	protected.Post("/invoice/:id/payments", controllers.CreatePayment)
	protected.Get("/invoice/:id/payments", controllers.ListPayments)
	protected.Post("/invoice/:id/void", controllers.VoidInvoice)
	protected.Post("/invoice/:id/refund", controllers.RefundInvoice(d.Shop))
	protected.Get("/invoice/:id/print", controllers.PrintInvoice(d.Printer))
	protected.Get("/invoice/:id/pdf", controllers.InvoicePDF(d.Printer))
	protected.Get("/credit-notes", controllers.GetCreditNotes)
	protected.Get("/credit-note/:id", controllers.GetCreditNote)

	// Repair jobs
	protected.Post("/repair-job", controllers.CreateRepairJob)
	protected.Get("/repair-jobs", controllers.GetRepairJobs)
	protected.Get("/repair-job/:id", controllers.GetRepairJob)
	protected.Put("/repair-job/:id", controllers.UpdateRepairJob)
	protected.Delete("/repair-job/:id", controllers.DeleteRepairJob)
	protected.Post("/repair-job/:id/status", controllers.SetRepairStatus)
	protected.Post("/repair-job/:id/parts", controllers.AddRepairPart)
	protected.Post("/repair-job/:id/invoice", controllers.InvoiceRepairJob(d.Shop))

	// Reporting
	protected.Get("/dashboard", controllers.GetDashboard(d.StatsCache, d.Log))

	// Admin only
	admin := protected.Group("", middlewares.RequireRole(models.RoleAdmin))
	admin.Post("/users", controllers.CreateUser)
	admin.Get("/users", controllers.GetUsers)
	admin.Post("/admin/products/import", controllers.ImportProducts)
	admin.Post("/admin/maintenance/recompute-parts", controllers.RecomputeParts(d.StatsCache, d.Log))
	admin.Post("/admin/maintenance/recompute-customers", controllers.RecomputeCustomers(d.StatsCache, d.Log))
	admin.Get("/admin/maintenance/copy-table", controllers.GetCopyTablePairs)
	admin.Post("/admin/maintenance/copy-table", controllers.CopyTable(d.Log))
	admin.Get("/admin/debug/inventory-returns", controllers.GetInventoryReturns)
}
