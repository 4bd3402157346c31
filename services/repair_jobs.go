package services

import (
	"fmt"
	"strings"
	"time"

	"repairshop-backend/database"
	"repairshop-backend/models"
	"repairshop-backend/utils"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RepairJobInput struct {
	CustomerID    string          `json:"customer_id"`
	DeviceBrand   string          `json:"device_brand"`
	DeviceModel   string          `json:"device_model" validate:"required"`
	IMEI          string          `json:"imei" validate:"omitempty,max=32"`
	Passcode      string          `json:"passcode"`
	Issue         string          `json:"issue" validate:"required"`
	ServiceID     *string         `json:"service_id"`
	EstimatedCost decimal.Decimal `json:"estimated_cost"`
	LabourCharge  decimal.Decimal `json:"labour_charge"`
	Deposit       decimal.Decimal `json:"deposit"`
	CustomFields  map[string]any  `json:"custom_fields"`
}

func checkRepairMoney(estimated, labour, deposit decimal.Decimal) error {
	if estimated.IsNegative() || labour.IsNegative() || deposit.IsNegative() {
		return invalidf("amounts must not be negative")
	}
	return nil
}

// CreateRepairJob books a device in with status received.
func CreateRepairJob(tx *gorm.DB, in RepairJobInput) (*models.RepairJob, error) {
	if err := checkRepairMoney(in.EstimatedCost, in.LabourCharge, in.Deposit); err != nil {
		return nil, err
	}
	customer, err := loadCustomer(tx, customerOrWalkIn(in.CustomerID), false)
	if err != nil {
		return nil, err
	}
	labour := in.LabourCharge
	if in.ServiceID != nil && *in.ServiceID != "" {
		var service models.Service
		if err := tx.First(&service, "id = ?", *in.ServiceID).Error; err != nil {
			return nil, notFound("service", err)
		}
		if labour.IsZero() {
			labour = service.Price
		}
	} else {
		in.ServiceID = nil
	}
	fields, err := ValidateCustomFields(tx, models.TemplateEntityRepairJob, in.CustomFields)
	if err != nil {
		return nil, err
	}
	number, err := database.NextNumber(tx, database.SeqRepairJob)
	if err != nil {
		return nil, err
	}

	job := &models.RepairJob{
		Number:        number,
		CustomerID:    customer.Id,
		DeviceBrand:   strings.TrimSpace(in.DeviceBrand),
		DeviceModel:   strings.TrimSpace(in.DeviceModel),
		IMEI:          strings.TrimSpace(in.IMEI),
		Passcode:      in.Passcode,
		Issue:         strings.TrimSpace(in.Issue),
		Status:        models.RepairReceived,
		ServiceID:     in.ServiceID,
		EstimatedCost: utils.Round2(in.EstimatedCost),
		LabourCharge:  utils.Round2(labour),
		Deposit:       utils.Round2(in.Deposit),
		CustomFields:  fields,
	}
	if err := tx.Create(job).Error; err != nil {
		return nil, fmt.Errorf("create repair job: %w", err)
	}
	return job, nil
}

func lockRepairJob(tx *gorm.DB, id string) (*models.RepairJob, error) {
	var job models.RepairJob
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Parts", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&job, "id = ?", id).Error; err != nil {
		return nil, notFound("repair job", err)
	}
	return &job, nil
}

func LoadRepairJob(tx *gorm.DB, id string) (*models.RepairJob, error) {
	var job models.RepairJob
	if err := tx.Preload("Customer", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Preload("Parts", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&job, "id = ?", id).Error; err != nil {
		return nil, notFound("repair job", err)
	}
	return &job, nil
}

type RepairJobQuery struct {
	Status     string
	CustomerID string
	Search     string
	Limit      int
	Offset     int
}

func ListRepairJobs(tx *gorm.DB, q RepairJobQuery) ([]models.RepairJob, int64, error) {
	query := tx.Model(&models.RepairJob{})
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}
	if q.CustomerID != "" {
		query = query.Where("customer_id = ?", q.CustomerID)
	}
	if s := strings.ToLower(strings.TrimSpace(q.Search)); s != "" {
		like := "%" + s + "%"
		query = query.Where("LOWER(number) LIKE ? OR LOWER(device_model) LIKE ? OR LOWER(imei) LIKE ?", like, like, like)
	}
	query = query.Session(&gorm.Session{})
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count repair jobs: %w", err)
	}
	var jobs []models.RepairJob
	if err := query.Preload("Customer", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Order("created_at DESC").Scopes(paginate(q.Limit, q.Offset)).Find(&jobs).Error; err != nil {
		return nil, 0, fmt.Errorf("list repair jobs: %w", err)
	}
	return jobs, total, nil
}

// UpdateRepairJob applies a column map. Invoiced or closed jobs are frozen.
func UpdateRepairJob(tx *gorm.DB, id string, updates map[string]any, customFields map[string]any) (*models.RepairJob, error) {
	job, err := lockRepairJob(tx, id)
	if err != nil {
		return nil, err
	}
	if job.InvoiceID != nil || models.IsTerminalRepairStatus(job.Status) {
		return nil, fmt.Errorf("%w: repair job %s can no longer be edited", ErrInvalidState, job.Number)
	}
	for _, k := range []string{"id", "number", "status", "invoice_id", "customer_id", "completed_at", "collected_at"} {
		delete(updates, k)
	}
	for _, k := range []string{"estimated_cost", "labour_charge", "deposit"} {
		if v, ok := updates[k].(decimal.Decimal); ok {
			if v.IsNegative() {
				return nil, invalidf("%s must not be negative", k)
			}
			updates[k] = utils.Round2(v)
		}
	}
	if customFields != nil {
		fields, err := ValidateCustomFields(tx, models.TemplateEntityRepairJob, customFields)
		if err != nil {
			return nil, err
		}
		updates["custom_fields"] = fields
	}
	if len(updates) > 0 {
		if err := tx.Model(job).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update repair job: %w", err)
		}
	}
	return LoadRepairJob(tx, job.Id)
}

// SetRepairStatus moves a job along its status machine. Cancelling puts consumed parts back in stock.
func SetRepairStatus(tx *gorm.DB, id, status string) (*models.RepairJob, error) {
	job, err := lockRepairJob(tx, id)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(job.Status, status) {
		return nil, fmt.Errorf("%w: cannot move repair job from %s to %s", ErrInvalidState, job.Status, status)
	}
	if status == models.RepairCancelled && job.InvoiceID != nil {
		return nil, fmt.Errorf("%w: repair job %s is invoiced", ErrInvalidState, job.Number)
	}

	now := time.Now().UTC()
	updates := map[string]any{"status": status}
	switch status {
	case models.RepairCompleted:
		job.CompletedAt = &now
		updates["completed_at"] = now
	case models.RepairCollected:
		job.CollectedAt = &now
		updates["collected_at"] = now
	case models.RepairCancelled:
		for _, p := range job.Parts {
			if _, err := AddPartStock(tx.Unscoped(), p.PartID, StockIn{
				Quantity: p.Quantity,
				UnitCost: p.UnitCost,
				Note:     "cancelled " + job.Number,
			}); err != nil {
				return nil, err
			}
		}
		if err := tx.Where("repair_job_id = ?", job.Id).Delete(&models.RepairJobPart{}).Error; err != nil {
			return nil, fmt.Errorf("release parts: %w", err)
		}
		job.Parts = nil
	}
	job.Status = status
	if err := tx.Model(job).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update repair job: %w", err)
	}
	return job, nil
}

type RepairPartInput struct {
	PartID    string           `json:"part_id" validate:"required"`
	Quantity  int              `json:"quantity" validate:"required,gt=0"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
}

// AddRepairPart consumes stock for a job straight away at its FIFO cost.
func AddRepairPart(tx *gorm.DB, jobID string, in RepairPartInput) (*models.RepairJobPart, error) {
	job, err := lockRepairJob(tx, jobID)
	if err != nil {
		return nil, err
	}
	if job.InvoiceID != nil || models.IsTerminalRepairStatus(job.Status) {
		return nil, fmt.Errorf("%w: repair job %s is closed", ErrInvalidState, job.Number)
	}
	if in.UnitPrice != nil && in.UnitPrice.IsNegative() {
		return nil, invalidf("unit price must not be negative")
	}
	var part models.Part
	if err := tx.First(&part, "id = ?", in.PartID).Error; err != nil {
		return nil, notFound("part", err)
	}
	consumed, err := ConsumePartStock(tx, part.Id, in.Quantity)
	if err != nil {
		return nil, err
	}
	price := part.SellPrice
	if in.UnitPrice != nil {
		price = *in.UnitPrice
	}
	used := &models.RepairJobPart{
		RepairJobID: job.Id,
		PartID:      part.Id,
		Description: part.Name,
		Quantity:    in.Quantity,
		UnitCost:    consumed.UnitCost,
		UnitPrice:   utils.Round2(price),
	}
	if err := tx.Create(used).Error; err != nil {
		return nil, fmt.Errorf("create repair part: %w", err)
	}
	return used, nil
}

type RepairInvoiceInput struct {
	Paid          decimal.Decimal `json:"paid"`
	Discount      decimal.Decimal `json:"discount"`
	PaymentMethod string          `json:"payment_method" validate:"omitempty,max=32"`
}

// InvoiceRepairJob bills a completed job: one repair line for the labour plus a part line
// per used part. The parts are already out of stock. The deposit is taken as payment.
func InvoiceRepairJob(tx *gorm.DB, jobID string, in RepairInvoiceInput, taxRate decimal.Decimal) (*models.Invoice, error) {
	job, err := lockRepairJob(tx, jobID)
	if err != nil {
		return nil, err
	}
	if job.InvoiceID != nil {
		return nil, fmt.Errorf("%w: repair job %s is already invoiced", ErrInvalidState, job.Number)
	}
	if job.Status != models.RepairCompleted {
		return nil, fmt.Errorf("%w: repair job %s is %s, not completed", ErrInvalidState, job.Number, job.Status)
	}
	if in.Paid.IsNegative() {
		return nil, invalidf("paid must not be negative")
	}

	var items []models.InvoiceItem
	if job.LabourCharge.IsPositive() || len(job.Parts) == 0 {
		description := strings.TrimSpace("Repair " + job.DeviceBrand + " " + job.DeviceModel)
		if job.ServiceID != nil {
			var service models.Service
			if err := tx.Unscoped().First(&service, "id = ?", *job.ServiceID).Error; err == nil {
				description = service.Name + " - " + job.DeviceModel
			}
		}
		items = append(items, models.InvoiceItem{
			ItemType:    models.ItemTypeRepair,
			RefID:       &job.Id,
			Description: description,
			Quantity:    1,
			UnitPrice:   job.LabourCharge,
			LineTotal:   job.LabourCharge,
		})
	}
	for _, p := range job.Parts {
		partID := p.PartID
		items = append(items, models.InvoiceItem{
			ItemType:    models.ItemTypePart,
			RefID:       &partID,
			Description: p.Description,
			Quantity:    p.Quantity,
			UnitPrice:   p.UnitPrice,
			UnitCost:    p.UnitCost,
			LineTotal:   utils.Round2(p.UnitPrice.Mul(decimal.NewFromInt(int64(p.Quantity)))),
		})
	}

	inv, err := bookInvoice(tx, draftInvoice{
		invoice: &models.Invoice{
			CustomerID:    job.CustomerID,
			Type:          models.InvoiceTypeSale,
			Items:         items,
			Discount:      utils.Round2(in.Discount),
			TaxRate:       taxRate,
			PaymentMethod: strings.TrimSpace(in.PaymentMethod),
			Notes:         "Repair " + job.Number,
			RepairJobID:   &job.Id,
		},
		paid: job.Deposit.Add(in.Paid),
	})
	if err != nil {
		return nil, err
	}
	job.InvoiceID = &inv.Id
	if err := tx.Model(job).Update("invoice_id", inv.Id).Error; err != nil {
		return nil, fmt.Errorf("link invoice: %w", err)
	}
	return inv, nil
}

// DeleteRepairJob removes a job that never got going: received or cancelled, with no parts.
func DeleteRepairJob(tx *gorm.DB, id string) error {
	job, err := lockRepairJob(tx, id)
	if err != nil {
		return err
	}
	if job.Status != models.RepairReceived && job.Status != models.RepairCancelled {
		return fmt.Errorf("%w: repair job %s is %s", ErrConflict, job.Number, job.Status)
	}
	if len(job.Parts) > 0 || job.InvoiceID != nil {
		return fmt.Errorf("%w: repair job %s has parts or an invoice", ErrConflict, job.Number)
	}
	return tx.Delete(job).Error
}
