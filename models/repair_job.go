package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	RepairReceived      = "received"
	RepairDiagnosing    = "diagnosing"
	RepairAwaitingParts = "awaiting_parts"
	RepairInProgress    = "in_progress"
	RepairCompleted     = "completed"
	RepairCollected     = "collected"
	RepairCancelled     = "cancelled"
)

var repairTransitions = map[string][]string{
	RepairReceived:      {RepairDiagnosing, RepairCancelled},
	RepairDiagnosing:    {RepairAwaitingParts, RepairInProgress, RepairCancelled},
	RepairAwaitingParts: {RepairInProgress, RepairCancelled},
	RepairInProgress:    {RepairCompleted, RepairCancelled},
	RepairCompleted:     {RepairCollected, RepairCancelled},
}

// CanTransition reports whether a job may move from one status to another.
func CanTransition(from, to string) bool {
	for _, next := range repairTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminalRepairStatus reports whether no further transitions are allowed.
func IsTerminalRepairStatus(status string) bool {
	return status == RepairCollected || status == RepairCancelled
}

// RepairJob is a device booked in for repair.
type RepairJob struct {
	Id            string          `json:"id" gorm:"primaryKey;size:36"`
	Number        string          `json:"number" gorm:"uniqueIndex;not null"`
	CustomerID    string          `json:"customer_id" gorm:"size:36;not null;index"`
	Customer      *Customer       `json:"customer,omitempty" gorm:"foreignKey:CustomerID"`
	DeviceBrand   string          `json:"device_brand"`
	DeviceModel   string          `json:"device_model" gorm:"not null"`
	IMEI          string          `json:"imei" gorm:"index"`
	Passcode      string          `json:"passcode,omitempty"`
	Issue         string          `json:"issue" gorm:"not null"`
	Diagnosis     string          `json:"diagnosis"`
	Status        string          `json:"status" gorm:"size:24;not null;index"`
	ServiceID     *string         `json:"service_id,omitempty" gorm:"size:36"`
	EstimatedCost decimal.Decimal `json:"estimated_cost" gorm:"type:numeric(12,2);not null;default:0"`
	LabourCharge  decimal.Decimal `json:"labour_charge" gorm:"type:numeric(12,2);not null;default:0"`
	Deposit       decimal.Decimal `json:"deposit" gorm:"type:numeric(12,2);not null;default:0"`
	Parts         []RepairJobPart `json:"parts" gorm:"foreignKey:RepairJobID;constraint:OnDelete:CASCADE"`
	CustomFields  datatypes.JSON  `json:"custom_fields,omitempty"`
	InvoiceID     *string         `json:"invoice_id,omitempty" gorm:"size:36"`
	CreatedAt     time.Time       `json:"created_at" gorm:"index"`
	UpdatedAt     time.Time       `json:"updated_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	CollectedAt   *time.Time      `json:"collected_at,omitempty"`
}

func (job *RepairJob) BeforeCreate(tx *gorm.DB) (err error) {
	assignID(&job.Id)
	if job.Status == "" {
		job.Status = RepairReceived
	}
	return
}

// RepairJobPart is a part consumed by a repair job at its FIFO cost.
type RepairJobPart struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	RepairJobID string          `json:"-" gorm:"size:36;not null;index"`
	PartID      string          `json:"part_id" gorm:"size:36;not null;index"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity" gorm:"not null"`
	UnitCost    decimal.Decimal `json:"unit_cost" gorm:"type:numeric(12,2);not null"`
	UnitPrice   decimal.Decimal `json:"unit_price" gorm:"type:numeric(12,2);not null"`
	CreatedAt   time.Time       `json:"created_at"`
}
