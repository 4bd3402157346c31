package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Service is a priced repair service offered over the counter (screen swap, battery...).
type Service struct {
	Id              string          `json:"id" gorm:"primaryKey;size:36"`
	Name            string          `json:"name" gorm:"not null;uniqueIndex"`
	Description     string          `json:"description"`
	Price           decimal.Decimal `json:"price" gorm:"type:numeric(12,2);not null;default:0"`
	DurationMinutes int             `json:"duration_minutes"`
	Active          bool            `json:"active" gorm:"not null;default:true"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	DeletedAt       gorm.DeletedAt  `json:"-" gorm:"index"`
}

func (service *Service) BeforeCreate(tx *gorm.DB) (err error) {
	assignID(&service.Id)
	return
}

const (
	TemplateEntityRepairJob = "repair_job"
	TemplateEntityProduct   = "product"
)

const (
	FieldTypeText   = "text"
	FieldTypeNumber = "number"
	FieldTypeBool   = "bool"
	FieldTypeSelect = "select"
)

// FieldDefinition describes one custom field of a FieldTemplate.
type FieldDefinition struct {
	Key      string   `json:"key" validate:"required,max=64"`
	Label    string   `json:"label" validate:"required"`
	Type     string   `json:"type" validate:"required,oneof=text number bool select"`
	Required bool     `json:"required"`
	Options  []string `json:"options,omitempty"`
}

// FieldTemplate defines the custom fields captured for repair jobs or products.
type FieldTemplate struct {
	Id         string                               `json:"id" gorm:"primaryKey;size:36"`
	EntityType string                               `json:"entity_type" gorm:"size:32;not null;index"`
	Name       string                               `json:"name" gorm:"not null"`
	Fields     datatypes.JSONSlice[FieldDefinition] `json:"fields"`
	CreatedAt  time.Time                            `json:"created_at"`
	UpdatedAt  time.Time                            `json:"updated_at"`
	DeletedAt  gorm.DeletedAt                       `json:"-" gorm:"index"`
}

func (template *FieldTemplate) BeforeCreate(tx *gorm.DB) (err error) {
	assignID(&template.Id)
	return
}
