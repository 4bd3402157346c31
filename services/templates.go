package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"repairshop-backend/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ActiveTemplate returns the template for an entity type, or nil when none is defined.
func ActiveTemplate(tx *gorm.DB, entityType string) (*models.FieldTemplate, error) {
	var tpl models.FieldTemplate
	err := tx.Where("entity_type = ?", entityType).Order("created_at DESC").First(&tpl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load field template: %w", err)
	}
	return &tpl, nil
}

// CheckTemplateFields validates the definitions of a template before it is saved.
func CheckTemplateFields(fields []models.FieldDefinition) error {
	seen := map[string]bool{}
	for _, f := range fields {
		key := strings.TrimSpace(f.Key)
		if key == "" {
			return invalidf("field key is required")
		}
		if seen[key] {
			return invalidf("duplicate field key %q", key)
		}
		seen[key] = true
		if f.Type == models.FieldTypeSelect && len(f.Options) == 0 {
			return invalidf("select field %q needs options", key)
		}
	}
	return nil
}

// ValidateCustomFields checks values against the entity's template and returns them as JSON.
// Without a template any object is accepted.
func ValidateCustomFields(tx *gorm.DB, entityType string, values map[string]any) (datatypes.JSON, error) {
	tpl, err := ActiveTemplate(tx, entityType)
	if err != nil {
		return nil, err
	}
	if tpl != nil {
		if err := CheckValues(tpl.Fields, values); err != nil {
			return nil, err
		}
	}
	if len(values) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return nil, invalidf("custom fields: %v", err)
	}
	return datatypes.JSON(raw), nil
}

// CheckValues enforces required keys, value types, select options and rejects unknown keys.
func CheckValues(fields []models.FieldDefinition, values map[string]any) error {
	known := make(map[string]models.FieldDefinition, len(fields))
	for _, f := range fields {
		known[f.Key] = f
	}
	for key := range values {
		if _, ok := known[key]; !ok {
			return invalidf("unknown custom field %q", key)
		}
	}

	for _, f := range fields {
		v, present := values[f.Key]
		if !present || v == nil || v == "" {
			if f.Required {
				return invalidf("custom field %q is required", f.Key)
			}
			continue
		}
		switch f.Type {
		case models.FieldTypeNumber:
			if _, ok := v.(float64); !ok {
				return invalidf("custom field %q must be a number", f.Key)
			}
		case models.FieldTypeBool:
			if _, ok := v.(bool); !ok {
				return invalidf("custom field %q must be true or false", f.Key)
			}
		case models.FieldTypeSelect:
			s, ok := v.(string)
			if !ok || !slices.Contains(f.Options, s) {
				return invalidf("custom field %q must be one of %s", f.Key, strings.Join(f.Options, ", "))
			}
		default:
			if _, ok := v.(string); !ok {
				return invalidf("custom field %q must be text", f.Key)
			}
		}
	}
	return nil
}

// SaveFieldTemplate creates or replaces a template. Only one template may exist per entity type.
func SaveFieldTemplate(tx *gorm.DB, tpl *models.FieldTemplate) (*models.FieldTemplate, error) {
	if tpl.EntityType != models.TemplateEntityRepairJob && tpl.EntityType != models.TemplateEntityProduct {
		return nil, invalidf("unknown entity type %q", tpl.EntityType)
	}
	for i := range tpl.Fields {
		tpl.Fields[i].Key = strings.TrimSpace(tpl.Fields[i].Key)
	}
	if err := CheckTemplateFields(tpl.Fields); err != nil {
		return nil, err
	}

	var clash int64
	query := tx.Model(&models.FieldTemplate{}).Where("entity_type = ?", tpl.EntityType)
	if tpl.Id != "" {
		query = query.Where("id <> ?", tpl.Id)
	}
	if err := query.Count(&clash).Error; err != nil {
		return nil, fmt.Errorf("count field templates: %w", err)
	}
	if clash > 0 {
		return nil, fmt.Errorf("%w: a %s template already exists", ErrConflict, tpl.EntityType)
	}
	if err := tx.Save(tpl).Error; err != nil {
		return nil, fmt.Errorf("save field template: %w", err)
	}
	return tpl, nil
}
