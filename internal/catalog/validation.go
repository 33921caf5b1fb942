package catalog

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Validation limits.
const (
	maxNameLength        = 100
	maxModelLength       = 64
	maxCategoryLength    = 32
	maxProductTypeLength = 64
	maxDimensionMM       = 1000
	maxDesignBytes       = 256 * 1024

	// DefaultPriority is used for mappings created without an explicit priority.
	DefaultPriority = 100
)

// ValidateTemplate checks a template before it is stored.
func ValidateTemplate(t *Template) error {
	if t == nil {
		return ErrInvalidTemplate
	}

	name := strings.TrimSpace(t.Name)
	if name == "" || len(name) > maxNameLength {
		return fmt.Errorf("%w: name must be 1-%d characters", ErrInvalidTemplate, maxNameLength)
	}
	if t.WidthMM <= 0 || t.WidthMM > maxDimensionMM || t.HeightMM <= 0 || t.HeightMM > maxDimensionMM {
		return fmt.Errorf("%w: dimensions must be between 0 and %dmm", ErrInvalidTemplate, maxDimensionMM)
	}
	if len(t.ProductTypeFilter) > maxProductTypeLength {
		return fmt.Errorf("%w: product type filter too long", ErrInvalidTemplate)
	}
	if len(t.Design) > maxDesignBytes {
		return fmt.Errorf("%w: design exceeds %d bytes", ErrInvalidTemplate, maxDesignBytes)
	}
	if len(t.Design) > 0 && !json.Valid(t.Design) {
		return fmt.Errorf("%w: design is not valid JSON", ErrInvalidTemplate)
	}
	return nil
}

// ValidateModelMapping checks the fields of a model mapping row.
func ValidateModelMapping(m *ModelMapping) error {
	if m == nil {
		return ErrInvalidMapping
	}
	if m.DeviceModel == "" || len(m.DeviceModel) > maxModelLength {
		return fmt.Errorf("%w: device model must be 1-%d characters", ErrInvalidMapping, maxModelLength)
	}
	return validateMappingCommon(m.TemplateID, m.Priority)
}

// ValidateTypeMapping checks the fields of a type mapping row.
// Whether Category is a known category is checked by the caller.
func ValidateTypeMapping(m *TypeMapping) error {
	if m == nil {
		return ErrInvalidMapping
	}
	if m.Category == "" || len(m.Category) > maxCategoryLength {
		return fmt.Errorf("%w: category must be 1-%d characters", ErrInvalidMapping, maxCategoryLength)
	}
	return validateMappingCommon(m.TemplateID, m.Priority)
}

func validateMappingCommon(templateID int64, priority int) error {
	if templateID <= 0 {
		return fmt.Errorf("%w: template_id is required", ErrInvalidMapping)
	}
	if priority < 0 {
		return fmt.Errorf("%w: priority must not be negative", ErrInvalidMapping)
	}
	return nil
}
