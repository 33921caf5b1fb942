package catalog

import (
	"encoding/json"
	"time"
)

// Template is a sized label design. The resolver only reads its identity,
// scope, default flag and product-type filter; Design is opaque here.
type Template struct {
	ID                int64           `json:"id"`
	Scope             Scope           `json:"scope"`
	Name              string          `json:"name"`
	IsDefault         bool            `json:"is_default"`
	IsSystem          bool            `json:"is_system"`
	ProductTypeFilter string          `json:"product_type_filter,omitempty"`
	WidthMM           float64         `json:"width_mm"`
	HeightMM          float64         `json:"height_mm"`
	Design            json.RawMessage `json:"design,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// DeepCopy returns a copy that shares no memory with t.
func (t *Template) DeepCopy() *Template {
	if t == nil {
		return nil
	}
	cp := *t
	if t.Design != nil {
		cp.Design = append(json.RawMessage(nil), t.Design...)
	}
	return &cp
}

// ModelMapping binds an exact device model string to a template.
// Lower Priority wins.
type ModelMapping struct {
	ID          int64     `json:"id"`
	Scope       Scope     `json:"scope"`
	DeviceModel string    `json:"device_model"`
	TemplateID  int64     `json:"template_id"`
	Priority    int       `json:"priority"`
	Template    Template  `json:"template"`
	CreatedAt   time.Time `json:"created_at"`
}

// TypeMapping binds a device category (see matching.Classify) to a template.
// Lower Priority wins.
type TypeMapping struct {
	ID         int64     `json:"id"`
	Scope      Scope     `json:"scope"`
	Category   string    `json:"category"`
	TemplateID int64     `json:"template_id"`
	Priority   int       `json:"priority"`
	Template   Template  `json:"template"`
	CreatedAt  time.Time `json:"created_at"`
}
