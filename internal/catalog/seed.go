package catalog

import (
	"context"
	"encoding/json"
	"fmt"
)

// Built-in system template dimensions (a common 62mm continuous label roll).
const (
	systemTemplateName     = "Standard 62x29mm"
	systemTemplateWidthMM  = 62
	systemTemplateHeightMM = 29
)

// systemTemplateDesign prints the device name, model and serial.
var systemTemplateDesign = json.RawMessage(`{"elements":[` +
	`{"type":"text","field":"name","x":2,"y":2,"font_size":10},` +
	`{"type":"text","field":"model","x":2,"y":12,"font_size":8},` +
	`{"type":"text","field":"serial","x":2,"y":20,"font_size":8}]}`)

// SeedSystem creates the built-in global default template when the catalog
// has no global templates. It reports whether a template was created and is
// safe to run on every start.
func SeedSystem(ctx context.Context, repo Repository) (bool, error) {
	existing, err := repo.VisibleTemplates(ctx, "")
	if err != nil {
		return false, fmt.Errorf("checking global templates: %w", err)
	}
	if len(existing) > 0 {
		return false, nil
	}

	t := &Template{
		Scope:     Global(),
		Name:      systemTemplateName,
		IsDefault: true,
		IsSystem:  true,
		WidthMM:   systemTemplateWidthMM,
		HeightMM:  systemTemplateHeightMM,
		Design:    systemTemplateDesign,
	}
	if err := repo.CreateTemplate(ctx, t); err != nil {
		return false, fmt.Errorf("creating system template: %w", err)
	}
	return true, nil
}
