package matching

import "strings"

// Category is a coarse device classification derived from a model string.
type Category string

// Device categories.
const (
	CategorySwitch      Category = "switch"
	CategoryAccessPoint Category = "accessPoint"
	CategoryGateway     Category = "gateway"
	CategoryAppliance   Category = "appliance"
	CategoryCamera      Category = "camera"
	CategorySensor      Category = "sensor"
	CategoryCellular    Category = "cellular"
	CategoryUnknown     Category = "unknown"
)

// AllCategories returns every category, including CategoryUnknown.
func AllCategories() []Category {
	return []Category{
		CategorySwitch,
		CategoryAccessPoint,
		CategoryGateway,
		CategoryAppliance,
		CategoryCamera,
		CategorySensor,
		CategoryCellular,
		CategoryUnknown,
	}
}

// ParseCategory validates a category name as stored in type mappings.
func ParseCategory(s string) (Category, bool) {
	for _, c := range AllCategories() {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// classifierRules is ordered: the first matching prefix wins, so longer or
// more specific prefixes must precede shorter ones that would shadow them
// (VMX before MX).
var classifierRules = []struct {
	prefix   string
	category Category
}{
	{"VMX", CategoryAppliance},
	{"MS", CategorySwitch},
	{"C9", CategorySwitch},
	{"MR", CategoryAccessPoint},
	{"CW", CategoryAccessPoint},
	{"MX", CategoryGateway},
	{"Z", CategoryAppliance},
	{"MV", CategoryCamera},
	{"MT", CategorySensor},
	{"MG", CategoryCellular},
}

// Classify maps a raw model string to a Category by case-insensitive prefix.
// Empty or unrecognised models are CategoryUnknown.
func Classify(model string) Category {
	m := strings.ToUpper(strings.TrimSpace(model))
	if m == "" {
		return CategoryUnknown
	}
	for _, rule := range classifierRules {
		if strings.HasPrefix(m, rule.prefix) {
			return rule.category
		}
	}
	return CategoryUnknown
}
