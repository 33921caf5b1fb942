package matching

import (
	"time"

	"github.com/nerrad567/devicelabel-core/internal/catalog"
)

// Device is the part of a device record the resolver reads.
type Device struct {
	Serial      string `json:"serial,omitempty"`
	Model       string `json:"model"`
	ProductType string `json:"product_type,omitempty"`
	TenantID    string `json:"tenant_id,omitempty"`
}

// Reason names the cascade step that produced a match.
type Reason string

// Match reasons.
const (
	ReasonModelMatch    Reason = "model_match"
	ReasonTypeMatch     Reason = "type_match"
	ReasonUserDefault   Reason = "user_default"
	ReasonSystemDefault Reason = "system_default"
	ReasonFallback      Reason = "fallback"
)

// Confidence values per cascade step. Display only; never used for ordering.
const (
	ConfidenceModel         = 1.0
	ConfidenceType          = 0.8
	ConfidenceProductType   = 0.75
	ConfidenceUserDefault   = 0.5
	ConfidenceSystemDefault = 0.3
	ConfidenceFallback      = 0.1
)

// MatchResult is the outcome of resolving one device for one tenant.
type MatchResult struct {
	Template   catalog.Template `json:"template"`
	Reason     Reason           `json:"reason"`
	Confidence float64          `json:"confidence"`
	// MatchedBy is the literal value that triggered the match: the model,
	// the category, the product type, or empty for defaults and fallback.
	MatchedBy string `json:"matched_by,omitempty"`
}

// deepCopy returns a result that shares no memory with r.
func (r MatchResult) deepCopy() MatchResult {
	r.Template = *r.Template.DeepCopy()
	return r
}

// Observation describes one Resolve call for an Observer.
type Observation struct {
	TenantID string
	Device   Device
	Result   MatchResult // zero when Err is set
	CacheHit bool
	Duration time.Duration
	Err      error
}
