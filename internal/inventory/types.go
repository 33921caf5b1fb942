package inventory

import (
	"time"

	"github.com/nerrad567/devicelabel-core/internal/matching"
)

// Connection is a tenant backed by one Meraki organization.
type Connection struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	OrganizationID string     `json:"meraki_org_id"`
	APIKey         string     `json:"-"`
	LastSyncedAt   *time.Time `json:"last_synced_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Device is one inventory row for a connection.
type Device struct {
	ConnectionID string    `json:"connection_id"`
	Serial       string    `json:"serial"`
	Name         string    `json:"name"`
	Model        string    `json:"model"`
	ProductType  string    `json:"product_type"`
	NetworkID    string    `json:"network_id,omitempty"`
	MAC          string    `json:"mac,omitempty"`
	Firmware     string    `json:"firmware,omitempty"`
	LanIP        string    `json:"lan_ip,omitempty"`
	SyncedAt     time.Time `json:"synced_at"`
}

// MatchDevice returns the fields the template resolver reads.
func (d Device) MatchDevice() matching.Device {
	return matching.Device{
		Serial:      d.Serial,
		Model:       d.Model,
		ProductType: d.ProductType,
		TenantID:    d.ConnectionID,
	}
}

// SyncResult summarises one connection sync.
type SyncResult struct {
	ConnectionID string        `json:"connection_id"`
	Devices      int           `json:"devices"`
	Removed      int           `json:"removed"`
	SyncedAt     time.Time     `json:"synced_at"`
	Duration     time.Duration `json:"duration_ns"`
	Error        string        `json:"error,omitempty"`
}
