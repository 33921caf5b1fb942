package mqtt

import "fmt"

// Topic prefixes. Every topic this service touches lives under devicelabel/.
const (
	// TopicPrefix is the root of the topic tree.
	TopicPrefix = "devicelabel"

	// TopicPrefixSystem is the base for service lifecycle topics.
	TopicPrefixSystem = "devicelabel/system"
)

// Topics provides builders for device label MQTT topics.
//
//	topic := mqtt.Topics{}.InventorySynced("conn-acme")
//	// Returns: "devicelabel/inventory/conn-acme/synced"
type Topics struct{}

// InventorySynced is published after a connection's device list is refreshed.
//
// Example: devicelabel/inventory/conn-acme/synced
func (Topics) InventorySynced(connectionID string) string {
	return fmt.Sprintf("%s/inventory/%s/synced", TopicPrefix, connectionID)
}

// SyncRequest is subscribed to; a message asks for one connection to be synced.
//
// Example: devicelabel/inventory/conn-acme/sync
func (Topics) SyncRequest(connectionID string) string {
	return fmt.Sprintf("%s/inventory/%s/sync", TopicPrefix, connectionID)
}

// MatchResolved carries one template resolution for a tenant.
//
// Example: devicelabel/match/conn-acme/resolved
func (Topics) MatchResolved(tenantID string) string {
	return fmt.Sprintf("%s/match/%s/resolved", TopicPrefix, tenantID)
}

// SystemStatus is the retained online/offline topic (also the LWT).
//
// Example: devicelabel/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// AllSyncRequests matches sync requests for every connection.
//
// Example: devicelabel/inventory/+/sync
func (Topics) AllSyncRequests() string {
	return TopicPrefix + "/inventory/+/sync"
}

// AllMatches matches resolution events for every tenant.
//
// Example: devicelabel/match/+/resolved
func (Topics) AllMatches() string {
	return TopicPrefix + "/match/+/resolved"
}

// ConnectionFromSyncRequest extracts the connection ID from a sync request
// topic. It reports false for any other topic.
func ConnectionFromSyncRequest(topic string) (string, bool) {
	var id string
	const prefix = TopicPrefix + "/inventory/"
	const suffix = "/sync"
	if len(topic) <= len(prefix)+len(suffix) || topic[:len(prefix)] != prefix || topic[len(topic)-len(suffix):] != suffix {
		return "", false
	}
	id = topic[len(prefix) : len(topic)-len(suffix)]
	for i := 0; i < len(id); i++ {
		if id[i] == '/' || id[i] == '+' || id[i] == '#' {
			return "", false
		}
	}
	return id, true
}
