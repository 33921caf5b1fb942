// Package inventory stores Meraki connections and their device lists.
//
// A connection is a tenant: one Meraki organization with its API key. Each
// tenant's labels, mappings and devices hang off the connection ID.
//
// Devices are refreshed wholesale by Syncer: the organization inventory is
// fetched from the Dashboard API and replaces the stored rows for that
// connection in one transaction, so readers never see a half-synced list.
//
// # Usage
//
//	repo := inventory.NewSQLiteRepository(db.DB)
//	syncer := inventory.NewSyncer(repo, meraki.NewClient(cfg.Meraki))
//	syncer.SetPublisher(mqttClient)
//
//	result, err := syncer.Sync(ctx, "conn-acme")
//
// # Thread Safety
//
// SQLiteRepository and Syncer are safe for concurrent use. SyncAll syncs
// connections in parallel, bounded by the given concurrency.
package inventory
