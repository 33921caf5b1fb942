// Package meraki is a minimal client for the Meraki Dashboard API.
//
// Only the organization device inventory endpoint is covered. Each call takes
// the API key of the connection it runs for, so one Client serves every
// tenant. Pagination follows the Link header (rel=next) until the last page.
//
// # Usage
//
//	client := meraki.NewClient(cfg.Meraki)
//	devices, err := client.ListOrganizationDevices(ctx, conn.APIKey, conn.OrganizationID)
//
// Rate limiting (HTTP 429) and server errors are retried by the underlying
// resty client up to the configured retry count.
package meraki
