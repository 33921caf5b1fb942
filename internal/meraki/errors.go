package meraki

import "errors"

// Sentinel errors for Dashboard API calls.
var (
	// ErrUnauthorized indicates the API key was rejected (401 or 403).
	ErrUnauthorized = errors.New("meraki: unauthorized")

	// ErrNotFound indicates the organization does not exist or is not visible to the key.
	ErrNotFound = errors.New("meraki: not found")

	// ErrRequestFailed indicates any other non-2xx response or transport failure.
	ErrRequestFailed = errors.New("meraki: request failed")

	// ErrMissingCredentials indicates an empty API key or organization ID.
	ErrMissingCredentials = errors.New("meraki: missing api key or organization id")
)
