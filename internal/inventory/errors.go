package inventory

import "errors"

// Domain errors for the inventory package.
var (
	// ErrConnectionNotFound is returned when a connection ID does not exist.
	ErrConnectionNotFound = errors.New("inventory: connection not found")

	// ErrConnectionExists is returned when creating a connection with an ID that already exists.
	ErrConnectionExists = errors.New("inventory: connection already exists")

	// ErrInvalidConnection is returned when connection validation fails.
	ErrInvalidConnection = errors.New("inventory: invalid connection")

	// ErrDeviceNotFound is returned when a serial is not in a connection's inventory.
	ErrDeviceNotFound = errors.New("inventory: device not found")
)
