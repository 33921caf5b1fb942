package matching

import "errors"

// Domain errors for the matching package.
var (
	// ErrNoTemplatesAvailable is returned when no template at all is visible
	// to the tenant. It is a configuration error: an operator must seed a
	// template. It is never cached, so resolution recovers as soon as one exists.
	ErrNoTemplatesAvailable = errors.New("matching: no templates available")

	// ErrTenantMismatch is returned when a device is resolved on behalf of a
	// tenant that does not own it.
	ErrTenantMismatch = errors.New("matching: device belongs to another tenant")
)
