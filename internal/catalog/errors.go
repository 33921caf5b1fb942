package catalog

import "errors"

// Domain errors for the catalog package.
var (
	// ErrTemplateNotFound is returned when a template ID does not exist or is
	// not owned by the requesting scope.
	ErrTemplateNotFound = errors.New("catalog: template not found")

	// ErrMappingNotFound is returned when a mapping ID does not exist or is
	// not owned by the requesting scope.
	ErrMappingNotFound = errors.New("catalog: mapping not found")

	// ErrInvalidTemplate is returned when template validation fails.
	ErrInvalidTemplate = errors.New("catalog: invalid template")

	// ErrInvalidMapping is returned when mapping validation fails.
	ErrInvalidMapping = errors.New("catalog: invalid mapping")

	// ErrSystemTemplate is returned when attempting to delete or alter a
	// seeded system template.
	ErrSystemTemplate = errors.New("catalog: system templates are immutable")
)
