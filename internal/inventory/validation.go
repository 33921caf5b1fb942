package inventory

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	maxNameLength = 100
	maxIDLength   = 64
	idPattern     = `^[a-z0-9]+(?:-[a-z0-9]+)*$`
)

var idRegex = regexp.MustCompile(idPattern)

// ValidateConnection checks a connection before it is stored.
func ValidateConnection(c *Connection) error {
	if c == nil {
		return fmt.Errorf("%w: connection is nil", ErrInvalidConnection)
	}
	if len(c.ID) > maxIDLength || !idRegex.MatchString(c.ID) {
		return fmt.Errorf("%w: id %q must be lowercase alphanumeric with hyphens, at most %d characters", ErrInvalidConnection, c.ID, maxIDLength)
	}
	name := strings.TrimSpace(c.Name)
	if name == "" || len(name) > maxNameLength {
		return fmt.Errorf("%w: name must be 1-%d characters", ErrInvalidConnection, maxNameLength)
	}
	if strings.TrimSpace(c.OrganizationID) == "" {
		return fmt.Errorf("%w: meraki organization id is required", ErrInvalidConnection)
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: api key is required", ErrInvalidConnection)
	}
	return nil
}
