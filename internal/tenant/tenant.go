// Package tenant establishes the isolated execution scope for one unit of
// work: tenant id validation, membership authorization, and the scoped
// transactional context that drives row-level security downstream.
package tenant

import (
	"strings"

	dErrors "syncline/pkg/domain-errors"
)

// IDLength is the fixed length of a tenant id.
const IDLength = 8

// ParseTenantID normalizes and validates a raw tenant id path parameter.
// Input is case-insensitive; the canonical form is lowercase alphanumeric of
// exactly IDLength characters. An invalid id never reaches the storage layer.
func ParseTenantID(raw string) (string, error) {
	if raw == "" {
		return "", dErrors.New(dErrors.CodeInvalidRequest, "tenant id is required")
	}
	id := strings.ToLower(raw)
	if len(id) != IDLength {
		return "", dErrors.Newf(dErrors.CodeInvalidRequest, "tenant id must be %d characters", IDLength)
	}
	for _, r := range id {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return "", dErrors.New(dErrors.CodeInvalidRequest, "tenant id must be lowercase alphanumeric")
		}
	}
	return id, nil
}
