package academic

import (
	"strings"

	"github.com/feeledger/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Tenant is a school. It owns the pointer to its current academic session,
// which session rotation moves forward.
type Tenant struct {
	shared.BaseAggregateRoot
	Code             string
	Name             string
	CurrentSessionID *uuid.UUID
}

// NewTenant creates a new tenant with required fields
func NewTenant(code, name string) (*Tenant, error) {
	code = strings.TrimSpace(code)
	if code == "" || len(code) > 50 {
		return nil, shared.NewValidationError("INVALID_TENANT_CODE", "Tenant code must be 1-50 characters")
	}
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 200 {
		return nil, shared.NewValidationError("INVALID_TENANT_NAME", "Tenant name must be 1-200 characters")
	}
	return &Tenant{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Code:              strings.ToUpper(code),
		Name:              name,
	}, nil
}

// PointTo moves the current-session pointer
func (t *Tenant) PointTo(sessionID uuid.UUID) {
	t.CurrentSessionID = &sessionID
	t.Touch()
	t.IncrementVersion()
}

// ClearPointer drops the current-session pointer
func (t *Tenant) ClearPointer() {
	t.CurrentSessionID = nil
	t.Touch()
	t.IncrementVersion()
}
