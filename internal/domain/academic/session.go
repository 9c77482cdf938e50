package academic

import (
	"strings"
	"time"

	"github.com/feeledger/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Session is an academic year of a tenant. At most one session per tenant
// is active at any time.
type Session struct {
	shared.TenantAggregateRoot
	Name     string
	Active   bool
	StartsOn *time.Time
	EndsOn   *time.Time
}

// NewSession creates an inactive session
func NewSession(tenantID uuid.UUID, name string, startsOn, endsOn *time.Time) (*Session, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_TENANT", "Tenant ID is required")
	}
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 100 {
		return nil, shared.NewValidationError("INVALID_SESSION_NAME", "Session name must be 1-100 characters")
	}
	if startsOn != nil && endsOn != nil && endsOn.Before(*startsOn) {
		return nil, shared.NewValidationError("INVALID_SESSION_RANGE", "Session cannot end before it starts")
	}
	return &Session{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Name:                name,
		StartsOn:            startsOn,
		EndsOn:              endsOn,
	}, nil
}

// Scope returns the explicit scope value for this session
func (s *Session) Scope() Scope {
	return Scope{TenantID: s.TenantID, SessionID: s.ID}
}
