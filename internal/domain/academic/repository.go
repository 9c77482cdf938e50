package academic

import (
	"context"

	"github.com/google/uuid"
)

// TenantRepository persists tenants
type TenantRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	FindByCode(ctx context.Context, code string) (*Tenant, error)
	FindAll(ctx context.Context) ([]Tenant, error)
	Save(ctx context.Context, tenant *Tenant) error
}

// SessionRepository persists academic sessions
type SessionRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Session, error)
	FindByTenant(ctx context.Context, tenantID uuid.UUID) ([]Session, error)
	// FindActive returns the tenant's active sessions. More than one is a
	// data error the resolver reports as no active session.
	FindActive(ctx context.Context, tenantID uuid.UUID) ([]Session, error)
	Save(ctx context.Context, session *Session) error
	// Activate marks sessionID active and every sibling inactive
	Activate(ctx context.Context, tenantID, sessionID uuid.UUID) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// RosterProvider reads enrolled students of a session
type RosterProvider interface {
	ListActive(ctx context.Context, scope Scope) ([]Student, error)
	ListActiveByClass(ctx context.Context, scope Scope, class string) ([]Student, error)
	FindByIDs(ctx context.Context, scope Scope, ids []uuid.UUID) ([]Student, error)
	FindByID(ctx context.Context, scope Scope, id uuid.UUID) (*Student, error)
}

// RosterWriter enrolls students. The fee engine only needs it for seeding and
// tests; production rosters are managed elsewhere.
type RosterWriter interface {
	Enroll(ctx context.Context, student *Student) error
}
