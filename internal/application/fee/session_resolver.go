package fee

import (
	"context"
	"errors"

	"github.com/feeledger/backend/internal/domain/academic"
	"github.com/feeledger/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionResolver turns a tenant (and an optional explicit session) into the
// Scope every fee operation runs in.
type SessionResolver struct {
	tenants  academic.TenantRepository
	sessions academic.SessionRepository
	logger   *zap.Logger
}

// NewSessionResolver creates a SessionResolver
func NewSessionResolver(repos Repositories, logger *zap.Logger) *SessionResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionResolver{
		tenants:  repos.Tenants(),
		sessions: repos.Sessions(),
		logger:   logger,
	}
}

// Resolve picks the session in this order: the override when it belongs to
// the tenant, the tenant's current-session pointer, then the tenant's single
// active session. Anything else is ErrNoActiveSession. Only read-only flows
// pass an override.
func (r *SessionResolver) Resolve(ctx context.Context, tenantID uuid.UUID, override *uuid.UUID) (academic.Scope, error) {
	if tenantID == uuid.Nil {
		return academic.Scope{}, academic.ErrNoActiveSession
	}

	if override != nil && *override != uuid.Nil {
		session, err := r.sessions.FindByID(ctx, tenantID, *override)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				r.logger.Warn("session override rejected",
					zap.String("tenant_id", tenantID.String()),
					zap.String("session_id", override.String()))
				return academic.Scope{}, academic.ErrForeignSession
			}
			return academic.Scope{}, err
		}
		return session.Scope(), nil
	}

	tenant, err := r.tenants.FindByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return academic.Scope{}, academic.ErrNoActiveSession
		}
		return academic.Scope{}, err
	}

	if tenant.CurrentSessionID != nil {
		session, err := r.sessions.FindByID(ctx, tenantID, *tenant.CurrentSessionID)
		switch {
		case err == nil:
			return session.Scope(), nil
		case errors.Is(err, shared.ErrNotFound):
			r.logger.Warn("current session pointer is stale, falling back to active session",
				zap.String("tenant_id", tenantID.String()),
				zap.String("session_id", tenant.CurrentSessionID.String()))
		default:
			return academic.Scope{}, err
		}
	}

	active, err := r.sessions.FindActive(ctx, tenantID)
	if err != nil {
		return academic.Scope{}, err
	}
	switch len(active) {
	case 1:
		return active[0].Scope(), nil
	case 0:
		return academic.Scope{}, academic.ErrNoActiveSession
	default:
		return academic.Scope{}, academic.ErrNoActiveSession.WithMessage("no active session for tenant: more than one session is flagged active")
	}
}
