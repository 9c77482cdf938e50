package fee

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/feeledger/backend/internal/domain/academic"
	"github.com/feeledger/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// sessionPurger deletes every row of one entity type that belongs to a session
type sessionPurger interface {
	PurgeSession(ctx context.Context, scope academic.Scope) (int64, error)
}

// sessionPurgeStep is one entry of the deletion registry
type sessionPurgeStep struct {
	entity string
	store  func(Repositories) sessionPurger
}

// sessionPurgeOrder lists every session-owned entity, children before
// parents. Adding a session-scoped table means adding it here.
var sessionPurgeOrder = []sessionPurgeStep{
	{entity: "payment_orders", store: func(r Repositories) sessionPurger { return r.Orders() }},
	{entity: "occasional_charges", store: func(r Repositories) sessionPurger { return r.Charges() }},
	{entity: "student_dues", store: func(r Repositories) sessionPurger { return r.Dues() }},
	{entity: "fee_schedules", store: func(r Repositories) sessionPurger { return r.Schedules() }},
	{entity: "students", store: func(r Repositories) sessionPurger { return r.Roster() }},
}

// PurgeCount reports how many rows of one entity a session deletion removed
type PurgeCount struct {
	Entity  string `json:"entity"`
	Deleted int64  `json:"deleted"`
}

// CreateSessionInput holds the fields of a new session
type CreateSessionInput struct {
	Name     string
	StartsOn *time.Time
	EndsOn   *time.Time
	Activate bool
}

// SessionService manages tenants and the lifecycle of their academic sessions
type SessionService struct {
	repos   Repositories
	txScope TransactionScope
	logger  *zap.Logger
}

// NewSessionService creates a SessionService
func NewSessionService(repos Repositories, txScope TransactionScope, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{repos: repos, txScope: txScope, logger: logger}
}

// RegisterTenant creates a tenant row holding the session pointer
func (s *SessionService) RegisterTenant(ctx context.Context, code, name string) (*academic.Tenant, error) {
	tenant, err := academic.NewTenant(code, name)
	if err != nil {
		return nil, err
	}
	if _, err := s.repos.Tenants().FindByCode(ctx, tenant.Code); err == nil {
		return nil, academic.ErrTenantCodeTaken
	} else if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	if err := s.repos.Tenants().Save(ctx, tenant); err != nil {
		return nil, fmt.Errorf("save tenant: %w", err)
	}
	s.logger.Info("tenant registered", zap.String("tenant_id", tenant.ID.String()), zap.String("code", tenant.Code))
	return tenant, nil
}

// CreateSession creates a session. It is activated when asked to or when the
// tenant has no session yet.
func (s *SessionService) CreateSession(ctx context.Context, tenantID uuid.UUID, in CreateSessionInput) (*academic.Session, error) {
	session, err := academic.NewSession(tenantID, in.Name, in.StartsOn, in.EndsOn)
	if err != nil {
		return nil, err
	}
	err = s.txScope.Execute(ctx, func(repos Repositories) error {
		tenant, err := repos.Tenants().FindByID(ctx, tenantID)
		if err != nil {
			return fmt.Errorf("load tenant: %w", err)
		}
		existing, err := repos.Sessions().FindByTenant(ctx, tenantID)
		if err != nil {
			return err
		}
		if err := repos.Sessions().Save(ctx, session); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
		if in.Activate || len(existing) == 0 {
			return activate(ctx, repos, tenant, session)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("session created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("session_id", session.ID.String()),
		zap.Bool("active", session.Active))
	return session, nil
}

// ActivateSession makes sessionID the tenant's only active session and moves
// the current-session pointer to it.
func (s *SessionService) ActivateSession(ctx context.Context, tenantID, sessionID uuid.UUID) (*academic.Session, error) {
	var session *academic.Session
	err := s.txScope.Execute(ctx, func(repos Repositories) error {
		tenant, err := repos.Tenants().FindByID(ctx, tenantID)
		if err != nil {
			return fmt.Errorf("load tenant: %w", err)
		}
		session, err = repos.Sessions().FindByID(ctx, tenantID, sessionID)
		if err != nil {
			return err
		}
		return activate(ctx, repos, tenant, session)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("session activated", zap.String("tenant_id", tenantID.String()), zap.String("session_id", sessionID.String()))
	return session, nil
}

func activate(ctx context.Context, repos Repositories, tenant *academic.Tenant, session *academic.Session) error {
	if err := repos.Sessions().Activate(ctx, tenant.ID, session.ID); err != nil {
		return fmt.Errorf("activate session: %w", err)
	}
	session.Active = true
	tenant.PointTo(session.ID)
	if err := repos.Tenants().Save(ctx, tenant); err != nil {
		return fmt.Errorf("move session pointer: %w", err)
	}
	return nil
}

// ListSessions lists the tenant's sessions, newest first
func (s *SessionService) ListSessions(ctx context.Context, tenantID uuid.UUID) ([]academic.Session, error) {
	return s.repos.Sessions().FindByTenant(ctx, tenantID)
}

// DeleteSession removes a session and everything it owns in one transaction,
// walking the purge registry in order. The active session cannot be deleted.
func (s *SessionService) DeleteSession(ctx context.Context, tenantID, sessionID uuid.UUID) ([]PurgeCount, error) {
	var counts []PurgeCount
	err := s.txScope.Execute(ctx, func(repos Repositories) error {
		session, err := repos.Sessions().FindByID(ctx, tenantID, sessionID)
		if err != nil {
			return err
		}
		tenant, err := repos.Tenants().FindByID(ctx, tenantID)
		if err != nil {
			return fmt.Errorf("load tenant: %w", err)
		}
		pointed := tenant.CurrentSessionID != nil && *tenant.CurrentSessionID == sessionID
		if session.Active || pointed {
			return academic.ErrActiveSessionDelete
		}

		scope := session.Scope()
		counts = make([]PurgeCount, 0, len(sessionPurgeOrder)+1)
		for _, step := range sessionPurgeOrder {
			n, err := step.store(repos).PurgeSession(ctx, scope)
			if err != nil {
				return fmt.Errorf("purge %s: %w", step.entity, err)
			}
			counts = append(counts, PurgeCount{Entity: step.entity, Deleted: n})
		}
		if err := repos.Sessions().Delete(ctx, tenantID, sessionID); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		counts = append(counts, PurgeCount{Entity: "academic_sessions", Deleted: 1})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("session deleted",
		zap.String("tenant_id", tenantID.String()),
		zap.String("session_id", sessionID.String()),
		zap.Any("purged", counts))
	return counts, nil
}
