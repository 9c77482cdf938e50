package fee

import (
	"context"
	"errors"

	"github.com/feeledger/backend/internal/domain/academic"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PublishJob republishes the schedules of a tenant's active session. The
// periodic scheduler drives it so students enrolled after a publish get
// their dues materialized.
type PublishJob struct {
	repos     Repositories
	resolver  *SessionResolver
	schedules *ScheduleService
	logger    *zap.Logger
}

// NewPublishJob creates a PublishJob
func NewPublishJob(repos Repositories, resolver *SessionResolver, schedules *ScheduleService, logger *zap.Logger) *PublishJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PublishJob{repos: repos, resolver: resolver, schedules: schedules, logger: logger}
}

// GetAllActiveTenantIDs lists every tenant
func (j *PublishJob) GetAllActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	tenants, err := j.repos.Tenants().FindAll(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(tenants))
	for i := range tenants {
		ids[i] = tenants[i].ID
	}
	return ids, nil
}

// RepublishTenant republishes every schedule of the tenant's active session.
// A tenant without an active session has nothing to do.
func (j *PublishJob) RepublishTenant(ctx context.Context, tenantID uuid.UUID) (int, error) {
	scope, err := j.resolver.Resolve(ctx, tenantID, nil)
	if err != nil {
		if errors.Is(err, academic.ErrNoActiveSession) {
			j.logger.Debug("tenant has no active session, skipping republish", zap.String("tenant_id", tenantID.String()))
			return 0, nil
		}
		return 0, err
	}
	return j.schedules.RepublishSession(ctx, scope)
}
