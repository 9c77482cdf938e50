package scheduler

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TenantRepublisher republishes the fee schedules of one tenant and returns
// how many periods were rebuilt.
type TenantRepublisher interface {
	RepublishTenant(ctx context.Context, tenantID uuid.UUID) (int, error)
}

// RepublishExecutor executes republish jobs
type RepublishExecutor struct {
	republisher TenantRepublisher
	logger      *zap.Logger
}

// NewRepublishExecutor creates a RepublishExecutor
func NewRepublishExecutor(republisher TenantRepublisher, logger *zap.Logger) *RepublishExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RepublishExecutor{republisher: republisher, logger: logger}
}

// Execute runs one job
func (e *RepublishExecutor) Execute(ctx context.Context, job *Job) error {
	if job.Kind != JobKindRepublish {
		return fmt.Errorf("%w: %s", ErrInvalidJobKind, job.Kind)
	}
	periods, err := e.republisher.RepublishTenant(ctx, job.TenantID)
	if err != nil {
		return fmt.Errorf("republish tenant %s: %w", job.TenantID, err)
	}
	e.logger.Debug("tenant republished",
		zap.String("tenant_id", job.TenantID.String()),
		zap.Int("periods", periods))
	return nil
}

var _ JobExecutor = (*RepublishExecutor)(nil)
