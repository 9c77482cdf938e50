package fee

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/feeledger/backend/internal/domain/academic"
	"github.com/feeledger/backend/internal/domain/fee"
	"github.com/feeledger/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PublishScheduleInput is a rate card for one period. Rates maps class label
// to component name to amount.
type PublishScheduleInput struct {
	Period     string
	Components []string
	Rates      map[string]map[string]decimal.Decimal
}

// rateTable orders each class's rates by the component list so the stored
// card is deterministic.
func (in PublishScheduleInput) rateTable() (fee.ClassRateTable, error) {
	table := make(fee.ClassRateTable, len(in.Rates))
	known := make(map[string]bool, len(in.Components))
	for _, c := range in.Components {
		known[strings.TrimSpace(c)] = true
	}
	for class, amounts := range in.Rates {
		for component := range amounts {
			if !known[component] {
				return nil, shared.NewValidationError("UNKNOWN_COMPONENT",
					fmt.Sprintf("Class %s rates unknown component %q", class, component))
			}
		}
		rates := make([]fee.ComponentRate, 0, len(amounts))
		for _, c := range in.Components {
			c = strings.TrimSpace(c)
			if amount, ok := amounts[c]; ok {
				rates = append(rates, fee.ComponentRate{Component: c, Amount: amount})
			}
		}
		table[strings.TrimSpace(class)] = rates
	}
	return table, nil
}

func (in PublishScheduleInput) components() []string {
	out := make([]string, len(in.Components))
	for i, c := range in.Components {
		out[i] = strings.TrimSpace(c)
	}
	return out
}

// PublishResult is the outcome of publishing a schedule
type PublishResult struct {
	Schedule  *fee.FeeSchedule `json:"-"`
	Revised   bool             `json:"revised"`
	Republish RepublishResult  `json:"republish"`
}

// ScheduleService stores fee schedules and keeps materialized dues in step
// with them.
type ScheduleService struct {
	repos   Repositories
	txScope TransactionScope
	logger  *zap.Logger
}

// NewScheduleService creates a ScheduleService
func NewScheduleService(repos Repositories, txScope TransactionScope, logger *zap.Logger) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{repos: repos, txScope: txScope, logger: logger}
}

// GetSchedule returns the schedule of a period
func (s *ScheduleService) GetSchedule(ctx context.Context, scope academic.Scope, period string) (*fee.FeeSchedule, error) {
	schedule, err := s.repos.Schedules().FindByPeriod(ctx, scope, strings.TrimSpace(period))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fee.ErrScheduleNotFound
		}
		return nil, err
	}
	return schedule, nil
}

// ListSchedules lists every schedule of the session
func (s *ScheduleService) ListSchedules(ctx context.Context, scope academic.Scope) ([]fee.FeeSchedule, error) {
	return s.repos.Schedules().FindBySession(ctx, scope)
}

// Publish creates or revises the schedule of a period and republishes its
// dues in the same transaction.
func (s *ScheduleService) Publish(ctx context.Context, scope academic.Scope, in PublishScheduleInput) (*PublishResult, error) {
	if scope.IsZero() {
		return nil, academic.ErrNoActiveSession
	}
	rates, err := in.rateTable()
	if err != nil {
		return nil, err
	}
	components := in.components()
	period := strings.TrimSpace(in.Period)

	var result PublishResult
	err = s.txScope.Execute(ctx, func(repos Repositories) error {
		schedule, err := repos.Schedules().FindByPeriod(ctx, scope, period)
		switch {
		case err == nil:
			if err := schedule.Revise(components, rates); err != nil {
				return err
			}
			result.Revised = true
		case errors.Is(err, shared.ErrNotFound):
			schedule, err = fee.NewFeeSchedule(scope, period, components, rates)
			if err != nil {
				return err
			}
		default:
			return err
		}

		if err := repos.Schedules().Save(ctx, schedule); err != nil {
			return err
		}
		result.Republish, err = republish(ctx, repos, schedule)
		if err != nil {
			return err
		}
		if err := repos.Events().Publish(ctx, schedule.GetDomainEvents()...); err != nil {
			return fmt.Errorf("publish schedule events: %w", err)
		}
		schedule.ClearDomainEvents()
		result.Schedule = schedule
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("fee schedule published",
		zap.String("tenant_id", scope.TenantID.String()),
		zap.String("session_id", scope.SessionID.String()),
		zap.String("period", period),
		zap.Bool("revised", result.Revised),
		zap.Int64("deleted", result.Republish.Deleted),
		zap.Int("created", result.Republish.Created),
		zap.Int("kept_paid", result.Republish.KeptPaid))
	return &result, nil
}

// Republish rebuilds the unpaid dues of an existing schedule
func (s *ScheduleService) Republish(ctx context.Context, scope academic.Scope, period string) (RepublishResult, error) {
	var result RepublishResult
	err := s.txScope.Execute(ctx, func(repos Repositories) error {
		schedule, err := repos.Schedules().FindByPeriod(ctx, scope, strings.TrimSpace(period))
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return fee.ErrScheduleNotFound
			}
			return err
		}
		result, err = republish(ctx, repos, schedule)
		return err
	})
	if err != nil {
		return RepublishResult{}, err
	}
	s.logger.Info("dues republished",
		zap.String("tenant_id", scope.TenantID.String()),
		zap.String("session_id", scope.SessionID.String()),
		zap.String("period", period),
		zap.Int("created", result.Created))
	return result, nil
}

// RepublishSession republishes every schedule of a session. One failing
// period does not stop the others; the first error is returned.
func (s *ScheduleService) RepublishSession(ctx context.Context, scope academic.Scope) (int, error) {
	schedules, err := s.repos.Schedules().FindBySession(ctx, scope)
	if err != nil {
		return 0, err
	}
	var firstErr error
	done := 0
	for _, schedule := range schedules {
		if _, err := s.Republish(ctx, scope, schedule.Period); err != nil {
			s.logger.Error("republish failed",
				zap.String("tenant_id", scope.TenantID.String()),
				zap.String("period", schedule.Period),
				zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		done++
	}
	return done, firstErr
}
