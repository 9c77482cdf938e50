package fee

import (
	"context"
	"fmt"
	"strings"

	"github.com/feeledger/backend/internal/domain/academic"
	"github.com/feeledger/backend/internal/domain/fee"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ApplyBatchInput raises the same set of charges on a list of students
type ApplyBatchInput struct {
	Period     string
	StudentIDs []uuid.UUID
	Charges    []fee.ChargeSpec
}

// ApplyBatchResult describes a created batch
type ApplyBatchResult struct {
	BatchID      uuid.UUID `json:"batch_id"`
	StudentCount int       `json:"student_count"`
	ItemCount    int       `json:"item_count"`
}

// BatchDetail is one batch broken down per student
type BatchDetail struct {
	Summary fee.BatchSummary       `json:"summary"`
	Lines   []fee.BatchStudentLine `json:"lines"`
}

// ChargeService raises and reads occasional charge batches
type ChargeService struct {
	repos   Repositories
	txScope TransactionScope
	logger  *zap.Logger
}

// NewChargeService creates a ChargeService
func NewChargeService(repos Repositories, txScope TransactionScope, logger *zap.Logger) *ChargeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChargeService{repos: repos, txScope: txScope, logger: logger}
}

// ApplyBatch expands students x charges into line items sharing one batch
// id. Every student must be on the session roster.
func (s *ChargeService) ApplyBatch(ctx context.Context, scope academic.Scope, in ApplyBatchInput) (*ApplyBatchResult, error) {
	batchID, items, err := fee.NewChargeBatch(scope, in.Period, in.StudentIDs, in.Charges)
	if err != nil {
		return nil, err
	}

	students := map[uuid.UUID]bool{}
	for _, item := range items {
		students[item.StudentID] = true
	}
	ids := make([]uuid.UUID, 0, len(students))
	for id := range students {
		ids = append(ids, id)
	}

	err = s.txScope.Execute(ctx, func(repos Repositories) error {
		found, err := repos.Roster().FindByIDs(ctx, scope, ids)
		if err != nil {
			return fmt.Errorf("load roster: %w", err)
		}
		if len(found) != len(ids) {
			return academic.ErrUnknownStudent.WithMessage(
				fmt.Sprintf("%d of %d students are not on the session roster", len(ids)-len(found), len(ids)))
		}
		return repos.Charges().CreateInBatches(ctx, items)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("occasional charge batch applied",
		zap.String("tenant_id", scope.TenantID.String()),
		zap.String("session_id", scope.SessionID.String()),
		zap.String("batch_id", batchID.String()),
		zap.Int("students", len(ids)),
		zap.Int("items", len(items)))
	return &ApplyBatchResult{BatchID: batchID, StudentCount: len(ids), ItemCount: len(items)}, nil
}

// History summarizes the batches raised for a period, newest first
func (s *ChargeService) History(ctx context.Context, scope academic.Scope, period string) ([]fee.BatchSummary, error) {
	if scope.IsZero() {
		return nil, academic.ErrNoActiveSession
	}
	charges, err := s.repos.Charges().FindByPeriod(ctx, scope, strings.TrimSpace(period))
	if err != nil {
		return nil, err
	}
	return fee.SummarizeBatches(charges), nil
}

// Detail breaks one batch down per student
func (s *ChargeService) Detail(ctx context.Context, scope academic.Scope, batchID uuid.UUID) (*BatchDetail, error) {
	if scope.IsZero() {
		return nil, academic.ErrNoActiveSession
	}
	charges, err := s.repos.Charges().FindByBatch(ctx, scope, batchID)
	if err != nil {
		return nil, err
	}
	if len(charges) == 0 {
		return nil, fee.ErrBatchNotFound
	}

	ids := make([]uuid.UUID, 0, len(charges))
	seen := map[uuid.UUID]bool{}
	for _, c := range charges {
		if !seen[c.StudentID] {
			seen[c.StudentID] = true
			ids = append(ids, c.StudentID)
		}
	}
	students, err := s.repos.Roster().FindByIDs(ctx, scope, ids)
	if err != nil {
		return nil, err
	}
	roster := make(map[uuid.UUID]academic.Student, len(students))
	for _, st := range students {
		roster[st.ID] = st
	}

	return &BatchDetail{
		Summary: fee.SummarizeBatches(charges)[0],
		Lines:   fee.DetailLines(charges, roster),
	}, nil
}
