package persistence

import (
	"context"

	"github.com/feeledger/backend/internal/domain/academic"
	"github.com/feeledger/backend/internal/domain/fee"
	"github.com/feeledger/backend/internal/domain/shared"
	"github.com/feeledger/backend/internal/infrastructure/persistence/models"
	"github.com/feeledger/backend/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const dueInsertBatchSize = 200

// GormDueRepository implements fee.DueRepository using GORM
type GormDueRepository struct {
	db *gorm.DB
}

// NewGormDueRepository creates a new GormDueRepository
func NewGormDueRepository(db *gorm.DB) *GormDueRepository {
	return &GormDueRepository{db: db}
}

// FindOne finds the materialized due of a student for a period
func (r *GormDueRepository) FindOne(ctx context.Context, scope academic.Scope, studentID uuid.UUID, period string) (*fee.StudentDue, error) {
	return r.findOne(r.db.WithContext(ctx), scope, studentID, period)
}

// FindOneForUpdate finds the due and locks its row for the rest of the transaction
func (r *GormDueRepository) FindOneForUpdate(ctx context.Context, scope academic.Scope, studentID uuid.UUID, period string) (*fee.StudentDue, error) {
	return r.findOne(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), scope, studentID, period)
}

func (r *GormDueRepository) findOne(db *gorm.DB, scope academic.Scope, studentID uuid.UUID, period string) (*fee.StudentDue, error) {
	var model models.StudentDueModel
	err := db.Scopes(tenant.SessionScope(scope)).
		Where("student_id = ? AND period = ?", studentID, period).
		First(&model).Error
	if err != nil {
		if errIsNotFound(err) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByPeriod lists the materialized dues of a period
func (r *GormDueRepository) FindByPeriod(ctx context.Context, scope academic.Scope, period string) ([]fee.StudentDue, error) {
	return r.find(r.db.WithContext(ctx).Scopes(tenant.SessionScope(scope)).Where("period = ?", period))
}

// FindByStudent lists every materialized due of a student
func (r *GormDueRepository) FindByStudent(ctx context.Context, scope academic.Scope, studentID uuid.UUID) ([]fee.StudentDue, error) {
	return r.find(r.db.WithContext(ctx).Scopes(tenant.SessionScope(scope)).Where("student_id = ?", studentID))
}

func (r *GormDueRepository) find(query *gorm.DB) ([]fee.StudentDue, error) {
	var rows []models.StudentDueModel
	if err := query.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	dues := make([]fee.StudentDue, len(rows))
	for i := range rows {
		dues[i] = *rows[i].ToDomain()
	}
	return dues, nil
}

// DeleteUnpaid removes the unpaid dues of a period
func (r *GormDueRepository) DeleteUnpaid(ctx context.Context, scope academic.Scope, period string) (int64, error) {
	result := r.db.WithContext(ctx).
		Scopes(tenant.SessionScope(scope)).
		Where("period = ? AND status = ?", period, fee.StatusUnpaid).
		Delete(&models.StudentDueModel{})
	return result.RowsAffected, result.Error
}

// CreateInBatches inserts fresh dues
func (r *GormDueRepository) CreateInBatches(ctx context.Context, dues []*fee.StudentDue) error {
	if len(dues) == 0 {
		return nil
	}
	rows := make([]*models.StudentDueModel, len(dues))
	for i, d := range dues {
		rows[i] = models.StudentDueModelFromDomain(d)
	}
	return r.db.WithContext(ctx).CreateInBatches(rows, dueInsertBatchSize).Error
}

// InsertIfAbsent stores the due unless its (tenant, session, student, period)
// key already exists.
func (r *GormDueRepository) InsertIfAbsent(ctx context.Context, due *fee.StudentDue) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "tenant_id"}, {Name: "session_id"}, {Name: "student_id"}, {Name: "period"},
			},
			DoNothing: true,
		}).
		Create(models.StudentDueModelFromDomain(due))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkSettled writes the settlement onto a due that is still unpaid
func (r *GormDueRepository) MarkSettled(ctx context.Context, due *fee.StudentDue) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.StudentDueModel{}).
		Scopes(tenant.SessionScope(academic.Scope{TenantID: due.TenantID, SessionID: due.SessionID})).
		Where("id = ? AND status = ?", due.ID, fee.StatusUnpaid).
		Updates(map[string]any{
			"status":            fee.StatusPaid,
			"payment_reference": due.PaymentReference,
			"channel":           due.Channel,
			"collected_by":      due.CollectedBy,
			"paid_at":           due.PaidAt,
			"updated_at":        due.UpdatedAt,
			"version":           gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// PurgeSession deletes every due of the session
func (r *GormDueRepository) PurgeSession(ctx context.Context, scope academic.Scope) (int64, error) {
	result := r.db.WithContext(ctx).Scopes(tenant.SessionScope(scope)).Delete(&models.StudentDueModel{})
	return result.RowsAffected, result.Error
}

var _ fee.DueRepository = (*GormDueRepository)(nil)
