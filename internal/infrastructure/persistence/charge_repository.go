package persistence

import (
	"context"

	"github.com/feeledger/backend/internal/domain/academic"
	"github.com/feeledger/backend/internal/domain/fee"
	"github.com/feeledger/backend/internal/infrastructure/persistence/models"
	"github.com/feeledger/backend/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const chargeInsertBatchSize = 500

// GormChargeRepository implements fee.ChargeRepository using GORM
type GormChargeRepository struct {
	db *gorm.DB
}

// NewGormChargeRepository creates a new GormChargeRepository
func NewGormChargeRepository(db *gorm.DB) *GormChargeRepository {
	return &GormChargeRepository{db: db}
}

// CreateInBatches inserts batch line items
func (r *GormChargeRepository) CreateInBatches(ctx context.Context, charges []*fee.OccasionalCharge) error {
	if len(charges) == 0 {
		return nil
	}
	rows := make([]*models.OccasionalChargeModel, len(charges))
	for i, c := range charges {
		rows[i] = models.OccasionalChargeModelFromDomain(c)
	}
	return r.db.WithContext(ctx).CreateInBatches(rows, chargeInsertBatchSize).Error
}

// FindByID finds one charge
func (r *GormChargeRepository) FindByID(ctx context.Context, scope academic.Scope, id uuid.UUID) (*fee.OccasionalCharge, error) {
	return r.findByID(r.db.WithContext(ctx), scope, id)
}

// FindByIDForUpdate finds one charge holding its row lock
func (r *GormChargeRepository) FindByIDForUpdate(ctx context.Context, scope academic.Scope, id uuid.UUID) (*fee.OccasionalCharge, error) {
	return r.findByID(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), scope, id)
}

func (r *GormChargeRepository) findByID(db *gorm.DB, scope academic.Scope, id uuid.UUID) (*fee.OccasionalCharge, error) {
	var model models.OccasionalChargeModel
	if err := db.Scopes(tenant.SessionScope(scope)).Where("id = ?", id).First(&model).Error; err != nil {
		if errIsNotFound(err) {
			return nil, fee.ErrChargeNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByBatch lists the items of a batch
func (r *GormChargeRepository) FindByBatch(ctx context.Context, scope academic.Scope, batchID uuid.UUID) ([]fee.OccasionalCharge, error) {
	return r.find(r.db.WithContext(ctx).Scopes(tenant.SessionScope(scope)).Where("batch_id = ?", batchID))
}

// FindByBatchAndStudentForUpdate locks the student's items in a batch
func (r *GormChargeRepository) FindByBatchAndStudentForUpdate(ctx context.Context, scope academic.Scope, batchID, studentID uuid.UUID) ([]fee.OccasionalCharge, error) {
	return r.find(r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Scopes(tenant.SessionScope(scope)).
		Where("batch_id = ? AND student_id = ?", batchID, studentID))
}

// FindByPeriod lists every charge raised for a period
func (r *GormChargeRepository) FindByPeriod(ctx context.Context, scope academic.Scope, period string) ([]fee.OccasionalCharge, error) {
	return r.find(r.db.WithContext(ctx).Scopes(tenant.SessionScope(scope)).Where("period = ?", period))
}

// FindByStudent lists every charge of a student in the session
func (r *GormChargeRepository) FindByStudent(ctx context.Context, scope academic.Scope, studentID uuid.UUID) ([]fee.OccasionalCharge, error) {
	return r.find(r.db.WithContext(ctx).Scopes(tenant.SessionScope(scope)).Where("student_id = ?", studentID))
}

func (r *GormChargeRepository) find(query *gorm.DB) ([]fee.OccasionalCharge, error) {
	var rows []models.OccasionalChargeModel
	if err := query.Order("created_at ASC, fee_name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	charges := make([]fee.OccasionalCharge, len(rows))
	for i := range rows {
		charges[i] = *rows[i].ToDomain()
	}
	return charges, nil
}

// SettleUnpaid pays every still-unpaid item of the student in the batch with
// a single UPDATE.
func (r *GormChargeRepository) SettleUnpaid(ctx context.Context, scope academic.Scope, batchID, studentID uuid.UUID, s fee.Settlement) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.OccasionalChargeModel{}).
		Scopes(tenant.SessionScope(scope)).
		Where("batch_id = ? AND student_id = ? AND status = ?", batchID, studentID, fee.StatusUnpaid).
		Updates(settlementColumns(s))
	return result.RowsAffected, result.Error
}

// MarkSettled writes the settlement onto one charge that is still unpaid
func (r *GormChargeRepository) MarkSettled(ctx context.Context, charge *fee.OccasionalCharge) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.OccasionalChargeModel{}).
		Scopes(tenant.SessionScope(academic.Scope{TenantID: charge.TenantID, SessionID: charge.SessionID})).
		Where("id = ? AND status = ?", charge.ID, fee.StatusUnpaid).
		Updates(settlementColumns(fee.Settlement{
			Reference:   charge.PaymentReference,
			Channel:     charge.Channel,
			CollectedBy: charge.CollectedBy,
			SettledAt:   *charge.PaidAt,
		}))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// PurgeSession deletes every charge of the session
func (r *GormChargeRepository) PurgeSession(ctx context.Context, scope academic.Scope) (int64, error) {
	result := r.db.WithContext(ctx).Scopes(tenant.SessionScope(scope)).Delete(&models.OccasionalChargeModel{})
	return result.RowsAffected, result.Error
}

func settlementColumns(s fee.Settlement) map[string]any {
	return map[string]any{
		"status":            fee.StatusPaid,
		"payment_reference": s.Reference,
		"channel":           s.Channel,
		"collected_by":      s.CollectedBy,
		"paid_at":           s.SettledAt,
		"updated_at":        s.SettledAt,
		"version":           gorm.Expr("version + 1"),
	}
}

var _ fee.ChargeRepository = (*GormChargeRepository)(nil)
