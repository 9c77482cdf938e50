package persistence

import (
	"context"
	"time"

	"github.com/feeledger/backend/internal/domain/academic"
	"github.com/feeledger/backend/internal/domain/fee"
	"github.com/feeledger/backend/internal/domain/shared"
	"github.com/feeledger/backend/internal/infrastructure/persistence/models"
	"github.com/feeledger/backend/internal/infrastructure/persistence/tenant"
	"gorm.io/gorm"
)

// GormScheduleRepository implements fee.ScheduleRepository using GORM
type GormScheduleRepository struct {
	db *gorm.DB
}

// NewGormScheduleRepository creates a new GormScheduleRepository
func NewGormScheduleRepository(db *gorm.DB) *GormScheduleRepository {
	return &GormScheduleRepository{db: db}
}

// FindByPeriod finds the schedule of a period in the scope
func (r *GormScheduleRepository) FindByPeriod(ctx context.Context, scope academic.Scope, period string) (*fee.FeeSchedule, error) {
	var model models.FeeScheduleModel
	err := r.db.WithContext(ctx).
		Scopes(tenant.SessionScope(scope)).
		Where("period = ?", period).
		First(&model).Error
	if err != nil {
		if errIsNotFound(err) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindBySession lists every schedule of the session in publish order
func (r *GormScheduleRepository) FindBySession(ctx context.Context, scope academic.Scope) ([]fee.FeeSchedule, error) {
	var rows []models.FeeScheduleModel
	if err := r.db.WithContext(ctx).
		Scopes(tenant.SessionScope(scope)).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	schedules := make([]fee.FeeSchedule, len(rows))
	for i := range rows {
		schedules[i] = *rows[i].ToDomain()
	}
	return schedules, nil
}

// Save inserts a first-version schedule or applies a revision guarded by the
// previous version.
func (r *GormScheduleRepository) Save(ctx context.Context, schedule *fee.FeeSchedule) error {
	model := models.FeeScheduleModelFromDomain(schedule)
	db := r.db.WithContext(ctx)

	if schedule.GetVersion() <= 1 {
		if err := db.Create(model).Error; err != nil {
			if isDuplicateKey(err) {
				return fee.ErrScheduleConflict
			}
			return err
		}
		return nil
	}

	result := db.Model(&models.FeeScheduleModel{}).
		Where("id = ? AND version = ?", schedule.ID, schedule.GetVersion()-1).
		Updates(map[string]any{
			"components":   model.Components,
			"rates":        model.Rates,
			"published_at": model.PublishedAt,
			"updated_at":   time.Now(),
			"version":      schedule.GetVersion(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fee.ErrScheduleConflict
	}
	return nil
}

// PurgeSession deletes every schedule of the session
func (r *GormScheduleRepository) PurgeSession(ctx context.Context, scope academic.Scope) (int64, error) {
	result := r.db.WithContext(ctx).Scopes(tenant.SessionScope(scope)).Delete(&models.FeeScheduleModel{})
	return result.RowsAffected, result.Error
}

var _ fee.ScheduleRepository = (*GormScheduleRepository)(nil)
