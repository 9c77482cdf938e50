package persistence

import (
	"context"
	"errors"

	"github.com/feeledger/backend/internal/domain/academic"
	"github.com/feeledger/backend/internal/domain/shared"
	"github.com/feeledger/backend/internal/infrastructure/persistence/models"
	"github.com/feeledger/backend/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormSessionRepository implements academic.SessionRepository using GORM
type GormSessionRepository struct {
	db *gorm.DB
}

// NewGormSessionRepository creates a new GormSessionRepository
func NewGormSessionRepository(db *gorm.DB) *GormSessionRepository {
	return &GormSessionRepository{db: db}
}

// FindByID finds a session of the tenant
func (r *GormSessionRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*academic.Session, error) {
	var model models.SessionModel
	err := r.db.WithContext(ctx).
		Scopes(tenant.TenantScope(tenantID)).
		Where("id = ?", id).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByTenant lists the tenant's sessions, newest first
func (r *GormSessionRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) ([]academic.Session, error) {
	return r.find(ctx, r.db.WithContext(ctx).Scopes(tenant.TenantScope(tenantID)))
}

// FindActive lists the tenant's sessions flagged active
func (r *GormSessionRepository) FindActive(ctx context.Context, tenantID uuid.UUID) ([]academic.Session, error) {
	return r.find(ctx, r.db.WithContext(ctx).Scopes(tenant.TenantScope(tenantID)).Where("active = ?", true))
}

func (r *GormSessionRepository) find(_ context.Context, query *gorm.DB) ([]academic.Session, error) {
	var rows []models.SessionModel
	if err := query.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	sessions := make([]academic.Session, len(rows))
	for i := range rows {
		sessions[i] = *rows[i].ToDomain()
	}
	return sessions, nil
}

// Save creates or updates a session
func (r *GormSessionRepository) Save(ctx context.Context, session *academic.Session) error {
	return r.db.WithContext(ctx).Save(models.SessionModelFromDomain(session)).Error
}

// Activate flips the active flag to sessionID. Callers run it inside a
// transaction together with the tenant pointer update.
func (r *GormSessionRepository) Activate(ctx context.Context, tenantID, sessionID uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Model(&models.SessionModel{}).
		Scopes(tenant.TenantScope(tenantID)).
		Where("id <> ? AND active = ?", sessionID, true).
		Updates(map[string]any{"active": false, "version": gorm.Expr("version + 1")}).Error; err != nil {
		return err
	}
	result := db.Model(&models.SessionModel{}).
		Scopes(tenant.TenantScope(tenantID)).
		Where("id = ?", sessionID).
		Updates(map[string]any{"active": true, "version": gorm.Expr("version + 1")})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes a session row
func (r *GormSessionRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Scopes(tenant.TenantScope(tenantID)).
		Where("id = ?", id).
		Delete(&models.SessionModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ academic.SessionRepository = (*GormSessionRepository)(nil)
