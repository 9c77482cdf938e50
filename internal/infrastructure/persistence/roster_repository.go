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

// GormRosterRepository reads the students table of the wider school system
type GormRosterRepository struct {
	db *gorm.DB
}

// NewGormRosterRepository creates a new GormRosterRepository
func NewGormRosterRepository(db *gorm.DB) *GormRosterRepository {
	return &GormRosterRepository{db: db}
}

// ListActive returns the session's active students ordered by class and name
func (r *GormRosterRepository) ListActive(ctx context.Context, scope academic.Scope) ([]academic.Student, error) {
	return r.list(r.db.WithContext(ctx).Scopes(tenant.SessionScope(scope)).Where("active = ?", true))
}

// ListActiveByClass returns the active students of one class
func (r *GormRosterRepository) ListActiveByClass(ctx context.Context, scope academic.Scope, class string) ([]academic.Student, error) {
	return r.list(r.db.WithContext(ctx).Scopes(tenant.SessionScope(scope)).Where("active = ? AND class = ?", true, class))
}

// FindByIDs returns the students among ids that belong to the scope
func (r *GormRosterRepository) FindByIDs(ctx context.Context, scope academic.Scope, ids []uuid.UUID) ([]academic.Student, error) {
	if len(ids) == 0 {
		return []academic.Student{}, nil
	}
	return r.list(r.db.WithContext(ctx).Scopes(tenant.SessionScope(scope)).Where("id IN ?", ids))
}

// FindByID returns one student of the scope
func (r *GormRosterRepository) FindByID(ctx context.Context, scope academic.Scope, id uuid.UUID) (*academic.Student, error) {
	var model models.StudentModel
	err := r.db.WithContext(ctx).Scopes(tenant.SessionScope(scope)).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, academic.ErrUnknownStudent
		}
		return nil, err
	}
	student := model.ToDomain()
	return &student, nil
}

// Enroll inserts a roster entry
func (r *GormRosterRepository) Enroll(ctx context.Context, student *academic.Student) error {
	if student.ID == uuid.Nil {
		student.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(models.StudentModelFromDomain(student)).Error
}

// PurgeSession deletes the session's roster
func (r *GormRosterRepository) PurgeSession(ctx context.Context, scope academic.Scope) (int64, error) {
	result := r.db.WithContext(ctx).Scopes(tenant.SessionScope(scope)).Delete(&models.StudentModel{})
	return result.RowsAffected, result.Error
}

func (r *GormRosterRepository) list(query *gorm.DB) ([]academic.Student, error) {
	var rows []models.StudentModel
	if err := query.Order("class ASC, name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	students := make([]academic.Student, len(rows))
	for i := range rows {
		students[i] = rows[i].ToDomain()
	}
	return students, nil
}

var (
	_ academic.RosterProvider = (*GormRosterRepository)(nil)
	_ academic.RosterWriter   = (*GormRosterRepository)(nil)
)

// errIsNotFound reports whether err is a not-found from either gorm or the domain
func errIsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, shared.ErrNotFound)
}
