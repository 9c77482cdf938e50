package models

import (
	"time"

	"github.com/feeledger/backend/internal/domain/academic"
	"github.com/feeledger/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// TenantModel is the persistence model for a school
type TenantModel struct {
	AggregateModel
	Code             string     `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name             string     `gorm:"type:varchar(200);not null"`
	CurrentSessionID *uuid.UUID `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (TenantModel) TableName() string {
	return "tenants"
}

// ToDomain converts the model to a domain Tenant
func (m *TenantModel) ToDomain() *academic.Tenant {
	t := &academic.Tenant{
		Code:             m.Code,
		Name:             m.Name,
		CurrentSessionID: m.CurrentSessionID,
	}
	m.PopulateAggregateRoot(&t.BaseAggregateRoot)
	return t
}

// TenantModelFromDomain creates a model from a domain Tenant
func TenantModelFromDomain(t *academic.Tenant) *TenantModel {
	m := &TenantModel{
		Code:             t.Code,
		Name:             t.Name,
		CurrentSessionID: t.CurrentSessionID,
	}
	m.FromDomainAggregateRoot(t.BaseAggregateRoot)
	return m
}

// SessionModel is the persistence model for an academic session
type SessionModel struct {
	AggregateModel
	TenantID uuid.UUID  `gorm:"type:uuid;not null;index"`
	Name     string     `gorm:"type:varchar(100);not null"`
	Active   bool       `gorm:"not null"`
	StartsOn *time.Time `gorm:"type:date"`
	EndsOn   *time.Time `gorm:"type:date"`
}

// TableName returns the table name for GORM
func (SessionModel) TableName() string {
	return "academic_sessions"
}

// ToDomain converts the model to a domain Session
func (m *SessionModel) ToDomain() *academic.Session {
	s := &academic.Session{
		Name:     m.Name,
		Active:   m.Active,
		StartsOn: m.StartsOn,
		EndsOn:   m.EndsOn,
	}
	m.PopulateAggregateRoot(&s.BaseAggregateRoot)
	s.TenantID = m.TenantID
	return s
}

// SessionModelFromDomain creates a model from a domain Session
func SessionModelFromDomain(s *academic.Session) *SessionModel {
	m := &SessionModel{
		TenantID: s.TenantID,
		Name:     s.Name,
		Active:   s.Active,
		StartsOn: s.StartsOn,
		EndsOn:   s.EndsOn,
	}
	m.FromDomainAggregateRoot(s.BaseAggregateRoot)
	return m
}

// StudentModel is the roster row the fee engine reads
type StudentModel struct {
	BaseModel
	TenantID     uuid.UUID `gorm:"type:uuid;not null;index:idx_students_scope_class,priority:1"`
	SessionID    uuid.UUID `gorm:"type:uuid;not null;index:idx_students_scope_class,priority:2"`
	Class        string    `gorm:"type:varchar(50);not null;index:idx_students_scope_class,priority:3"`
	Name         string    `gorm:"type:varchar(200);not null"`
	Active       bool      `gorm:"not null"`
	OptTransport bool      `gorm:"column:opt_transport;not null"`
	ContactEmail string    `gorm:"type:varchar(200)"`
}

// TableName returns the table name for GORM
func (StudentModel) TableName() string {
	return "students"
}

// ToDomain converts the model to a domain Student
func (m *StudentModel) ToDomain() academic.Student {
	return academic.Student{
		ID:           m.ID,
		TenantID:     m.TenantID,
		SessionID:    m.SessionID,
		Name:         m.Name,
		Class:        m.Class,
		Active:       m.Active,
		OptIns:       academic.OptInFlags{Transport: m.OptTransport},
		ContactEmail: m.ContactEmail,
	}
}

// StudentModelFromDomain creates a model from a domain Student
func StudentModelFromDomain(s *academic.Student) *StudentModel {
	now := time.Now()
	m := &StudentModel{
		TenantID:     s.TenantID,
		SessionID:    s.SessionID,
		Class:        s.Class,
		Name:         s.Name,
		Active:       s.Active,
		OptTransport: s.OptIns.Transport,
		ContactEmail: s.ContactEmail,
	}
	m.FromDomainBaseEntity(shared.BaseEntity{ID: s.ID, CreatedAt: now, UpdatedAt: now})
	return m
}
