package models

import (
	"time"

	"github.com/feeledger/backend/internal/domain/fee"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FeeScheduleModel is the persistence model for a published rate card
type FeeScheduleModel struct {
	AggregateModel
	TenantID    uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex:uq_fee_schedules_scope_period,priority:1"`
	SessionID   uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex:uq_fee_schedules_scope_period,priority:2"`
	Period      string             `gorm:"type:varchar(50);not null;uniqueIndex:uq_fee_schedules_scope_period,priority:3"`
	Components  StringList         `gorm:"type:jsonb;not null"`
	Rates       fee.ClassRateTable `gorm:"type:jsonb;not null"`
	PublishedAt time.Time          `gorm:"not null"`
}

// TableName returns the table name for GORM
func (FeeScheduleModel) TableName() string {
	return "fee_schedules"
}

// ToDomain converts the model to a domain FeeSchedule
func (m *FeeScheduleModel) ToDomain() *fee.FeeSchedule {
	return &fee.FeeSchedule{
		SessionAggregateRoot: sessionRoot(&m.AggregateModel, m.TenantID, m.SessionID),
		Period:               m.Period,
		Components:           []string(m.Components),
		Rates:                m.Rates,
		PublishedAt:          m.PublishedAt,
	}
}

// FeeScheduleModelFromDomain creates a model from a domain FeeSchedule
func FeeScheduleModelFromDomain(s *fee.FeeSchedule) *FeeScheduleModel {
	m := &FeeScheduleModel{
		TenantID:    s.TenantID,
		SessionID:   s.SessionID,
		Period:      s.Period,
		Components:  StringList(s.Components),
		Rates:       s.Rates,
		PublishedAt: s.PublishedAt,
	}
	m.FromDomainAggregateRoot(s.BaseAggregateRoot)
	return m
}

// StudentDueModel is the persistence model for a materialized monthly due
type StudentDueModel struct {
	AggregateModel
	TenantID         uuid.UUID             `gorm:"type:uuid;not null;uniqueIndex:uq_student_dues_key,priority:1;index:idx_student_dues_period,priority:1"`
	SessionID        uuid.UUID             `gorm:"type:uuid;not null;uniqueIndex:uq_student_dues_key,priority:2;index:idx_student_dues_period,priority:2"`
	StudentID        uuid.UUID             `gorm:"type:uuid;not null;uniqueIndex:uq_student_dues_key,priority:3"`
	Period           string                `gorm:"type:varchar(50);not null;uniqueIndex:uq_student_dues_key,priority:4;index:idx_student_dues_period,priority:3"`
	Class            string                `gorm:"type:varchar(50);not null"`
	Breakdown        fee.Breakdown         `gorm:"type:jsonb;not null"`
	Total            decimal.Decimal       `gorm:"type:decimal(18,2);not null"`
	Status           fee.PaymentStatus     `gorm:"type:varchar(10);not null;default:'UNPAID'"`
	PaymentReference string                `gorm:"type:varchar(100)"`
	Channel          fee.SettlementChannel `gorm:"type:varchar(10)"`
	CollectedBy      string                `gorm:"type:varchar(200)"`
	PaidAt           *time.Time
}

// TableName returns the table name for GORM
func (StudentDueModel) TableName() string {
	return "student_dues"
}

// ToDomain converts the model to a domain StudentDue
func (m *StudentDueModel) ToDomain() *fee.StudentDue {
	return &fee.StudentDue{
		SessionAggregateRoot: sessionRoot(&m.AggregateModel, m.TenantID, m.SessionID),
		StudentID:            m.StudentID,
		Class:                m.Class,
		Period:               m.Period,
		Breakdown:            m.Breakdown,
		Total:                m.Total,
		Status:               m.Status,
		PaymentReference:     m.PaymentReference,
		Channel:              m.Channel,
		CollectedBy:          m.CollectedBy,
		PaidAt:               m.PaidAt,
	}
}

// StudentDueModelFromDomain creates a model from a domain StudentDue
func StudentDueModelFromDomain(d *fee.StudentDue) *StudentDueModel {
	breakdown := d.Breakdown
	if breakdown == nil {
		breakdown = fee.Breakdown{}
	}
	m := &StudentDueModel{
		TenantID:         d.TenantID,
		SessionID:        d.SessionID,
		StudentID:        d.StudentID,
		Period:           d.Period,
		Class:            d.Class,
		Breakdown:        breakdown,
		Total:            d.Total,
		Status:           d.Status,
		PaymentReference: d.PaymentReference,
		Channel:          d.Channel,
		CollectedBy:      d.CollectedBy,
		PaidAt:           d.PaidAt,
	}
	m.FromDomainAggregateRoot(d.BaseAggregateRoot)
	return m
}

// OccasionalChargeModel is the persistence model for a batch line item
type OccasionalChargeModel struct {
	AggregateModel
	TenantID         uuid.UUID             `gorm:"type:uuid;not null;index:idx_occasional_charges_period,priority:1"`
	SessionID        uuid.UUID             `gorm:"type:uuid;not null;index:idx_occasional_charges_period,priority:2"`
	BatchID          uuid.UUID             `gorm:"type:uuid;not null;uniqueIndex:uq_occasional_charges_item,priority:1"`
	StudentID        uuid.UUID             `gorm:"type:uuid;not null;uniqueIndex:uq_occasional_charges_item,priority:2;index"`
	FeeName          string                `gorm:"type:varchar(100);not null;uniqueIndex:uq_occasional_charges_item,priority:3"`
	Period           string                `gorm:"type:varchar(50);not null;index:idx_occasional_charges_period,priority:3"`
	Amount           decimal.Decimal       `gorm:"type:decimal(18,2);not null"`
	Status           fee.PaymentStatus     `gorm:"type:varchar(10);not null;default:'UNPAID'"`
	PaymentReference string                `gorm:"type:varchar(100)"`
	Channel          fee.SettlementChannel `gorm:"type:varchar(10)"`
	CollectedBy      string                `gorm:"type:varchar(200)"`
	PaidAt           *time.Time
}

// TableName returns the table name for GORM
func (OccasionalChargeModel) TableName() string {
	return "occasional_charges"
}

// ToDomain converts the model to a domain OccasionalCharge
func (m *OccasionalChargeModel) ToDomain() *fee.OccasionalCharge {
	return &fee.OccasionalCharge{
		SessionAggregateRoot: sessionRoot(&m.AggregateModel, m.TenantID, m.SessionID),
		BatchID:              m.BatchID,
		StudentID:            m.StudentID,
		Period:               m.Period,
		FeeName:              m.FeeName,
		Amount:               m.Amount,
		Status:               m.Status,
		PaymentReference:     m.PaymentReference,
		Channel:              m.Channel,
		CollectedBy:          m.CollectedBy,
		PaidAt:               m.PaidAt,
	}
}

// OccasionalChargeModelFromDomain creates a model from a domain OccasionalCharge
func OccasionalChargeModelFromDomain(c *fee.OccasionalCharge) *OccasionalChargeModel {
	m := &OccasionalChargeModel{
		TenantID:         c.TenantID,
		SessionID:        c.SessionID,
		BatchID:          c.BatchID,
		StudentID:        c.StudentID,
		FeeName:          c.FeeName,
		Period:           c.Period,
		Amount:           c.Amount,
		Status:           c.Status,
		PaymentReference: c.PaymentReference,
		Channel:          c.Channel,
		CollectedBy:      c.CollectedBy,
		PaidAt:           c.PaidAt,
	}
	m.FromDomainAggregateRoot(c.BaseAggregateRoot)
	return m
}

// PaymentOrderModel is the persistence model for a gateway payment order
type PaymentOrderModel struct {
	AggregateModel
	TenantID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	SessionID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	OrderRef       string          `gorm:"type:varchar(64);not null;uniqueIndex"`
	Kind           fee.OrderKind   `gorm:"type:varchar(10);not null"`
	StudentID      uuid.UUID       `gorm:"type:uuid;not null"`
	Period         string          `gorm:"type:varchar(50)"`
	BatchID        *uuid.UUID      `gorm:"type:uuid"`
	Amount         decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Status         fee.OrderStatus `gorm:"type:varchar(10);not null;default:'CREATED'"`
	TransactionRef string          `gorm:"type:varchar(100)"`
	RedirectURL    string          `gorm:"type:varchar(500)"`
	PaidAt         *time.Time
}

// TableName returns the table name for GORM
func (PaymentOrderModel) TableName() string {
	return "payment_orders"
}

// ToDomain converts the model to a domain PaymentOrder
func (m *PaymentOrderModel) ToDomain() *fee.PaymentOrder {
	return &fee.PaymentOrder{
		SessionAggregateRoot: sessionRoot(&m.AggregateModel, m.TenantID, m.SessionID),
		OrderRef:             m.OrderRef,
		Kind:                 m.Kind,
		StudentID:            m.StudentID,
		Period:               m.Period,
		BatchID:              m.BatchID,
		Amount:               m.Amount,
		Status:               m.Status,
		TransactionRef:       m.TransactionRef,
		RedirectURL:          m.RedirectURL,
		PaidAt:               m.PaidAt,
	}
}

// PaymentOrderModelFromDomain creates a model from a domain PaymentOrder
func PaymentOrderModelFromDomain(o *fee.PaymentOrder) *PaymentOrderModel {
	m := &PaymentOrderModel{
		TenantID:       o.TenantID,
		SessionID:      o.SessionID,
		OrderRef:       o.OrderRef,
		Kind:           o.Kind,
		StudentID:      o.StudentID,
		Period:         o.Period,
		BatchID:        o.BatchID,
		Amount:         o.Amount,
		Status:         o.Status,
		TransactionRef: o.TransactionRef,
		RedirectURL:    o.RedirectURL,
		PaidAt:         o.PaidAt,
	}
	m.FromDomainAggregateRoot(o.BaseAggregateRoot)
	return m
}
