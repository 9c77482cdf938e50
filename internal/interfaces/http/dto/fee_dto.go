package dto

import (
	"time"

	"github.com/feeledger/backend/internal/domain/academic"
	"github.com/feeledger/backend/internal/domain/fee"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateSessionRequest opens a new academic session
type CreateSessionRequest struct {
	Name     string     `json:"name" binding:"required,max=100"`
	StartsOn *time.Time `json:"starts_on"`
	EndsOn   *time.Time `json:"ends_on"`
	Activate bool       `json:"activate"`
}

// PublishScheduleRequest is the rate card of one period. Rates are keyed by
// class, then by component name.
type PublishScheduleRequest struct {
	Components []string                              `json:"components" binding:"required,min=1,dive,required,max=100"`
	Rates      map[string]map[string]decimal.Decimal `json:"rates" binding:"required,min=1"`
}

// PeriodQuery selects a billing period
type PeriodQuery struct {
	Period string `form:"period" binding:"required,max=50"`
}

// DefaultersQuery narrows the defaulter report
type DefaultersQuery struct {
	Period string `form:"period" binding:"required,max=50"`
	Class  string `form:"class" binding:"max=50"`
}

// SettleDueRequest records a counter payment of a monthly due
type SettleDueRequest struct {
	StudentID   string `json:"student_id" binding:"required,uuid"`
	Period      string `json:"period" binding:"required,max=50"`
	CollectedBy string `json:"collected_by" binding:"required,max=200"`
}

// CollectRequest names who took the money at the counter
type CollectRequest struct {
	CollectedBy string `json:"collected_by" binding:"required,max=200"`
}

// ChargeLine is one fee of a batch
type ChargeLine struct {
	Name   string          `json:"name" binding:"required,max=100"`
	Amount decimal.Decimal `json:"amount"`
}

// ApplyBatchRequest raises the same charges on a list of students
type ApplyBatchRequest struct {
	Period     string       `json:"period" binding:"required,max=50"`
	StudentIDs []string     `json:"student_ids" binding:"required,min=1,dive,uuid"`
	Charges    []ChargeLine `json:"charges" binding:"required,min=1,dive"`
}

// CreatePaymentOrderRequest asks for a gateway order
type CreatePaymentOrderRequest struct {
	Kind      string `json:"kind" binding:"required,oneof=DUE BATCH"`
	StudentID string `json:"student_id" binding:"required,uuid"`
	Period    string `json:"period" binding:"omitempty,max=50"`
	BatchID   string `json:"batch_id" binding:"omitempty,uuid"`
}

// VerifyPaymentRequest is the gateway confirmation relayed to the ledger
type VerifyPaymentRequest struct {
	OrderRef       string          `json:"order_ref" binding:"required,max=64"`
	TransactionRef string          `json:"transaction_ref" binding:"required,max=128"`
	Signature      string          `json:"signature" binding:"required,hexadecimal,len=64"`
	Amount         decimal.Decimal `json:"amount"`
}

// SessionResponse is an academic session
type SessionResponse struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Active    bool       `json:"active"`
	StartsOn  *time.Time `json:"starts_on,omitempty"`
	EndsOn    *time.Time `json:"ends_on,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// ToSessionResponse converts a session
func ToSessionResponse(s *academic.Session) SessionResponse {
	return SessionResponse{
		ID:        s.ID,
		Name:      s.Name,
		Active:    s.Active,
		StartsOn:  s.StartsOn,
		EndsOn:    s.EndsOn,
		CreatedAt: s.CreatedAt,
	}
}

// ScheduleResponse is a published fee schedule
type ScheduleResponse struct {
	ID          uuid.UUID          `json:"id"`
	SessionID   uuid.UUID          `json:"session_id"`
	Period      string             `json:"period"`
	Components  []string           `json:"components"`
	Rates       fee.ClassRateTable `json:"rates"`
	PublishedAt time.Time          `json:"published_at"`
	Version     int                `json:"version"`
}

// ToScheduleResponse converts a schedule
func ToScheduleResponse(s *fee.FeeSchedule) ScheduleResponse {
	return ScheduleResponse{
		ID:          s.ID,
		SessionID:   s.SessionID,
		Period:      s.Period,
		Components:  s.Components,
		Rates:       s.Rates,
		PublishedAt: s.PublishedAt,
		Version:     s.Version,
	}
}

// PaymentOrderResponse is a gateway order as shown to the payer
type PaymentOrderResponse struct {
	OrderRef       string          `json:"order_ref"`
	Kind           fee.OrderKind   `json:"kind"`
	StudentID      uuid.UUID       `json:"student_id"`
	Period         string          `json:"period,omitempty"`
	BatchID        *uuid.UUID      `json:"batch_id,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Status         fee.OrderStatus `json:"status"`
	TransactionRef string          `json:"transaction_ref,omitempty"`
	RedirectURL    string          `json:"redirect_url,omitempty"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
}

// ToPaymentOrderResponse converts a payment order
func ToPaymentOrderResponse(o *fee.PaymentOrder) PaymentOrderResponse {
	return PaymentOrderResponse{
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
}
