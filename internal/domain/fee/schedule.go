package fee

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/feeledger/backend/internal/domain/academic"
	"github.com/feeledger/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ComponentRate is the amount of one component for one class
type ComponentRate struct {
	Component string          `json:"component"`
	Amount    decimal.Decimal `json:"amount"`
}

// ClassRateTable maps a class label to its component rates
type ClassRateTable map[string][]ComponentRate

// Classes returns the class labels in sorted order
func (t ClassRateTable) Classes() []string {
	classes := make([]string, 0, len(t))
	for class := range t {
		classes = append(classes, class)
	}
	sort.Strings(classes)
	return classes
}

// Value implements driver.Valuer
func (t ClassRateTable) Value() (driver.Value, error) {
	if t == nil {
		return "{}", nil
	}
	data, err := json.Marshal(map[string][]ComponentRate(t))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner
func (t *ClassRateTable) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*t = ClassRateTable{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("class rate table: unsupported scan type %T", src)
	}
	rates := map[string][]ComponentRate{}
	if err := json.Unmarshal(data, &rates); err != nil {
		return fmt.Errorf("class rate table: %w", err)
	}
	*t = rates
	return nil
}

// FeeSchedule is the published rate card of one billing period in one
// session. It is unique per (tenant, period, session).
type FeeSchedule struct {
	shared.SessionAggregateRoot
	Period      string
	Components  []string
	Rates       ClassRateTable
	PublishedAt time.Time
}

// NewFeeSchedule validates and creates a schedule
func NewFeeSchedule(scope academic.Scope, period string, components []string, rates ClassRateTable) (*FeeSchedule, error) {
	if scope.IsZero() {
		return nil, academic.ErrNoActiveSession
	}
	period = strings.TrimSpace(period)
	if period == "" || len(period) > 50 {
		return nil, shared.NewValidationError("INVALID_PERIOD", "Period must be 1-50 characters")
	}
	if err := validateRateCard(components, rates); err != nil {
		return nil, err
	}
	s := &FeeSchedule{
		SessionAggregateRoot: shared.NewSessionAggregateRoot(scope.TenantID, scope.SessionID),
		Period:               period,
		Components:           components,
		Rates:                rates,
		PublishedAt:          time.Now(),
	}
	s.AddDomainEvent(NewSchedulePublishedEvent(s))
	return s, nil
}

// Revise replaces the rate card of an existing schedule
func (s *FeeSchedule) Revise(components []string, rates ClassRateTable) error {
	if err := validateRateCard(components, rates); err != nil {
		return err
	}
	s.Components = components
	s.Rates = rates
	s.PublishedAt = time.Now()
	s.UpdatedAt = s.PublishedAt
	s.IncrementVersion()
	s.AddDomainEvent(NewSchedulePublishedEvent(s))
	return nil
}

// Scope returns the schedule's scope
func (s *FeeSchedule) Scope() academic.Scope {
	return academic.Scope{TenantID: s.TenantID, SessionID: s.SessionID}
}

// RatesFor returns the rates of class and whether the class is configured
func (s *FeeSchedule) RatesFor(class string) ([]ComponentRate, bool) {
	rates, ok := s.Rates[class]
	return rates, ok
}

func validateRateCard(components []string, rates ClassRateTable) error {
	if len(components) == 0 {
		return shared.NewValidationError("NO_COMPONENTS", "At least one fee component is required")
	}
	seen := make(map[string]bool, len(components))
	for _, c := range components {
		if strings.TrimSpace(c) == "" {
			return shared.NewValidationError("INVALID_COMPONENT", "Component names cannot be blank")
		}
		if seen[c] {
			return shared.NewValidationError("DUPLICATE_COMPONENT", fmt.Sprintf("Component %q listed twice", c))
		}
		seen[c] = true
	}
	if len(rates) == 0 {
		return shared.NewValidationError("NO_CLASS_RATES", "At least one class rate is required")
	}
	for class, classRates := range rates {
		if strings.TrimSpace(class) == "" {
			return shared.NewValidationError("INVALID_CLASS", "Class labels cannot be blank")
		}
		for _, r := range classRates {
			if !seen[r.Component] {
				return shared.NewValidationError("UNKNOWN_COMPONENT",
					fmt.Sprintf("Class %s rates unknown component %q", class, r.Component))
			}
			if r.Amount.IsNegative() {
				return shared.NewValidationError("NEGATIVE_AMOUNT",
					fmt.Sprintf("Class %s component %s has a negative amount", class, r.Component))
			}
		}
	}
	return nil
}
