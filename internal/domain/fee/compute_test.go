package fee

import (
	"testing"

	"github.com/feeledger/backend/internal/domain/academic"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testScope() academic.Scope {
	return academic.Scope{TenantID: uuid.New(), SessionID: uuid.New()}
}

func marchSchedule(t *testing.T) *FeeSchedule {
	t.Helper()
	s, err := NewFeeSchedule(testScope(), "March 2026", []string{"Tuition", "Transport", "Sports"}, ClassRateTable{
		"5": {
			{Component: "Tuition", Amount: decimal.NewFromInt(1000)},
			{Component: "Transport", Amount: decimal.NewFromInt(300)},
			{Component: "Sports", Amount: decimal.Zero},
		},
		"6": {
			{Component: "Sports", Amount: decimal.NewFromInt(50)},
			{Component: "Tuition", Amount: decimal.NewFromInt(1200)},
		},
	})
	require.NoError(t, err)
	return s
}

func TestComputeVirtual(t *testing.T) {
	schedule := marchSchedule(t)

	tests := []struct {
		name       string
		student    academic.Student
		wantOK     bool
		wantTotal  int64
		components []string
	}{
		{
			name:       "transport opt-out excludes transport",
			student:    academic.Student{ID: uuid.New(), Class: "5"},
			wantOK:     true,
			wantTotal:  1000,
			components: []string{"Tuition"},
		},
		{
			name:       "transport opt-in includes transport",
			student:    academic.Student{ID: uuid.New(), Class: "5", OptIns: academic.OptInFlags{Transport: true}},
			wantOK:     true,
			wantTotal:  1300,
			components: []string{"Tuition", "Transport"},
		},
		{
			name:       "order follows schedule components not rate order",
			student:    academic.Student{ID: uuid.New(), Class: "6"},
			wantOK:     true,
			wantTotal:  1250,
			components: []string{"Tuition", "Sports"},
		},
		{
			name:       "unknown class",
			student:    academic.Student{ID: uuid.New(), Class: "9"},
			wantOK:     false,
			wantTotal:  0,
			components: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			breakdown, ok := ComputeVirtual(schedule, tt.student)
			assert.Equal(t, tt.wantOK, ok)
			assert.True(t, breakdown.Total().Equal(decimal.NewFromInt(tt.wantTotal)), "total %s", breakdown.Total())
			assert.Equal(t, tt.components, breakdown.Components())
		})
	}
}

func TestComputeVirtual_Deterministic(t *testing.T) {
	schedule := marchSchedule(t)
	student := academic.Student{ID: uuid.New(), Class: "5", OptIns: academic.OptInFlags{Transport: true}}

	first, _ := ComputeVirtual(schedule, student)
	for i := 0; i < 20; i++ {
		again, _ := ComputeVirtual(schedule, student)
		assert.Equal(t, first, again)
	}
}

func TestCategoryOf(t *testing.T) {
	assert.Equal(t, OptInTransport, CategoryOf("Transport"))
	assert.Equal(t, OptInTransport, CategoryOf("School transport (bus)"))
	assert.Equal(t, OptInNone, CategoryOf("Tuition"))
}

func TestNewFeeSchedule_Validation(t *testing.T) {
	scope := testScope()
	rates := ClassRateTable{"5": {{Component: "Tuition", Amount: decimal.NewFromInt(10)}}}

	tests := []struct {
		name       string
		scope      academic.Scope
		period     string
		components []string
		rates      ClassRateTable
		code       string
	}{
		{"no scope", academic.Scope{}, "March 2026", []string{"Tuition"}, rates, "NO_ACTIVE_SESSION"},
		{"blank period", scope, " ", []string{"Tuition"}, rates, "INVALID_PERIOD"},
		{"no components", scope, "March 2026", nil, rates, "NO_COMPONENTS"},
		{"duplicate component", scope, "March 2026", []string{"Tuition", "Tuition"}, rates, "DUPLICATE_COMPONENT"},
		{"no classes", scope, "March 2026", []string{"Tuition"}, ClassRateTable{}, "NO_CLASS_RATES"},
		{"unknown component", scope, "March 2026", []string{"Lab"}, rates, "UNKNOWN_COMPONENT"},
		{"negative", scope, "March 2026", []string{"Tuition"}, ClassRateTable{"5": {{Component: "Tuition", Amount: decimal.NewFromInt(-1)}}}, "NEGATIVE_AMOUNT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFeeSchedule(tt.scope, tt.period, tt.components, tt.rates)
			require.Error(t, err)
			assert.Contains(t, errCode(err), tt.code)
		})
	}
}

func TestFeeSchedule_Revise(t *testing.T) {
	s := marchSchedule(t)
	s.ClearDomainEvents()

	err := s.Revise([]string{"Tuition"}, ClassRateTable{"5": {{Component: "Tuition", Amount: decimal.NewFromInt(900)}}})
	require.NoError(t, err)
	assert.Equal(t, 2, s.GetVersion())
	require.Len(t, s.GetDomainEvents(), 1)
	assert.Equal(t, EventTypeSchedulePublished, s.GetDomainEvents()[0].EventType())
}
