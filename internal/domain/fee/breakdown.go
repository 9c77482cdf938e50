package fee

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// BreakdownLine is one charged component of a due
type BreakdownLine struct {
	Component string          `json:"component"`
	Amount    decimal.Decimal `json:"amount"`
}

// Breakdown is the ordered list of components a due is made of. The order is
// the schedule's component order and is kept through storage.
type Breakdown []BreakdownLine

// Total sums every line
func (b Breakdown) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range b {
		total = total.Add(line.Amount)
	}
	return total
}

// Amount returns the amount charged for component, if present
func (b Breakdown) Amount(component string) (decimal.Decimal, bool) {
	for _, line := range b {
		if line.Component == component {
			return line.Amount, true
		}
	}
	return decimal.Zero, false
}

// Components lists component names in order
func (b Breakdown) Components() []string {
	names := make([]string, len(b))
	for i, line := range b {
		names[i] = line.Component
	}
	return names
}

// String renders "Tuition 1000, Transport 300"
func (b Breakdown) String() string {
	parts := make([]string, len(b))
	for i, line := range b {
		parts[i] = line.Component + " " + line.Amount.String()
	}
	return strings.Join(parts, ", ")
}

// Value implements driver.Valuer. Breakdowns are stored as a JSON array.
func (b Breakdown) Value() (driver.Value, error) {
	if b == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]BreakdownLine(b))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner
func (b *Breakdown) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*b = Breakdown{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("breakdown: unsupported scan type %T", src)
	}
	var lines []BreakdownLine
	if err := json.Unmarshal(data, &lines); err != nil {
		return fmt.Errorf("breakdown: %w", err)
	}
	*b = lines
	return nil
}
