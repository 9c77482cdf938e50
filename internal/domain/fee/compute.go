package fee

import (
	"strings"

	"github.com/feeledger/backend/internal/domain/academic"
)

// OptInCategory is a class of components a student must opt into
type OptInCategory string

const (
	OptInNone      OptInCategory = ""
	OptInTransport OptInCategory = "TRANSPORT"
)

// CategoryOf classifies a component name. Any component mentioning transport
// is gated by the transport opt-in.
func CategoryOf(component string) OptInCategory {
	if strings.Contains(strings.ToLower(component), "transport") {
		return OptInTransport
	}
	return OptInNone
}

func optedIn(category OptInCategory, flags academic.OptInFlags) bool {
	switch category {
	case OptInTransport:
		return flags.Transport
	default:
		return true
	}
}

// ComputeVirtual derives a student's due for a schedule without touching
// storage. A component is included only when its class rate is positive and
// the student is opted into its category. ok is false when the student's
// class has no rates in the schedule.
func ComputeVirtual(schedule *FeeSchedule, student academic.Student) (Breakdown, bool) {
	rates, ok := schedule.RatesFor(student.Class)
	if !ok {
		return Breakdown{}, false
	}
	byComponent := make(map[string]ComponentRate, len(rates))
	for _, r := range rates {
		byComponent[r.Component] = r
	}

	breakdown := Breakdown{}
	for _, component := range schedule.Components {
		r, found := byComponent[component]
		if !found || !r.Amount.IsPositive() {
			continue
		}
		if !optedIn(CategoryOf(component), student.OptIns) {
			continue
		}
		breakdown = append(breakdown, BreakdownLine{Component: component, Amount: r.Amount})
	}
	return breakdown, true
}
