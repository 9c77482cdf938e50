package academic

import (
	"github.com/google/uuid"
)

// OptInFlags are per-student toggles that gate optional fee components
type OptInFlags struct {
	Transport bool
}

// Student is a roster entry as seen by the fee engine. The roster itself is
// owned by the wider school system.
type Student struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	SessionID    uuid.UUID
	Name         string
	Class        string
	Active       bool
	OptIns       OptInFlags
	ContactEmail string
}
