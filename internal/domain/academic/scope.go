package academic

import (
	"github.com/google/uuid"
)

// Scope identifies the tenant and academic session every fee operation runs
// in. It is resolved once per request and passed explicitly; no fee code reads
// the session from ambient state.
type Scope struct {
	TenantID  uuid.UUID
	SessionID uuid.UUID
}

// IsZero reports whether the scope was never resolved
func (s Scope) IsZero() bool {
	return s.TenantID == uuid.Nil || s.SessionID == uuid.Nil
}
