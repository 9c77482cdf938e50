package academic

import "github.com/feeledger/backend/internal/domain/shared"

var (
	// ErrNoActiveSession is returned when a tenant has neither a usable
	// session pointer nor an active session.
	ErrNoActiveSession = shared.NewScopeError("NO_ACTIVE_SESSION", "no active session for tenant")

	// ErrForeignSession is returned when an explicit session override does not
	// belong to the requesting tenant.
	ErrForeignSession = shared.NewScopeError("FOREIGN_SESSION", "session does not belong to tenant")

	// ErrActiveSessionDelete guards the active session against deletion
	ErrActiveSessionDelete = shared.NewConflictError("ACTIVE_SESSION_DELETE", "cannot delete the active session")

	ErrTenantCodeTaken = shared.NewConflictError("TENANT_CODE_TAKEN", "tenant code already registered")
	ErrUnknownStudent  = shared.NewIntegrityError("UNKNOWN_STUDENT", "student is not on the session roster")
)
