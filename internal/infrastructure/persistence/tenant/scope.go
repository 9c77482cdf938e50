// Package tenant provides GORM scopes that confine queries to one tenant or
// one academic session of a tenant.
//
// Scopes take the scope value explicitly. Nothing is read from the request
// context, so a repository call can never silently run against the wrong
// session.
//
//	db.Scopes(tenant.SessionScope(scope)).Find(&dues)
package tenant

import (
	"github.com/feeledger/backend/internal/domain/academic"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TenantScope applies tenant filtering to GORM queries
func TenantScope(tenantID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("tenant_id = ?", tenantID)
	}
}

// SessionScope applies tenant and session filtering to GORM queries. An
// unresolved scope matches nothing.
func SessionScope(scope academic.Scope) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if scope.IsZero() {
			return db.Where("1 = 0")
		}
		return db.Where("tenant_id = ? AND session_id = ?", scope.TenantID, scope.SessionID)
	}
}
