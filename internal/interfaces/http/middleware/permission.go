package middleware

import (
	"net/http"

	"github.com/feeledger/backend/internal/infrastructure/auth"
	"github.com/gin-gonic/gin"
)

// Role groups used by the route table
var (
	StaffRoles   = []auth.Role{auth.RolePrincipal, auth.RoleAccountant, auth.RoleTeacher}
	FinanceRoles = []auth.Role{auth.RolePrincipal, auth.RoleAccountant}
	AnyRole      = []auth.Role{auth.RolePrincipal, auth.RoleAccountant, auth.RoleTeacher, auth.RoleGuardian}
)

// RequireRole lets the request through when the caller holds one of roles
func RequireRole(roles ...auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetJWTClaims(c)
		if claims == nil {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			return
		}
		if !claims.HasRole(roles...) {
			abortWithError(c, http.StatusForbidden, "FORBIDDEN", "Role "+string(claims.Role)+" may not perform this action")
			return
		}
		c.Next()
	}
}
