package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/feeledger/backend/internal/infrastructure/auth"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRequireRole(t *testing.T) {
	svc := newTestJWTService(15 * time.Minute)

	tests := []struct {
		name   string
		role   auth.Role
		allow  []auth.Role
		status int
	}{
		{"principal may manage sessions", auth.RolePrincipal, []auth.Role{auth.RolePrincipal}, http.StatusOK},
		{"accountant may not manage sessions", auth.RoleAccountant, []auth.Role{auth.RolePrincipal}, http.StatusForbidden},
		{"accountant settles", auth.RoleAccountant, FinanceRoles, http.StatusOK},
		{"teacher reads reports", auth.RoleTeacher, StaffRoles, http.StatusOK},
		{"teacher does not settle", auth.RoleTeacher, FinanceRoles, http.StatusForbidden},
		{"guardian reads own dues", auth.RoleGuardian, AnyRole, http.StatusOK},
		{"guardian is not staff", auth.RoleGuardian, StaffRoles, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, _ := newTestToken(t, svc, tt.role)
			router := gin.New()
			router.Use(JWTAuth(JWTConfig{Validator: svc}))
			router.GET("/test", RequireRole(tt.allow...), func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusForbidden {
				assert.Equal(t, "FORBIDDEN", errorCode(t, rec))
			}
		})
	}
}

func TestRequireRole_NoClaims(t *testing.T) {
	router := gin.New()
	router.GET("/test", RequireRole(AnyRole...), func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, rec))
}
