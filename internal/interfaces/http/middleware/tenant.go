package middleware

import (
	"net/http"
	"strings"

	"github.com/feeledger/backend/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Tenant and session context keys
const (
	TenantIDKey        = "tenant_id"
	SessionOverrideKey = "session_override"
	SessionHeader      = "X-Session-ID"
)

// Tenant takes the tenant from the verified claims. There is no header
// fallback: a caller only ever acts inside the tenant its token names.
func Tenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetJWTClaims(c)
		if claims == nil {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			return
		}
		tenantID, err := claims.GetTenantUUID()
		if err != nil || tenantID == uuid.Nil {
			abortWithError(c, http.StatusUnauthorized, "INVALID_TENANT", "Token carries an invalid tenant id")
			return
		}
		c.Set(TenantIDKey, tenantID)
		c.Request = c.Request.WithContext(logger.WithTenantID(c.Request.Context(), tenantID.String()))
		c.Next()
	}
}

// GetTenantID returns the tenant set by Tenant
func GetTenantID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(TenantIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// SessionOverride reads the X-Session-ID header on GET requests so reports
// can look at a past session. Mutations always act on the active session, so
// the header is ignored for every other method.
func SessionOverride(log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(SessionHeader))
		if raw == "" {
			c.Next()
			return
		}
		if c.Request.Method != http.MethodGet {
			log.Debug("session override ignored on mutation",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path))
			c.Next()
			return
		}
		sessionID, err := uuid.Parse(raw)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "INVALID_SESSION_ID", SessionHeader+" must be a UUID")
			return
		}
		c.Set(SessionOverrideKey, sessionID)
		c.Request = c.Request.WithContext(logger.WithSessionID(c.Request.Context(), sessionID.String()))
		c.Next()
	}
}

// GetSessionOverride returns the override accepted by SessionOverride
func GetSessionOverride(c *gin.Context) *uuid.UUID {
	v, ok := c.Get(SessionOverrideKey)
	if !ok {
		return nil
	}
	id, ok := v.(uuid.UUID)
	if !ok {
		return nil
	}
	return &id
}
