// Package handler holds the gin handlers of the fee API. Handlers bind and
// validate the request, resolve the caller's scope and delegate to the
// application services; they hold no fee logic of their own.
package handler

import (
	"net/http"

	appfee "github.com/feeledger/backend/internal/application/fee"
	"github.com/feeledger/backend/internal/domain/academic"
	"github.com/feeledger/backend/internal/infrastructure/logger"
	"github.com/feeledger/backend/internal/interfaces/http/dto"
	"github.com/feeledger/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct {
	resolver *appfee.SessionResolver
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error response with an explicit status and code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// HandleError renders err through the error taxonomy. Server-side failures
// are logged with the request's context fields.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	status, info := dto.FromError(err)
	info.RequestID = middleware.GetRequestID(c)
	if status >= http.StatusInternalServerError {
		logger.L(c.Request.Context()).Error("request failed",
			zap.Error(err),
			zap.String("path", c.FullPath()))
	}
	c.JSON(status, dto.Response{Success: false, Error: info})
}

// BindError answers a failed ShouldBind call
func (h *BaseHandler) BindError(c *gin.Context, err error) {
	middleware.HandleBindError(c, err)
}

// readScope resolves the scope of a read. A valid X-Session-ID override is
// honored, otherwise the tenant's active session is used.
func (h *BaseHandler) readScope(c *gin.Context) (academic.Scope, bool) {
	return h.resolve(c, middleware.GetSessionOverride(c))
}

// writeScope resolves the scope of a mutation, always the active session
func (h *BaseHandler) writeScope(c *gin.Context) (academic.Scope, bool) {
	return h.resolve(c, nil)
}

func (h *BaseHandler) resolve(c *gin.Context, override *uuid.UUID) (academic.Scope, bool) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return academic.Scope{}, false
	}
	scope, err := h.resolver.Resolve(c.Request.Context(), tenantID, override)
	if err != nil {
		h.HandleError(c, err)
		return academic.Scope{}, false
	}
	c.Request = c.Request.WithContext(logger.WithSessionID(c.Request.Context(), scope.SessionID.String()))
	return scope, true
}

func (h *BaseHandler) tenantID(c *gin.Context) (uuid.UUID, bool) {
	tenantID, ok := middleware.GetTenantID(c)
	if !ok {
		h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Tenant context required")
		return uuid.Nil, false
	}
	return tenantID, true
}

// pathUUID parses a UUID path parameter, answering 400 when malformed
func (h *BaseHandler) pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.BadRequest(c, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
