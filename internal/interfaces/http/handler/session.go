package handler

import (
	appfee "github.com/feeledger/backend/internal/application/fee"
	"github.com/feeledger/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// SessionHandler manages the academic sessions of the caller's school
type SessionHandler struct {
	BaseHandler
	sessions *appfee.SessionService
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(resolver *appfee.SessionResolver, sessions *appfee.SessionService) *SessionHandler {
	return &SessionHandler{BaseHandler: BaseHandler{resolver: resolver}, sessions: sessions}
}

// List handles GET /sessions
func (h *SessionHandler) List(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	sessions, err := h.sessions.ListSessions(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := make([]dto.SessionResponse, len(sessions))
	for i := range sessions {
		out[i] = dto.ToSessionResponse(&sessions[i])
	}
	h.Success(c, out)
}

// Create handles POST /sessions
func (h *SessionHandler) Create(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req dto.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	session, err := h.sessions.CreateSession(c.Request.Context(), tenantID, appfee.CreateSessionInput{
		Name:     req.Name,
		StartsOn: req.StartsOn,
		EndsOn:   req.EndsOn,
		Activate: req.Activate,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.ToSessionResponse(session))
}

// Activate handles POST /sessions/:id/activate
func (h *SessionHandler) Activate(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	sessionID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	session, err := h.sessions.ActivateSession(c.Request.Context(), tenantID, sessionID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToSessionResponse(session))
}

// Delete handles DELETE /sessions/:id. The response lists how many rows of
// each session-scoped entity were purged.
func (h *SessionHandler) Delete(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	sessionID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	purged, err := h.sessions.DeleteSession(c.Request.Context(), tenantID, sessionID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"session_id": sessionID, "purged": purged})
}
