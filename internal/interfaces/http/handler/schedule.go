package handler

import (
	appfee "github.com/feeledger/backend/internal/application/fee"
	"github.com/feeledger/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// ScheduleHandler reads and publishes monthly fee schedules
type ScheduleHandler struct {
	BaseHandler
	schedules *appfee.ScheduleService
}

// NewScheduleHandler creates a new ScheduleHandler
func NewScheduleHandler(resolver *appfee.SessionResolver, schedules *appfee.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{BaseHandler: BaseHandler{resolver: resolver}, schedules: schedules}
}

// PublishResponse is the outcome of a publish
type PublishResponse struct {
	Schedule  dto.ScheduleResponse   `json:"schedule"`
	Revised   bool                   `json:"revised"`
	Republish appfee.RepublishResult `json:"republish"`
}

// List handles GET /fees/schedules
func (h *ScheduleHandler) List(c *gin.Context) {
	scope, ok := h.readScope(c)
	if !ok {
		return
	}
	schedules, err := h.schedules.ListSchedules(c.Request.Context(), scope)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := make([]dto.ScheduleResponse, len(schedules))
	for i := range schedules {
		out[i] = dto.ToScheduleResponse(&schedules[i])
	}
	h.Success(c, out)
}

// Get handles GET /fees/schedules/:period
func (h *ScheduleHandler) Get(c *gin.Context) {
	scope, ok := h.readScope(c)
	if !ok {
		return
	}
	schedule, err := h.schedules.GetSchedule(c.Request.Context(), scope, c.Param("period"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToScheduleResponse(schedule))
}

// Publish handles PUT /fees/schedules/:period. Publishing an existing period
// revises it and republishes the unpaid dues.
func (h *ScheduleHandler) Publish(c *gin.Context) {
	var req dto.PublishScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	scope, ok := h.writeScope(c)
	if !ok {
		return
	}
	result, err := h.schedules.Publish(c.Request.Context(), scope, appfee.PublishScheduleInput{
		Period:     c.Param("period"),
		Components: req.Components,
		Rates:      req.Rates,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	resp := PublishResponse{
		Schedule:  dto.ToScheduleResponse(result.Schedule),
		Revised:   result.Revised,
		Republish: result.Republish,
	}
	if result.Revised {
		h.Success(c, resp)
		return
	}
	h.Created(c, resp)
}

// Republish handles POST /fees/schedules/:period/republish. It rebuilds the
// unpaid dues of the period from the current roster.
func (h *ScheduleHandler) Republish(c *gin.Context) {
	scope, ok := h.writeScope(c)
	if !ok {
		return
	}
	result, err := h.schedules.Republish(c.Request.Context(), scope, c.Param("period"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
