// Package handlers holds gin handlers for the job-scoped RPC surface
// (spec.md §6) and the global listing/search surface, each a thin
// parse-call-respond wrapper over internal/jobs/controller.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/domainscout/core/internal/domain"
	"github.com/domainscout/core/internal/http/response"
	"github.com/domainscout/core/internal/jobs/controller"
	"github.com/domainscout/core/internal/sse"
)

type JobHandler struct {
	ctrl *controller.Controller
	hub  *sse.Hub
}

func NewJobHandler(ctrl *controller.Controller, hub *sse.Hub) *JobHandler {
	return &JobHandler{ctrl: ctrl, hub: hub}
}

type startBody struct {
	JobID          uuid.UUID            `json:"job_id" binding:"required"`
	ClientID       string                `json:"client_id" binding:"required"`
	QuizResponses  domain.QuizResponses  `json:"quiz_responses" binding:"required"`
	DriverProvider string                `json:"driver_provider"`
	SwarmProvider  string                `json:"swarm_provider"`
}

// POST /start
func (h *JobHandler) Start(c *gin.Context) {
	var body startBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, "malformed_request", err)
		return
	}
	job, err := h.ctrl.Start(c.Request.Context(), controller.StartRequest{
		JobID:          body.JobID,
		ClientID:       body.ClientID,
		Quiz:           body.QuizResponses,
		DriverProvider: body.DriverProvider,
		SwarmProvider:  body.SwarmProvider,
	})
	if err != nil {
		response.RespondAPIErr(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"job": job})
}

func parseJobID(c *gin.Context) (uuid.UUID, error) {
	return uuid.Parse(c.Param("id"))
}

// GET /status
func (h *JobHandler) Status(c *gin.Context) {
	id, err := parseJobID(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	snap, err := h.ctrl.Status(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIErr(c, err)
		return
	}
	response.RespondOK(c, snap)
}

// GET /results
func (h *JobHandler) Results(c *gin.Context) {
	id, err := parseJobID(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	snap, err := h.ctrl.Results(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIErr(c, err)
		return
	}
	response.RespondOK(c, snap)
}

// GET /followup
func (h *JobHandler) Followup(c *gin.Context) {
	id, err := parseJobID(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	artifact, err := h.ctrl.Followup(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"artifact": artifact})
}

type resumeBody struct {
	FollowupResponses domain.FollowupResponses `json:"followup_responses" binding:"required"`
}

// POST /resume
func (h *JobHandler) Resume(c *gin.Context) {
	id, err := parseJobID(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	var body resumeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, "malformed_request", err)
		return
	}
	if err := h.ctrl.Resume(c.Request.Context(), id, body.FollowupResponses); err != nil {
		response.RespondAPIErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"status": "running"})
}

// POST /cancel
func (h *JobHandler) Cancel(c *gin.Context) {
	id, err := parseJobID(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	if err := h.ctrl.Cancel(c.Request.Context(), id); err != nil {
		response.RespondAPIErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"status": "cancelled"})
}

// GET /stream — either a one-shot JSON snapshot (default) or a live
// text/event-stream connection when Accept: text/event-stream is sent.
func (h *JobHandler) Stream(c *gin.Context) {
	id, err := parseJobID(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	if c.GetHeader("Accept") != "text/event-stream" {
		snap, err := h.ctrl.Stream(c.Request.Context(), id)
		if err != nil {
			response.RespondAPIErr(c, err)
			return
		}
		response.RespondOK(c, snap)
		return
	}

	client := h.hub.NewClient(id.String())
	h.hub.Subscribe(client)
	defer h.hub.CloseClient(client)
	h.hub.ServeHTTP(c.Writer, c.Request, client)
}
