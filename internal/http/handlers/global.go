package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/domainscout/core/internal/domain"
	"github.com/domainscout/core/internal/http/response"
	"github.com/domainscout/core/internal/jobs/controller"
	"github.com/domainscout/core/internal/repos"
)

// GlobalHandler serves the process-wide RPCs that sit above a single job:
// allocate-and-start, listing, and index backfill (spec.md §6).
type GlobalHandler struct {
	ctrl  *controller.Controller
	index repos.JobIndexRepo
}

func NewGlobalHandler(ctrl *controller.Controller, index repos.JobIndexRepo) *GlobalHandler {
	return &GlobalHandler{ctrl: ctrl, index: index}
}

type searchBody struct {
	ClientID       string               `json:"client_id" binding:"required"`
	QuizResponses  domain.QuizResponses `json:"quiz_responses" binding:"required"`
	DriverProvider string               `json:"driver_provider"`
	SwarmProvider  string               `json:"swarm_provider"`
}

// POST /api/search allocates a fresh job id and forwards straight to Start.
func (h *GlobalHandler) Search(c *gin.Context) {
	var body searchBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, "malformed_request", err)
		return
	}
	jobID := uuid.New()
	job, err := h.ctrl.Start(c.Request.Context(), controller.StartRequest{
		JobID:          jobID,
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

// GET /api/jobs/list?limit&offset&status&client_id
func (h *GlobalHandler) List(c *gin.Context) {
	limit := queryInt(c, "limit", 20)
	offset := queryInt(c, "offset", 0)
	status := domain.Status(c.Query("status"))
	clientID := c.Query("client_id")

	rows, total, err := h.index.List(c.Request.Context(), clientID, status, offset, limit)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "list_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"jobs": rows, "total": total})
}

// GET /api/jobs/recent?limit
func (h *GlobalHandler) Recent(c *gin.Context) {
	limit := queryInt(c, "limit", 10)
	rows, err := h.index.Recent(c.Request.Context(), limit)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "recent_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"jobs": rows})
}

type backfillBody struct {
	JobIDs []uuid.UUID `json:"job_ids" binding:"required"`
}

// POST /api/backfill refreshes existing job_index rows from each job's own
// store (the index is never authoritative — see domain.JobIndex doc). A job
// id with no index row is reported as failed; no new row is created for it.
func (h *GlobalHandler) Backfill(c *gin.Context) {
	var body backfillBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, "malformed_request", err)
		return
	}

	results := make([]gin.H, 0, len(body.JobIDs))
	for _, id := range body.JobIDs {
		snap, err := h.ctrl.Status(c.Request.Context(), id)
		if err != nil {
			results = append(results, gin.H{"job_id": id, "ok": false, "error": err.Error()})
			continue
		}
		idx, err := h.index.Get(c.Request.Context(), id)
		if err != nil {
			results = append(results, gin.H{"job_id": id, "ok": false, "error": "no index row to backfill"})
			continue
		}
		idx.Status = snap.Status
		idx.BatchNum = snap.BatchNum
		idx.DomainsChecked = snap.DomainsChecked
		idx.GoodResults = snap.GoodResults
		if err := h.index.Upsert(c.Request.Context(), idx); err != nil {
			results = append(results, gin.H{"job_id": id, "ok": false, "error": err.Error()})
			continue
		}
		results = append(results, gin.H{"job_id": id, "ok": true})
	}
	response.RespondOK(c, gin.H{"results": results})
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}
