package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"proctoring/internal/proctor"
)

type createActivityRequest struct {
	StudentID string     `json:"studentId" binding:"required"`
	Timestamp *time.Time `json:"timestamp"`
	Type      string     `json:"type" binding:"required"`
	Details   string     `json:"details"`
	RiskScore int        `json:"riskScore"`
}

func (h *Handler) CreateActivity(c *gin.Context) {
	var req createActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if h.forbidden(c, req.StudentID) {
		return
	}
	evt := proctor.ActivityEvent{
		StudentID: req.StudentID,
		Type:      req.Type,
		Details:   req.Details,
		RiskScore: req.RiskScore,
	}
	if req.Timestamp != nil {
		evt.Timestamp = req.Timestamp.UTC()
	}
	saved, err := h.svc.RecordActivity(c.Request.Context(), evt)
	if err != nil {
		h.fail(c, err, "error creating activity event")
		return
	}
	c.JSON(http.StatusCreated, saved)
}

func (h *Handler) ListActivities(c *gin.Context) {
	events, err := h.svc.AllActivity(c.Request.Context())
	if err != nil {
		h.fail(c, err, "error fetching activity events")
		return
	}
	c.JSON(http.StatusOK, events)
}

func (h *Handler) ListStudentActivities(c *gin.Context) {
	events, err := h.svc.StudentActivity(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "error fetching student activity events")
		return
	}
	if events == nil {
		events = []proctor.ActivityEvent{}
	}
	c.JSON(http.StatusOK, events)
}

// StudentActivitySummary returns event counts by type. The counts are fed
// asynchronously from the activity queue and may lag the event log.
func (h *Handler) StudentActivitySummary(c *gin.Context) {
	id := c.Param("id")
	counts, err := h.tally.Summary(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "error fetching activity summary")
		return
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	c.JSON(http.StatusOK, gin.H{"studentId": id, "total": total, "byType": counts})
}

func (h *Handler) ResetActivities(c *gin.Context) {
	n, err := h.svc.ResetActivity(c.Request.Context())
	if err != nil {
		h.fail(c, err, "error deleting all activity events")
		return
	}
	if err := h.tally.Reset(c.Request.Context()); err != nil {
		h.logger.Error("tally reset failed", "err", err)
	}
	c.JSON(http.StatusOK, gin.H{"message": "all activity events deleted", "deleted": n})
}
