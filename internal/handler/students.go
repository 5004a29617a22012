package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"proctoring/internal/auth"
	"proctoring/internal/proctor"
)

type createStudentRequest struct {
	Name     string `json:"name" binding:"required"`
	Exam     string `json:"exam" binding:"required"`
	Password string `json:"password"`
}

func (h *Handler) CreateStudent(c *gin.Context) {
	var req createStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	st, err := h.svc.Register(c.Request.Context(), req.Name, req.Exam, req.Password)
	if err != nil {
		h.fail(c, err, "error creating student")
		return
	}
	c.JSON(http.StatusCreated, st)
}

func (h *Handler) ListStudents(c *gin.Context) {
	students, err := h.svc.List(c.Request.Context())
	if err != nil {
		h.fail(c, err, "error fetching students")
		return
	}
	if students == nil {
		students = []proctor.Student{}
	}
	c.JSON(http.StatusOK, students)
}

func (h *Handler) GetStudent(c *gin.Context) {
	st, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "error fetching student")
		return
	}
	c.JSON(http.StatusOK, st)
}

type statusRequest struct {
	Status proctor.Status `json:"status" binding:"required"`
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id := c.Param("id")
	if h.forbidden(c, id) {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	st, err := h.svc.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		h.fail(c, err, "error updating student status")
		return
	}
	c.JSON(http.StatusOK, st)
}

type riskScoreRequest struct {
	// Pointer so an explicit 0 passes the required check.
	RiskScore *int `json:"riskScore" binding:"required"`
}

func (h *Handler) UpdateRiskScore(c *gin.Context) {
	id := c.Param("id")
	if h.forbidden(c, id) {
		return
	}
	var req riskScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	st, err := h.svc.UpdateRiskScore(c.Request.Context(), id, *req.RiskScore)
	if err != nil {
		h.fail(c, err, "error updating student risk score")
		return
	}
	c.JSON(http.StatusOK, st)
}

type timeElapsedRequest struct {
	TimeElapsed string `json:"timeElapsed" binding:"required"`
}

func (h *Handler) UpdateTimeElapsed(c *gin.Context) {
	id := c.Param("id")
	if h.forbidden(c, id) {
		return
	}
	var req timeElapsedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	st, err := h.svc.UpdateTimeElapsed(c.Request.Context(), id, req.TimeElapsed)
	if err != nil {
		h.fail(c, err, "error updating student time elapsed")
		return
	}
	c.JSON(http.StatusOK, st)
}

type verifyRequest struct {
	Name     string `json:"name" binding:"required"`
	Password string `json:"password"`
}

type verifyResponse struct {
	Valid     bool   `json:"valid"`
	StudentID string `json:"studentId,omitempty"`
	Token     string `json:"token,omitempty"`
	ExpiresAt int64  `json:"expiresAt,omitempty"`
}

// VerifyStudent checks credentials and, on success, issues a session token
// for the student.
func (h *Handler) VerifyStudent(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.svc.Verify(c.Request.Context(), req.Name, req.Password)
	if err != nil {
		h.fail(c, err, "error verifying credentials")
		return
	}
	if !res.Valid {
		c.JSON(http.StatusOK, verifyResponse{Valid: false})
		return
	}
	tok, err := h.issuer.Issue(res.StudentID, auth.RoleStudent)
	if err != nil {
		h.fail(c, err, "error verifying credentials")
		return
	}
	c.JSON(http.StatusOK, verifyResponse{
		Valid:     true,
		StudentID: res.StudentID,
		Token:     tok.Value,
		ExpiresAt: tok.ExpiresAt.Unix(),
	})
}

func (h *Handler) ResetStudents(c *gin.Context) {
	n, err := h.svc.Reset(c.Request.Context())
	if err != nil {
		h.fail(c, err, "error deleting all students")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "all students deleted", "deleted": n})
}

func (h *Handler) DeleteStudent(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err, "error deleting student")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "student deleted"})
}
