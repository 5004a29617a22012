package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"proctoring/internal/auth"
	"proctoring/internal/proctor"
	"proctoring/internal/tally"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Handler serves the proctoring REST API.
type Handler struct {
	svc             *proctor.Service
	tally           tally.Tally
	issuer          *auth.Issuer
	sessionRequired bool
	checks          map[string]HealthCheck
	logger          *slog.Logger
}

// Options configures a Handler.
type Options struct {
	Tally           tally.Tally
	Issuer          *auth.Issuer
	SessionRequired bool
	Checks          map[string]HealthCheck
	Logger          *slog.Logger
}

// New creates a handler. A nil Tally or Issuer gets a process-local default.
func New(svc *proctor.Service, opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Tally == nil {
		opts.Tally = tally.NewMemory()
	}
	if opts.Issuer == nil {
		// Tokens from an ephemeral key do not survive a restart.
		opts.Issuer = auth.NewIssuer("proctor-api", uuid.NewString(), 0)
	}
	return &Handler{
		svc:             svc,
		tally:           opts.Tally,
		issuer:          opts.Issuer,
		sessionRequired: opts.SessionRequired,
		checks:          opts.Checks,
		logger:          opts.Logger,
	}
}

// Register mounts every route on r. The reset route is registered before the
// single-id delete so it can never be read as an id.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	session := auth.StudentSession(h.issuer, h.sessionRequired)

	students := api.Group("/students")
	students.POST("", h.CreateStudent)
	students.GET("", h.ListStudents)
	students.POST("/verify", h.VerifyStudent)
	students.DELETE("/reset/all", h.ResetStudents)
	students.GET("/:id", h.GetStudent)
	students.PATCH("/:id/status", session, h.UpdateStatus)
	students.PATCH("/:id/risk-score", session, h.UpdateRiskScore)
	students.PATCH("/:id/time-elapsed", session, h.UpdateTimeElapsed)
	students.DELETE("/:id", h.DeleteStudent)

	activities := api.Group("/activities")
	activities.POST("", session, h.CreateActivity)
	activities.GET("", h.ListActivities)
	activities.DELETE("/reset/all", h.ResetActivities)
	activities.GET("/student/:id", h.ListStudentActivities)
	activities.GET("/student/:id/summary", h.StudentActivitySummary)
}

// Healthz runs every registered check.
func (h *Handler) Healthz(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, check := range h.checks {
		healthy := check(c.Request.Context()) == nil
		body[name] = healthy
		if !healthy {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

// fail maps a service error onto an HTTP response. Unknown errors are logged
// and reported with a generic message.
func (h *Handler) fail(c *gin.Context, err error, generic string) {
	switch {
	case errors.Is(err, proctor.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
	case errors.Is(err, proctor.ErrInvalidStatus),
		errors.Is(err, proctor.ErrInvalidRiskScore),
		errors.Is(err, proctor.ErrMissingField):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error(generic, "method", c.Request.Method, "path", c.FullPath(), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": generic})
	}
}

func (h *Handler) forbidden(c *gin.Context, studentID string) bool {
	if auth.Authorized(c, studentID) {
		return false
	}
	c.JSON(http.StatusForbidden, gin.H{"error": "session does not belong to this student"})
	return true
}
