package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"disc-assess/internal/service"
)

// QueueStats es la vista de la cola de analisis que usa el panel admin.
type QueueStats interface {
	Stats() map[service.JobState]int
	CooldownRemaining() time.Duration
}

type AdminHandler struct {
	logger      *zap.Logger
	users       *service.UserService
	assessments *service.AssessmentService
	queue       QueueStats
}

func NewAdminHandler(logger *zap.Logger, users *service.UserService, assessments *service.AssessmentService, queue QueueStats) *AdminHandler {
	return &AdminHandler{logger: logger, users: users, assessments: assessments, queue: queue}
}

// ListUsers maneja GET /admin/users.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	page, size := pageParams(c)
	users, err := h.users.List(c.Request.Context(), page, size)
	if err != nil {
		writeError(c, h.logger, "list users", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "page": max(page, 1)})
}

// SetRole maneja PATCH /admin/users/:id/role.
func (h *AdminHandler) SetRole(c *gin.Context) {
	var req struct {
		Role string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "set role", err)
		return
	}
	user, err := h.users.SetRole(c.Request.Context(), c.Param("id"), req.Role)
	if err != nil {
		writeError(c, h.logger, "set role", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// ListResults maneja GET /admin/results.
func (h *AdminHandler) ListResults(c *gin.Context) {
	page, size := pageParams(c)
	results, err := h.assessments.ListAllResults(c.Request.Context(), page, size)
	if err != nil {
		writeError(c, h.logger, "list all results", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "page": max(page, 1)})
}

// QueueStatus maneja GET /admin/analysis/queue.
func (h *AdminHandler) QueueStatus(c *gin.Context) {
	if h.queue == nil {
		c.JSON(http.StatusOK, gin.H{"stats": map[service.JobState]int{}, "cooldown_seconds": 0})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"stats":            h.queue.Stats(),
		"cooldown_seconds": int(h.queue.CooldownRemaining().Round(time.Second) / time.Second),
	})
}
