package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"disc-assess/internal/questionnaire"
	"disc-assess/internal/service"
)

// AssessmentHandler expone el banco de preguntas y el ciclo de respuesta.
type AssessmentHandler struct {
	logger      *zap.Logger
	bank        *questionnaire.Bank
	assessments *service.AssessmentService
}

func NewAssessmentHandler(logger *zap.Logger, bank *questionnaire.Bank, assessments *service.AssessmentService) *AssessmentHandler {
	return &AssessmentHandler{logger: logger, bank: bank, assessments: assessments}
}

// Questionnaire maneja GET /questionnaires/:kind.
func (h *AssessmentHandler) Questionnaire(c *gin.Context) {
	kind := strings.ToLower(c.Param("kind"))
	part, err := h.bank.ForKind(kind)
	if err != nil {
		writeError(c, h.logger, "questionnaire", service.ErrInvalidKind)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"kind":            kind,
		"questionnaire":   part,
		"total_questions": h.bank.QuestionCount(kind),
	})
}

// Start maneja POST /assessments.
func (h *AssessmentHandler) Start(c *gin.Context) {
	viewer, ok := viewerFrom(c)
	if !ok {
		return
	}
	var req struct {
		Kind string `json:"kind" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "start assessment", err)
		return
	}

	a, err := h.assessments.Start(c.Request.Context(), viewer.UserID, req.Kind)
	if err != nil {
		writeError(c, h.logger, "start assessment", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"assessment": a, "total_questions": h.bank.QuestionCount(a.Kind)})
}

// Get maneja GET /assessments/:id.
func (h *AssessmentHandler) Get(c *gin.Context) {
	viewer, ok := viewerFrom(c)
	if !ok {
		return
	}
	a, err := h.assessments.Get(c.Request.Context(), viewer, c.Param("id"))
	if err != nil {
		writeError(c, h.logger, "get assessment", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assessment": a})
}

// SaveAnswer maneja PUT /assessments/:id/answers. value acepta "D" o 4.
func (h *AssessmentHandler) SaveAnswer(c *gin.Context) {
	viewer, ok := viewerFrom(c)
	if !ok {
		return
	}
	var req struct {
		QuestionID int `json:"question_id" binding:"required"`
		Value      any `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "save answer", err)
		return
	}

	answer, err := h.assessments.SaveAnswer(c.Request.Context(), viewer.UserID, c.Param("id"), req.QuestionID, fmt.Sprint(req.Value))
	if err != nil {
		writeError(c, h.logger, "save answer", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"answer": answer})
}

// Complete maneja POST /assessments/:id/complete.
func (h *AssessmentHandler) Complete(c *gin.Context) {
	viewer, ok := viewerFrom(c)
	if !ok {
		return
	}
	result, err := h.assessments.Complete(c.Request.Context(), viewer.UserID, c.Param("id"))
	if err != nil {
		writeError(c, h.logger, "complete assessment", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"result": result})
}
