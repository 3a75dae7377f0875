package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"disc-assess/internal/service"
)

// ResultHandler sirve resultados, la narrativa del LLM y el reporte completo.
type ResultHandler struct {
	logger      *zap.Logger
	assessments *service.AssessmentService
	reports     *service.ReportService
}

func NewResultHandler(logger *zap.Logger, assessments *service.AssessmentService, reports *service.ReportService) *ResultHandler {
	return &ResultHandler{logger: logger, assessments: assessments, reports: reports}
}

// List maneja GET /results.
func (h *ResultHandler) List(c *gin.Context) {
	viewer, ok := viewerFrom(c)
	if !ok {
		return
	}
	results, err := h.assessments.ListResults(c.Request.Context(), viewer.UserID)
	if err != nil {
		writeError(c, h.logger, "list results", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// Get maneja GET /results/:id.
func (h *ResultHandler) Get(c *gin.Context) {
	viewer, ok := viewerFrom(c)
	if !ok {
		return
	}
	result, err := h.assessments.GetResult(c.Request.Context(), viewer, c.Param("id"))
	if err != nil {
		writeError(c, h.logger, "get result", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

// Analysis maneja GET /results/:id/analysis?refresh=true.
func (h *ResultHandler) Analysis(c *gin.Context) {
	viewer, ok := viewerFrom(c)
	if !ok {
		return
	}
	rec, err := h.reports.Analysis(c.Request.Context(), viewer, c.Param("id"), refreshParam(c))
	if err != nil {
		writeError(c, h.logger, "analysis", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"analysis": rec})
}

// Report maneja GET /results/:id/report y GET /admin/results/:id/report.
func (h *ResultHandler) Report(c *gin.Context) {
	viewer, ok := viewerFrom(c)
	if !ok {
		return
	}
	report, err := h.reports.Build(c.Request.Context(), viewer, c.Param("id"), refreshParam(c))
	if err != nil {
		writeError(c, h.logger, "report", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": report})
}

func refreshParam(c *gin.Context) bool {
	v, _ := strconv.ParseBool(c.Query("refresh"))
	return v
}
