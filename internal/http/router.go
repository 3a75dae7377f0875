package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"disc-assess/internal/service"
)

const requestIDHeader = "X-Request-ID"

// NewRouter configura el router de Gin con middlewares y rutas bajo /api.
func NewRouter(
	logger *zap.Logger,
	jwtSvc *service.JWTService,
	userH *UserHandler,
	assessmentH *AssessmentHandler,
	resultH *ResultHandler,
	adminH *AdminHandler,
) *gin.Engine {
	r := gin.New()

	r.Use(requestIDMiddleware(), zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	auth := api.Group("/auth")
	auth.POST("/register", userH.Register)
	auth.POST("/login", userH.Login)
	auth.POST("/code/request", userH.RequestCode)
	auth.POST("/code/verify", userH.VerifyCode)
	auth.POST("/refresh", userH.RefreshToken)
	auth.POST("/logout", userH.Logout)

	api.GET("/questionnaires/:kind", assessmentH.Questionnaire)

	private := api.Group("", JWTAuthMiddleware(jwtSvc))
	private.GET("/me", userH.Me)

	private.POST("/assessments", assessmentH.Start)
	private.GET("/assessments/:id", assessmentH.Get)
	private.PUT("/assessments/:id/answers", assessmentH.SaveAnswer)
	private.POST("/assessments/:id/complete", assessmentH.Complete)

	private.GET("/results", resultH.List)
	private.GET("/results/:id", resultH.Get)
	private.GET("/results/:id/analysis", resultH.Analysis)
	private.GET("/results/:id/report", resultH.Report)

	admin := private.Group("/admin", AdminOnly())
	admin.GET("/users", adminH.ListUsers)
	admin.PATCH("/users/:id/role", adminH.SetRole)
	admin.GET("/results", adminH.ListResults)
	admin.GET("/results/:id/report", resultH.Report)
	admin.GET("/analysis/queue", adminH.QueueStatus)

	return r
}

// requestIDMiddleware reutiliza X-Request-ID entrante o genera uno nuevo.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDHeader, id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", c.GetString(requestIDHeader)),
		}
		if c.Writer.Status() >= 500 {
			logger.Warn("request", fields...)
			return
		}
		logger.Info("request", fields...)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
