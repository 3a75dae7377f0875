package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"disc-assess/internal/domain"
	"disc-assess/internal/service"
)

// UserHandler mantiene dependencias para endpoints de cuenta y sesion.
type UserHandler struct {
	logger   *zap.Logger
	userServ *service.UserService
	jwtServ  *service.JWTService
}

func NewUserHandler(logger *zap.Logger, userServ *service.UserService, jwtServ *service.JWTService) *UserHandler {
	return &UserHandler{
		logger:   logger,
		userServ: userServ,
		jwtServ:  jwtServ,
	}
}

// Register maneja POST /auth/register.
func (h *UserHandler) Register(c *gin.Context) {
	var req struct {
		Email      string `json:"email" binding:"required,email"`
		Name       string `json:"name"`
		Password   string `json:"password" binding:"required"`
		ProfileURL string `json:"profile_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "register", err)
		return
	}

	user, err := h.userServ.Register(c.Request.Context(), service.RegisterInput{
		Email:      req.Email,
		Name:       req.Name,
		Password:   req.Password,
		ProfileURL: req.ProfileURL,
	})
	if err != nil {
		writeError(c, h.logger, "register", err)
		return
	}

	tokens, err := h.issueTokens(c, user)
	if err != nil {
		h.logger.Error("jwt issue failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternal})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user, "tokens": tokens})
}

// Login maneja POST /auth/login.
func (h *UserHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "login", err)
		return
	}

	user, err := h.userServ.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, h.logger, "login", err)
		return
	}

	tokens, err := h.issueTokens(c, user)
	if err != nil {
		h.logger.Error("jwt issue failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternal})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "tokens": tokens})
}

// RequestCode maneja POST /auth/code/request.
func (h *UserHandler) RequestCode(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "login code", err)
		return
	}

	expiresAt, err := h.userServ.RequestLoginCode(c.Request.Context(), req.Email)
	if err != nil {
		writeError(c, h.logger, "request login code", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "code_sent", "expires_at": expiresAt})
}

// VerifyCode maneja POST /auth/code/verify.
func (h *UserHandler) VerifyCode(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
		Code  string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "login code verify", err)
		return
	}

	user, err := h.userServ.VerifyLoginCode(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		writeError(c, h.logger, "verify login code", err)
		return
	}

	tokens, err := h.issueTokens(c, user)
	if err != nil {
		h.logger.Error("jwt issue failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternal})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "tokens": tokens})
}

// RefreshToken maneja POST /auth/refresh. El rol se relee de la base para reflejar cambios.
func (h *UserHandler) RefreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "refresh", err)
		return
	}
	if h.jwtServ == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "jwt not configured"})
		return
	}

	claims, err := h.jwtServ.ConsumeRefresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": userMessage(err)})
		return
	}
	user, err := h.userServ.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": msgUnauthorized})
			return
		}
		writeError(c, h.logger, "refresh", err)
		return
	}

	tokens, err := h.issueTokens(c, user)
	if err != nil {
		h.logger.Error("jwt issue failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternal})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": tokens})
}

// Logout maneja POST /auth/logout.
func (h *UserHandler) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "logout", err)
		return
	}
	if h.jwtServ == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "jwt not configured"})
		return
	}
	_ = h.jwtServ.RevokeRefresh(c.Request.Context(), req.RefreshToken)
	c.Status(http.StatusNoContent)
}

// Me maneja GET /me.
func (h *UserHandler) Me(c *gin.Context) {
	viewer, ok := viewerFrom(c)
	if !ok {
		return
	}
	user, err := h.userServ.GetByID(c.Request.Context(), viewer.UserID)
	if err != nil {
		writeError(c, h.logger, "me", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *UserHandler) issueTokens(c *gin.Context, user domain.User) (service.TokenPair, error) {
	if h.jwtServ == nil {
		return service.TokenPair{}, errors.New("jwt not configured")
	}
	return h.jwtServ.GeneratePair(c.Request.Context(), user)
}
