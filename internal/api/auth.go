package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pageza/cantine/backend/internal/middleware"
	"github.com/pageza/cantine/backend/internal/service"
	"github.com/pageza/cantine/backend/internal/types"
	"go.uber.org/zap"
)

const invalidLoginMessage = "No active account found with the given credentials"

type AuthHandler struct {
	accounts service.IAccountService
	limiter  *middleware.RateLimiter
	log      *zap.Logger
}

func NewAuthHandler(accounts service.IAccountService, limiter *middleware.RateLimiter, log *zap.Logger) *AuthHandler {
	return &AuthHandler{accounts: accounts, limiter: limiter, log: log}
}

func (h *AuthHandler) RegisterRoutes(router *gin.RouterGroup) {
	auth := router.Group("/auth")
	{
		login := []gin.HandlerFunc{h.Login}
		if h.limiter != nil {
			login = append([]gin.HandlerFunc{h.limiter.LimitByIP()}, login...)
		}
		auth.POST("/login", login...)
		auth.POST("/refresh", h.Refresh)
		auth.GET("/me", middleware.AuthMiddleware(h.accounts), h.Me)
	}
}

// Login exchanges credentials for a token pair and the caller summary.
func (h *AuthHandler) Login(c *gin.Context) {
	var req types.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	user, err := h.accounts.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if isAuthError(err) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": invalidLoginMessage})
			return
		}
		respondError(c, h.log, err)
		return
	}

	tokens, err := h.accounts.IssueTokens(user)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	h.log.Info("api login", zap.Uint("user_id", user.ID))
	c.JSON(http.StatusOK, types.LoginResponse{TokenPair: *tokens, User: service.Summary(user)})
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req types.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	tokens, err := h.accounts.Refresh(c.Request.Context(), req.Refresh)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, tokens)
}

// Me returns the summary of the authenticated caller.
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	user, err := h.accounts.GetUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, service.Summary(user))
}

func isAuthError(err error) bool {
	return errors.Is(err, service.ErrInvalidCredentials) || errors.Is(err, service.ErrAccountInactive)
}
