package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pageza/cantine/backend/internal/middleware"
	"github.com/pageza/cantine/backend/internal/models"
	"github.com/pageza/cantine/backend/internal/service"
	"github.com/pageza/cantine/backend/internal/types"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps groups what the REST handlers need.
type Deps struct {
	Accounts   service.IAccountService
	Profiles   service.IProfileService
	Students   *service.StudentService
	Attendance *service.AttendanceService
	Menus      *service.MenuService
	// LoginLimiter is optional; login is not rate limited without it.
	LoginLimiter *middleware.RateLimiter
	Log          *zap.Logger
}

// RegisterRoutes registers all API routes under api.
func RegisterRoutes(api *gin.RouterGroup, d Deps) {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}

	NewAuthHandler(d.Accounts, d.LoginLimiter, log).RegisterRoutes(api)

	authed := api.Group("")
	authed.Use(
		middleware.AuthMiddleware(d.Accounts),
		middleware.RoleGate(d.Profiles, "", middleware.APIDeny),
	)
	adminOnly := middleware.RoleGate(d.Profiles, models.RoleAdmin, middleware.APIDeny)

	NewStudentHandler(d.Students, log).RegisterRoutes(authed, adminOnly)
	NewAttendanceHandler(d.Attendance, log).RegisterRoutes(authed)
	NewMenuHandler(d.Menus, log).RegisterRoutes(authed)
}

// HealthCheck reports liveness and pings the database.
func HealthCheck(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, dbStatus := http.StatusOK, "ok"
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			status, dbStatus = http.StatusServiceUnavailable, "unavailable"
		}
		c.JSON(status, gin.H{
			"status":   http.StatusText(status),
			"database": dbStatus,
		})
	}
}

// respondError maps service errors to API responses.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	switch {
	case service.IsValidation(err):
		c.JSON(http.StatusBadRequest, types.ValidationErrorResponse{
			Error:  "validation failed",
			Fields: service.FieldErrors(err),
		})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, service.ErrClassInUse):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrAccountInactive),
		errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrTokenExpired),
		errors.Is(err, service.ErrTokenRevoked):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	default:
		log.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func badRequest(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
}

// paramID parses the :id path parameter. An unparsable id answers 404.
func paramID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return 0, false
	}
	return uint(id), true
}

// queryInt returns the integer query parameter key, or 0 when absent or malformed.
func queryInt(c *gin.Context, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return n
}

// queryDate returns the date query parameter key, or nil when absent or malformed.
func queryDate(c *gin.Context, key string) *time.Time {
	d, err := time.Parse("2006-01-02", c.Query(key))
	if err != nil {
		return nil
	}
	return &d
}
