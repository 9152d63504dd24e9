package middleware

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/pageza/cantine/backend/internal/models"
	"github.com/pageza/cantine/backend/internal/service"
)

const permissionDenied = "You do not have permission to access this page."

// Authorize reports whether callerRole may use something that requires
// requiredRole. An empty requiredRole admits any authenticated caller.
func Authorize(callerRole, requiredRole models.Role) bool {
	return requiredRole == "" || callerRole == requiredRole
}

// Deny is how a surface answers callers the gate turns away.
type Deny struct {
	Unauthenticated gin.HandlerFunc
	Forbidden       gin.HandlerFunc
}

// APIDeny answers with JSON status codes.
var APIDeny = Deny{
	Unauthenticated: func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
	},
	Forbidden: func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Error: permissionDenied})
	},
}

// WebDeny sends anonymous callers to the login page and everyone else back
// to their own dashboard with an error flash.
var WebDeny = Deny{
	Unauthenticated: func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/login?next="+url.QueryEscape(c.Request.URL.RequestURI()))
		c.Abort()
	},
	Forbidden: func(c *gin.Context) {
		AddFlash(c, FlashError, permissionDenied)
		c.Redirect(http.StatusFound, "/dashboard")
		c.Abort()
	},
}

// RoleGate resolves the caller's profile, stores it under ContextProfile
// and admits the request when Authorize allows it.
func RoleGate(profiles service.IProfileService, required models.Role, deny Deny) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := UserID(c)
		if !ok {
			deny.Unauthenticated(c)
			return
		}
		profile, err := profiles.EnsureProfile(c.Request.Context(), userID)
		if errors.Is(err, service.ErrNotFound) {
			deny.Unauthenticated(c)
			return
		}
		if err != nil {
			_ = c.Error(err)
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		if profile.User != nil && !profile.User.IsActive {
			deny.Unauthenticated(c)
			return
		}
		c.Set(ContextProfile, profile)

		if !Authorize(profile.Role, required) {
			deny.Forbidden(c)
			return
		}
		c.Next()
	}
}
