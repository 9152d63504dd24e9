package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/pageza/cantine/backend/internal/mocks"
	"github.com/pageza/cantine/backend/internal/models"
	"github.com/pageza/cantine/backend/internal/service"
)

func TestAuthorize(t *testing.T) {
	tests := []struct {
		caller, required models.Role
		want             bool
	}{
		{models.RoleAdmin, "", true},
		{models.RoleProvider, "", true},
		{models.RoleAdmin, models.RoleAdmin, true},
		{models.RoleProvider, models.RoleAdmin, false},
		{models.RoleAdmin, models.RoleProvider, false},
		{models.RoleProvider, models.RoleProvider, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Authorize(tt.caller, tt.required), "%s needs %q", tt.caller, tt.required)
	}
}

func profileFor(id uint, role models.Role, active bool) *models.UserProfile {
	return &models.UserProfile{UserID: id, Role: role, User: &models.User{ID: id, IsActive: active}}
}

// withUser fakes an authenticated caller.
func withUser(id uint) gin.HandlerFunc {
	return func(c *gin.Context) {
		if id != 0 {
			c.Set(ContextUserID, id)
		}
		c.Next()
	}
}

func gatedAPI(profiles service.IProfileService, userID uint, required models.Role) *gin.Engine {
	r := gin.New()
	r.GET("/api/thing", withUser(userID), RoleGate(profiles, required, APIDeny), func(c *gin.Context) {
		c.String(http.StatusOK, string(CurrentProfile(c).Role))
	})
	return r
}

func TestRoleGateAPI(t *testing.T) {
	profiles := new(mocks.MockProfileService)
	profiles.On("EnsureProfile", mock.Anything, uint(1)).Return(profileFor(1, models.RoleAdmin, true), nil)
	profiles.On("EnsureProfile", mock.Anything, uint(2)).Return(profileFor(2, models.RoleProvider, true), nil)
	profiles.On("EnsureProfile", mock.Anything, uint(3)).Return(profileFor(3, models.RoleAdmin, false), nil)
	profiles.On("EnsureProfile", mock.Anything, uint(4)).Return(nil, service.ErrNotFound)
	profiles.On("EnsureProfile", mock.Anything, uint(5)).Return(nil, errors.New("db down"))

	tests := []struct {
		name     string
		userID   uint
		required models.Role
		status   int
	}{
		{"anonymous", 0, "", http.StatusUnauthorized},
		{"admin on admin route", 1, models.RoleAdmin, http.StatusOK},
		{"provider on admin route", 2, models.RoleAdmin, http.StatusForbidden},
		{"provider on open route", 2, "", http.StatusOK},
		{"inactive account", 3, "", http.StatusUnauthorized},
		{"deleted account", 4, "", http.StatusUnauthorized},
		{"profile lookup fails", 5, "", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			gatedAPI(profiles, tt.userID, tt.required).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/thing", nil))
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestRoleGateWeb(t *testing.T) {
	profiles := new(mocks.MockProfileService)
	profiles.On("EnsureProfile", mock.Anything, uint(2)).Return(profileFor(2, models.RoleProvider, true), nil)

	handled := false
	build := func(userID uint) *gin.Engine {
		r := gin.New()
		r.Use(Sessions("secret", false))
		r.POST("/classes/new", withUser(userID), RoleGate(profiles, models.RoleAdmin, WebDeny), func(c *gin.Context) {
			handled = true
		})
		return r
	}

	w := httptest.NewRecorder()
	build(0).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/classes/new?x=1", nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login?next=%2Fclasses%2Fnew%3Fx%3D1", w.Header().Get("Location"))

	w = httptest.NewRecorder()
	build(2).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/classes/new", nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))
	assert.NotEmpty(t, w.Header().Get("Set-Cookie"), "the denial flash is stored in the session")
	assert.False(t, handled)
}
