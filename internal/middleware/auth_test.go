package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/pageza/cantine/backend/internal/testhelpers"
	"github.com/pageza/cantine/backend/internal/types"
)

func TestAuthMiddleware(t *testing.T) {
	validator := &testhelpers.MockTokenValidator{Claims: &types.TokenClaims{UserID: 7, Username: "cook"}}
	r := gin.New()
	r.GET("/api/me", AuthMiddleware(validator), func(c *gin.Context) {
		id, ok := UserID(c)
		assert.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"id": id, "username": c.GetString(ContextUsername)})
	})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"too many parts", "Bearer a b", http.StatusUnauthorized},
		{"valid", "Bearer token", http.StatusOK},
		{"scheme is case-insensitive", "bearer token", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.JSONEq(t, `{"id":7,"username":"cook"}`, w.Body.String())
			}
		})
	}
}

func TestAuthMiddlewareRejectsInvalidToken(t *testing.T) {
	validator := &testhelpers.MockTokenValidator{Error: errors.New("token has expired")}
	r := gin.New()
	r.GET("/api/me", AuthMiddleware(validator), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer stale")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"token has expired"}`, w.Body.String())
}
