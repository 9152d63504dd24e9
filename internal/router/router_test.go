package router_test

import (
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pageza/cantine/backend/config"
	"github.com/pageza/cantine/backend/internal/mocks"
	"github.com/pageza/cantine/backend/internal/router"
	"github.com/pageza/cantine/backend/internal/testhelpers"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	db := testhelpers.SetupTestDB(t)
	clock := testhelpers.FixedClock(time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC))
	cfg := &config.Config{
		SessionSecret:      "test-session-secret",
		CORSAllowedOrigins: []string{"http://app.example"},
	}

	r, err := router.SetupRouter(router.Options{
		Config:   cfg,
		DB:       db,
		Services: router.NewServices(db, "test-secret", new(mocks.MockStorage), clock),
	})
	require.NoError(t, err)
	return r
}

func TestHealthAndMetrics(t *testing.T) {
	r := setupRouter(t)

	w := testhelpers.PerformRequest(r, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"ok"`)

	w = testhelpers.PerformRequest(r, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `cantine_http_requests_total{method="GET",route="/healthz",status="200"} 1`)
}

func TestBothSurfacesMounted(t *testing.T) {
	r := setupRouter(t)

	w := testhelpers.PerformRequest(r, http.MethodGet, "/login", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")

	w = testhelpers.PerformRequest(r, http.MethodGet, "/api/students", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = testhelpers.PerformRequest(r, http.MethodGet, "/students", nil, nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login?next=%2Fstudents", w.Header().Get("Location"))
}

func TestCORSOnlyOnAPI(t *testing.T) {
	r := setupRouter(t)

	w := testhelpers.PerformRequest(r, http.MethodOptions, "/api/auth/login", nil, map[string]string{
		"Origin":                        "http://app.example",
		"Access-Control-Request-Method": "POST",
	})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://app.example", w.Header().Get("Access-Control-Allow-Origin"))

	w = testhelpers.PerformRequest(r, http.MethodGet, "/api/students", nil, map[string]string{
		"Origin": "http://elsewhere.example",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// the web login form is not subject to the API origin list
	form := url.Values{"username": {"nobody"}, "password": {"wrong"}}
	w = testhelpers.PerformRequest(r, http.MethodPost, "/login", strings.NewReader(form.Encode()), map[string]string{
		"Origin":       "http://elsewhere.example",
		"Content-Type": "application/x-www-form-urlencoded",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Please enter a correct username and password.")
}
