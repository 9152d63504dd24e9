package api_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pageza/cantine/backend/internal/api"
	"github.com/pageza/cantine/backend/internal/mocks"
	"github.com/pageza/cantine/backend/internal/models"
	"github.com/pageza/cantine/backend/internal/service"
	"github.com/pageza/cantine/backend/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var march15 = time.Date(2024, time.March, 15, 10, 30, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

type apiEnv struct {
	db       *gorm.DB
	router   *gin.Engine
	accounts *service.AccountService
	admin    string
	provider string
	class    *models.Class
}

func setupAPI(t *testing.T) *apiEnv {
	t.Helper()
	db := testhelpers.SetupTestDB(t)
	clock := testhelpers.FixedClock(march15)
	media := service.NewMediaService(new(mocks.MockStorage))
	accounts := service.NewAccountService(db, "test-secret", service.WithAccountClock(clock))

	router := gin.New()
	api.RegisterRoutes(router.Group("/api"), api.Deps{
		Accounts:   accounts,
		Profiles:   service.NewProfileService(db, media),
		Students:   service.NewStudentService(db, media, clock),
		Attendance: service.NewAttendanceService(db, clock),
		Menus:      service.NewMenuService(db, media, clock),
	})

	env := &apiEnv{db: db, router: router, accounts: accounts}
	env.admin = env.token(t, testhelpers.CreateTestUser(t, db, "admin", models.RoleAdmin))
	env.provider = env.token(t, testhelpers.CreateTestUser(t, db, "provider", models.RoleProvider))
	env.class = testhelpers.CreateTestClass(t, db, "6A")
	return env
}

func (e *apiEnv) token(t *testing.T, user *models.User) string {
	t.Helper()
	pair, err := e.accounts.IssueTokens(user)
	require.NoError(t, err)
	return pair.Access
}

func (e *apiEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	headers := map[string]string{}
	if token != "" {
		headers["Authorization"] = "Bearer " + token
	}
	if body == nil {
		return testhelpers.PerformRequest(e.router, method, path, nil, headers)
	}
	return testhelpers.PerformJSON(t, e.router, method, path, body, headers)
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

func TestLoginAndMe(t *testing.T) {
	env := setupAPI(t)

	w := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "admin",
		"password": testhelpers.TestPassword,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var login struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
		User    struct {
			Username string `json:"username"`
			Role     string `json:"role"`
		} `json:"user"`
	}
	decode(t, w, &login)
	assert.NotEmpty(t, login.Access)
	assert.NotEmpty(t, login.Refresh)
	assert.Equal(t, "admin", login.User.Username)
	assert.Equal(t, "admin", login.User.Role)

	w = env.do(t, http.MethodGet, "/api/auth/me", login.Access, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me map[string]interface{}
	decode(t, w, &me)
	assert.Equal(t, "admin@example.com", me["email"])

	w = env.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refresh": login.Refresh})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refresh": login.Access})
	assert.Equal(t, http.StatusUnauthorized, w.Code, "access tokens cannot refresh")
}

func TestLoginRejections(t *testing.T) {
	env := setupAPI(t)

	w := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "admin", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	var body errorBody
	decode(t, w, &body)
	assert.Equal(t, "No active account found with the given credentials", body.Error)

	w = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "admin"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStudentsAPI(t *testing.T) {
	env := setupAPI(t)
	payload := map[string]interface{}{
		"matricule":  "M1",
		"first_name": "Jean",
		"last_name":  "Dupont",
		"class_id":   env.class.ID,
	}

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/students", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodPost, "/api/students", env.provider, payload).Code)

	w := env.do(t, http.MethodPost, "/api/students", env.admin, payload)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		ID        uint   `json:"id"`
		FullName  string `json:"full_name"`
		ClassName string `json:"class_name"`
		Active    bool   `json:"active"`
	}
	decode(t, w, &created)
	assert.True(t, created.Active, "students are active unless stated otherwise")
	assert.Equal(t, "6A", created.ClassName)

	w = env.do(t, http.MethodPost, "/api/students", env.admin, payload)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var dup errorBody
	decode(t, w, &dup)
	assert.Equal(t, "validation failed", dup.Error)
	assert.Contains(t, dup.Fields, "matricule")

	other := testhelpers.CreateTestClass(t, env.db, "6B")
	testhelpers.CreateTestStudent(t, env.db, other, "M2", "Awa", "Camara")

	path := fmt.Sprintf("/api/students/%d", created.ID)
	w = env.do(t, http.MethodPatch, path, env.admin, map[string]bool{"active": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var patched map[string]interface{}
	decode(t, w, &patched)
	assert.Equal(t, "Dupont", patched["last_name"], "omitted fields are kept")
	assert.Equal(t, false, patched["active"])

	var list []map[string]interface{}
	decode(t, env.do(t, http.MethodGet, "/api/students", env.provider, nil), &list)
	require.Len(t, list, 1)
	assert.Equal(t, "M2", list[0]["matricule"])

	decode(t, env.do(t, http.MethodGet, "/api/students?active=all", env.provider, nil), &list)
	assert.Len(t, list, 2)

	decode(t, env.do(t, http.MethodGet, "/api/students?active=all&class=6A", env.provider, nil), &list)
	require.Len(t, list, 1)
	assert.Equal(t, "M1", list[0]["matricule"])

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, path, env.provider, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/students/999", env.provider, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/students/abc", env.provider, nil).Code)

	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodDelete, path, env.provider, nil).Code)
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, path, env.admin, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, path, env.admin, nil).Code)
}

func TestAttendanceUpsertAPI(t *testing.T) {
	env := setupAPI(t)
	st := testhelpers.CreateTestStudent(t, env.db, env.class, "M1", "Jean", "Dupont")

	w := env.do(t, http.MethodPost, "/api/attendance", env.provider, map[string]interface{}{"student_id": st.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var rec struct {
		ID      uint   `json:"id"`
		Date    string `json:"date"`
		Meal    string `json:"meal"`
		Present bool   `json:"present"`
		Notes   string `json:"notes"`
		Student struct {
			Matricule string `json:"matricule"`
		} `json:"student"`
	}
	decode(t, w, &rec)
	assert.Equal(t, "2024-03-15", rec.Date)
	assert.Equal(t, "lunch", rec.Meal)
	assert.True(t, rec.Present)
	assert.Equal(t, "M1", rec.Student.Matricule)
	firstID := rec.ID

	w = env.do(t, http.MethodPost, "/api/attendance", env.provider, map[string]interface{}{
		"student_id": st.ID,
		"present":    false,
		"notes":      "sick",
	})
	require.Equal(t, http.StatusOK, w.Code, "existing records are updated in place")
	decode(t, w, &rec)
	assert.Equal(t, firstID, rec.ID)
	assert.False(t, rec.Present)
	assert.Equal(t, "sick", rec.Notes)

	var list []map[string]interface{}
	decode(t, env.do(t, http.MethodGet, "/api/attendance/today", env.provider, nil), &list)
	assert.Len(t, list, 1)
	decode(t, env.do(t, http.MethodGet, fmt.Sprintf("/api/attendance/student/%d", st.ID), env.provider, nil), &list)
	assert.Len(t, list, 1)
	decode(t, env.do(t, http.MethodGet, "/api/attendance", env.provider, nil), &list)
	assert.Len(t, list, 1)

	w = env.do(t, http.MethodPost, "/api/attendance", env.provider, map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var verr errorBody
	decode(t, w, &verr)
	assert.Contains(t, verr.Fields, "student_id")

	path := fmt.Sprintf("/api/attendance/%d", firstID)
	w = env.do(t, http.MethodPatch, path, env.provider, map[string]string{"comment": "back"})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &rec)
	assert.Equal(t, "back", rec.Notes)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, path, env.provider, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, path, env.provider, nil).Code)
}

func TestDailyMenusAPI(t *testing.T) {
	env := setupAPI(t)
	body := map[string]string{"date": "2024-03-15", "main_course": "Riz gras"}

	w := env.do(t, http.MethodPost, "/api/menus/daily", env.provider, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var menu map[string]interface{}
	decode(t, w, &menu)
	id := uint(menu["id"].(float64))

	w = env.do(t, http.MethodPost, "/api/menus/daily", env.provider, body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var verr errorBody
	decode(t, w, &verr)
	assert.Equal(t, "A menu already exists for this date.", verr.Fields["date"])

	testhelpers.CreateTestMenu(t, env.db, testhelpers.Date(2024, time.March, 14), "Attiéké")

	var list []map[string]interface{}
	decode(t, env.do(t, http.MethodGet, "/api/menus/daily", env.provider, nil), &list)
	require.Len(t, list, 2)
	assert.Equal(t, "2024-03-15", list[0]["date"], "newest first")

	decode(t, env.do(t, http.MethodGet, "/api/menus/daily?date=2024-03-14", env.provider, nil), &list)
	require.Len(t, list, 1)
	assert.Equal(t, "Attiéké", list[0]["main_course"])

	decode(t, env.do(t, http.MethodGet, "/api/menus/daily?date=soon", env.provider, nil), &list)
	assert.Len(t, list, 2, "malformed filters are ignored")

	path := fmt.Sprintf("/api/menus/daily/%d", id)
	w = env.do(t, http.MethodPatch, path, env.provider, map[string]string{"dessert": "Mangue"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &menu)
	assert.Equal(t, "Riz gras", menu["main_course"])
	assert.Equal(t, "Mangue", menu["dessert"])

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, path, env.provider, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, path, env.provider, nil).Code)
}

func TestMonthlyMenusAPI(t *testing.T) {
	env := setupAPI(t)

	for _, m := range []map[string]interface{}{
		{"title": "Mars", "month": 3, "year": 2024, "description": "**Riz**"},
		{"title": "Avril", "month": 4, "year": 2024},
	} {
		w := env.do(t, http.MethodPost, "/api/menus/monthly", env.admin, m)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := env.do(t, http.MethodPost, "/api/menus/monthly", env.admin, map[string]interface{}{"title": "Encore", "month": 3, "year": 2024})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var list []map[string]interface{}
	decode(t, env.do(t, http.MethodGet, "/api/menus/monthly", env.provider, nil), &list)
	require.Len(t, list, 2)
	assert.Equal(t, "Avril", list[0]["title"], "latest period first")

	decode(t, env.do(t, http.MethodGet, "/api/menus/monthly?year=2024&month=3", env.provider, nil), &list)
	require.Len(t, list, 1)
	assert.Equal(t, "**Riz**", list[0]["description"])

	decode(t, env.do(t, http.MethodGet, "/api/menus/monthly?year=2023", env.provider, nil), &list)
	assert.Empty(t, list)

	id := uint(marchMenuID(t, env))
	path := fmt.Sprintf("/api/menus/monthly/%d", id)
	w = env.do(t, http.MethodPut, path, env.provider, map[string]string{"title": "Mars 2024"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var menu map[string]interface{}
	decode(t, w, &menu)
	assert.Equal(t, "Mars 2024", menu["title"])
	assert.EqualValues(t, 3, menu["month"])

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, path, env.provider, nil).Code)
}

// marchMenuID returns the id of the March 2024 menu.
func marchMenuID(t *testing.T, env *apiEnv) float64 {
	var list []map[string]interface{}
	decode(t, env.do(t, http.MethodGet, "/api/menus/monthly?month=3", env.provider, nil), &list)
	require.Len(t, list, 1)
	return list[0]["id"].(float64)
}
