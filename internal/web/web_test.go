package web_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pageza/cantine/backend/internal/middleware"
	"github.com/pageza/cantine/backend/internal/mocks"
	"github.com/pageza/cantine/backend/internal/models"
	"github.com/pageza/cantine/backend/internal/router"
	"github.com/pageza/cantine/backend/internal/testhelpers"
	"github.com/pageza/cantine/backend/internal/web"
)

var march15 = time.Date(2024, time.March, 15, 10, 30, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

type webEnv struct {
	db     *gorm.DB
	router *gin.Engine
	class  *models.Class
	pupil  *models.Student
}

func setupWeb(t *testing.T) *webEnv {
	t.Helper()
	db := testhelpers.SetupTestDB(t)
	svc := router.NewServices(db, "test-secret", new(mocks.MockStorage), testhelpers.FixedClock(march15))

	h, err := web.New(web.Deps{
		Accounts:   svc.Accounts,
		Profiles:   svc.Profiles,
		Classes:    svc.Classes,
		Students:   svc.Students,
		Menus:      svc.Menus,
		Attendance: svc.Attendance,
		Expenses:   svc.Expenses,
		Reports:    svc.Reports,
	})
	require.NoError(t, err)

	r := gin.New()
	h.RegisterRoutes(r.Group("", middleware.Sessions("test-session-secret", false), middleware.SessionUser()))

	testhelpers.CreateTestUser(t, db, "admin", models.RoleAdmin)
	testhelpers.CreateTestUser(t, db, "cook", models.RoleProvider)
	class := testhelpers.CreateTestClass(t, db, "6A")
	pupil := testhelpers.CreateTestStudent(t, db, class, "M001", "Awa", "Camara")
	return &webEnv{db: db, router: r, class: class, pupil: pupil}
}

// client carries the session cookie between requests.
type client struct {
	t       *testing.T
	handler http.Handler
	cookies map[string]*http.Cookie
}

func (e *webEnv) client(t *testing.T) *client {
	return &client{t: t, handler: e.router, cookies: map[string]*http.Cookie{}}
}

func (e *webEnv) login(t *testing.T, username string) *client {
	t.Helper()
	c := e.client(t)
	w := c.postForm("/login", url.Values{"username": {username}, "password": {testhelpers.TestPassword}})
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/dashboard", w.Header().Get("Location"))
	return c
}

func (c *client) do(req *http.Request) *httptest.ResponseRecorder {
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, req)
	for _, ck := range w.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return w
}

func (c *client) get(path string) *httptest.ResponseRecorder {
	return c.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (c *client) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func (c *client) postFile(path, field, filename string, content []byte) *httptest.ResponseRecorder {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(c.t, err)
	_, err = fw.Write(content)
	require.NoError(c.t, err)
	require.NoError(c.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req)
}

func TestLogin(t *testing.T) {
	env := setupWeb(t)

	c := env.login(t, "admin")
	w := c.get("/dashboard")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/admin/dashboard", w.Header().Get("Location"))

	c = env.login(t, "cook")
	w = c.get("/dashboard")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/provider/dashboard", w.Header().Get("Location"))

	// a logged-in user is sent away from the login page
	w = c.get("/login")
	assert.Equal(t, http.StatusFound, w.Code)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := setupWeb(t)
	c := env.client(t)

	w := c.postForm("/login", url.Values{"username": {"admin"}, "password": {"wrong-password"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Please enter a correct username and password.")

	w = c.get("/admin/dashboard")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login?next=%2Fadmin%2Fdashboard", w.Header().Get("Location"))
}

func TestLoginInactiveAccount(t *testing.T) {
	env := setupWeb(t)
	require.NoError(t, env.db.Model(&models.User{}).Where("username = ?", "cook").Update("is_active", false).Error)

	w := env.client(t).postForm("/login", url.Values{"username": {"cook"}, "password": {testhelpers.TestPassword}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "This account is inactive.")
}

func TestLoginXHR(t *testing.T) {
	env := setupWeb(t)

	send := func(password, next string) *httptest.ResponseRecorder {
		form := url.Values{"username": {"admin"}, "password": {password}, "next": {next}}
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
		return env.client(t).do(req)
	}

	w := send(testhelpers.TestPassword, "/students")
	require.Equal(t, http.StatusOK, w.Code)
	var ok map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ok))
	assert.Equal(t, map[string]string{"status": "success", "redirect_url": "/students"}, ok)

	// off-site targets fall back to the dashboard
	w = send(testhelpers.TestPassword, "//evil.example")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ok))
	assert.Equal(t, "/dashboard", ok["redirect_url"])

	w = send("wrong-password", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var failed map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &failed))
	assert.Equal(t, "error", failed["status"])
}

func TestLogout(t *testing.T) {
	env := setupWeb(t)
	c := env.login(t, "admin")

	w := c.postForm("/logout", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	w = c.get("/overview")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Location"), "/login"))
}

func TestProviderCannotManageClasses(t *testing.T) {
	env := setupWeb(t)
	c := env.login(t, "cook")

	w := c.postForm("/classes/new", url.Values{"name": {"7B"}})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))

	var n int64
	require.NoError(t, env.db.Model(&models.Class{}).Where("name = ?", "7B").Count(&n).Error)
	assert.Zero(t, n)

	w = c.get("/provider/dashboard")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "You do not have permission to access this page.")
}

func TestAdminCannotWriteMenus(t *testing.T) {
	env := setupWeb(t)
	c := env.login(t, "admin")

	w := c.postForm("/menus/new", url.Values{"date": {"2024-03-18"}, "main_course": {"Rice"}})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))

	// reading is open to every role
	w = c.get("/menus")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestClassLifecycle(t *testing.T) {
	env := setupWeb(t)
	c := env.login(t, "admin")

	w := c.postForm("/classes/new", url.Values{"name": {"6B"}, "level": {"Secondary"}})
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/classes", w.Header().Get("Location"))

	var class models.Class
	require.NoError(t, env.db.Where("name = ?", "6B").First(&class).Error)

	w = c.postForm("/classes/new", url.Values{"name": {"6B"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = c.postForm(fmt.Sprintf("/classes/%d/delete", class.ID), nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.ErrorIs(t, env.db.First(&models.Class{}, class.ID).Error, gorm.ErrRecordNotFound)

	// a class with students stays
	w = c.postForm(fmt.Sprintf("/classes/%d/delete", env.class.ID), nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.NoError(t, env.db.First(&models.Class{}, env.class.ID).Error)
	w = c.get("/classes")
	assert.Contains(t, w.Body.String(), "This class still has students and cannot be deleted.")
}

func TestTogglePresence(t *testing.T) {
	env := setupWeb(t)
	c := env.login(t, "cook")
	form := url.Values{
		"action":     {"toggle_presence"},
		"student_id": {fmt.Sprint(env.pupil.ID)},
		"meal":       {"lunch"},
	}

	w := c.postForm("/provider/dashboard", form)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/provider/dashboard", w.Header().Get("Location"))

	var rec models.Attendance
	require.NoError(t, env.db.Where("student_id = ?", env.pupil.ID).First(&rec).Error)
	assert.True(t, rec.Present)
	assert.True(t, rec.Date.Equal(testhelpers.Date(2024, time.March, 15)))

	w = c.get("/provider/dashboard")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Marked present")

	c.postForm("/provider/dashboard", form)
	require.NoError(t, env.db.First(&rec, rec.ID).Error)
	assert.False(t, rec.Present)

	form.Set("student_id", "9999")
	c.postForm("/provider/dashboard", form)
	w = c.get("/provider/dashboard")
	assert.Contains(t, w.Body.String(), "Student not found or inactive.")
}

func TestDuplicateMenuDate(t *testing.T) {
	env := setupWeb(t)
	testhelpers.CreateTestMenu(t, env.db, testhelpers.Date(2024, time.March, 20), "Rice")
	c := env.login(t, "cook")

	w := c.postForm("/menus/new", url.Values{"date": {"2024-03-20"}, "main_course": {"Fish"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "A menu already exists for this date.")

	w = c.postForm("/menus/new", url.Values{"date": {"2024-03-21"}, "main_course": {"Fish"}})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/menus", w.Header().Get("Location"))
	var n int64
	require.NoError(t, env.db.Model(&models.DailyMenu{}).Count(&n).Error)
	assert.EqualValues(t, 2, n)
}

func TestStudentQRCode(t *testing.T) {
	env := setupWeb(t)
	c := env.login(t, "cook")

	w := c.get(fmt.Sprintf("/students/%d/qrcode.png", env.pupil.ID))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))

	w = c.get("/students/9999/qrcode.png")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestImportAndExportStudents(t *testing.T) {
	env := setupWeb(t)
	c := env.login(t, "admin")

	csv := "matricule,first name,last name,class,parent phone,parent email\n" +
		"M002,Moussa,Diallo,6A,620000000,\n" +
		"M003,Fanta,Sylla,,,\n"
	w := c.postFile("/students/import", "file", "students.csv", []byte(csv))
	require.Equal(t, http.StatusFound, w.Code)

	var n int64
	require.NoError(t, env.db.Model(&models.Student{}).Count(&n).Error)
	assert.EqualValues(t, 2, n)

	w = c.get("/students/export")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Body.String(), "M002")

	w = c.postForm("/students/import", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportPDF(t *testing.T) {
	env := setupWeb(t)
	testhelpers.CreateTestAttendance(t, env.db, env.pupil.ID, testhelpers.Date(2024, time.March, 15), true)
	c := env.login(t, "admin")

	w := c.get("/reports/daily.pdf?date=2024-03-15")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "settlement-2024-03-15.pdf")
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))

	w = c.get("/reports/monthly.pdf?year=2024&month=3")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "settlement-2024-03.pdf")
}

func TestReportsFallBackOnMalformedPeriod(t *testing.T) {
	env := setupWeb(t)
	testhelpers.CreateTestAttendance(t, env.db, env.pupil.ID, testhelpers.Date(2024, time.March, 15), true)
	c := env.login(t, "admin")

	w := c.get("/reports/monthly?month=99&year=x")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `name="month" min="1" max="12" value="3"`)
	assert.Contains(t, w.Body.String(), `name="year" value="2024"`)
	assert.Contains(t, w.Body.String(), "March 2024: 1 meal(s)")

	w = c.get("/reports/monthly?month=13&year=2024")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "March 2024: 1 meal(s)")

	w = c.get("/reports/monthly.pdf?month=0")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "settlement-2024-03.pdf")

	w = c.get("/reports/monthly?month=2&year=x")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "February 2024: 0 meal(s)")

	w = c.get("/reports/daily?date=garbage")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `value="2024-03-15"`)
	assert.Contains(t, w.Body.String(), "1 meal(s) for 1 student(s)")

	w = c.get("/reports/daily.pdf?date=garbage")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "settlement-2024-03-15.pdf")

	w = c.get("/students/enrolled?month=99&year=2030")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "student(s) enrolled for March 2024.")

	// the calendar still rolls over into the neighbouring year
	w = c.get("/menus/calendar?year=2024&month=13")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "January 2025")
}

func TestAdminCannotDeleteOwnAccount(t *testing.T) {
	env := setupWeb(t)
	var admin models.UserProfile
	require.NoError(t, env.db.Joins("JOIN users ON users.id = user_profiles.user_id").
		Where("users.username = ?", "admin").First(&admin).Error)
	c := env.login(t, "admin")

	w := c.postForm(fmt.Sprintf("/providers/%d/delete", admin.ID), nil)
	assert.Equal(t, http.StatusFound, w.Code)
	var n int64
	require.NoError(t, env.db.Model(&models.User{}).Where("username = ?", "admin").Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestPagesRender(t *testing.T) {
	env := setupWeb(t)
	testhelpers.CreateTestMenu(t, env.db, testhelpers.Date(2024, time.March, 15), "Rice")
	testhelpers.CreateTestAttendance(t, env.db, env.pupil.ID, testhelpers.Date(2024, time.March, 15), true)
	testhelpers.CreateTestSubscription(t, env.db, env.pupil.ID, testhelpers.Date(2024, time.January, 1), "-500")

	adminPages := []string{
		"/overview",
		"/admin/dashboard",
		"/admin/dashboard?q=awa&status=active",
		"/profile",
		"/classes",
		"/classes/new",
		fmt.Sprintf("/classes/%d/edit", env.class.ID),
		fmt.Sprintf("/classes/%d/delete", env.class.ID),
		"/students",
		"/students?view=grid&class=" + fmt.Sprint(env.class.ID),
		"/students/new",
		fmt.Sprintf("/students/%d", env.pupil.ID),
		fmt.Sprintf("/students/%d/edit", env.pupil.ID),
		"/students/import",
		"/students/enrolled?year=2024&month=1",
		"/menus",
		"/menus/calendar",
		"/menus/calendar?year=2024&month=12",
		"/menus/monthly",
		"/menus/monthly?year=2024&month=3",
		"/reports/daily",
		"/reports/daily?date=2024-03-15",
		"/reports/monthly",
		"/reports/dishes",
		"/reports/dishes?from=2024-03-01&to=2024-03-31",
		"/providers",
		"/providers?role=provider&status=true",
		"/providers?view=grid",
		"/providers/new",
		"/expenses",
		"/expenses/new",
	}
	w := env.client(t).get("/login?next=/students")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `value="/students"`)

	admin := env.login(t, "admin")
	for _, path := range adminPages {
		w := admin.get(path)
		assert.Equal(t, http.StatusOK, w.Code, "admin GET %s", path)
		assert.Contains(t, w.Body.String(), "</html>", "admin GET %s", path)
	}

	providerPages := []string{
		"/provider/dashboard",
		"/overview",
		"/profile",
		"/students",
		"/menus",
		"/menus/new",
		"/menus/new?date=2024-03-22",
		"/menus/monthly/new",
		"/expenses",
	}
	provider := env.login(t, "cook")
	for _, path := range providerPages {
		w := provider.get(path)
		assert.Equal(t, http.StatusOK, w.Code, "provider GET %s", path)
		assert.Contains(t, w.Body.String(), "</html>", "provider GET %s", path)
	}

	w = admin.get("/students/9999")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLoginServiceFailure(t *testing.T) {
	accounts := new(mocks.MockAccountService)
	accounts.On("Authenticate", mock.Anything, "admin", "secret-pass").Return(nil, errors.New("connection refused"))

	h, err := web.New(web.Deps{Accounts: accounts})
	require.NoError(t, err)
	r := gin.New()
	h.RegisterRoutes(r.Group("", middleware.Sessions("test-session-secret", false), middleware.SessionUser()))

	form := url.Values{"username": {"admin"}, "password": {"secret-pass"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	accounts.AssertExpectations(t)
}
