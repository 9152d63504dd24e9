// Package web serves the server-rendered back office: session login, role
// dashboards and the CRUD screens for classes, students, menus, accounts
// and expenses.
package web

import (
	"bytes"
	"errors"
	"html/template"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/csrf"
	"github.com/pageza/cantine/backend/internal/middleware"
	"github.com/pageza/cantine/backend/internal/models"
	"github.com/pageza/cantine/backend/internal/service"
	"go.uber.org/zap"
)

const (
	classPageSize    = 20
	studentPageSize  = 12
	menuPageSize     = 12
	accountPageSize  = 20
	previewPageSize  = 5
	invalidFormField = "__all__"
)

type Deps struct {
	Accounts   service.IAccountService
	Profiles   *service.ProfileService
	Classes    *service.ClassService
	Students   *service.StudentService
	Menus      *service.MenuService
	Attendance *service.AttendanceService
	Expenses   *service.ExpenseService
	Reports    *service.ReportService
	Log        *zap.Logger
}

type Handler struct {
	accounts   service.IAccountService
	profiles   *service.ProfileService
	classes    *service.ClassService
	students   *service.StudentService
	menus      *service.MenuService
	attendance *service.AttendanceService
	expenses   *service.ExpenseService
	reports    *service.ReportService
	views      *views
	log        *zap.Logger
}

// New parses the embedded templates and returns the web handler.
func New(d Deps) (*Handler, error) {
	v, err := loadViews()
	if err != nil {
		return nil, err
	}
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		accounts:   d.Accounts,
		profiles:   d.Profiles,
		classes:    d.Classes,
		students:   d.Students,
		menus:      d.Menus,
		attendance: d.Attendance,
		expenses:   d.Expenses,
		reports:    d.Reports,
		views:      v,
		log:        log,
	}, nil
}

// RegisterRoutes mounts every page. The router must already run the
// session middlewares.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/", h.LoginPage)
	r.GET("/login", h.LoginPage)
	r.POST("/login", h.Login)
	r.GET("/logout", h.Logout)
	r.POST("/logout", h.Logout)

	anyRole := middleware.RoleGate(h.profiles, "", middleware.WebDeny)
	admin := middleware.RoleGate(h.profiles, models.RoleAdmin, middleware.WebDeny)
	provider := middleware.RoleGate(h.profiles, models.RoleProvider, middleware.WebDeny)

	r.GET("/dashboard", anyRole, h.Dashboard)
	r.GET("/overview", anyRole, h.Overview)
	r.GET("/admin/dashboard", admin, h.AdminDashboard)
	r.POST("/admin/dashboard", admin, h.AdminDashboardAction)
	r.GET("/provider/dashboard", provider, h.ProviderDashboard)
	r.POST("/provider/dashboard", provider, h.ProviderDashboardAction)
	r.GET("/profile", anyRole, h.ProfilePage)
	r.POST("/profile", anyRole, h.UpdateProfile)

	classes := r.Group("/classes", admin)
	{
		classes.GET("", h.ListClasses)
		classes.GET("/new", h.NewClass)
		classes.POST("/new", h.CreateClass)
		classes.GET("/:id/edit", h.EditClass)
		classes.POST("/:id/edit", h.UpdateClass)
		classes.GET("/:id/delete", h.ConfirmDeleteClass)
		classes.POST("/:id/delete", h.DeleteClass)
	}

	r.GET("/students", anyRole, h.ListStudents)
	r.GET("/students/:id", anyRole, h.ShowStudent)
	r.GET("/students/:id/qrcode.png", anyRole, h.StudentQRCode)
	students := r.Group("/students", admin)
	{
		students.GET("/new", h.NewStudent)
		students.POST("/new", h.CreateStudent)
		students.GET("/:id/edit", h.EditStudent)
		students.POST("/:id/edit", h.UpdateStudent)
		students.GET("/:id/delete", h.ConfirmDeleteStudent)
		students.POST("/:id/delete", h.DeleteStudent)
		students.GET("/import", h.ImportPage)
		students.POST("/import", h.ImportStudents)
		students.GET("/export", h.ExportStudents)
		students.GET("/enrolled", h.EnrolledStudents)
	}

	r.GET("/menus", anyRole, h.ListMenus)
	r.GET("/menus/calendar", anyRole, h.MenuCalendar)
	r.GET("/menus/monthly", anyRole, h.ListMonthlyMenus)
	menus := r.Group("/menus", provider)
	{
		menus.GET("/new", h.NewMenu)
		menus.POST("/new", h.CreateMenu)
		menus.GET("/:id/edit", h.EditMenu)
		menus.POST("/:id/edit", h.UpdateMenu)
		menus.GET("/:id/delete", h.ConfirmDeleteMenu)
		menus.POST("/:id/delete", h.DeleteMenu)
		menus.GET("/monthly/new", h.NewMonthlyMenu)
		menus.POST("/monthly/new", h.CreateMonthlyMenu)
		menus.GET("/monthly/:id/edit", h.EditMonthlyMenu)
		menus.POST("/monthly/:id/edit", h.UpdateMonthlyMenu)
		menus.GET("/monthly/:id/delete", h.ConfirmDeleteMonthlyMenu)
		menus.POST("/monthly/:id/delete", h.DeleteMonthlyMenu)
	}

	reports := r.Group("/reports", admin)
	{
		reports.GET("/daily", h.DailyReport)
		reports.GET("/daily.pdf", h.DailyReportPDF)
		reports.GET("/monthly", h.MonthlyReport)
		reports.GET("/monthly.pdf", h.MonthlyReportPDF)
		reports.GET("/dishes", h.DishReport)
	}

	providers := r.Group("/providers", admin)
	{
		providers.GET("", h.ListAccounts)
		providers.GET("/new", h.NewAccount)
		providers.POST("/new", h.CreateAccount)
		providers.GET("/:id/edit", h.EditAccount)
		providers.POST("/:id/edit", h.UpdateAccount)
		providers.GET("/:id/delete", h.ConfirmDeleteAccount)
		providers.POST("/:id/delete", h.DeleteAccount)
	}

	expenses := r.Group("/expenses", anyRole)
	{
		expenses.GET("", h.ListExpenses)
		expenses.GET("/new", h.NewExpense)
		expenses.POST("/new", h.CreateExpense)
		expenses.GET("/:id/edit", h.EditExpense)
		expenses.POST("/:id/edit", h.UpdateExpense)
		expenses.GET("/:id/delete", h.ConfirmDeleteExpense)
		expenses.POST("/:id/delete", h.DeleteExpense)
	}
}

// View is the data every page template receives.
type View struct {
	Title   string
	Profile *models.UserProfile
	Flashes []middleware.Flash
	CSRF    template.HTML
	Query   string
	Errors  map[string]string
	Form    interface{}
	Data    gin.H
}

func (h *Handler) render(c *gin.Context, status int, name string, v View) {
	v.Profile = middleware.CurrentProfile(c)
	v.Flashes = middleware.Flashes(c)
	v.CSRF = csrf.TemplateField(c.Request)
	v.Query = c.Request.URL.RawQuery
	if v.Data == nil {
		v.Data = gin.H{}
	}

	var buf bytes.Buffer
	if err := h.views.render(&buf, name, v); err != nil {
		h.fail(c, err)
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}

// fail answers 500; the error logger middleware reports c.Errors.
func (h *Handler) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.String(http.StatusInternalServerError, "Internal Server Error")
}

func (h *Handler) notFound(c *gin.Context) {
	h.render(c, http.StatusNotFound, "error", View{
		Title: "Page not found",
		Data:  gin.H{"Message": "The page you requested does not exist."},
	})
}

// failOrNotFound renders 404 for ErrNotFound and 500 otherwise.
func (h *Handler) failOrNotFound(c *gin.Context, err error) {
	if errors.Is(err, service.ErrNotFound) {
		h.notFound(c)
		return
	}
	h.fail(c, err)
}

func (h *Handler) redirect(c *gin.Context, level, message, location string) {
	if message != "" {
		middleware.AddFlash(c, level, message)
	}
	c.Redirect(http.StatusFound, location)
}

// bind decodes the posted form into in. A malformed form yields a form-level error.
func bind(c *gin.Context, in interface{}) map[string]string {
	if err := c.ShouldBind(in); err != nil {
		return map[string]string{invalidFormField: "Check the values entered in the form."}
	}
	return nil
}

func paramID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func queryInt(c *gin.Context, key string, def int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return n
}

func queryDate(c *gin.Context, key string) *time.Time {
	d, err := time.Parse(inputDate, c.Query(key))
	if err != nil {
		return nil
	}
	return &d
}

// viewMode returns "grid" or "list".
func viewMode(c *gin.Context) string {
	if c.Query("view") == "grid" {
		return "grid"
	}
	return "list"
}

// upload opens the file posted as field. It returns nil when no file was sent.
func upload(c *gin.Context, field string) (*service.Upload, func(), error) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, func() {}, err
	}
	return openUpload(field, fh)
}

func openUpload(field string, fh *multipart.FileHeader) (*service.Upload, func(), error) {
	f, err := fh.Open()
	if err != nil {
		return nil, func() {}, err
	}
	return &service.Upload{
		Field:       field,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Reader:      f,
	}, func() { f.Close() }, nil
}

// currentMonth reads year and month from the query. A month outside 1-12
// falls back to today's month and year; a bad year to today's year.
func (h *Handler) currentMonth(c *gin.Context) (int, int) {
	today := h.reports.Today()
	month := queryInt(c, "month", 0)
	if month < 1 || month > 12 {
		return today.Year(), int(today.Month())
	}
	year := queryInt(c, "year", 0)
	if year < 1 || year > 9999 {
		year = today.Year()
	}
	return year, month
}

// calendarMonth is like currentMonth but rolls month 0 and 13 into the
// neighbouring years for the calendar navigation links.
func (h *Handler) calendarMonth(c *gin.Context) (int, int) {
	today := h.reports.Today()
	year := queryInt(c, "year", today.Year())
	month := queryInt(c, "month", int(today.Month()))
	return service.NormalizeMonth(year, month)
}
