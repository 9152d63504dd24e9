package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pageza/cantine/backend/internal/middleware"
	"github.com/pageza/cantine/backend/internal/models"
	"github.com/pageza/cantine/backend/internal/service"
)

const (
	trendDays       = 7
	mealsPerDayDays = 30
	recentMealCount = 8
)

// Overview is the global dashboard every role can open.
func (h *Handler) Overview(c *gin.Context) {
	ctx := c.Request.Context()
	data, err := h.overviewData(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, "overview", View{Title: "Overview", Data: data})
}

func (h *Handler) overviewData(ctx context.Context) (gin.H, error) {
	stats, err := h.reports.DashboardStats(ctx)
	if err != nil {
		return nil, err
	}
	alerts, err := h.reports.Alerts(ctx)
	if err != nil {
		return nil, err
	}
	trend, err := h.reports.AttendanceTrend(ctx, trendDays)
	if err != nil {
		return nil, err
	}
	finance, err := h.reports.FinancialSummary(ctx)
	if err != nil {
		return nil, err
	}
	byClass, err := h.reports.ReportingOverview(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := h.reports.RecentMeals(ctx, recentMealCount)
	if err != nil {
		return nil, err
	}
	perDay, err := h.reports.MealsPerDay(ctx, mealsPerDayDays)
	if err != nil {
		return nil, err
	}
	upcoming, err := h.menus.Upcoming(ctx, 6)
	if err != nil {
		return nil, err
	}
	monthly, err := h.menus.RecentMonthly(ctx, 6)
	if err != nil {
		return nil, err
	}
	latest, err := h.students.Latest(ctx, 5)
	if err != nil {
		return nil, err
	}
	return gin.H{
		"Stats":       stats,
		"Alerts":      alerts,
		"Trend":       trend,
		"Finance":     finance,
		"ByClass":     byClass,
		"RecentMeals": recent,
		"MealsPerDay": perDay,
		"Upcoming":    upcoming,
		"Monthly":     monthly,
		"Latest":      latest,
	}, nil
}

// adminForms are the two inline creation forms of the admin dashboard.
type adminForms struct {
	Student service.StudentInput
	Class   service.ClassInput
}

func studentFilter(c *gin.Context) service.StudentFilter {
	filter := service.StudentFilter{Search: c.Query("q")}
	if id := queryInt(c, "class", 0); id > 0 {
		filter.ClassID = uint(id)
	}
	switch c.Query("status") {
	case "active":
		active := true
		filter.Active = &active
	case "inactive":
		active := false
		filter.Active = &active
	}
	return filter
}

func (h *Handler) AdminDashboard(c *gin.Context) {
	h.renderAdminDashboard(c, http.StatusOK, "", h.defaultAdminForms(), nil)
}

func (h *Handler) defaultAdminForms() adminForms {
	return adminForms{Student: service.StudentInput{
		Active:     true,
		EnrolledOn: h.reports.Today().Format(inputDate),
	}}
}

func (h *Handler) renderAdminDashboard(c *gin.Context, status int, action string, forms adminForms, errs map[string]string) {
	ctx := c.Request.Context()
	stats, err := h.reports.DashboardStats(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	alerts, err := h.reports.Alerts(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	preview, info, err := h.students.List(ctx, studentFilter(c), service.Page{Number: 1, Size: previewPageSize})
	if err != nil {
		h.fail(c, err)
		return
	}
	classes, err := h.classes.All(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	upcoming, err := h.menus.Upcoming(ctx, 6)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, status, "admin_dashboard", View{
		Title:  "Administration",
		Form:   forms,
		Errors: errs,
		Data: gin.H{
			"Stats":    stats,
			"Alerts":   alerts,
			"Students": preview,
			"Total":    info.Total,
			"Classes":  classes,
			"Upcoming": upcoming,
			"Action":   action,
		},
	})
}

// AdminDashboardAction handles the inline forms, selected by action.
func (h *Handler) AdminDashboardAction(c *gin.Context) {
	ctx := c.Request.Context()
	forms := h.defaultAdminForms()
	action := c.PostForm("action")

	switch action {
	case "create_student":
		forms.Student = service.StudentInput{}
		if errs := bind(c, &forms.Student); errs != nil {
			h.renderAdminDashboard(c, http.StatusBadRequest, action, forms, errs)
			return
		}
		photo, done, err := upload(c, "photo")
		if err != nil {
			h.fail(c, err)
			return
		}
		defer done()
		st, err := h.students.Create(ctx, forms.Student, photo)
		if errs := service.FieldErrors(err); errs != nil {
			h.renderAdminDashboard(c, http.StatusBadRequest, action, forms, errs)
			return
		}
		if err != nil {
			h.fail(c, err)
			return
		}
		h.redirect(c, middleware.FlashSuccess, fmt.Sprintf("Student %s created.", st.FullName()), "/admin/dashboard")

	case "create_class":
		if errs := bind(c, &forms.Class); errs != nil {
			h.renderAdminDashboard(c, http.StatusBadRequest, action, forms, errs)
			return
		}
		class, err := h.classes.Create(ctx, forms.Class)
		if errs := service.FieldErrors(err); errs != nil {
			h.renderAdminDashboard(c, http.StatusBadRequest, action, forms, errs)
			return
		}
		if err != nil {
			h.fail(c, err)
			return
		}
		h.redirect(c, middleware.FlashSuccess, fmt.Sprintf("Class %s created.", class.Name), "/admin/dashboard")

	default:
		h.redirect(c, middleware.FlashError, "Unknown action.", "/admin/dashboard")
	}
}

// providerForms are the inline menu forms of the provider dashboard.
type providerForms struct {
	Daily   service.DailyMenuInput
	Monthly service.MonthlyMenuInput
}

func (h *Handler) defaultProviderForms() providerForms {
	today := h.reports.Today()
	return providerForms{
		Daily:   service.DailyMenuInput{Date: today.Format(inputDate)},
		Monthly: service.MonthlyMenuInput{Month: int(today.Month()), Year: today.Year()},
	}
}

func (h *Handler) ProviderDashboard(c *gin.Context) {
	h.renderProviderDashboard(c, http.StatusOK, "", h.defaultProviderForms(), nil)
}

func (h *Handler) renderProviderDashboard(c *gin.Context, status int, action string, forms providerForms, errs map[string]string) {
	ctx := c.Request.Context()
	today := h.reports.Today()
	groups, err := h.students.ActiveByClass(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	present, err := h.attendance.PresentStudentIDs(ctx, today)
	if err != nil {
		h.fail(c, err)
		return
	}
	todayMenu, err := h.menus.MenuForDate(ctx, today)
	if err != nil {
		h.fail(c, err)
		return
	}
	daily, err := h.menus.RecentDaily(ctx, 7)
	if err != nil {
		h.fail(c, err)
		return
	}
	monthly, err := h.menus.RecentMonthly(ctx, 6)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, status, "provider_dashboard", View{
		Title:  "Provider dashboard",
		Form:   forms,
		Errors: errs,
		Data: gin.H{
			"Today":     today,
			"Groups":    groups,
			"Present":   present,
			"TodayMenu": todayMenu,
			"Daily":     daily,
			"Monthly":   monthly,
			"Action":    action,
		},
	})
}

// ProviderDashboardAction creates menus and toggles attendance.
func (h *Handler) ProviderDashboardAction(c *gin.Context) {
	ctx := c.Request.Context()
	forms := h.defaultProviderForms()
	action := c.PostForm("action")

	switch action {
	case "create_menu_daily":
		forms.Daily = service.DailyMenuInput{}
		if errs := bind(c, &forms.Daily); errs != nil {
			h.renderProviderDashboard(c, http.StatusBadRequest, action, forms, errs)
			return
		}
		photo, done, err := upload(c, "photo")
		if err != nil {
			h.fail(c, err)
			return
		}
		defer done()
		m, err := h.menus.CreateDaily(ctx, forms.Daily, photo)
		if errs := service.FieldErrors(err); errs != nil {
			h.renderProviderDashboard(c, http.StatusBadRequest, action, forms, errs)
			return
		}
		if err != nil {
			h.fail(c, err)
			return
		}
		h.redirect(c, middleware.FlashSuccess, m.String()+" saved.", "/provider/dashboard")

	case "create_menu_monthly":
		forms.Monthly = service.MonthlyMenuInput{}
		if errs := bind(c, &forms.Monthly); errs != nil {
			h.renderProviderDashboard(c, http.StatusBadRequest, action, forms, errs)
			return
		}
		cover, doneCover, err := upload(c, "cover")
		if err != nil {
			h.fail(c, err)
			return
		}
		defer doneCover()
		doc, doneDoc, err := upload(c, "document")
		if err != nil {
			h.fail(c, err)
			return
		}
		defer doneDoc()
		m, err := h.menus.CreateMonthly(ctx, forms.Monthly, cover, doc)
		if errs := service.FieldErrors(err); errs != nil {
			h.renderProviderDashboard(c, http.StatusBadRequest, action, forms, errs)
			return
		}
		if err != nil {
			h.fail(c, err)
			return
		}
		h.redirect(c, middleware.FlashSuccess, m.String()+" saved.", "/provider/dashboard")

	case "toggle_presence":
		h.togglePresence(c)

	default:
		h.redirect(c, middleware.FlashError, "Unknown action.", "/provider/dashboard")
	}
}

func (h *Handler) togglePresence(c *gin.Context) {
	var form struct {
		StudentID uint            `form:"student_id"`
		Meal      models.MealType `form:"meal"`
	}
	if err := c.ShouldBind(&form); err != nil || form.StudentID == 0 {
		h.redirect(c, middleware.FlashError, "Select a student.", "/provider/dashboard")
		return
	}
	rec, err := h.attendance.Toggle(c.Request.Context(), form.StudentID, form.Meal)
	if errors.Is(err, service.ErrNotFound) {
		h.redirect(c, middleware.FlashError, "Student not found or inactive.", "/provider/dashboard")
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	state := "absent"
	if rec.Present {
		state = "present"
	}
	h.redirect(c, middleware.FlashSuccess, fmt.Sprintf("Marked %s for %s.", state, rec.Meal.Label()), "/provider/dashboard")
}
