package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pageza/cantine/backend/internal/middleware"
	"github.com/pageza/cantine/backend/internal/service"
)

// ListMenus pages through the daily menus, newest first.
func (h *Handler) ListMenus(c *gin.Context) {
	ctx := c.Request.Context()
	menus, info, err := h.menus.ListDaily(ctx, service.Page{
		Number: queryInt(c, "page", 1),
		Size:   menuPageSize,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	photos := make(map[uint]string, len(menus))
	for _, m := range menus {
		photos[m.ID] = h.menus.URL(ctx, m.Photo)
	}
	h.render(c, http.StatusOK, "menus", View{
		Title: "Daily menus",
		Data: gin.H{
			"Menus":  menus,
			"Photos": photos,
			"Page":   info,
			"Today":  h.menus.Today(),
		},
	})
}

func (h *Handler) MenuCalendar(c *gin.Context) {
	year, month := h.calendarMonth(c)
	cal, err := h.menus.Calendar(c.Request.Context(), year, month)
	if err != nil {
		h.fail(c, err)
		return
	}
	prevYear, prevMonth := cal.Prev()
	nextYear, nextMonth := cal.Next()
	h.render(c, http.StatusOK, "calendar", View{
		Title: "Menu calendar",
		Data: gin.H{
			"Calendar":  cal,
			"PrevYear":  prevYear,
			"PrevMonth": prevMonth,
			"NextYear":  nextYear,
			"NextMonth": nextMonth,
		},
	})
}

func (h *Handler) renderMenuForm(c *gin.Context, status int, id uint, form service.DailyMenuInput, errs map[string]string) {
	title := "New daily menu"
	photo := ""
	if id != 0 {
		title = "Edit daily menu"
		if m, err := h.menus.GetDaily(c.Request.Context(), id); err == nil {
			photo = h.menus.URL(c.Request.Context(), m.Photo)
		}
	}
	h.render(c, status, "menu_form", View{
		Title:  title,
		Form:   form,
		Errors: errs,
		Data:   gin.H{"ID": id, "Photo": photo},
	})
}

func (h *Handler) NewMenu(c *gin.Context) {
	form := service.DailyMenuInput{Date: h.menus.Today().Format(inputDate)}
	if d := queryDate(c, "date"); d != nil {
		form.Date = d.Format(inputDate)
	}
	h.renderMenuForm(c, http.StatusOK, 0, form, nil)
}

func (h *Handler) CreateMenu(c *gin.Context) {
	var form service.DailyMenuInput
	if errs := bind(c, &form); errs != nil {
		h.renderMenuForm(c, http.StatusBadRequest, 0, form, errs)
		return
	}
	photo, done, err := upload(c, "photo")
	if err != nil {
		h.fail(c, err)
		return
	}
	defer done()

	m, err := h.menus.CreateDaily(c.Request.Context(), form, photo)
	if errs := service.FieldErrors(err); errs != nil {
		h.renderMenuForm(c, http.StatusBadRequest, 0, form, errs)
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	h.redirect(c, middleware.FlashSuccess, m.String()+" saved.", "/menus")
}

func (h *Handler) EditMenu(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		h.notFound(c)
		return
	}
	m, err := h.menus.GetDaily(c.Request.Context(), id)
	if err != nil {
		h.failOrNotFound(c, err)
		return
	}
	h.renderMenuForm(c, http.StatusOK, id, service.DailyMenuInputFrom(m), nil)
}

func (h *Handler) UpdateMenu(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		h.notFound(c)
		return
	}
	var form service.DailyMenuInput
	if errs := bind(c, &form); errs != nil {
		h.renderMenuForm(c, http.StatusBadRequest, id, form, errs)
		return
	}
	photo, done, err := upload(c, "photo")
	if err != nil {
		h.fail(c, err)
		return
	}
	defer done()

	m, err := h.menus.UpdateDaily(c.Request.Context(), id, form, photo)
	if errs := service.FieldErrors(err); errs != nil {
		h.renderMenuForm(c, http.StatusBadRequest, id, form, errs)
		return
	}
	if err != nil {
		h.failOrNotFound(c, err)
		return
	}
	h.redirect(c, middleware.FlashSuccess, m.String()+" updated.", "/menus")
}

func (h *Handler) ConfirmDeleteMenu(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		h.notFound(c)
		return
	}
	m, err := h.menus.GetDaily(c.Request.Context(), id)
	if err != nil {
		h.failOrNotFound(c, err)
		return
	}
	h.confirmDelete(c, m.String(), "/menus")
}

func (h *Handler) DeleteMenu(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		h.notFound(c)
		return
	}
	if err := h.menus.DeleteDaily(c.Request.Context(), id); err != nil {
		h.failOrNotFound(c, err)
		return
	}
	h.redirect(c, middleware.FlashSuccess, "Menu deleted.", "/menus")
}

// ListMonthlyMenus lists monthly menus, optionally narrowed by year and month.
func (h *Handler) ListMonthlyMenus(c *gin.Context) {
	ctx := c.Request.Context()
	year, month := queryInt(c, "year", 0), queryInt(c, "month", 0)
	if month < 1 || month > 12 {
		month = 0
	}
	menus, err := h.menus.ListMonthly(ctx, year, month)
	if err != nil {
		h.fail(c, err)
		return
	}
	covers := make(map[uint]string, len(menus))
	documents := make(map[uint]string, len(menus))
	for _, m := range menus {
		covers[m.ID] = h.menus.URL(ctx, m.Cover)
		documents[m.ID] = h.menus.URL(ctx, m.Document)
	}
	h.render(c, http.StatusOK, "monthly_menus", View{
		Title: "Monthly menus",
		Data: gin.H{
			"Menus":     menus,
			"Covers":    covers,
			"Documents": documents,
			"Year":      year,
			"Month":     month,
			"Months":    []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
		},
	})
}

func (h *Handler) renderMonthlyForm(c *gin.Context, status int, id uint, form service.MonthlyMenuInput, errs map[string]string) {
	title := "New monthly menu"
	if id != 0 {
		title = "Edit monthly menu"
	}
	h.render(c, status, "monthly_form", View{
		Title:  title,
		Form:   form,
		Errors: errs,
		Data:   gin.H{"ID": id},
	})
}

func (h *Handler) NewMonthlyMenu(c *gin.Context) {
	today := h.menus.Today()
	form := service.MonthlyMenuInput{Month: int(today.Month()), Year: today.Year()}
	h.renderMonthlyForm(c, http.StatusOK, 0, form, nil)
}

// monthlyUploads opens the optional cover and document files.
func monthlyUploads(c *gin.Context) (*service.Upload, *service.Upload, func(), error) {
	cover, doneCover, err := upload(c, "cover")
	if err != nil {
		return nil, nil, func() {}, err
	}
	doc, doneDoc, err := upload(c, "document")
	if err != nil {
		doneCover()
		return nil, nil, func() {}, err
	}
	return cover, doc, func() { doneCover(); doneDoc() }, nil
}

func (h *Handler) CreateMonthlyMenu(c *gin.Context) {
	var form service.MonthlyMenuInput
	if errs := bind(c, &form); errs != nil {
		h.renderMonthlyForm(c, http.StatusBadRequest, 0, form, errs)
		return
	}
	cover, doc, done, err := monthlyUploads(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	defer done()

	m, err := h.menus.CreateMonthly(c.Request.Context(), form, cover, doc)
	if errs := service.FieldErrors(err); errs != nil {
		h.renderMonthlyForm(c, http.StatusBadRequest, 0, form, errs)
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	h.redirect(c, middleware.FlashSuccess, m.String()+" saved.", "/menus/monthly")
}

func (h *Handler) EditMonthlyMenu(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		h.notFound(c)
		return
	}
	m, err := h.menus.GetMonthly(c.Request.Context(), id)
	if err != nil {
		h.failOrNotFound(c, err)
		return
	}
	h.renderMonthlyForm(c, http.StatusOK, id, service.MonthlyMenuInputFrom(m), nil)
}

func (h *Handler) UpdateMonthlyMenu(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		h.notFound(c)
		return
	}
	var form service.MonthlyMenuInput
	if errs := bind(c, &form); errs != nil {
		h.renderMonthlyForm(c, http.StatusBadRequest, id, form, errs)
		return
	}
	cover, doc, done, err := monthlyUploads(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	defer done()

	m, err := h.menus.UpdateMonthly(c.Request.Context(), id, form, cover, doc)
	if errs := service.FieldErrors(err); errs != nil {
		h.renderMonthlyForm(c, http.StatusBadRequest, id, form, errs)
		return
	}
	if err != nil {
		h.failOrNotFound(c, err)
		return
	}
	h.redirect(c, middleware.FlashSuccess, m.String()+" updated.", "/menus/monthly")
}

func (h *Handler) ConfirmDeleteMonthlyMenu(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		h.notFound(c)
		return
	}
	m, err := h.menus.GetMonthly(c.Request.Context(), id)
	if err != nil {
		h.failOrNotFound(c, err)
		return
	}
	h.confirmDelete(c, m.String(), "/menus/monthly")
}

func (h *Handler) DeleteMonthlyMenu(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		h.notFound(c)
		return
	}
	if err := h.menus.DeleteMonthly(c.Request.Context(), id); err != nil {
		h.failOrNotFound(c, err)
		return
	}
	h.redirect(c, middleware.FlashSuccess, "Monthly menu deleted.", "/menus/monthly")
}
