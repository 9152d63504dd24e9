package web

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pageza/cantine/backend/internal/middleware"
	"github.com/pageza/cantine/backend/internal/service"
	"go.uber.org/zap"
)

const qrCodeSize = 256

func (h *Handler) ListStudents(c *gin.Context) {
	ctx := c.Request.Context()
	filter := studentFilter(c)
	students, info, err := h.students.List(ctx, filter, service.Page{
		Number: queryInt(c, "page", 1),
		Size:   studentPageSize,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	classes, err := h.classes.All(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	photos := make(map[uint]string, len(students))
	for i := range students {
		photos[students[i].ID] = h.students.PhotoURL(ctx, &students[i])
	}
	h.render(c, http.StatusOK, "students", View{
		Title: "Students",
		Data: gin.H{
			"Students": students,
			"Photos":   photos,
			"Page":     info,
			"Classes":  classes,
			"Search":   c.Query("q"),
			"ClassID":  filter.ClassID,
			"Status":   c.Query("status"),
			"Mode":     viewMode(c),
		},
	})
}

func (h *Handler) ShowStudent(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		h.notFound(c)
		return
	}
	detail, err := h.students.Detail(c.Request.Context(), id)
	if err != nil {
		h.failOrNotFound(c, err)
		return
	}
	h.render(c, http.StatusOK, "student_detail", View{
		Title: detail.Student.FullName(),
		Data: gin.H{
			"Detail": detail,
			"Photo":  h.students.PhotoURL(c.Request.Context(), detail.Student),
		},
	})
}

// StudentQRCode serves a PNG encoding the student's matricule.
func (h *Handler) StudentQRCode(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		h.notFound(c)
		return
	}
	st, err := h.students.Get(c.Request.Context(), id)
	if err != nil {
		h.failOrNotFound(c, err)
		return
	}
	png, err := service.QRCode(st, qrCodeSize)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (h *Handler) renderStudentForm(c *gin.Context, status int, id uint, form service.StudentInput, errs map[string]string) {
	ctx := c.Request.Context()
	classes, err := h.classes.All(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	title := "New student"
	photo := ""
	if id != 0 {
		title = "Edit student"
		if st, err := h.students.Get(ctx, id); err == nil {
			photo = h.students.PhotoURL(ctx, st)
		}
	}
	h.render(c, status, "student_form", View{
		Title:  title,
		Form:   form,
		Errors: errs,
		Data:   gin.H{"ID": id, "Classes": classes, "Photo": photo},
	})
}

func (h *Handler) NewStudent(c *gin.Context) {
	form := service.StudentInput{Active: true, EnrolledOn: h.reports.Today().Format(inputDate)}
	h.renderStudentForm(c, http.StatusOK, 0, form, nil)
}

func (h *Handler) CreateStudent(c *gin.Context) {
	var form service.StudentInput
	if errs := bind(c, &form); errs != nil {
		h.renderStudentForm(c, http.StatusBadRequest, 0, form, errs)
		return
	}
	photo, done, err := upload(c, "photo")
	if err != nil {
		h.fail(c, err)
		return
	}
	defer done()

	st, err := h.students.Create(c.Request.Context(), form, photo)
	if errs := service.FieldErrors(err); errs != nil {
		h.renderStudentForm(c, http.StatusBadRequest, 0, form, errs)
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	h.redirect(c, middleware.FlashSuccess, fmt.Sprintf("Student %s created.", st.FullName()), fmt.Sprintf("/students/%d", st.ID))
}

func (h *Handler) EditStudent(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		h.notFound(c)
		return
	}
	st, err := h.students.Get(c.Request.Context(), id)
	if err != nil {
		h.failOrNotFound(c, err)
		return
	}
	h.renderStudentForm(c, http.StatusOK, id, service.StudentInputFrom(st), nil)
}

func (h *Handler) UpdateStudent(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		h.notFound(c)
		return
	}
	var form service.StudentInput
	if errs := bind(c, &form); errs != nil {
		h.renderStudentForm(c, http.StatusBadRequest, id, form, errs)
		return
	}
	photo, done, err := upload(c, "photo")
	if err != nil {
		h.fail(c, err)
		return
	}
	defer done()

	st, err := h.students.Update(c.Request.Context(), id, form, photo)
	if errs := service.FieldErrors(err); errs != nil {
		h.renderStudentForm(c, http.StatusBadRequest, id, form, errs)
		return
	}
	if err != nil {
		h.failOrNotFound(c, err)
		return
	}
	h.redirect(c, middleware.FlashSuccess, fmt.Sprintf("Student %s updated.", st.FullName()), fmt.Sprintf("/students/%d", st.ID))
}

func (h *Handler) ConfirmDeleteStudent(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		h.notFound(c)
		return
	}
	st, err := h.students.Get(c.Request.Context(), id)
	if err != nil {
		h.failOrNotFound(c, err)
		return
	}
	h.confirmDelete(c, "student "+st.FullName(), fmt.Sprintf("/students/%d", st.ID))
}

func (h *Handler) DeleteStudent(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		h.notFound(c)
		return
	}
	if err := h.students.Delete(c.Request.Context(), id); err != nil {
		h.failOrNotFound(c, err)
		return
	}
	h.redirect(c, middleware.FlashSuccess, "Student deleted.", "/students")
}

func (h *Handler) ImportPage(c *gin.Context) {
	h.render(c, http.StatusOK, "student_import", View{Title: "Import students"})
}

// ImportStudents loads a CSV file posted as "file".
func (h *Handler) ImportStudents(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		h.render(c, http.StatusBadRequest, "student_import", View{
			Title:  "Import students",
			Errors: map[string]string{"file": "Select a CSV file."},
		})
		return
	}
	f, err := fh.Open()
	if err != nil {
		h.fail(c, err)
		return
	}
	defer f.Close()

	result, err := h.students.Import(c.Request.Context(), f)
	if errs := service.FieldErrors(err); errs != nil {
		h.render(c, http.StatusBadRequest, "student_import", View{Title: "Import students", Errors: errs})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	h.log.Info("students imported",
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped))
	h.redirect(c, middleware.FlashSuccess, result.String(), "/students")
}

func (h *Handler) ExportStudents(c *gin.Context) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="students.csv"`)
	c.Status(http.StatusOK)
	if err := h.students.Export(c.Request.Context(), c.Writer); err != nil {
		_ = c.Error(err)
	}
}

// EnrolledStudents lists the students enrolled for the selected month.
func (h *Handler) EnrolledStudents(c *gin.Context) {
	year, month := h.currentMonth(c)
	students, err := h.students.EnrolledForMonth(c.Request.Context(), year, month)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, "students_enrolled", View{
		Title: "Enrolled students",
		Data:  gin.H{"Students": students, "Year": year, "Month": month},
	})
}
