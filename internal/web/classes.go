package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pageza/cantine/backend/internal/middleware"
	"github.com/pageza/cantine/backend/internal/service"
)

func (h *Handler) ListClasses(c *gin.Context) {
	rows, info, err := h.classes.List(c.Request.Context(), service.Page{
		Number: queryInt(c, "page", 1),
		Size:   classPageSize,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, "classes", View{
		Title: "Classes",
		Data:  gin.H{"Classes": rows, "Page": info},
	})
}

func (h *Handler) renderClassForm(c *gin.Context, status int, id uint, form service.ClassInput, errs map[string]string) {
	title := "New class"
	if id != 0 {
		title = "Edit class"
	}
	h.render(c, status, "class_form", View{
		Title:  title,
		Form:   form,
		Errors: errs,
		Data:   gin.H{"ID": id},
	})
}

func (h *Handler) NewClass(c *gin.Context) {
	h.renderClassForm(c, http.StatusOK, 0, service.ClassInput{}, nil)
}

func (h *Handler) CreateClass(c *gin.Context) {
	var form service.ClassInput
	if errs := bind(c, &form); errs != nil {
		h.renderClassForm(c, http.StatusBadRequest, 0, form, errs)
		return
	}
	class, err := h.classes.Create(c.Request.Context(), form)
	if errs := service.FieldErrors(err); errs != nil {
		h.renderClassForm(c, http.StatusBadRequest, 0, form, errs)
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	h.redirect(c, middleware.FlashSuccess, fmt.Sprintf("Class %s created.", class.Name), "/classes")
}

func (h *Handler) EditClass(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		h.notFound(c)
		return
	}
	class, err := h.classes.Get(c.Request.Context(), id)
	if err != nil {
		h.failOrNotFound(c, err)
		return
	}
	form := service.ClassInput{Name: class.Name, Level: class.Level, Supervisor: class.Supervisor}
	h.renderClassForm(c, http.StatusOK, id, form, nil)
}

func (h *Handler) UpdateClass(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		h.notFound(c)
		return
	}
	var form service.ClassInput
	if errs := bind(c, &form); errs != nil {
		h.renderClassForm(c, http.StatusBadRequest, id, form, errs)
		return
	}
	class, err := h.classes.Update(c.Request.Context(), id, form)
	if errs := service.FieldErrors(err); errs != nil {
		h.renderClassForm(c, http.StatusBadRequest, id, form, errs)
		return
	}
	if err != nil {
		h.failOrNotFound(c, err)
		return
	}
	h.redirect(c, middleware.FlashSuccess, fmt.Sprintf("Class %s updated.", class.Name), "/classes")
}

func (h *Handler) ConfirmDeleteClass(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		h.notFound(c)
		return
	}
	class, err := h.classes.Get(c.Request.Context(), id)
	if err != nil {
		h.failOrNotFound(c, err)
		return
	}
	h.confirmDelete(c, "class "+class.Name, "/classes")
}

func (h *Handler) DeleteClass(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		h.notFound(c)
		return
	}
	err := h.classes.Delete(c.Request.Context(), id)
	switch {
	case errors.Is(err, service.ErrClassInUse):
		h.redirect(c, middleware.FlashError, "This class still has students and cannot be deleted.", "/classes")
	case err != nil:
		h.failOrNotFound(c, err)
	default:
		h.redirect(c, middleware.FlashSuccess, "Class deleted.", "/classes")
	}
}

// confirmDelete renders the shared deletion confirmation page.
func (h *Handler) confirmDelete(c *gin.Context, what, cancel string) {
	h.render(c, http.StatusOK, "confirm_delete", View{
		Title: "Confirm deletion",
		Data:  gin.H{"What": what, "Cancel": cancel},
	})
}
