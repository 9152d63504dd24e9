package web

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pageza/cantine/backend/internal/middleware"
	"github.com/pageza/cantine/backend/internal/models"
	"github.com/pageza/cantine/backend/internal/service"
)

func expensesURL(e *models.Expense) string {
	return fmt.Sprintf("/expenses?year=%d&month=%d", e.Date.Year(), int(e.Date.Month()))
}

func (h *Handler) ListExpenses(c *gin.Context) {
	year, month := h.currentMonth(c)
	listing, err := h.expenses.ListMonth(c.Request.Context(), year, month)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, "expenses", View{
		Title: "Expenses",
		Data:  gin.H{"Listing": listing},
	})
}

func (h *Handler) renderExpenseForm(c *gin.Context, status int, id uint, form service.ExpenseInput, errs map[string]string) {
	title := "New expense"
	if id != 0 {
		title = "Edit expense"
	}
	h.render(c, status, "expense_form", View{
		Title:  title,
		Form:   form,
		Errors: errs,
		Data:   gin.H{"ID": id},
	})
}

func (h *Handler) NewExpense(c *gin.Context) {
	form := service.ExpenseInput{
		Category: models.CategoryIngredients,
		Date:     h.reports.Today().Format(inputDate),
	}
	h.renderExpenseForm(c, http.StatusOK, 0, form, nil)
}

func (h *Handler) CreateExpense(c *gin.Context) {
	var form service.ExpenseInput
	if errs := bind(c, &form); errs != nil {
		h.renderExpenseForm(c, http.StatusBadRequest, 0, form, errs)
		return
	}
	e, err := h.expenses.Create(c.Request.Context(), form)
	if errs := service.FieldErrors(err); errs != nil {
		h.renderExpenseForm(c, http.StatusBadRequest, 0, form, errs)
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	h.redirect(c, middleware.FlashSuccess, fmt.Sprintf("Expense %q recorded.", e.Label), expensesURL(e))
}

func (h *Handler) EditExpense(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		h.notFound(c)
		return
	}
	e, err := h.expenses.Get(c.Request.Context(), id)
	if err != nil {
		h.failOrNotFound(c, err)
		return
	}
	h.renderExpenseForm(c, http.StatusOK, id, service.ExpenseInputFrom(e), nil)
}

func (h *Handler) UpdateExpense(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		h.notFound(c)
		return
	}
	var form service.ExpenseInput
	if errs := bind(c, &form); errs != nil {
		h.renderExpenseForm(c, http.StatusBadRequest, id, form, errs)
		return
	}
	e, err := h.expenses.Update(c.Request.Context(), id, form)
	if errs := service.FieldErrors(err); errs != nil {
		h.renderExpenseForm(c, http.StatusBadRequest, id, form, errs)
		return
	}
	if err != nil {
		h.failOrNotFound(c, err)
		return
	}
	h.redirect(c, middleware.FlashSuccess, fmt.Sprintf("Expense %q updated.", e.Label), expensesURL(e))
}

func (h *Handler) ConfirmDeleteExpense(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		h.notFound(c)
		return
	}
	e, err := h.expenses.Get(c.Request.Context(), id)
	if err != nil {
		h.failOrNotFound(c, err)
		return
	}
	h.confirmDelete(c, "expense "+e.Label, expensesURL(e))
}

func (h *Handler) DeleteExpense(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		h.notFound(c)
		return
	}
	if err := h.expenses.Delete(c.Request.Context(), id); err != nil {
		h.failOrNotFound(c, err)
		return
	}
	h.redirect(c, middleware.FlashSuccess, "Expense deleted.", "/expenses")
}
