package web

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pageza/cantine/backend/internal/middleware"
	"github.com/pageza/cantine/backend/internal/models"
	"github.com/pageza/cantine/backend/internal/service"
	"go.uber.org/zap"
)

func managedAccountFrom(p *models.UserProfile) service.ManagedAccount {
	in := service.ManagedAccount{Role: p.Role, Position: p.Position, Contact: p.Contact}
	if u := p.User; u != nil {
		in.Username = u.Username
		in.Email = u.Email
		in.FirstName = u.FirstName
		in.LastName = u.LastName
		in.Active = u.IsActive
	}
	return in
}

// ListAccounts lists staff accounts, filtered by role and status.
func (h *Handler) ListAccounts(c *gin.Context) {
	filter := service.AccountFilter{Role: models.Role(c.Query("role")), Active: c.Query("status")}
	if !filter.Role.Valid() {
		filter.Role = ""
	}
	accounts, info, err := h.profiles.ListAccounts(c.Request.Context(), filter, service.Page{
		Number: queryInt(c, "page", 1),
		Size:   accountPageSize,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	mode := viewMode(c)
	avatars := map[uint]string{}
	if mode == "grid" {
		for i := range accounts {
			avatars[accounts[i].ID] = h.profiles.AvatarURL(c.Request.Context(), &accounts[i])
		}
	}
	h.render(c, http.StatusOK, "providers", View{
		Title: "Accounts",
		Data: gin.H{
			"Accounts": accounts,
			"Avatars":  avatars,
			"Page":     info,
			"Role":     string(filter.Role),
			"Status":   filter.Active,
			"Mode":     mode,
		},
	})
}

func (h *Handler) renderAccountForm(c *gin.Context, status int, id uint, form service.ManagedAccount, errs map[string]string) {
	title := "New account"
	if id != 0 {
		title = "Edit account"
	}
	h.render(c, status, "provider_form", View{
		Title:  title,
		Form:   form,
		Errors: errs,
		Data:   gin.H{"ID": id},
	})
}

func (h *Handler) NewAccount(c *gin.Context) {
	h.renderAccountForm(c, http.StatusOK, 0, service.ManagedAccount{Role: models.RoleProvider, Active: true}, nil)
}

// CreateAccount creates an account and shows its temporary password once.
func (h *Handler) CreateAccount(c *gin.Context) {
	var form service.ManagedAccount
	if errs := bind(c, &form); errs != nil {
		h.renderAccountForm(c, http.StatusBadRequest, 0, form, errs)
		return
	}
	profile, password, err := h.profiles.CreateManagedAccount(c.Request.Context(), form)
	if errs := service.FieldErrors(err); errs != nil {
		h.renderAccountForm(c, http.StatusBadRequest, 0, form, errs)
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	h.log.Info("account created",
		zap.Uint("user_id", profile.UserID),
		zap.String("role", string(profile.Role)))
	msg := fmt.Sprintf("Account %s created. Temporary password: %s", profile.User.Username, password)
	h.redirect(c, middleware.FlashSuccess, msg, "/providers")
}

func (h *Handler) EditAccount(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		h.notFound(c)
		return
	}
	profile, err := h.profiles.GetAccount(c.Request.Context(), id)
	if err != nil {
		h.failOrNotFound(c, err)
		return
	}
	h.renderAccountForm(c, http.StatusOK, id, managedAccountFrom(profile), nil)
}

func (h *Handler) UpdateAccount(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		h.notFound(c)
		return
	}
	var form service.ManagedAccount
	if errs := bind(c, &form); errs != nil {
		h.renderAccountForm(c, http.StatusBadRequest, id, form, errs)
		return
	}
	profile, err := h.profiles.UpdateManagedAccount(c.Request.Context(), id, form)
	if errs := service.FieldErrors(err); errs != nil {
		h.renderAccountForm(c, http.StatusBadRequest, id, form, errs)
		return
	}
	if err != nil {
		h.failOrNotFound(c, err)
		return
	}
	h.redirect(c, middleware.FlashSuccess, fmt.Sprintf("Account %s updated.", profile.User.Username), "/providers")
}

func (h *Handler) ConfirmDeleteAccount(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		h.notFound(c)
		return
	}
	profile, err := h.profiles.GetAccount(c.Request.Context(), id)
	if err != nil {
		h.failOrNotFound(c, err)
		return
	}
	h.confirmDelete(c, "account "+profile.User.Username, "/providers")
}

// DeleteAccount removes an account. Administrators cannot delete their own.
func (h *Handler) DeleteAccount(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		h.notFound(c)
		return
	}
	if current := middleware.CurrentProfile(c); current != nil && current.ID == id {
		h.redirect(c, middleware.FlashError, "You cannot delete your own account.", "/providers")
		return
	}
	if err := h.profiles.DeleteManagedAccount(c.Request.Context(), id); err != nil {
		h.failOrNotFound(c, err)
		return
	}
	h.redirect(c, middleware.FlashSuccess, "Account deleted.", "/providers")
}
