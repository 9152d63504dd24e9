package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pageza/cantine/backend/internal/middleware"
	"github.com/pageza/cantine/backend/internal/models"
	"github.com/pageza/cantine/backend/internal/service"
	"go.uber.org/zap"
)

const (
	badCredentialsMessage = "Please enter a correct username and password."
	inactiveMessage       = "This account is inactive."
)

type loginForm struct {
	Username string `form:"username"`
	Password string `form:"password"`
	Next     string `form:"next"`
}

func isXHR(c *gin.Context) bool {
	return c.GetHeader("X-Requested-With") == "XMLHttpRequest"
}

// safeNext keeps local redirect targets only.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/dashboard"
	}
	return next
}

func (h *Handler) LoginPage(c *gin.Context) {
	if userID, ok := middleware.UserID(c); ok {
		profile, err := h.profiles.EnsureProfile(c.Request.Context(), userID)
		if err == nil && profile.User != nil && profile.User.IsActive {
			c.Redirect(http.StatusFound, "/dashboard")
			return
		}
		// stale session of a deleted or deactivated account
		_ = middleware.Logout(c)
	}
	h.render(c, http.StatusOK, "login", View{
		Title: "Sign in",
		Form:  loginForm{Next: c.Query("next")},
	})
}

// Login opens a session. XHR callers get JSON instead of a page.
func (h *Handler) Login(c *gin.Context) {
	var form loginForm
	_ = c.ShouldBind(&form)

	user, err := h.accounts.Authenticate(c.Request.Context(), form.Username, form.Password)
	if err != nil {
		message := badCredentialsMessage
		switch {
		case errors.Is(err, service.ErrAccountInactive):
			message = inactiveMessage
		case !errors.Is(err, service.ErrInvalidCredentials):
			h.fail(c, err)
			return
		}
		if isXHR(c) {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": message})
			return
		}
		form.Password = ""
		h.render(c, http.StatusOK, "login", View{
			Title:  "Sign in",
			Form:   form,
			Errors: map[string]string{invalidFormField: message},
		})
		return
	}

	if err := middleware.Login(c, user.ID); err != nil {
		h.fail(c, err)
		return
	}
	h.log.Info("web login", zap.Uint("user_id", user.ID), zap.String("username", user.Username))

	target := safeNext(form.Next)
	if isXHR(c) {
		c.JSON(http.StatusOK, gin.H{"status": "success", "redirect_url": target})
		return
	}
	c.Redirect(http.StatusFound, target)
}

func (h *Handler) Logout(c *gin.Context) {
	if err := middleware.Logout(c); err != nil {
		h.fail(c, err)
		return
	}
	c.Redirect(http.StatusFound, "/login")
}

// Dashboard sends providers to their dashboard and everyone else to the
// administration one.
func (h *Handler) Dashboard(c *gin.Context) {
	profile := middleware.CurrentProfile(c)
	if profile != nil && profile.Role == models.RoleProvider {
		c.Redirect(http.StatusFound, "/provider/dashboard")
		return
	}
	c.Redirect(http.StatusFound, "/admin/dashboard")
}
