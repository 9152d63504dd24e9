package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pageza/cantine/backend/internal/middleware"
	"github.com/pageza/cantine/backend/internal/models"
	"github.com/pageza/cantine/backend/internal/service"
)

func profileInputFrom(p *models.UserProfile) service.ProfileInput {
	return service.ProfileInput{Contact: p.Contact, Position: p.Position, Bio: p.Bio}
}

func (h *Handler) renderProfile(c *gin.Context, status int, form service.ProfileInput, errs map[string]string) {
	profile := middleware.CurrentProfile(c)
	h.render(c, status, "profile", View{
		Title:  "My profile",
		Form:   form,
		Errors: errs,
		Data: gin.H{
			"Avatar": h.profiles.AvatarURL(c.Request.Context(), profile),
		},
	})
}

func (h *Handler) ProfilePage(c *gin.Context) {
	h.renderProfile(c, http.StatusOK, profileInputFrom(middleware.CurrentProfile(c)), nil)
}

// UpdateProfile saves the caller's own profile. Only administrators can
// change their position.
func (h *Handler) UpdateProfile(c *gin.Context) {
	profile := middleware.CurrentProfile(c)
	var form service.ProfileInput
	if errs := bind(c, &form); errs != nil {
		h.renderProfile(c, http.StatusBadRequest, form, errs)
		return
	}
	avatar, done, err := upload(c, "avatar")
	if err != nil {
		h.fail(c, err)
		return
	}
	defer done()

	_, err = h.profiles.UpdateOwnProfile(c.Request.Context(), profile.UserID, form, avatar)
	if errs := service.FieldErrors(err); errs != nil {
		if !profile.IsAdmin() {
			form.Position = profile.Position
		}
		h.renderProfile(c, http.StatusBadRequest, form, errs)
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	h.redirect(c, middleware.FlashSuccess, "Your profile has been updated.", "/profile")
}
