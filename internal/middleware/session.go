package middleware

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

const (
	sessionName    = "cantine_session"
	sessionUserKey = "user_id"
	sessionMaxAge  = 60 * 60 * 12
)

// Flash levels.
const (
	FlashSuccess = "success"
	FlashError   = "error"
	FlashInfo    = "info"
)

// Flash is one message queued for the next rendered page.
type Flash struct {
	Level   string
	Message string
}

// Sessions installs the signed cookie store used by the web surface.
func Sessions(secret string, secure bool) gin.HandlerFunc {
	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	return sessions.Sessions(sessionName, store)
}

// SessionUser copies the logged-in account ID from the session into the
// context. It never aborts; RoleGate decides what an anonymous caller gets.
func SessionUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, ok := sessions.Default(c).Get(sessionUserKey).(uint); ok && id != 0 {
			c.Set(ContextUserID, id)
		}
		c.Next()
	}
}

// Login binds the session to userID.
func Login(c *gin.Context, userID uint) error {
	s := sessions.Default(c)
	s.Clear()
	s.Set(sessionUserKey, userID)
	return s.Save()
}

// Logout forgets the session user and any pending flashes.
func Logout(c *gin.Context) error {
	s := sessions.Default(c)
	s.Clear()
	s.Options(sessions.Options{Path: "/", MaxAge: -1})
	return s.Save()
}

// AddFlash queues a message shown on the next rendered page.
func AddFlash(c *gin.Context, level, message string) {
	s := sessions.Default(c)
	s.AddFlash(message, level)
	_ = s.Save()
}

// Flashes pops every queued message, errors first.
func Flashes(c *gin.Context) []Flash {
	s := sessions.Default(c)
	var out []Flash
	for _, level := range []string{FlashError, FlashInfo, FlashSuccess} {
		for _, v := range s.Flashes(level) {
			if msg, ok := v.(string); ok {
				out = append(out, Flash{Level: level, Message: msg})
			}
		}
	}
	if len(out) > 0 {
		_ = s.Save()
	}
	return out
}
