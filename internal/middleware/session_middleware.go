package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	sessionIDKey     = "sessionID"
	sessionCookieKey = "sessionCookie"
)

// SessionCookieConfig configures the browser session cookie
type SessionCookieConfig struct {
	Name   string
	Secure bool
	TTL    time.Duration
}

// SessionCookie makes sure every request carries a browser session id. An
// absent or malformed cookie is replaced with a fresh random id. Ids are
// rotated on sign-in and sign-out, see IssueSessionCookie.
func SessionCookie(cfg SessionCookieConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(sessionCookieKey, cfg)
		sid, err := c.Cookie(cfg.Name)
		if _, perr := uuid.Parse(sid); err != nil || perr != nil {
			IssueSessionCookie(c, uuid.NewString())
		} else {
			c.Set(sessionIDKey, sid)
		}
		c.Next()
	}
}

// IssueSessionCookie switches the request to sid and sends it to the
// browser. Without SessionCookie on the route only the request is updated.
func IssueSessionCookie(c *gin.Context, sid string) {
	c.Set(sessionIDKey, sid)
	v, _ := c.Get(sessionCookieKey)
	cfg, ok := v.(SessionCookieConfig)
	if !ok {
		return
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     cfg.Name,
		Value:    sid,
		Path:     "/",
		MaxAge:   int(cfg.TTL.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionID returns the browser session id set by SessionCookie
func SessionID(c *gin.Context) string {
	return c.GetString(sessionIDKey)
}
