package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yigit/campusreg/internal/app/services"
)

// CSRF token locations
const (
	CSRFHeader    = "X-CSRF-Token"
	CSRFFormField = "csrf_token"
)

// ErrorResponder writes an error response for a rejected request
type ErrorResponder func(c *gin.Context, err error)

// RequireCSRF rejects state-changing requests whose token does not match the
// session's. Safe methods pass through.
func RequireCSRF(sessions services.SessionService, respond ErrorResponder) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		token := c.GetHeader(CSRFHeader)
		if token == "" {
			token = c.PostForm(CSRFFormField)
		}
		if err := sessions.VerifyCSRF(c.Request.Context(), SessionID(c), token); err != nil {
			respond(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}
