package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/yigit/campusreg/internal/app/models"
	"github.com/yigit/campusreg/internal/app/services"
)

const authSessionKey = "authSession"

// RequireSession only lets signed-in applicants through
func RequireSession(sessions services.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth, err := sessions.Current(c.Request.Context(), SessionID(c))
		if err != nil {
			HandleAPIError(c, err)
			c.Abort()
			return
		}
		c.Set(authSessionKey, auth)
		c.Next()
	}
}

// CurrentSession returns the session loaded by RequireSession, or nil
func CurrentSession(c *gin.Context) *models.AuthenticatedSession {
	v, ok := c.Get(authSessionKey)
	if !ok {
		return nil
	}
	auth, _ := v.(*models.AuthenticatedSession)
	return auth
}
