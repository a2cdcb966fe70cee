package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "

	// SessionCookie is the cookie the dashboard's identity provider sets.
	SessionCookie = "__session"
)

// RequireSession verifies the caller's session token (bearer header or session
// cookie) and injects the user id into request context.
func RequireSession(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := sessionToken(c)
		if tok == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		claims, err := m.Verify(tok, time.Now())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		userID := claims.User()
		c.Request = c.Request.WithContext(WithUserID(c.Request.Context(), userID))
		c.Set("user_id", userID)

		c.Next()
	}
}

func sessionToken(c *gin.Context) string {
	raw := strings.TrimSpace(c.GetHeader(authorizationHeader))
	if strings.HasPrefix(raw, bearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(raw, bearerPrefix))
	}
	if v, err := c.Cookie(SessionCookie); err == nil {
		return v
	}
	return ""
}
