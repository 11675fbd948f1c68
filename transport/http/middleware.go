package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coffeemasters/authcore/service"
)

const accountContextKey = "account"

// SessionMiddleware resolves the session cookie and aborts unauthenticated
// requests. The resolved account is stored in the request context.
func SessionMiddleware(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(SessionCookie)
		if err != nil || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "message": "Unauthenticated"})
			return
		}

		account, err := authService.ResolveSession(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "message": "Unauthenticated"})
			return
		}

		c.Set(accountContextKey, account)
		c.Next()
	}
}
