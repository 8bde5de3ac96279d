package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lendingdesk/backoffice/internal/auth"
)

const (
	ctxUserID    = "user_id"
	ctxUserRole  = "user_role"
	ctxSessionID = "session_id"
)

// RequireAuth accepts the access cookie, and a bearer header when allowBearer
// is set.
func RequireAuth(jwt *auth.JWTManager, allowBearer bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.AccessToken(c.Request, allowBearer)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		claims, err := jwt.Parse(token)
		if err != nil || claims.Type != auth.TokenTypeAccess {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxUserRole, claims.Role)
		c.Set(ctxSessionID, claims.SessionID)
		c.Next()
	}
}

// Principal reads the caller placed on the context by RequireAuth.
func Principal(c *gin.Context) auth.Principal {
	return auth.Principal{UserID: c.GetString(ctxUserID), Role: c.GetString(ctxUserRole)}
}

func SessionID(c *gin.Context) string {
	return c.GetString(ctxSessionID)
}
