package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lendingdesk/backoffice/internal/auth"
)

type SessionChecker interface {
	CurrentRole(ctx context.Context, userID, sessionID string) (string, error)
}

// RequireLiveSession must run after RequireAuth. It rejects revoked or expired
// sessions and replaces the token's role with the stored one.
func RequireLiveSession(sessions SessionChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, err := sessions.CurrentRole(c.Request.Context(), c.GetString(ctxUserID), SessionID(c))
		if errors.Is(err, auth.ErrInvalidSession) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "session_check_failed"})
			return
		}
		c.Set(ctxUserRole, role)
		c.Next()
	}
}
