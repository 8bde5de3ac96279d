package middleware

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/lendingdesk/backoffice/internal/auth"
)

// RequireRole must run after RequireAuth.
func RequireRole(allowed ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		viewer := Principal(c)
		if viewer.UserID == "" || !slices.Contains(allowed, viewer.Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// RequireInternal admits back-office staff and admins.
func RequireInternal() gin.HandlerFunc {
	return RequireRole(auth.RoleAdmin, auth.RoleStaff)
}
