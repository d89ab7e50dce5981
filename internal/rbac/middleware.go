package rbac

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RoleSource reports the role of the operator the console runs as. An empty
// role means the credential carries none (opaque token).
type RoleSource interface {
	Role() string
}

// RequireAdmin guards settings writes. Known non-admin roles get a 403 before
// any upstream call; without a role claim the request passes and the upstream
// server decides.
func RequireAdmin(src RoleSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := ""
		if src != nil {
			role = src.Role()
		}
		if role != "" && !IsAdmin(role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "authorization",
				"kind":    "authorization",
				"message": "Admin required",
			})
			return
		}
		c.Next()
	}
}
