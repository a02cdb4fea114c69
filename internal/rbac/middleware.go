package rbac

import (
	"net/http"

	"voiceai-billing/internal/auth"

	"github.com/gin-gonic/gin"
)

// RequireClientAccount enforces that the caller is scoped to a billing
// account: client_id must exist in context. Staff tokens carry no client_id
// and are rejected here; staff surfaces use RequireAnyRole instead.
func RequireClientAccount() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid, err := auth.ClientID(c.Request.Context())
		if err != nil || cid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "client_id required"})
			return
		}
		c.Next()
	}
}

// RequireAnyRole allows access if the caller has any of the provided roles.
// Rules:
// - admin bypasses all checks
// - everyone else must match the allowed set exactly
func RequireAnyRole(allowed ...string) gin.HandlerFunc {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		allowedSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		role, err := auth.Role(c.Request.Context())
		if err != nil || role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "role required"})
			return
		}

		// admin bypasses all
		if IsAdmin(role) {
			c.Next()
			return
		}

		if _, ok := allowedSet[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
