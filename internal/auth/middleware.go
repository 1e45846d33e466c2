package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// StudentAuth enforces bearer JWT tokens signed with HS256 and exposes the
// authenticated student id to handlers.
func StudentAuth(signingKey, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := Parse(tokenStr, signingKey, issuer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set("claims", claims)
		c.Set("student_id", claims.Subject)
		c.Next()
	}
}

// StudentID returns the authenticated student id set by StudentAuth.
func StudentID(c *gin.Context) string {
	id, _ := c.Get("student_id")
	s, _ := id.(string)
	return s
}
