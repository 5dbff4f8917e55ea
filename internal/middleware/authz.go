package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// WritesNeedIdentity lets anonymous callers read but not mutate. It runs
// after Identity with Optional set.
func WritesNeedIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}
		if v, _ := c.Get(UserIDKey); v == nil || v == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "missing identity"})
			return
		}
		c.Next()
	}
}
