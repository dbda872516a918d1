package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// WithAPIKey enforces the x-api-key header when key is non-empty.
func WithAPIKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// If no API key is configured, skip validation
		if key == "" {
			c.Next()
			return
		}

		if subtle.ConstantTimeCompare([]byte(c.GetHeader("x-api-key")), []byte(key)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "unauthorized",
			})
			return
		}

		c.Next()
	}
}
