package middleware

import (
	"crypto/subtle"
	"net/http"
	"time"

	"payment-webhooks/internal/response"

	"github.com/gin-gonic/gin"
)

// AdminAuthMiddleware protects the admin API with a static key.
// An empty key disables the admin API entirely.
func AdminAuthMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.JSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Admin API is disabled"))
			c.Abort()
			return
		}

		// Get API key from header, fall back to query parameter
		key := c.GetHeader("X-API-Key")
		if key == "" {
			key = c.Query("api_key")
		}

		if key == "" {
			c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Missing api_key"))
			c.Abort()
			return
		}

		if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
			c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid api_key"))
			c.Abort()
			return
		}

		c.Set("request_time", time.Now())
		c.Next()
	}
}
