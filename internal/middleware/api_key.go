package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zapdesk/zapdesk-backend/internal/common"
)

// AdminKeyAuth guards operator endpoints with a static API key.
// Checks the X-API-Key header; constant-time comparison.
func AdminKeyAuth(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminKey == "" {
			common.ErrorResponse(c, http.StatusForbidden, "Admin API disabled", nil)
			c.Abort()
			return
		}
		key := c.GetHeader("X-API-Key")
		if key == "" {
			common.ErrorResponse(c, http.StatusUnauthorized, "API key required", nil)
			c.Abort()
			return
		}
		if subtle.ConstantTimeCompare([]byte(key), []byte(adminKey)) != 1 {
			common.ErrorResponse(c, http.StatusUnauthorized, "Invalid API key", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}
