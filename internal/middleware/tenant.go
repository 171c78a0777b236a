package middleware

import (
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/zapdesk/zapdesk-backend/internal/common"
)

var tenantIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// TenantMiddleware extracts the tenant identifier from the X-Tenant-ID
// header (set by the gateway after authentication) and stores it in the
// Gin context for downstream handlers
func TenantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetHeader("X-Tenant-ID")
		if tenantID != "" && !tenantIDPattern.MatchString(tenantID) {
			common.ErrorResponse(c, http.StatusBadRequest, "Invalid tenant identifier", nil)
			c.Abort()
			return
		}
		if tenantID != "" {
			c.Set("tenant_id", tenantID)
		}
		c.Next()
	}
}

// GetTenantID extracts tenant ID from context
func GetTenantID(c *gin.Context) string {
	tenantID, exists := c.Get("tenant_id")
	if !exists {
		return ""
	}
	if str, ok := tenantID.(string); ok {
		return str
	}
	return ""
}

// RequireTenant ensures a tenant context exists
func RequireTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetTenantID(c) == "" {
			common.ErrorResponse(c, http.StatusBadRequest, "Tenant context required", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}
