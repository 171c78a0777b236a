package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zapdesk/zapdesk-backend/internal/common"
	"github.com/zapdesk/zapdesk-backend/internal/domain"
	"github.com/zapdesk/zapdesk-backend/internal/middleware"
	"github.com/zapdesk/zapdesk-backend/internal/service"
)

// EntitlementHandler serves resolved entitlements. Other services in the
// platform call these endpoints instead of reading billing tables.
type EntitlementHandler struct {
	service *service.EntitlementService
}

// NewEntitlementHandler creates a new EntitlementHandler
func NewEntitlementHandler(service *service.EntitlementService) *EntitlementHandler {
	return &EntitlementHandler{service: service}
}

// Resolve handles GET /api/v1/entitlements
func (h *EntitlementHandler) Resolve(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	ent, err := h.service.Resolve(c.Request.Context(), tenantID)
	if err != nil {
		common.BusinessErrorResponse(c, err)
		return
	}
	common.SuccessResponse(c, ent, nil)
}

// CheckModule handles GET /api/v1/entitlements/modules/:slug
func (h *EntitlementHandler) CheckModule(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	enabled, err := h.service.IsModuleEnabled(c.Request.Context(), tenantID, c.Param("slug"))
	if err != nil {
		common.BusinessErrorResponse(c, err)
		return
	}
	common.SuccessResponse(c, gin.H{"module": c.Param("slug"), "enabled": enabled}, nil)
}

// CheckLimit handles GET /api/v1/entitlements/limits/:resource
func (h *EntitlementHandler) CheckLimit(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	info, err := h.service.CheckLimit(c.Request.Context(), tenantID, domain.ResourceType(c.Param("resource")))
	if err != nil {
		common.BusinessErrorResponse(c, err)
		return
	}
	common.SuccessResponse(c, info, nil)
}

// Status handles GET /api/v1/entitlements/status, a cheap lookup for
// gating middleware that only needs the subscription status
func (h *EntitlementHandler) Status(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	status, err := h.service.GetSubscriptionStatus(c.Request.Context(), tenantID)
	if err != nil {
		common.BusinessErrorResponse(c, err)
		return
	}
	common.SuccessResponse(c, gin.H{"tenant_id": tenantID, "status": status}, nil)
}

// SetOverride handles PUT /api/v1/admin/tenants/:tenant_id/overrides
func (h *EntitlementHandler) SetOverride(c *gin.Context) {
	var req struct {
		Kind       string `json:"kind" binding:"required,oneof=module limit"`
		Key        string `json:"key" binding:"required"`
		Enabled    *bool  `json:"enabled"`
		LimitCount *int64 `json:"limit_count"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	override := &domain.EntitlementOverride{
		TenantID:   c.Param("tenant_id"),
		Kind:       domain.OverrideKind(req.Kind),
		Key:        req.Key,
		Enabled:    req.Enabled,
		LimitCount: req.LimitCount,
	}
	if err := h.service.SetOverride(c.Request.Context(), override); err != nil {
		common.BusinessErrorResponse(c, err)
		return
	}
	common.SuccessResponse(c, override, nil)
}

// RemoveOverride handles DELETE /api/v1/admin/tenants/:tenant_id/overrides/:kind/:key
func (h *EntitlementHandler) RemoveOverride(c *gin.Context) {
	err := h.service.RemoveOverride(c.Request.Context(), c.Param("tenant_id"),
		domain.OverrideKind(c.Param("kind")), c.Param("key"))
	if err != nil {
		common.BusinessErrorResponse(c, err)
		return
	}
	common.SuccessResponse(c, gin.H{"removed": true}, nil)
}
