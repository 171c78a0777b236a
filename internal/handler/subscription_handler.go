package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zapdesk/zapdesk-backend/internal/common"
	"github.com/zapdesk/zapdesk-backend/internal/domain"
	"github.com/zapdesk/zapdesk-backend/internal/middleware"
	"github.com/zapdesk/zapdesk-backend/internal/service"
)

// SubscriptionHandler handles subscription lifecycle requests
type SubscriptionHandler struct {
	service *service.SubscriptionService
}

// NewSubscriptionHandler creates a new SubscriptionHandler
func NewSubscriptionHandler(service *service.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{service: service}
}

// Create handles POST /api/v1/subscription
func (h *SubscriptionHandler) Create(c *gin.Context) {
	var req domain.CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	tenantID := middleware.GetTenantID(c)
	sub, err := h.service.CreateSubscription(c.Request.Context(), tenantID, req.PlanSlug, domain.BillingCycle(req.BillingCycle))
	if err != nil {
		common.BusinessErrorResponse(c, err)
		return
	}
	common.SuccessResponse(c, sub, nil)
}

// Get handles GET /api/v1/subscription
func (h *SubscriptionHandler) Get(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	sub, err := h.service.GetSubscription(c.Request.Context(), tenantID)
	if err != nil {
		common.BusinessErrorResponse(c, err)
		return
	}
	common.SuccessResponse(c, sub, nil)
}

// ChangePlan handles POST /api/v1/subscription/change-plan
func (h *SubscriptionHandler) ChangePlan(c *gin.Context) {
	var req domain.ChangePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	tenantID := middleware.GetTenantID(c)
	sub, err := h.service.ChangePlan(c.Request.Context(), tenantID, req.PlanSlug, domain.BillingCycle(req.BillingCycle))
	if err != nil {
		common.BusinessErrorResponse(c, err)
		return
	}
	common.SuccessResponse(c, sub, nil)
}

// Cancel handles POST /api/v1/subscription/cancel
func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	var req domain.CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	tenantID := middleware.GetTenantID(c)
	sub, err := h.service.Cancel(c.Request.Context(), tenantID, service.CancelEffective(req.Effective))
	if err != nil {
		common.BusinessErrorResponse(c, err)
		return
	}
	common.SuccessResponse(c, sub, nil)
}

// Reactivate handles POST /api/v1/subscription/reactivate
func (h *SubscriptionHandler) Reactivate(c *gin.Context) {
	var req domain.CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	tenantID := middleware.GetTenantID(c)
	sub, err := h.service.Reactivate(c.Request.Context(), tenantID, req.PlanSlug, domain.BillingCycle(req.BillingCycle))
	if err != nil {
		common.BusinessErrorResponse(c, err)
		return
	}
	common.SuccessResponse(c, sub, nil)
}

// PurchaseModule handles POST /api/v1/subscription/modules
func (h *SubscriptionHandler) PurchaseModule(c *gin.Context) {
	var req domain.PurchaseModuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	tenantID := middleware.GetTenantID(c)
	grant, err := h.service.PurchaseModule(c.Request.Context(), tenantID, req.ModuleSlug, req.Quantity)
	if err != nil {
		common.BusinessErrorResponse(c, err)
		return
	}
	common.SuccessResponse(c, grant, nil)
}

// RemoveModule handles DELETE /api/v1/subscription/modules/:slug
func (h *SubscriptionHandler) RemoveModule(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	if err := h.service.RemoveModule(c.Request.Context(), tenantID, c.Param("slug")); err != nil {
		common.BusinessErrorResponse(c, err)
		return
	}
	common.SuccessResponse(c, gin.H{"removed": true}, nil)
}

// ListChanges handles GET /api/v1/subscription/history
func (h *SubscriptionHandler) ListChanges(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	limit, offset, page := pagination(c)

	changes, total, err := h.service.ListChanges(c.Request.Context(), tenantID, limit, offset)
	if err != nil {
		common.BusinessErrorResponse(c, err)
		return
	}
	common.SuccessResponse(c, changes, &common.Meta{Page: page, Limit: limit, Total: total})
}
