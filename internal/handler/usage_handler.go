package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/zapdesk/zapdesk-backend/internal/common"
	"github.com/zapdesk/zapdesk-backend/internal/domain"
	"github.com/zapdesk/zapdesk-backend/internal/middleware"
	"github.com/zapdesk/zapdesk-backend/internal/service"
)

// UsageHandler handles usage metering requests
type UsageHandler struct {
	service *service.UsageService
}

// NewUsageHandler creates a new UsageHandler
func NewUsageHandler(service *service.UsageService) *UsageHandler {
	return &UsageHandler{service: service}
}

// Record handles POST /api/v1/usage
func (h *UsageHandler) Record(c *gin.Context) {
	var req domain.RecordUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	tenantID := middleware.GetTenantID(c)
	status, err := h.service.RecordUsage(c.Request.Context(), tenantID, domain.ResourceType(req.ResourceType), req.Delta, req.Period)
	if err != nil {
		common.BusinessErrorResponse(c, err)
		return
	}
	common.SuccessResponse(c, gin.H{"status": status}, nil)
}

// Get handles GET /api/v1/usage/:resource
func (h *UsageHandler) Get(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	usage, err := h.service.GetUsage(c.Request.Context(), tenantID, domain.ResourceType(c.Param("resource")), c.Query("period"))
	if err != nil {
		common.BusinessErrorResponse(c, err)
		return
	}
	common.SuccessResponse(c, usage, nil)
}

// List handles GET /api/v1/usage
func (h *UsageHandler) List(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	records, err := h.service.ListPeriod(c.Request.Context(), tenantID, c.Query("period"))
	if err != nil {
		common.BusinessErrorResponse(c, err)
		return
	}
	common.SuccessResponse(c, records, nil)
}

// pagination parses limit/page query parameters with sane bounds
func pagination(c *gin.Context) (limit, offset, page int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page <= 0 {
		page = 1
	}
	return limit, (page - 1) * limit, page
}
