package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/zapdesk/zapdesk-backend/internal/common"
	"github.com/zapdesk/zapdesk-backend/internal/service"
)

// CatalogHandler serves the public plan and module catalog
type CatalogHandler struct {
	service *service.CatalogService
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(service *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{service: service}
}

// ListPlans handles GET /api/v1/catalog/plans
func (h *CatalogHandler) ListPlans(c *gin.Context) {
	plans, err := h.service.ListPublicPlans(c.Request.Context())
	if err != nil {
		common.BusinessErrorResponse(c, err)
		return
	}
	common.SuccessResponse(c, plans, nil)
}

// ListModules handles GET /api/v1/catalog/modules
func (h *CatalogHandler) ListModules(c *gin.Context) {
	modules, err := h.service.ListModules(c.Request.Context())
	if err != nil {
		common.BusinessErrorResponse(c, err)
		return
	}
	common.SuccessResponse(c, modules, nil)
}
