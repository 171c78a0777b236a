package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zapdesk/zapdesk-backend/internal/common"
	"github.com/zapdesk/zapdesk-backend/internal/domain"
	"github.com/zapdesk/zapdesk-backend/internal/middleware"
	"github.com/zapdesk/zapdesk-backend/internal/service"
)

// CreditHandler handles credit ledger requests
type CreditHandler struct {
	service *service.CreditService
}

// NewCreditHandler creates a new CreditHandler
func NewCreditHandler(service *service.CreditService) *CreditHandler {
	return &CreditHandler{service: service}
}

// Balance handles GET /api/v1/credits/balance
func (h *CreditHandler) Balance(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	asOf := time.Now().UTC()
	if raw := c.Query("as_of"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			common.ErrorResponse(c, http.StatusBadRequest, "Invalid as_of timestamp", err)
			return
		}
		asOf = parsed
	}

	balance, err := h.service.BalanceAsOf(c.Request.Context(), tenantID, asOf)
	if err != nil {
		common.BusinessErrorResponse(c, err)
		return
	}
	grants, err := h.service.ActiveGrants(c.Request.Context(), tenantID)
	if err != nil {
		common.BusinessErrorResponse(c, err)
		return
	}
	resp := domain.CreditBalanceResponse{
		TenantID:     tenantID,
		BalanceCents: balance,
		AsOf:         asOf.Format(time.RFC3339),
	}
	for _, g := range grants {
		info := domain.CreditGrantInfo{AmountCents: g.AmountCents, Reason: string(g.Reason)}
		if g.ExpiresAt != nil {
			info.ExpiresAt = g.ExpiresAt.Format(time.RFC3339)
		}
		resp.ActiveGrants = append(resp.ActiveGrants, info)
	}
	common.SuccessResponse(c, resp, nil)
}

// History handles GET /api/v1/credits/history
func (h *CreditHandler) History(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	limit, offset, page := pagination(c)

	entries, total, err := h.service.History(c.Request.Context(), tenantID, limit, offset)
	if err != nil {
		common.BusinessErrorResponse(c, err)
		return
	}
	common.SuccessResponse(c, entries, &common.Meta{Page: page, Limit: limit, Total: total})
}

// Adjust handles POST /api/v1/admin/tenants/:tenant_id/credits, the
// operator-only manual adjustment endpoint
func (h *CreditHandler) Adjust(c *gin.Context) {
	var req domain.AdjustCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var expiresAt *time.Time
	if req.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			common.ErrorResponse(c, http.StatusBadRequest, "Invalid expires_at", err)
			return
		}
		expiresAt = &t
	}

	tenantID := c.Param("tenant_id")
	if err := h.service.Adjust(c.Request.Context(), tenantID, req.AmountCents, expiresAt); err != nil {
		common.BusinessErrorResponse(c, err)
		return
	}
	common.SuccessResponse(c, gin.H{"adjusted": true}, nil)
}
