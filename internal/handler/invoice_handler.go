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

// InvoiceHandler handles invoice and payment requests
type InvoiceHandler struct {
	invoices *service.InvoiceService
	payments *service.PaymentService
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(invoices *service.InvoiceService, payments *service.PaymentService) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices, payments: payments}
}

// List handles GET /api/v1/invoices
func (h *InvoiceHandler) List(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	limit, offset, page := pagination(c)

	invoices, total, err := h.invoices.ListInvoices(c.Request.Context(), tenantID, limit, offset)
	if err != nil {
		common.BusinessErrorResponse(c, err)
		return
	}
	common.SuccessResponse(c, invoices, &common.Meta{Page: page, Limit: limit, Total: total})
}

// Get handles GET /api/v1/invoices/:id
func (h *InvoiceHandler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid invoice id", err)
		return
	}

	tenantID := middleware.GetTenantID(c)
	inv, err := h.invoices.GetInvoice(c.Request.Context(), tenantID, id)
	if err != nil {
		common.BusinessErrorResponse(c, err)
		return
	}
	common.SuccessResponse(c, inv, nil)
}

// ApplyCoupon handles POST /api/v1/invoices/:id/coupon
func (h *InvoiceHandler) ApplyCoupon(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid invoice id", err)
		return
	}

	var req domain.ApplyCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	tenantID := middleware.GetTenantID(c)
	validation, err := h.invoices.ApplyCoupon(c.Request.Context(), tenantID, id, req.Code)
	if err != nil {
		common.BusinessErrorResponse(c, err)
		return
	}
	common.SuccessResponse(c, validation, nil)
}

// Pay handles POST /api/v1/invoices/:id/pay
func (h *InvoiceHandler) Pay(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid invoice id", err)
		return
	}

	var req struct {
		Method string `json:"method" binding:"required,oneof=pix credit_card boleto"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	tenantID := middleware.GetTenantID(c)
	result, err := h.payments.AttemptPayment(c.Request.Context(), tenantID, id, req.Method)
	if err != nil {
		common.BusinessErrorResponse(c, err)
		return
	}
	common.SuccessResponse(c, result, nil)
}

// Settle handles POST /api/v1/payments/callback, the asynchronous
// settlement notification from the payment processor
func (h *InvoiceHandler) Settle(c *gin.Context) {
	var req struct {
		TenantID  string `json:"tenant_id" binding:"required"`
		InvoiceID uint64 `json:"invoice_id" binding:"required"`
		Success   bool   `json:"success"`
		Method    string `json:"method" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.payments.Settle(c.Request.Context(), req.TenantID, req.InvoiceID, req.Success, req.Method); err != nil {
		common.BusinessErrorResponse(c, err)
		return
	}
	common.SuccessResponse(c, gin.H{"settled": true}, nil)
}
