package common

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIResponse standard API response structure
type APIResponse struct {
	Data  interface{} `json:"data"`
	Meta  *Meta       `json:"meta,omitempty"`
	Error *ErrorInfo  `json:"error,omitempty"`
}

// Meta pagination and additional metadata
type Meta struct {
	Page  int   `json:"page,omitempty"`
	Limit int   `json:"limit,omitempty"`
	Total int64 `json:"total,omitempty"`
}

// ErrorInfo error details
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// SuccessResponse returns a successful JSON response
func SuccessResponse(c *gin.Context, data interface{}, meta *Meta) {
	c.JSON(http.StatusOK, APIResponse{
		Data: data,
		Meta: meta,
	})
}

// ErrorResponse returns an error JSON response
func ErrorResponse(c *gin.Context, status int, message string, err error) {
	errInfo := &ErrorInfo{
		Code:    errorCode(status, err),
		Message: message,
	}
	if err != nil {
		errInfo.Details = err.Error()
	}

	c.JSON(status, gin.H{
		"error": errInfo,
	})
}

// BusinessErrorResponse maps a business error to its HTTP status and code
func BusinessErrorResponse(c *gin.Context, err error) {
	ErrorResponse(c, StatusForError(err), err.Error(), err)
}

// StatusForError maps the billing error taxonomy to HTTP statuses
func StatusForError(err error) int {
	switch {
	case errors.Is(err, ErrPlanNotFound),
		errors.Is(err, ErrModuleNotFound),
		errors.Is(err, ErrSubscriptionNotFound),
		errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrSubscriptionExists),
		errors.Is(err, ErrCouponExhausted):
		return http.StatusConflict
	case errors.Is(err, ErrInsufficientCredit),
		errors.Is(err, ErrCouponInvalid),
		errors.Is(err, ErrInvalidInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// errorCode generates a stable machine-readable code for the response body
func errorCode(status int, err error) string {
	switch {
	case errors.Is(err, ErrInvalidTransition):
		return "INVALID_TRANSITION"
	case errors.Is(err, ErrPlanNotFound):
		return "PLAN_NOT_FOUND"
	case errors.Is(err, ErrModuleNotFound):
		return "MODULE_NOT_FOUND"
	case errors.Is(err, ErrSubscriptionNotFound):
		return "SUBSCRIPTION_NOT_FOUND"
	case errors.Is(err, ErrInsufficientCredit):
		return "INSUFFICIENT_CREDIT"
	case errors.Is(err, ErrCouponExhausted):
		return "COUPON_EXHAUSTED"
	case errors.Is(err, ErrCouponInvalid):
		return "COUPON_INVALID"
	}

	switch status {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "CONFLICT"
	case http.StatusUnprocessableEntity:
		return "UNPROCESSABLE"
	case http.StatusInternalServerError:
		return "INTERNAL_SERVER_ERROR"
	default:
		return "ERROR"
	}
}
