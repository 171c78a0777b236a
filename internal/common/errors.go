package common

import "errors"

// Business logic errors
var (
	// General errors
	ErrNotFound  = errors.New("resource not found")
	ErrForbidden = errors.New("forbidden")

	// Catalog errors
	ErrPlanNotFound   = errors.New("plan not found")
	ErrModuleNotFound = errors.New("module not found")

	// Subscription errors
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrInvalidTransition    = errors.New("subscription state does not permit this operation")
	ErrSubscriptionExists   = errors.New("tenant already has a live subscription")

	// Credit ledger errors
	ErrInsufficientCredit = errors.New("insufficient credit balance")

	// Coupon errors
	ErrCouponInvalid   = errors.New("coupon is not valid")
	ErrCouponExhausted = errors.New("coupon has no remaining uses")

	// Money arithmetic errors are fatal: clamping would corrupt financial records
	ErrAmountOverflow = errors.New("monetary amount overflow")

	// Validation errors
	ErrInvalidInput = errors.New("invalid input")
)
