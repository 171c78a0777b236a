package service

import (
	"fmt"
	"math"
	"time"

	"github.com/zapdesk/zapdesk-backend/internal/common"
)

// ProrationResult monetary outcome of a mid-cycle plan change. At most
// one of AmountDueCents and CreditGrantedCents is non-zero.
type ProrationResult struct {
	AmountDueCents     int64
	CreditGrantedCents int64
	UnusedOldCents     int64
	ProratedNewCents   int64
}

// Prorate computes the monetary delta of switching from a plan priced at
// oldPriceCents to one priced at newPriceCents partway through a period.
// Cancellation is expressed as newPriceCents = 0.
//
// The remaining fraction is measured in whole seconds and truncated,
// never rounded up, so the tenant is never over-credited. Each prorated
// value is rounded to the nearest centavo with banker's rounding. All
// arithmetic is integer; overflow is a hard error, never clamped.
func Prorate(oldPriceCents, newPriceCents int64, periodStart, periodEnd, now time.Time) (ProrationResult, error) {
	if oldPriceCents < 0 || newPriceCents < 0 {
		return ProrationResult{}, fmt.Errorf("%w: negative price", common.ErrInvalidInput)
	}
	if !periodEnd.After(periodStart) {
		return ProrationResult{}, fmt.Errorf("%w: period end must be after period start", common.ErrInvalidInput)
	}

	totalSeconds := int64(periodEnd.Sub(periodStart) / time.Second)
	remainingSeconds := int64(periodEnd.Sub(now) / time.Second)
	if remainingSeconds < 0 {
		remainingSeconds = 0
	}
	if remainingSeconds > totalSeconds {
		remainingSeconds = totalSeconds
	}

	unusedOld, err := prorateValue(oldPriceCents, remainingSeconds, totalSeconds)
	if err != nil {
		return ProrationResult{}, err
	}
	proratedNew, err := prorateValue(newPriceCents, remainingSeconds, totalSeconds)
	if err != nil {
		return ProrationResult{}, err
	}

	result := ProrationResult{
		UnusedOldCents:   unusedOld,
		ProratedNewCents: proratedNew,
	}
	if proratedNew > unusedOld {
		result.AmountDueCents = proratedNew - unusedOld
	} else {
		result.CreditGrantedCents = unusedOld - proratedNew
	}
	return result, nil
}

// prorateValue computes round(price * remaining / total) in integer
// arithmetic with banker's rounding
func prorateValue(priceCents, remainingSeconds, totalSeconds int64) (int64, error) {
	if priceCents == 0 || remainingSeconds == 0 {
		return 0, nil
	}
	if priceCents > math.MaxInt64/remainingSeconds {
		return 0, fmt.Errorf("%w: price %d over %d seconds", common.ErrAmountOverflow, priceCents, remainingSeconds)
	}
	return bankersDiv(priceCents*remainingSeconds, totalSeconds), nil
}

// bankersDiv divides n by d rounding half to even. Both operands must be
// non-negative and d positive.
func bankersDiv(n, d int64) int64 {
	q := n / d
	r := n % d
	switch {
	case 2*r < d:
		return q
	case 2*r > d:
		return q + 1
	default:
		// exactly half: round to even
		if q%2 != 0 {
			return q + 1
		}
		return q
	}
}

// addChecked adds two non-negative amounts, failing on overflow
func addChecked(a, b int64) (int64, error) {
	if a > math.MaxInt64-b {
		return 0, fmt.Errorf("%w: %d + %d", common.ErrAmountOverflow, a, b)
	}
	return a + b, nil
}

// mulChecked multiplies two non-negative amounts, failing on overflow
func mulChecked(a, b int64) (int64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	if a > math.MaxInt64/b {
		return 0, fmt.Errorf("%w: %d * %d", common.ErrAmountOverflow, a, b)
	}
	return a * b, nil
}
