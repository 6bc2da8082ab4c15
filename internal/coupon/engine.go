package coupon

import (
	"errors"
	"time"

	"github.com/noah-isme/backend-loja/internal/money"
	"github.com/noah-isme/backend-loja/internal/repo"
)

var (
	// ErrNotFound is returned when no coupon matches the submitted code.
	ErrNotFound = errors.New("coupon not found")
	// ErrNotYetActive is returned when the coupon window has not opened.
	ErrNotYetActive = errors.New("coupon not yet active")
	// ErrExpired is returned when the coupon window has closed.
	ErrExpired = errors.New("coupon expired")
	// ErrMinimumNotMet indicates the cart subtotal is below the coupon floor.
	ErrMinimumNotMet = errors.New("coupon minimum order value not met")
	// ErrUsageLimitReached indicates the coupon exhausted its global quota.
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
	// ErrInvalidKind is returned for coupon kinds the engine does not know.
	ErrInvalidKind = errors.New("coupon kind not supported")
)

// Rule captures the runtime constraints of a coupon.
type Rule struct {
	Code          string
	Kind          string
	Value         int64
	StartsAt      *time.Time
	EndsAt        *time.Time
	MinOrderValue *int64
	UsageLimit    *int32
	UsedCount     int32
}

// RuleFromModel converts a stored coupon row into an evaluation rule. Zero
// window bounds mean unset and translate to nil, skipping that check.
func RuleFromModel(c repo.Coupon) Rule {
	r := Rule{
		Code:          c.Code,
		Kind:          c.Kind,
		Value:         c.Value,
		MinOrderValue: c.MinOrderValue,
		UsageLimit:    c.UsageLimit,
		UsedCount:     c.UsedCount,
	}
	if !c.StartsAt.IsZero() {
		starts := c.StartsAt
		r.StartsAt = &starts
	}
	if !c.EndsAt.IsZero() {
		ends := c.EndsAt
		r.EndsAt = &ends
	}
	return r
}

// Validate checks the rule against the instant and subtotal. Checks run in a
// fixed order so a coupon that is both expired and below minimum always
// reports the same failure.
func (r Rule) Validate(now time.Time, subtotal money.Money) error {
	if r.StartsAt != nil && now.Before(*r.StartsAt) {
		return ErrNotYetActive
	}
	// The window is half-open: a coupon is already expired at the exact end
	// instant.
	if r.EndsAt != nil && !now.Before(*r.EndsAt) {
		return ErrExpired
	}
	if r.MinOrderValue != nil && subtotal < *r.MinOrderValue {
		return ErrMinimumNotMet
	}
	if r.UsageLimit != nil && *r.UsageLimit >= 0 && r.UsedCount >= *r.UsageLimit {
		return ErrUsageLimitReached
	}
	switch r.Kind {
	case repo.CouponKindPercent, repo.CouponKindFixed, repo.CouponKindFreeShipping:
		return nil
	}
	return ErrInvalidKind
}

// Compute determines the discount amount for the rule. Free-shipping coupons
// yield zero here; their effect is carried by FreeShipping instead.
func Compute(subtotal money.Money, r Rule) money.Money {
	if subtotal <= 0 {
		return 0
	}
	var discount money.Money
	switch r.Kind {
	case repo.CouponKindPercent:
		discount = money.Percent(subtotal, r.Value)
	case repo.CouponKindFixed:
		discount = r.Value
	default:
		return 0
	}
	return money.ClampDiscount(discount, subtotal)
}

// FreeShipping reports whether the rule waives the shipping cost.
func (r Rule) FreeShipping() bool {
	return r.Kind == repo.CouponKindFreeShipping
}
