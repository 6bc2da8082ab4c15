package coupon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-loja/internal/repo"
)

func ptrTime(t time.Time) *time.Time { return &t }
func ptrInt64(v int64) *int64        { return &v }
func ptrInt32(v int32) *int32        { return &v }

func TestValidateWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	r := Rule{Kind: repo.CouponKindPercent, Value: 10, StartsAt: ptrTime(now.Add(time.Hour))}
	require.ErrorIs(t, r.Validate(now, 13000), ErrNotYetActive)

	r = Rule{Kind: repo.CouponKindPercent, Value: 10, EndsAt: ptrTime(now.Add(-time.Hour))}
	require.ErrorIs(t, r.Validate(now, 13000), ErrExpired)

	r = Rule{Kind: repo.CouponKindPercent, Value: 10,
		StartsAt: ptrTime(now.Add(-time.Hour)), EndsAt: ptrTime(now.Add(time.Hour))}
	require.NoError(t, r.Validate(now, 13000))
}

func TestValidateWindowHalfOpen(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Valid at the exact start, already expired at the exact end.
	r := Rule{Kind: repo.CouponKindPercent, Value: 10, StartsAt: ptrTime(now)}
	require.NoError(t, r.Validate(now, 13000))

	r = Rule{Kind: repo.CouponKindPercent, Value: 10, EndsAt: ptrTime(now)}
	require.ErrorIs(t, r.Validate(now, 13000), ErrExpired)
}

func TestRuleFromModel(t *testing.T) {
	starts := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	ends := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	r := RuleFromModel(repo.Coupon{
		Code:     "DESCONTO10",
		Kind:     repo.CouponKindPercent,
		Value:    10,
		StartsAt: starts,
		EndsAt:   ends,
	})
	require.NotNil(t, r.StartsAt)
	require.NotNil(t, r.EndsAt)
	require.Equal(t, starts, *r.StartsAt)
	require.Equal(t, ends, *r.EndsAt)
}

func TestRuleFromModelUnsetWindow(t *testing.T) {
	// Rows without window bounds produce a rule with no window checks at all.
	r := RuleFromModel(repo.Coupon{Code: "BEMVINDO", Kind: repo.CouponKindFixed, Value: 1500})
	require.Nil(t, r.StartsAt)
	require.Nil(t, r.EndsAt)
	require.NoError(t, r.Validate(time.Now(), 13000))
}

func TestValidateCheckOrder(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Expired beats minimum: an expired coupon below minimum reports expiry.
	r := Rule{
		Kind:          repo.CouponKindFixed,
		Value:         500,
		EndsAt:        ptrTime(now.Add(-time.Minute)),
		MinOrderValue: ptrInt64(50000),
	}
	require.ErrorIs(t, r.Validate(now, 1000), ErrExpired)

	// Minimum beats usage cap.
	r = Rule{
		Kind:          repo.CouponKindFixed,
		Value:         500,
		MinOrderValue: ptrInt64(50000),
		UsageLimit:    ptrInt32(1),
		UsedCount:     1,
	}
	require.ErrorIs(t, r.Validate(now, 1000), ErrMinimumNotMet)
}

func TestValidateUsageLimit(t *testing.T) {
	now := time.Now()
	r := Rule{Kind: repo.CouponKindFixed, Value: 500, UsageLimit: ptrInt32(3), UsedCount: 3}
	require.ErrorIs(t, r.Validate(now, 13000), ErrUsageLimitReached)

	r.UsedCount = 2
	require.NoError(t, r.Validate(now, 13000))
}

func TestValidateUnknownKind(t *testing.T) {
	r := Rule{Kind: "bogo", Value: 1}
	require.ErrorIs(t, r.Validate(time.Now(), 13000), ErrInvalidKind)
}

func TestComputePercent(t *testing.T) {
	r := Rule{Kind: repo.CouponKindPercent, Value: 10}
	require.Equal(t, int64(1300), Compute(13000, r))
}

func TestComputeFixedClamped(t *testing.T) {
	r := Rule{Kind: repo.CouponKindFixed, Value: 2000}
	require.Equal(t, int64(2000), Compute(13000, r))
	require.Equal(t, int64(1500), Compute(1500, r))
}

func TestComputeFreeShipping(t *testing.T) {
	r := Rule{Kind: repo.CouponKindFreeShipping}
	require.Equal(t, int64(0), Compute(13000, r))
	require.True(t, r.FreeShipping())
}

func TestComputeEmptySubtotal(t *testing.T) {
	r := Rule{Kind: repo.CouponKindPercent, Value: 10}
	require.Equal(t, int64(0), Compute(0, r))
}
