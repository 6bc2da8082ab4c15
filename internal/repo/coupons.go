package repo

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Coupons provides persistence for coupon records. Creation and retirement
// happen outside this service; only lookup and usage accounting live here.
type Coupons struct {
	DB DBTX
}

const couponColumns = `id, code, kind, value, starts_at, ends_at, min_order_value, usage_limit, used_count`

// GetByCode performs a case-insensitive lookup; codes are stored upper-cased.
func (r Coupons) GetByCode(ctx context.Context, code string) (Coupon, error) {
	var c Coupon
	row := r.DB.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code = $1`, strings.ToUpper(strings.TrimSpace(code)))
	err := row.Scan(&c.ID, &c.Code, &c.Kind, &c.Value, &c.StartsAt, &c.EndsAt, &c.MinOrderValue, &c.UsageLimit, &c.UsedCount)
	return c, err
}

// RedeemForOrder bumps the redemption counter at most once per order. The
// redemption row is the idempotency key; a redelivered task hits the
// conflict and leaves used_count alone.
func (r Coupons) RedeemForOrder(ctx context.Context, code string, orderID uuid.UUID) error {
	tag, err := r.DB.Exec(ctx,
		`INSERT INTO coupon_redemptions (order_id, coupon_code) VALUES ($1, $2) ON CONFLICT (order_id) DO NOTHING`,
		orderID, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return nil
	}
	return r.incrementUsage(ctx, code)
}

func (r Coupons) incrementUsage(ctx context.Context, code string) error {
	_, err := r.DB.Exec(ctx, `UPDATE coupons SET used_count = used_count + 1 WHERE code = $1`, strings.ToUpper(strings.TrimSpace(code)))
	return err
}
