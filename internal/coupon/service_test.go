package coupon

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-loja/internal/repo"
)

type fakeStore struct {
	coupons map[string]repo.Coupon
}

func (f *fakeStore) GetByCode(_ context.Context, code string) (repo.Coupon, error) {
	c, ok := f.coupons[strings.ToUpper(code)]
	if !ok {
		return repo.Coupon{}, repo.ErrNoRows
	}
	return c, nil
}

func newService(store *fakeStore) *Service {
	return &Service{
		Store: store,
		Now:   func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func TestValidateHappyPath(t *testing.T) {
	store := &fakeStore{coupons: map[string]repo.Coupon{
		"DESCONTO10": {Code: "DESCONTO10", Kind: repo.CouponKindPercent, Value: 10},
	}}
	ev, err := newService(store).Validate(context.Background(), "desconto10", 13000)
	require.NoError(t, err)
	require.Equal(t, "DESCONTO10", ev.Code)
	require.Equal(t, int64(1300), ev.Discount)
	require.False(t, ev.FreeShipping)
}

func TestValidateUnknownCode(t *testing.T) {
	_, err := newService(&fakeStore{coupons: map[string]repo.Coupon{}}).
		Validate(context.Background(), "NADA", 13000)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestValidateBlankCode(t *testing.T) {
	_, err := newService(&fakeStore{}).Validate(context.Background(), "   ", 13000)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestValidateFreeShippingCoupon(t *testing.T) {
	store := &fakeStore{coupons: map[string]repo.Coupon{
		"FRETEGRATIS": {Code: "FRETEGRATIS", Kind: repo.CouponKindFreeShipping},
	}}
	ev, err := newService(store).Validate(context.Background(), "FRETEGRATIS", 5000)
	require.NoError(t, err)
	require.True(t, ev.FreeShipping)
	require.Equal(t, int64(0), ev.Discount)
}
