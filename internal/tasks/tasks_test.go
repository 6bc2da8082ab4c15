package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type redemption struct {
	code    string
	orderID uuid.UUID
}

// redeemRecorder ignores repeated orders, like the real store does.
type redeemRecorder struct {
	redeemed []redemption
	err      error
}

func (r *redeemRecorder) RedeemForOrder(_ context.Context, code string, orderID uuid.UUID) error {
	if r.err != nil {
		return r.err
	}
	for _, got := range r.redeemed {
		if got.orderID == orderID {
			return nil
		}
	}
	r.redeemed = append(r.redeemed, redemption{code: code, orderID: orderID})
	return nil
}

type clearRecorder struct {
	cleared []uuid.UUID
}

func (c *clearRecorder) Clear(_ context.Context, cartID uuid.UUID) error {
	c.cleared = append(c.cleared, cartID)
	return nil
}

func TestHandleCouponRedeemed(t *testing.T) {
	rec := &redeemRecorder{}
	h := &Handlers{Coupons: rec}
	orderID := uuid.New()

	task, err := NewCouponRedeemedTask("DESCONTO10", orderID)
	require.NoError(t, err)
	require.NoError(t, h.HandleCouponRedeemed(context.Background(), task))
	require.Equal(t, []redemption{{code: "DESCONTO10", orderID: orderID}}, rec.redeemed)
}

func TestHandleCouponRedeemedRedelivery(t *testing.T) {
	rec := &redeemRecorder{}
	h := &Handlers{Coupons: rec}
	orderID := uuid.New()

	task, err := NewCouponRedeemedTask("DESCONTO10", orderID)
	require.NoError(t, err)
	require.NoError(t, h.HandleCouponRedeemed(context.Background(), task))
	require.NoError(t, h.HandleCouponRedeemed(context.Background(), task))
	require.Len(t, rec.redeemed, 1)
}

func TestHandleCouponRedeemedRetryableFailure(t *testing.T) {
	rec := &redeemRecorder{err: errors.New("db unavailable")}
	h := &Handlers{Coupons: rec}

	task, err := NewCouponRedeemedTask("DESCONTO10", uuid.New())
	require.NoError(t, err)
	err = h.HandleCouponRedeemed(context.Background(), task)
	require.Error(t, err)
	require.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleCartClear(t *testing.T) {
	rec := &clearRecorder{}
	h := &Handlers{Carts: rec}
	cartID := uuid.New()

	task, err := NewCartClearTask(cartID)
	require.NoError(t, err)
	require.NoError(t, h.HandleCartClear(context.Background(), task))
	require.Equal(t, []uuid.UUID{cartID}, rec.cleared)
}

func TestMalformedPayloadSkipsRetry(t *testing.T) {
	h := &Handlers{}
	task := asynq.NewTask(TypeCartClear, []byte("not json"))
	err := h.HandleCartClear(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)

	task = asynq.NewTask(TypeCouponRedeemed, []byte("not json"))
	err = h.HandleCouponRedeemed(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
}
