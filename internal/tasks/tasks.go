package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task type names consumed by the worker process.
const (
	TypeCouponRedeemed = "coupon:redeemed"
	TypeCartClear      = "cart:clear"
)

// CouponRedeemedPayload carries the redeemed code and the order that
// consumed it. The order id keys the increment so a redelivered task does
// not double-count.
type CouponRedeemedPayload struct {
	Code    string    `json:"code"`
	OrderID uuid.UUID `json:"orderId"`
}

// CartClearPayload identifies the cart to empty after a completed checkout.
type CartClearPayload struct {
	CartID uuid.UUID `json:"cartId"`
}

// NewCouponRedeemedTask builds the usage-increment task.
func NewCouponRedeemedTask(code string, orderID uuid.UUID) (*asynq.Task, error) {
	payload, err := json.Marshal(CouponRedeemedPayload{Code: code, OrderID: orderID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeCouponRedeemed, payload), nil
}

// NewCartClearTask builds the post-checkout cart clear task.
func NewCartClearTask(cartID uuid.UUID) (*asynq.Task, error) {
	payload, err := json.Marshal(CartClearPayload{CartID: cartID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeCartClear, payload), nil
}

// Client enqueues post-checkout work. It satisfies the checkout service's
// Background dependency.
type Client struct {
	A *asynq.Client
}

var enqueueOpts = []asynq.Option{
	asynq.MaxRetry(5),
	asynq.Timeout(30 * time.Second),
}

// EnqueueCouponRedeemed schedules the usage-counter increment for the
// order that redeemed the code.
func (c *Client) EnqueueCouponRedeemed(ctx context.Context, code string, orderID uuid.UUID) error {
	task, err := NewCouponRedeemedTask(code, orderID)
	if err != nil {
		return err
	}
	_, err = c.A.EnqueueContext(ctx, task, enqueueOpts...)
	return err
}

// EnqueueCartClear schedules emptying the cart.
func (c *Client) EnqueueCartClear(ctx context.Context, cartID uuid.UUID) error {
	task, err := NewCartClearTask(cartID)
	if err != nil {
		return err
	}
	_, err = c.A.EnqueueContext(ctx, task, enqueueOpts...)
	return err
}

// CouponRedeemer is the slice of the coupon store the worker needs.
type CouponRedeemer interface {
	RedeemForOrder(ctx context.Context, code string, orderID uuid.UUID) error
}

// CartClearer is the slice of the cart service the worker needs.
type CartClearer interface {
	Clear(ctx context.Context, cartID uuid.UUID) error
}

// Handlers processes the task types on the worker side. Errors returned here
// drive asynq's retry, so handlers surface failures instead of swallowing.
type Handlers struct {
	Coupons CouponRedeemer
	Carts   CartClearer
}

// HandleCouponRedeemed settles the coupon usage counter for one order.
// Redelivery is safe; the store ignores orders it has already counted.
func (h *Handlers) HandleCouponRedeemed(ctx context.Context, t *asynq.Task) error {
	var p CouponRedeemedPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode payload: %w: %w", err, asynq.SkipRetry)
	}
	return h.Coupons.RedeemForOrder(ctx, p.Code, p.OrderID)
}

// HandleCartClear empties the cart.
func (h *Handlers) HandleCartClear(ctx context.Context, t *asynq.Task) error {
	var p CartClearPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode payload: %w: %w", err, asynq.SkipRetry)
	}
	return h.Carts.Clear(ctx, p.CartID)
}

// Mux registers the handlers on an asynq servemux.
func (h *Handlers) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeCouponRedeemed, h.HandleCouponRedeemed)
	mux.HandleFunc(TypeCartClear, h.HandleCartClear)
	return mux
}
