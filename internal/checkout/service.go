package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-loja/internal/cart"
	"github.com/noah-isme/backend-loja/internal/common"
	"github.com/noah-isme/backend-loja/internal/events"
	"github.com/noah-isme/backend-loja/internal/obs"
	"github.com/noah-isme/backend-loja/internal/order"
	"github.com/noah-isme/backend-loja/internal/pricing"
	"github.com/noah-isme/backend-loja/internal/repo"
	"github.com/noah-isme/backend-loja/internal/session"
	"github.com/noah-isme/backend-loja/internal/shipping"
)

// State names one phase of a checkout attempt.
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateSubmitting State = "submitting"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

var legalTransitions = map[State][]State{
	StateIdle:       {StateValidating},
	StateValidating: {StateSubmitting, StateFailed},
	StateSubmitting: {StateSucceeded, StateFailed},
	StateFailed:     {StateValidating},
}

// ErrIllegalTransition indicates a programming error in the attempt flow.
var ErrIllegalTransition = errors.New("illegal checkout state transition")

// ErrEmptyCart rejects submission of a cart with no resolvable lines.
var ErrEmptyCart = errors.New("cart is empty")

// Attempt tracks one checkout run. A failed attempt is always recoverable:
// the only transition out of Failed is back into Validating.
type Attempt struct {
	state State
}

// NewAttempt starts in Idle.
func NewAttempt() *Attempt {
	return &Attempt{state: StateIdle}
}

// State returns the current phase.
func (a *Attempt) State() State {
	return a.state
}

// Transition moves the attempt to next, rejecting anything the state machine
// does not allow.
func (a *Attempt) Transition(next State) error {
	for _, allowed := range legalTransitions[a.state] {
		if allowed == next {
			a.state = next
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, a.state, next)
}

// CartReader supplies the hydrated cart the submission freezes.
type CartReader interface {
	View(ctx context.Context, cartID uuid.UUID) (cart.View, error)
}

// OrderStore persists the order header and its frozen lines.
type OrderStore interface {
	CreateHeader(ctx context.Context, o repo.Order) (repo.Order, error)
	CreateItem(ctx context.Context, it repo.OrderItem) error
	DeleteHeader(ctx context.Context, orderID uuid.UUID) error
}

// Sessions owns the pending-checkout slot.
type Sessions interface {
	SetPendingCheckout(ctx context.Context, p session.PendingCheckout) error
	ClearPendingCheckout(ctx context.Context, cartID uuid.UUID) error
}

// Background dispatches the fire-and-forget post-checkout work.
type Background interface {
	EnqueueCouponRedeemed(ctx context.Context, code string, orderID uuid.UUID) error
	EnqueueCartClear(ctx context.Context, cartID uuid.UUID) error
}

// Emitter publishes domain events after a completed checkout.
type Emitter interface {
	Emit(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) (repo.DomainEvent, error)
}

// Result is the terminal outcome of a submission.
type Result struct {
	State            State            `json:"state"`
	OrderID          uuid.UUID        `json:"orderId"`
	OrderCode        string           `json:"orderCode"`
	PaymentMethod    string           `json:"paymentMethod"`
	Pricing          pricing.Snapshot `json:"pricing"`
	ShippingTier     shipping.Tier    `json:"shippingTier"`
	DeliveryEstimate string           `json:"deliveryEstimate"`
}

// Service orchestrates checkout: validate, quote, freeze, persist, settle.
type Service struct {
	Validator    *validator.Validate
	Cart         CartReader
	Orders       OrderStore
	Sessions     Sessions
	Tasks        Background
	Bus          Emitter
	Estimator    shipping.Estimator
	Installments int
	Log          zerolog.Logger
	Now          func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) installments() int {
	if s.Installments <= 0 {
		return pricing.DefaultInstallments
	}
	return s.Installments
}

// Submit runs one checkout attempt end to end. The order header and items
// are written as separate statements; a failed item insert triggers the
// compensating header delete rather than a database rollback.
func (s *Service) Submit(ctx context.Context, userID *uuid.UUID, anonID *string, cartID uuid.UUID, in Input) (Result, error) {
	attempt := NewAttempt()
	_ = attempt.Transition(StateValidating)

	fail := func(err error) (Result, error) {
		_ = attempt.Transition(StateFailed)
		s.countCheckout("failed")
		return Result{State: attempt.State()}, err
	}

	if err := s.Validator.Struct(in); err != nil {
		appErr := common.ValidationError("checkout form invalid", err)
		appErr.Details = FieldErrors(err)
		return fail(appErr)
	}

	view, err := s.Cart.View(ctx, cartID)
	if err != nil {
		return fail(err)
	}
	if len(view.Items) == 0 {
		return fail(common.ValidationError("cart is empty", ErrEmptyCart))
	}

	quote, err := s.Estimator.Quote(in.Address.PostalCode, view.Pricing.Subtotal, view.FreeShipping, in.ShippingTier)
	if err != nil {
		return fail(common.ValidationError("invalid postal code", err))
	}
	s.countQuote(quote)

	if err := attempt.Transition(StateSubmitting); err != nil {
		return fail(err)
	}

	// The snapshot is frozen here. Cart edits racing this submission do not
	// change what gets persisted.
	items := make([]pricing.Item, 0, len(view.Items))
	for _, line := range view.Items {
		items = append(items, pricing.Item{Qty: int(line.Qty), UnitPrice: line.UnitPrice})
	}
	snapshot := pricing.Aggregate(items, view.Pricing.Discount, quote.Cost, s.installments())

	if s.Sessions != nil {
		pendingPayload, _ := json.Marshal(snapshot)
		if err := s.Sessions.SetPendingCheckout(ctx, session.PendingCheckout{
			CartID:    cartID,
			Snapshot:  pendingPayload,
			StartedAt: s.now(),
		}); err != nil {
			s.Log.Warn().Err(err).Str("cart_id", cartID.String()).Msg("pending checkout slot write failed")
		}
	}

	address, err := json.Marshal(in.Address)
	if err != nil {
		return fail(err)
	}
	header := repo.Order{
		Code:              order.NewCode(s.now()),
		UserID:            userID,
		AnonID:            anonID,
		Status:            "confirmed",
		Subtotal:          snapshot.Subtotal,
		Discount:          snapshot.Discount,
		Shipping:          snapshot.Shipping,
		Total:             snapshot.Total,
		Installments:      int32(snapshot.Installments),
		InstallmentAmount: snapshot.InstallmentAmount,
		CouponCode:        view.Coupon,
		PaymentMethod:     paymentMethod(in.Payment),
		ShippingAddress:   address,
	}
	created, err := s.Orders.CreateHeader(ctx, header)
	if err != nil {
		return fail(err)
	}
	for _, line := range view.Items {
		if err := s.Orders.CreateItem(ctx, repo.OrderItem{
			OrderID:   created.ID,
			ProductID: line.ProductID,
			Name:      line.Name,
			Color:     line.Color,
			Size:      line.Size,
			Qty:       line.Qty,
			UnitPrice: line.UnitPrice,
			Subtotal:  line.Subtotal,
		}); err != nil {
			s.compensate(ctx, created.ID)
			return fail(err)
		}
	}

	_ = attempt.Transition(StateSucceeded)
	s.countCheckout("succeeded")
	s.settle(ctx, cartID, created, view)

	return Result{
		State:            attempt.State(),
		OrderID:          created.ID,
		OrderCode:        created.Code,
		PaymentMethod:    created.PaymentMethod,
		Pricing:          snapshot,
		ShippingTier:     quote.Tier,
		DeliveryEstimate: quote.DeliveryEstimate,
	}, nil
}

// compensate removes the order header after a partial item write.
func (s *Service) compensate(ctx context.Context, orderID uuid.UUID) {
	if err := s.Orders.DeleteHeader(ctx, orderID); err != nil {
		s.Log.Error().Err(err).Str("order_id", orderID.String()).Msg("order header compensation failed")
		return
	}
	if obs.OrderCompensationTotal != nil {
		obs.OrderCompensationTotal.Inc()
	}
	s.Log.Warn().Str("order_id", orderID.String()).Msg("order header rolled back after item insert failure")
}

// settle runs the post-success work. Nothing here can fail the checkout; the
// order is already placed.
func (s *Service) settle(ctx context.Context, cartID uuid.UUID, created repo.Order, view cart.View) {
	if s.Tasks != nil {
		if view.Coupon != nil && *view.Coupon != "" {
			if err := s.Tasks.EnqueueCouponRedeemed(ctx, *view.Coupon, created.ID); err != nil {
				s.Log.Warn().Err(err).Str("code", *view.Coupon).Msg("coupon redemption task enqueue failed")
			}
		}
		if err := s.Tasks.EnqueueCartClear(ctx, cartID); err != nil {
			s.Log.Warn().Err(err).Str("cart_id", cartID.String()).Msg("cart clear task enqueue failed")
		}
	}
	if s.Bus != nil {
		if _, err := s.Bus.Emit(ctx, events.TopicOrderCreated, created.ID, map[string]any{
			"orderId": created.ID,
			"code":    created.Code,
			"total":   created.Total,
		}); err != nil {
			s.Log.Warn().Err(err).Msg("order created event emit failed")
		}
		if _, err := s.Bus.Emit(ctx, events.TopicCartChanged, cartID, map[string]any{
			"cartId": cartID,
			"action": "checked_out",
		}); err != nil {
			s.Log.Warn().Err(err).Msg("cart changed event emit failed")
		}
	}
	if s.Sessions != nil {
		if err := s.Sessions.ClearPendingCheckout(ctx, cartID); err != nil {
			s.Log.Warn().Err(err).Str("cart_id", cartID.String()).Msg("pending checkout slot clear failed")
		}
	}
}

// Abandon clears the pending-checkout slot without placing an order.
func (s *Service) Abandon(ctx context.Context, cartID uuid.UUID) error {
	if s.Sessions == nil {
		return nil
	}
	return s.Sessions.ClearPendingCheckout(ctx, cartID)
}

func paymentMethod(p Payment) string {
	switch {
	case p.SavedMethodID != nil && strings.TrimSpace(*p.SavedMethodID) != "":
		return "saved_method"
	case p.Card != nil:
		return "card"
	case p.Boleto:
		return "boleto"
	}
	return ""
}

func (s *Service) countCheckout(result string) {
	if obs.CheckoutTotal != nil {
		obs.CheckoutTotal.WithLabelValues(result).Inc()
	}
}

func (s *Service) countQuote(q shipping.Quote) {
	if obs.ShippingQuoteTotal != nil {
		obs.ShippingQuoteTotal.WithLabelValues(string(q.Tier), fmt.Sprintf("%t", q.Free)).Inc()
	}
}
