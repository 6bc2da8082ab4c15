package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-loja/internal/coupon"
	"github.com/noah-isme/backend-loja/internal/events"
	"github.com/noah-isme/backend-loja/internal/money"
	"github.com/noah-isme/backend-loja/internal/pricing"
	"github.com/noah-isme/backend-loja/internal/repo"
)

// ErrNotFound indicates the requested cart or item could not be located.
var ErrNotFound = errors.New("cart not found")

// ErrInvalidQty is returned for quantities below one.
var ErrInvalidQty = errors.New("qty must be at least 1")

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// Store captures the cart persistence methods the service needs.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (repo.Cart, error)
	GetActiveByUser(ctx context.Context, userID uuid.UUID) (repo.Cart, error)
	GetActiveByAnon(ctx context.Context, anonID string) (repo.Cart, error)
	Create(ctx context.Context, userID *uuid.UUID, anonID *string, expiresAt time.Time) (repo.Cart, error)
	Touch(ctx context.Context, id uuid.UUID, expiresAt time.Time) error
	SetCoupon(ctx context.Context, id uuid.UUID, code *string) error
	ListItems(ctx context.Context, cartID uuid.UUID) ([]repo.CartItem, error)
	FindItemByProductVariant(ctx context.Context, cartID, productID uuid.UUID, color, size *string) (repo.CartItem, error)
	GetItemByID(ctx context.Context, itemID uuid.UUID) (repo.CartItem, error)
	CreateItem(ctx context.Context, it repo.CartItem) (repo.CartItem, error)
	UpdateItemQty(ctx context.Context, itemID uuid.UUID, qty int32, subtotal int64) error
	DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) error
	DeleteAllItems(ctx context.Context, cartID uuid.UUID) error
}

// Catalog resolves product display data and the current price for new lines.
type Catalog interface {
	Summary(ctx context.Context, id uuid.UUID) (repo.ProductSummary, error)
	SummariesByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]repo.ProductSummary, error)
}

// CouponValidator evaluates an applied code against the cart subtotal.
type CouponValidator interface {
	Validate(ctx context.Context, code string, subtotal money.Money) (coupon.Evaluation, error)
}

// Emitter publishes domain events after cart mutations.
type Emitter interface {
	Emit(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) (repo.DomainEvent, error)
}

// Service encapsulates cart domain operations.
type Service struct {
	Carts   Store
	Catalog Catalog
	Coupons CouponValidator
	Bus     Emitter
	Log     zerolog.Logger
	TTL     time.Duration
	Now     func() time.Time
}

func (s *Service) ttl() time.Duration {
	if s.TTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return s.TTL
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Resolve loads the active cart for the caller, creating one when none
// exists. Two concurrent first requests can both attempt the insert; the
// partial unique index rejects the loser, which then reads the winner's row.
func (s *Service) Resolve(ctx context.Context, userID *uuid.UUID, anonID *string) (repo.Cart, error) {
	expires := s.now().Add(s.ttl())

	lookup := func() (repo.Cart, error) {
		if userID != nil {
			return s.Carts.GetActiveByUser(ctx, *userID)
		}
		if anonID != nil && *anonID != "" {
			return s.Carts.GetActiveByAnon(ctx, *anonID)
		}
		return repo.Cart{}, ErrInvalidInput
	}

	c, err := lookup()
	if err == nil {
		_ = s.Carts.Touch(ctx, c.ID, expires)
		return c, nil
	}
	if errors.Is(err, ErrInvalidInput) {
		return repo.Cart{}, err
	}
	if !errors.Is(err, repo.ErrNoRows) {
		return repo.Cart{}, err
	}

	c, err = s.Carts.Create(ctx, userID, anonID, expires)
	if err == nil {
		return c, nil
	}
	if repo.IsUniqueViolation(err) {
		return lookup()
	}
	return repo.Cart{}, err
}

// AddItem inserts a new line or merges into the existing line for the same
// product and variant. The unit price is captured from the catalog at insert
// time and never refreshed afterwards.
func (s *Service) AddItem(ctx context.Context, cartID, productID uuid.UUID, color, size *string, qty int) (repo.CartItem, error) {
	if qty < 1 {
		return repo.CartItem{}, ErrInvalidQty
	}
	c, err := s.cartByID(ctx, cartID)
	if err != nil {
		return repo.CartItem{}, err
	}

	existing, err := s.Carts.FindItemByProductVariant(ctx, c.ID, productID, color, size)
	if err == nil {
		newQty := existing.Qty + int32(qty)
		newSubtotal := int64(newQty) * existing.UnitPrice
		if err := s.Carts.UpdateItemQty(ctx, existing.ID, newQty, newSubtotal); err != nil {
			return repo.CartItem{}, err
		}
		existing.Qty = newQty
		existing.Subtotal = newSubtotal
		s.afterMutation(ctx, c.ID, "item_merged", &existing.ID)
		return existing, nil
	}
	if !errors.Is(err, repo.ErrNoRows) {
		return repo.CartItem{}, err
	}

	product, err := s.Catalog.Summary(ctx, productID)
	if err != nil {
		if errors.Is(err, repo.ErrNoRows) {
			return repo.CartItem{}, ErrNotFound
		}
		return repo.CartItem{}, err
	}
	item, err := s.Carts.CreateItem(ctx, repo.CartItem{
		CartID:    c.ID,
		ProductID: productID,
		Color:     color,
		Size:      size,
		Qty:       int32(qty),
		UnitPrice: product.CurrentPrice,
		Subtotal:  int64(qty) * product.CurrentPrice,
	})
	if err != nil {
		return repo.CartItem{}, err
	}
	s.afterMutation(ctx, c.ID, "item_added", &item.ID)
	return item, nil
}

// ChangeQuantity sets the line quantity, recomputing the line subtotal from
// the frozen unit price. Quantities below one are rejected; removal is a
// separate operation.
func (s *Service) ChangeQuantity(ctx context.Context, cartID, itemID uuid.UUID, qty int) (repo.CartItem, error) {
	if qty < 1 {
		return repo.CartItem{}, ErrInvalidQty
	}
	item, err := s.Carts.GetItemByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, repo.ErrNoRows) {
			return repo.CartItem{}, ErrNotFound
		}
		return repo.CartItem{}, err
	}
	if item.CartID != cartID {
		return repo.CartItem{}, ErrNotFound
	}
	item.Qty = int32(qty)
	item.Subtotal = int64(qty) * item.UnitPrice
	if err := s.Carts.UpdateItemQty(ctx, item.ID, item.Qty, item.Subtotal); err != nil {
		return repo.CartItem{}, err
	}
	s.afterMutation(ctx, cartID, "qty_changed", &item.ID)
	return item, nil
}

// RemoveItem deletes a single line.
func (s *Service) RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	if err := s.Carts.DeleteItem(ctx, cartID, itemID); err != nil {
		return err
	}
	s.afterMutation(ctx, cartID, "item_removed", &itemID)
	return nil
}

// Clear removes every line and any applied coupon.
func (s *Service) Clear(ctx context.Context, cartID uuid.UUID) error {
	if err := s.Carts.DeleteAllItems(ctx, cartID); err != nil {
		return err
	}
	if err := s.Carts.SetCoupon(ctx, cartID, nil); err != nil {
		return err
	}
	s.afterMutation(ctx, cartID, "cleared", nil)
	return nil
}

// ApplyCoupon validates the code against the current subtotal and attaches
// it to the cart.
func (s *Service) ApplyCoupon(ctx context.Context, cartID uuid.UUID, code string) (coupon.Evaluation, error) {
	c, err := s.cartByID(ctx, cartID)
	if err != nil {
		return coupon.Evaluation{}, err
	}
	items, err := s.Carts.ListItems(ctx, c.ID)
	if err != nil {
		return coupon.Evaluation{}, err
	}
	var subtotal money.Money
	for _, it := range items {
		subtotal += it.Subtotal
	}
	ev, err := s.Coupons.Validate(ctx, code, subtotal)
	if err != nil {
		return coupon.Evaluation{}, err
	}
	if err := s.Carts.SetCoupon(ctx, c.ID, &ev.Code); err != nil {
		return coupon.Evaluation{}, err
	}
	s.afterMutation(ctx, c.ID, "coupon_applied", nil)
	return ev, nil
}

// RemoveCoupon clears the applied code.
func (s *Service) RemoveCoupon(ctx context.Context, cartID uuid.UUID) error {
	if err := s.Carts.SetCoupon(ctx, cartID, nil); err != nil {
		return err
	}
	s.afterMutation(ctx, cartID, "coupon_removed", nil)
	return nil
}

// Line is a hydrated cart item with product display data attached.
type Line struct {
	ID            uuid.UUID   `json:"id"`
	ProductID     uuid.UUID   `json:"productId"`
	Name          string      `json:"name"`
	ImageURL      *string     `json:"imageUrl,omitempty"`
	Color         *string     `json:"color,omitempty"`
	Size          *string     `json:"size,omitempty"`
	Qty           int32       `json:"qty"`
	UnitPrice     money.Money `json:"unitPrice"`
	OriginalPrice *int64      `json:"originalPrice,omitempty"`
	Subtotal      money.Money `json:"subtotal"`
}

// View is the full cart payload: hydrated lines plus the pricing snapshot.
type View struct {
	ID             uuid.UUID        `json:"id"`
	Coupon         *string          `json:"coupon,omitempty"`
	FreeShipping   bool             `json:"freeShipping"`
	Items          []Line           `json:"items"`
	Pricing        pricing.Snapshot `json:"pricing"`
	TotalFormatted string           `json:"totalFormatted"`
}

// View hydrates the cart for display. Lines whose product no longer resolves
// are dropped from the view with a log entry; they stay in storage so a
// restored product reappears.
func (s *Service) View(ctx context.Context, cartID uuid.UUID) (View, error) {
	c, err := s.cartByID(ctx, cartID)
	if err != nil {
		return View{}, err
	}
	items, err := s.Carts.ListItems(ctx, c.ID)
	if err != nil {
		return View{}, err
	}

	ids := make([]uuid.UUID, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	summaries, err := s.Catalog.SummariesByIDs(ctx, ids)
	if err != nil {
		return View{}, err
	}

	lines := make([]Line, 0, len(items))
	pricingItems := make([]pricing.Item, 0, len(items))
	var subtotal money.Money
	for _, it := range items {
		p, ok := summaries[it.ProductID]
		if !ok {
			s.Log.Warn().
				Str("cart_id", c.ID.String()).
				Str("product_id", it.ProductID.String()).
				Msg("cart line dropped from view, product unresolvable")
			continue
		}
		lines = append(lines, Line{
			ID:            it.ID,
			ProductID:     it.ProductID,
			Name:          p.Name,
			ImageURL:      p.ImageURL,
			Color:         it.Color,
			Size:          it.Size,
			Qty:           it.Qty,
			UnitPrice:     it.UnitPrice,
			OriginalPrice: p.OriginalPrice,
			Subtotal:      it.Subtotal,
		})
		pricingItems = append(pricingItems, pricing.Item{Qty: int(it.Qty), UnitPrice: it.UnitPrice})
		subtotal += it.Subtotal
	}

	var discount money.Money
	var freeShipping bool
	if c.AppliedCouponCode != nil && *c.AppliedCouponCode != "" {
		ev, err := s.Coupons.Validate(ctx, *c.AppliedCouponCode, subtotal)
		if err != nil {
			// The coupon may have expired since it was applied. The view
			// simply shows no discount; checkout revalidates anyway.
			s.Log.Debug().Err(err).
				Str("cart_id", c.ID.String()).
				Str("code", *c.AppliedCouponCode).
				Msg("applied coupon no longer valid")
		} else {
			discount = ev.Discount
			freeShipping = ev.FreeShipping
		}
	}

	snapshot := pricing.Aggregate(pricingItems, discount, 0, pricing.DefaultInstallments)
	return View{
		ID:             c.ID,
		Coupon:         c.AppliedCouponCode,
		FreeShipping:   freeShipping,
		Items:          lines,
		Pricing:        snapshot,
		TotalFormatted: money.FormatBRL(snapshot.Total),
	}, nil
}

func (s *Service) cartByID(ctx context.Context, cartID uuid.UUID) (repo.Cart, error) {
	c, err := s.Carts.GetByID(ctx, cartID)
	if err != nil {
		if errors.Is(err, repo.ErrNoRows) {
			return repo.Cart{}, ErrNotFound
		}
		return repo.Cart{}, err
	}
	if c.ExpiresAt.Before(s.now()) {
		return repo.Cart{}, ErrNotFound
	}
	return c, nil
}

type changePayload struct {
	CartID uuid.UUID  `json:"cartId"`
	Action string     `json:"action"`
	ItemID *uuid.UUID `json:"itemId,omitempty"`
}

// afterMutation extends the cart lifetime and emits the change event. Both
// are best effort; the mutation itself has already been persisted.
func (s *Service) afterMutation(ctx context.Context, cartID uuid.UUID, action string, itemID *uuid.UUID) {
	_ = s.Carts.Touch(ctx, cartID, s.now().Add(s.ttl()))
	if s.Bus == nil {
		return
	}
	if _, err := s.Bus.Emit(ctx, events.TopicCartChanged, cartID, changePayload{
		CartID: cartID,
		Action: action,
		ItemID: itemID,
	}); err != nil {
		s.Log.Warn().Err(err).Str("cart_id", cartID.String()).Msg("cart change event emit failed")
	}
}
