package repo

import (
	"time"

	"github.com/google/uuid"
)

// Cart is the persistent cart record. Exactly one active cart exists per
// owner key (user id or anonymous session token); enforced by partial unique
// indexes in the schema.
type Cart struct {
	ID                uuid.UUID
	UserID            *uuid.UUID
	AnonID            *string
	AppliedCouponCode *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	ExpiresAt         time.Time
}

// CartItem is a single cart line. UnitPrice is snapshotted when the line is
// created and never refreshed from the catalog afterwards.
type CartItem struct {
	ID        uuid.UUID
	CartID    uuid.UUID
	ProductID uuid.UUID
	Color     *string
	Size      *string
	Qty       int32
	UnitPrice int64
	Subtotal  int64
	CreatedAt time.Time
}

// Coupon kinds.
const (
	CouponKindPercent      = "percent"
	CouponKindFixed        = "fixed"
	CouponKindFreeShipping = "free_shipping"
)

// Coupon is a remotely defined discount rule identified by an upper-cased code.
type Coupon struct {
	ID            uuid.UUID
	Code          string
	Kind          string
	Value         int64
	StartsAt      time.Time
	EndsAt        time.Time
	MinOrderValue *int64
	UsageLimit    *int32
	UsedCount     int32
}

// Order is the immutable record frozen from a pricing snapshot at checkout.
type Order struct {
	ID                uuid.UUID
	Code              string
	UserID            *uuid.UUID
	AnonID            *string
	Status            string
	Subtotal          int64
	Discount          int64
	Shipping          int64
	Total             int64
	Installments      int32
	InstallmentAmount int64
	CouponCode        *string
	PaymentMethod     string
	ShippingAddress   []byte
	CreatedAt         time.Time
}

// OrderItem is a frozen copy of a cart line at submission time.
type OrderItem struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	ProductID uuid.UUID
	Name      string
	Color     *string
	Size      *string
	Qty       int32
	UnitPrice int64
	Subtotal  int64
}

// OrderSummary is the listing projection for order history.
type OrderSummary struct {
	ID            uuid.UUID
	Code          string
	Status        string
	Total         int64
	FirstItemName *string
	CreatedAt     time.Time
}

// ProductSummary hydrates cart display data from the catalog.
type ProductSummary struct {
	ID            uuid.UUID
	Name          string
	CurrentPrice  int64
	OriginalPrice *int64
	ImageURL      *string
}

// DomainEvent is a persisted fan-out record emitted through the event bus.
type DomainEvent struct {
	ID          int64
	Topic       string
	AggregateID uuid.UUID
	Payload     []byte
	OccurredAt  time.Time
}
