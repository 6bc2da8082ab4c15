package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Carts provides persistence for cart headers and line items.
type Carts struct {
	DB DBTX
}

const cartColumns = `id, user_id, anon_id, applied_coupon_code, created_at, updated_at, expires_at`

func scanCart(row interface{ Scan(dest ...any) error }) (Cart, error) {
	var c Cart
	err := row.Scan(&c.ID, &c.UserID, &c.AnonID, &c.AppliedCouponCode, &c.CreatedAt, &c.UpdatedAt, &c.ExpiresAt)
	return c, err
}

// GetByID loads a cart by primary key.
func (r Carts) GetByID(ctx context.Context, id uuid.UUID) (Cart, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts WHERE id = $1`, id)
	return scanCart(row)
}

// GetActiveByUser returns the most recently created unexpired cart for a user.
func (r Carts) GetActiveByUser(ctx context.Context, userID uuid.UUID) (Cart, error) {
	row := r.DB.QueryRow(ctx, `
		SELECT `+cartColumns+` FROM carts
		WHERE user_id = $1 AND expires_at > now()
		ORDER BY created_at DESC LIMIT 1`, userID)
	return scanCart(row)
}

// GetActiveByAnon returns the most recently created unexpired cart for an
// anonymous session token.
func (r Carts) GetActiveByAnon(ctx context.Context, anonID string) (Cart, error) {
	row := r.DB.QueryRow(ctx, `
		SELECT `+cartColumns+` FROM carts
		WHERE anon_id = $1 AND expires_at > now()
		ORDER BY created_at DESC LIMIT 1`, anonID)
	return scanCart(row)
}

// Create inserts a new cart owned by either a user or an anonymous session.
// An expired cart still occupies the owner's unique slot, so it is removed
// first; a genuinely concurrent create still surfaces as a unique violation.
func (r Carts) Create(ctx context.Context, userID *uuid.UUID, anonID *string, expiresAt time.Time) (Cart, error) {
	if _, err := r.DB.Exec(ctx, `
		DELETE FROM carts WHERE (user_id = $1 OR anon_id = $2) AND expires_at <= now()`,
		userID, anonID); err != nil {
		return Cart{}, err
	}
	row := r.DB.QueryRow(ctx, `
		INSERT INTO carts (id, user_id, anon_id, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING `+cartColumns, uuid.New(), userID, anonID, expiresAt)
	return scanCart(row)
}

// Touch extends the cart lifetime after a mutation.
func (r Carts) Touch(ctx context.Context, id uuid.UUID, expiresAt time.Time) error {
	_, err := r.DB.Exec(ctx, `UPDATE carts SET updated_at = now(), expires_at = $2 WHERE id = $1`, id, expiresAt)
	return err
}

// SetCoupon stores (or clears, with nil) the applied coupon code.
func (r Carts) SetCoupon(ctx context.Context, id uuid.UUID, code *string) error {
	_, err := r.DB.Exec(ctx, `UPDATE carts SET applied_coupon_code = $2, updated_at = now() WHERE id = $1`, id, code)
	return err
}

const cartItemColumns = `id, cart_id, product_id, color, size, qty, unit_price, subtotal, created_at`

func scanCartItem(row interface{ Scan(dest ...any) error }) (CartItem, error) {
	var it CartItem
	err := row.Scan(&it.ID, &it.CartID, &it.ProductID, &it.Color, &it.Size, &it.Qty, &it.UnitPrice, &it.Subtotal, &it.CreatedAt)
	return it, err
}

// ListItems returns cart lines in insertion order.
func (r Carts) ListItems(ctx context.Context, cartID uuid.UUID) ([]CartItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+cartItemColumns+` FROM cart_items
		WHERE cart_id = $1 ORDER BY created_at, id`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CartItem
	for rows.Next() {
		it, err := scanCartItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// FindItemByProductVariant locates the line matching product plus variant
// attributes, used to merge repeat adds into one line.
func (r Carts) FindItemByProductVariant(ctx context.Context, cartID, productID uuid.UUID, color, size *string) (CartItem, error) {
	row := r.DB.QueryRow(ctx, `
		SELECT `+cartItemColumns+` FROM cart_items
		WHERE cart_id = $1 AND product_id = $2
		  AND color IS NOT DISTINCT FROM $3 AND size IS NOT DISTINCT FROM $4`,
		cartID, productID, color, size)
	return scanCartItem(row)
}

// GetItemByID loads a single cart line.
func (r Carts) GetItemByID(ctx context.Context, itemID uuid.UUID) (CartItem, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+cartItemColumns+` FROM cart_items WHERE id = $1`, itemID)
	return scanCartItem(row)
}

// CreateItem inserts a new cart line with the price snapshot taken now.
func (r Carts) CreateItem(ctx context.Context, it CartItem) (CartItem, error) {
	if it.ID == uuid.Nil {
		it.ID = uuid.New()
	}
	row := r.DB.QueryRow(ctx, `
		INSERT INTO cart_items (id, cart_id, product_id, color, size, qty, unit_price, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+cartItemColumns,
		it.ID, it.CartID, it.ProductID, it.Color, it.Size, it.Qty, it.UnitPrice, it.Subtotal)
	return scanCartItem(row)
}

// UpdateItemQty persists a quantity change. The unit price is deliberately
// untouched; it stays frozen at add-time.
func (r Carts) UpdateItemQty(ctx context.Context, itemID uuid.UUID, qty int32, subtotal int64) error {
	_, err := r.DB.Exec(ctx, `UPDATE cart_items SET qty = $2, subtotal = $3 WHERE id = $1`, itemID, qty, subtotal)
	return err
}

// DeleteItem removes a single line.
func (r Carts) DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`, itemID, cartID)
	return err
}

// DeleteAllItems clears every line of a cart.
func (r Carts) DeleteAllItems(ctx context.Context, cartID uuid.UUID) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	return err
}
