package repo

import (
	"context"

	"github.com/google/uuid"
)

// Orders provides persistence for order headers and frozen line items.
//
// Header and item inserts are intentionally separate statements, not one
// transaction: the checkout orchestrator owns the compensating delete when
// item insertion fails partway.
type Orders struct {
	DB DBTX
}

// CreateHeader inserts the order header.
func (r Orders) CreateHeader(ctx context.Context, o Order) (Order, error) {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	row := r.DB.QueryRow(ctx, `
		INSERT INTO orders (id, code, user_id, anon_id, status, subtotal, discount, shipping, total,
			installments, installment_amount, coupon_code, payment_method, shipping_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at`,
		o.ID, o.Code, o.UserID, o.AnonID, o.Status, o.Subtotal, o.Discount, o.Shipping, o.Total,
		o.Installments, o.InstallmentAmount, o.CouponCode, o.PaymentMethod, o.ShippingAddress)
	if err := row.Scan(&o.CreatedAt); err != nil {
		return Order{}, err
	}
	return o, nil
}

// CreateItem inserts one frozen order line.
func (r Orders) CreateItem(ctx context.Context, it OrderItem) error {
	if it.ID == uuid.Nil {
		it.ID = uuid.New()
	}
	_, err := r.DB.Exec(ctx, `
		INSERT INTO order_items (id, order_id, product_id, name, color, size, qty, unit_price, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		it.ID, it.OrderID, it.ProductID, it.Name, it.Color, it.Size, it.Qty, it.UnitPrice, it.Subtotal)
	return err
}

// DeleteHeader is the compensating action for a failed line-item insert;
// items cascade.
func (r Orders) DeleteHeader(ctx context.Context, orderID uuid.UUID) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM orders WHERE id = $1`, orderID)
	return err
}

// CountForUser returns the total number of orders for pagination headers.
func (r Orders) CountForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	err := r.DB.QueryRow(ctx, `SELECT count(*) FROM orders WHERE user_id = $1`, userID).Scan(&total)
	return total, err
}

// ListForUser returns the order history projection, newest first, including
// the first line item's name as a display summary.
func (r Orders) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]OrderSummary, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT o.id, o.code, o.status, o.total, o.created_at,
			(SELECT oi.name FROM order_items oi WHERE oi.order_id = o.id ORDER BY oi.id LIMIT 1)
		FROM orders o
		WHERE o.user_id = $1
		ORDER BY o.created_at DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OrderSummary
	for rows.Next() {
		var s OrderSummary
		if err := rows.Scan(&s.ID, &s.Code, &s.Status, &s.Total, &s.CreatedAt, &s.FirstItemName); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetForUser loads a full order scoped to its owner.
func (r Orders) GetForUser(ctx context.Context, orderID, userID uuid.UUID) (Order, error) {
	var o Order
	row := r.DB.QueryRow(ctx, `
		SELECT id, code, user_id, anon_id, status, subtotal, discount, shipping, total,
			installments, installment_amount, coupon_code, payment_method, shipping_address, created_at
		FROM orders WHERE id = $1 AND user_id = $2`, orderID, userID)
	err := row.Scan(&o.ID, &o.Code, &o.UserID, &o.AnonID, &o.Status, &o.Subtotal, &o.Discount,
		&o.Shipping, &o.Total, &o.Installments, &o.InstallmentAmount, &o.CouponCode,
		&o.PaymentMethod, &o.ShippingAddress, &o.CreatedAt)
	return o, err
}

// ListItems returns the frozen lines for an order.
func (r Orders) ListItems(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, product_id, name, color, size, qty, unit_price, subtotal
		FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Name, &it.Color, &it.Size, &it.Qty, &it.UnitPrice, &it.Subtotal); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
