package pricing

import "github.com/noah-isme/backend-loja/internal/money"

// DefaultInstallments is the fixed zero-interest split shown to the shopper.
const DefaultInstallments = 10

// Item describes a line item used for pricing calculation.
type Item struct {
	Qty       int
	UnitPrice money.Money
}

// Snapshot aggregates the derived pricing components. It is the single value
// the UI reads and the value frozen into an order at checkout.
type Snapshot struct {
	Subtotal          money.Money `json:"subtotal"`
	Discount          money.Money `json:"discount"`
	Shipping          money.Money `json:"shipping"`
	Total             money.Money `json:"total"`
	Installments      int         `json:"installments"`
	InstallmentAmount money.Money `json:"installmentAmount"`
}

// Aggregate combines the current line items, resolved discount and shipping
// cost into a snapshot. Eligibility is the caller's problem: discount and
// shipping must already have been validated. The function is pure, so calling
// it twice with identical inputs yields identical snapshots.
func Aggregate(items []Item, discount, shipping money.Money, installments int) Snapshot {
	var subtotal money.Money
	for _, it := range items {
		if it.Qty <= 0 {
			continue
		}
		subtotal += money.Money(it.Qty) * it.UnitPrice
	}
	discount = money.ClampDiscount(discount, subtotal)
	if shipping < 0 {
		shipping = 0
	}
	if installments <= 0 {
		installments = DefaultInstallments
	}
	total := subtotal - discount + shipping
	return Snapshot{
		Subtotal:          subtotal,
		Discount:          discount,
		Shipping:          shipping,
		Total:             total,
		Installments:      installments,
		InstallmentAmount: money.Installment(total, installments),
	}
}
