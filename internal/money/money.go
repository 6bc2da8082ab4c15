package money

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Money represents a monetary value stored in minor units (centavos).
type Money = int64

var ptBR = message.NewPrinter(language.BrazilianPortuguese)

// FormatBRL renders a minor-unit amount as a Brazilian Real string,
// e.g. 12990 -> "R$ 129,90".
func FormatBRL(v Money) string {
	return ptBR.Sprintf("R$ %.2f", float64(v)/100)
}

// Percent returns points percent of amount, truncated toward zero.
func Percent(amount Money, points int64) Money {
	return amount * points / 100
}

// ClampDiscount caps a raw discount so it never exceeds the subtotal and is
// never negative. Totals therefore cannot go negative from a discount alone.
func ClampDiscount(discount, subtotal Money) Money {
	if discount > subtotal {
		return subtotal
	}
	if discount < 0 {
		return 0
	}
	return discount
}

// Installment returns the per-installment amount for an n-way zero-interest
// split. Display only, truncated toward zero; n <= 0 yields the full total.
func Installment(total Money, n int) Money {
	if n <= 0 {
		return total
	}
	return total / Money(n)
}
