package pricing

import "testing"

func TestAggregateScenario(t *testing.T) {
	// qty 2 @ 50.00 plus qty 1 @ 30.00, 10% coupon, 12.90 shipping.
	items := []Item{
		{Qty: 2, UnitPrice: 5000},
		{Qty: 1, UnitPrice: 3000},
	}
	snap := Aggregate(items, 1300, 1290, 10)
	if snap.Subtotal != 13000 {
		t.Fatalf("expected subtotal 13000, got %d", snap.Subtotal)
	}
	if snap.Total != 12990 {
		t.Fatalf("expected total 12990, got %d", snap.Total)
	}
	if snap.InstallmentAmount != 1299 {
		t.Fatalf("expected installment 1299, got %d", snap.InstallmentAmount)
	}
}

func TestAggregateClampsDiscount(t *testing.T) {
	items := []Item{{Qty: 1, UnitPrice: 5000}}
	snap := Aggregate(items, 99999, 0, 10)
	if snap.Discount != 5000 {
		t.Fatalf("expected discount clamped to subtotal, got %d", snap.Discount)
	}
	if snap.Total != 0 {
		t.Fatalf("expected total 0, got %d", snap.Total)
	}
}

func TestAggregateIdempotent(t *testing.T) {
	items := []Item{
		{Qty: 3, UnitPrice: 1999},
		{Qty: 1, UnitPrice: 4550},
	}
	first := Aggregate(items, 500, 1290, 10)
	second := Aggregate(items, 500, 1290, 10)
	if first != second {
		t.Fatalf("expected identical snapshots, got %+v and %+v", first, second)
	}
}

func TestAggregateSkipsNonPositiveQty(t *testing.T) {
	items := []Item{
		{Qty: 0, UnitPrice: 1000},
		{Qty: -2, UnitPrice: 1000},
		{Qty: 1, UnitPrice: 1000},
	}
	snap := Aggregate(items, 0, 0, 10)
	if snap.Subtotal != 1000 {
		t.Fatalf("expected subtotal 1000, got %d", snap.Subtotal)
	}
}
