package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-loja/internal/coupon"
	"github.com/noah-isme/backend-loja/internal/events"
	"github.com/noah-isme/backend-loja/internal/money"
	"github.com/noah-isme/backend-loja/internal/repo"
	"github.com/noah-isme/backend-loja/internal/shipping"
)

type fakeCartStore struct {
	carts map[uuid.UUID]repo.Cart
	items map[uuid.UUID]repo.CartItem

	createCalls int
	raceOnce    bool
	raceCart    repo.Cart
}

func newFakeCartStore() *fakeCartStore {
	return &fakeCartStore{
		carts: map[uuid.UUID]repo.Cart{},
		items: map[uuid.UUID]repo.CartItem{},
	}
}

func (f *fakeCartStore) GetByID(_ context.Context, id uuid.UUID) (repo.Cart, error) {
	c, ok := f.carts[id]
	if !ok {
		return repo.Cart{}, repo.ErrNoRows
	}
	return c, nil
}

func (f *fakeCartStore) GetActiveByUser(_ context.Context, userID uuid.UUID) (repo.Cart, error) {
	for _, c := range f.carts {
		if c.UserID != nil && *c.UserID == userID {
			return c, nil
		}
	}
	if f.raceOnce && f.createCalls > 0 {
		return f.raceCart, nil
	}
	return repo.Cart{}, repo.ErrNoRows
}

func (f *fakeCartStore) GetActiveByAnon(_ context.Context, anonID string) (repo.Cart, error) {
	for _, c := range f.carts {
		if c.AnonID != nil && *c.AnonID == anonID {
			return c, nil
		}
	}
	if f.raceOnce && f.createCalls > 0 {
		return f.raceCart, nil
	}
	return repo.Cart{}, repo.ErrNoRows
}

func (f *fakeCartStore) Create(_ context.Context, userID *uuid.UUID, anonID *string, expiresAt time.Time) (repo.Cart, error) {
	f.createCalls++
	if f.raceOnce {
		// Another request won the insert; the unique index rejects this one.
		return repo.Cart{}, &pgconn.PgError{Code: "23505"}
	}
	c := repo.Cart{ID: uuid.New(), UserID: userID, AnonID: anonID, ExpiresAt: expiresAt}
	f.carts[c.ID] = c
	return c, nil
}

func (f *fakeCartStore) Touch(_ context.Context, id uuid.UUID, expiresAt time.Time) error {
	if c, ok := f.carts[id]; ok {
		c.ExpiresAt = expiresAt
		f.carts[id] = c
	}
	return nil
}

func (f *fakeCartStore) SetCoupon(_ context.Context, id uuid.UUID, code *string) error {
	c, ok := f.carts[id]
	if !ok {
		return repo.ErrNoRows
	}
	c.AppliedCouponCode = code
	f.carts[id] = c
	return nil
}

func (f *fakeCartStore) ListItems(_ context.Context, cartID uuid.UUID) ([]repo.CartItem, error) {
	var out []repo.CartItem
	for _, it := range f.items {
		if it.CartID == cartID {
			out = append(out, it)
		}
	}
	return out, nil
}

func strEq(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (f *fakeCartStore) FindItemByProductVariant(_ context.Context, cartID, productID uuid.UUID, color, size *string) (repo.CartItem, error) {
	for _, it := range f.items {
		if it.CartID == cartID && it.ProductID == productID && strEq(it.Color, color) && strEq(it.Size, size) {
			return it, nil
		}
	}
	return repo.CartItem{}, repo.ErrNoRows
}

func (f *fakeCartStore) GetItemByID(_ context.Context, itemID uuid.UUID) (repo.CartItem, error) {
	it, ok := f.items[itemID]
	if !ok {
		return repo.CartItem{}, repo.ErrNoRows
	}
	return it, nil
}

func (f *fakeCartStore) CreateItem(_ context.Context, it repo.CartItem) (repo.CartItem, error) {
	if it.ID == uuid.Nil {
		it.ID = uuid.New()
	}
	f.items[it.ID] = it
	return it, nil
}

func (f *fakeCartStore) UpdateItemQty(_ context.Context, itemID uuid.UUID, qty int32, subtotal int64) error {
	it, ok := f.items[itemID]
	if !ok {
		return repo.ErrNoRows
	}
	it.Qty = qty
	it.Subtotal = subtotal
	f.items[itemID] = it
	return nil
}

func (f *fakeCartStore) DeleteItem(_ context.Context, cartID, itemID uuid.UUID) error {
	if it, ok := f.items[itemID]; ok && it.CartID == cartID {
		delete(f.items, itemID)
	}
	return nil
}

func (f *fakeCartStore) DeleteAllItems(_ context.Context, cartID uuid.UUID) error {
	for id, it := range f.items {
		if it.CartID == cartID {
			delete(f.items, id)
		}
	}
	return nil
}

type fakeCatalog struct {
	products map[uuid.UUID]repo.ProductSummary
}

func (f *fakeCatalog) Summary(_ context.Context, id uuid.UUID) (repo.ProductSummary, error) {
	p, ok := f.products[id]
	if !ok {
		return repo.ProductSummary{}, repo.ErrNoRows
	}
	return p, nil
}

func (f *fakeCatalog) SummariesByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]repo.ProductSummary, error) {
	out := map[uuid.UUID]repo.ProductSummary{}
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type fakeCoupons struct {
	eval coupon.Evaluation
	err  error
}

func (f *fakeCoupons) Validate(_ context.Context, _ string, _ money.Money) (coupon.Evaluation, error) {
	return f.eval, f.err
}

type fakeBus struct {
	emitted []string
}

func (f *fakeBus) Emit(_ context.Context, topic string, _ uuid.UUID, _ any) (repo.DomainEvent, error) {
	f.emitted = append(f.emitted, topic)
	return repo.DomainEvent{}, nil
}

func newCartService(store *fakeCartStore, cat *fakeCatalog, coupons *fakeCoupons, bus *fakeBus) *Service {
	return &Service{
		Carts:   store,
		Catalog: cat,
		Coupons: coupons,
		Bus:     bus,
		Log:     zerolog.Nop(),
		TTL:     time.Hour,
		Now:     func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func seedCart(store *fakeCartStore, anonID string) repo.Cart {
	c := repo.Cart{ID: uuid.New(), AnonID: &anonID, ExpiresAt: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)}
	store.carts[c.ID] = c
	return c
}

func TestResolveReusesActiveCart(t *testing.T) {
	store := newFakeCartStore()
	svc := newCartService(store, &fakeCatalog{}, &fakeCoupons{}, &fakeBus{})
	anon := "tok-1"
	existing := seedCart(store, anon)

	got, err := svc.Resolve(context.Background(), nil, &anon)
	require.NoError(t, err)
	require.Equal(t, existing.ID, got.ID)
	require.Zero(t, store.createCalls)
}

func TestResolveCreatesWhenMissing(t *testing.T) {
	store := newFakeCartStore()
	svc := newCartService(store, &fakeCatalog{}, &fakeCoupons{}, &fakeBus{})
	anon := "tok-2"

	got, err := svc.Resolve(context.Background(), nil, &anon)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, got.ID)
	require.Equal(t, 1, store.createCalls)
}

func TestResolveAbsorbsInsertRace(t *testing.T) {
	store := newFakeCartStore()
	winner := repo.Cart{ID: uuid.New()}
	store.raceOnce = true
	store.raceCart = winner
	svc := newCartService(store, &fakeCatalog{}, &fakeCoupons{}, &fakeBus{})
	anon := "tok-3"

	got, err := svc.Resolve(context.Background(), nil, &anon)
	require.NoError(t, err)
	require.Equal(t, winner.ID, got.ID)
}

func TestResolveRequiresIdentity(t *testing.T) {
	svc := newCartService(newFakeCartStore(), &fakeCatalog{}, &fakeCoupons{}, &fakeBus{})
	_, err := svc.Resolve(context.Background(), nil, nil)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestAddItemFreezesPrice(t *testing.T) {
	store := newFakeCartStore()
	cat := &fakeCatalog{products: map[uuid.UUID]repo.ProductSummary{}}
	bus := &fakeBus{}
	svc := newCartService(store, cat, &fakeCoupons{}, bus)
	c := seedCart(store, "tok")
	pid := uuid.New()
	cat.products[pid] = repo.ProductSummary{ID: pid, Name: "Camiseta", CurrentPrice: 5000}

	item, err := svc.AddItem(context.Background(), c.ID, pid, nil, nil, 2)
	require.NoError(t, err)
	require.Equal(t, int64(5000), item.UnitPrice)
	require.Equal(t, int64(10000), item.Subtotal)

	// A price change after the fact must not affect the stored line.
	cat.products[pid] = repo.ProductSummary{ID: pid, Name: "Camiseta", CurrentPrice: 9900}
	merged, err := svc.AddItem(context.Background(), c.ID, pid, nil, nil, 1)
	require.NoError(t, err)
	require.Equal(t, int32(3), merged.Qty)
	require.Equal(t, int64(5000), merged.UnitPrice)
	require.Equal(t, int64(15000), merged.Subtotal)
	require.Equal(t, []string{events.TopicCartChanged, events.TopicCartChanged}, bus.emitted)
}

func TestAddItemDistinctVariantsGetOwnLines(t *testing.T) {
	store := newFakeCartStore()
	cat := &fakeCatalog{products: map[uuid.UUID]repo.ProductSummary{}}
	svc := newCartService(store, cat, &fakeCoupons{}, &fakeBus{})
	c := seedCart(store, "tok")
	pid := uuid.New()
	cat.products[pid] = repo.ProductSummary{ID: pid, Name: "Camiseta", CurrentPrice: 5000}

	azul, preto := "azul", "preto"
	_, err := svc.AddItem(context.Background(), c.ID, pid, &azul, nil, 1)
	require.NoError(t, err)
	_, err = svc.AddItem(context.Background(), c.ID, pid, &preto, nil, 1)
	require.NoError(t, err)
	require.Len(t, store.items, 2)
}

func TestAddItemRejectsZeroQty(t *testing.T) {
	store := newFakeCartStore()
	svc := newCartService(store, &fakeCatalog{}, &fakeCoupons{}, &fakeBus{})
	c := seedCart(store, "tok")

	_, err := svc.AddItem(context.Background(), c.ID, uuid.New(), nil, nil, 0)
	require.ErrorIs(t, err, ErrInvalidQty)
}

func TestAddItemUnknownProduct(t *testing.T) {
	store := newFakeCartStore()
	svc := newCartService(store, &fakeCatalog{products: map[uuid.UUID]repo.ProductSummary{}}, &fakeCoupons{}, &fakeBus{})
	c := seedCart(store, "tok")

	_, err := svc.AddItem(context.Background(), c.ID, uuid.New(), nil, nil, 1)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestChangeQuantity(t *testing.T) {
	store := newFakeCartStore()
	svc := newCartService(store, &fakeCatalog{}, &fakeCoupons{}, &fakeBus{})
	c := seedCart(store, "tok")
	item := repo.CartItem{ID: uuid.New(), CartID: c.ID, ProductID: uuid.New(), Qty: 2, UnitPrice: 5000, Subtotal: 10000}
	store.items[item.ID] = item

	_, err := svc.ChangeQuantity(context.Background(), c.ID, item.ID, 0)
	require.ErrorIs(t, err, ErrInvalidQty)

	updated, err := svc.ChangeQuantity(context.Background(), c.ID, item.ID, 5)
	require.NoError(t, err)
	require.Equal(t, int32(5), updated.Qty)
	require.Equal(t, int64(25000), updated.Subtotal)
	require.Equal(t, int64(5000), updated.UnitPrice)
}

func TestChangeQuantityWrongCart(t *testing.T) {
	store := newFakeCartStore()
	svc := newCartService(store, &fakeCatalog{}, &fakeCoupons{}, &fakeBus{})
	c := seedCart(store, "tok")
	item := repo.CartItem{ID: uuid.New(), CartID: uuid.New(), Qty: 1, UnitPrice: 100, Subtotal: 100}
	store.items[item.ID] = item

	_, err := svc.ChangeQuantity(context.Background(), c.ID, item.ID, 2)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestClearResetsCoupon(t *testing.T) {
	store := newFakeCartStore()
	bus := &fakeBus{}
	svc := newCartService(store, &fakeCatalog{}, &fakeCoupons{}, bus)
	c := seedCart(store, "tok")
	code := "DESCONTO10"
	require.NoError(t, store.SetCoupon(context.Background(), c.ID, &code))

	require.NoError(t, svc.Clear(context.Background(), c.ID))
	require.Nil(t, store.carts[c.ID].AppliedCouponCode)
	require.Contains(t, bus.emitted, events.TopicCartChanged)
}

func TestViewDropsUnresolvableProducts(t *testing.T) {
	store := newFakeCartStore()
	cat := &fakeCatalog{products: map[uuid.UUID]repo.ProductSummary{}}
	svc := newCartService(store, cat, &fakeCoupons{}, &fakeBus{})
	c := seedCart(store, "tok")

	live, gone := uuid.New(), uuid.New()
	cat.products[live] = repo.ProductSummary{ID: live, Name: "Tênis", CurrentPrice: 19900}
	itLive := repo.CartItem{ID: uuid.New(), CartID: c.ID, ProductID: live, Qty: 1, UnitPrice: 19900, Subtotal: 19900}
	itGone := repo.CartItem{ID: uuid.New(), CartID: c.ID, ProductID: gone, Qty: 1, UnitPrice: 5000, Subtotal: 5000}
	store.items[itLive.ID] = itLive
	store.items[itGone.ID] = itGone

	view, err := svc.View(context.Background(), c.ID)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	require.Equal(t, "Tênis", view.Items[0].Name)
	require.Equal(t, int64(19900), view.Pricing.Subtotal)
}

func TestViewAppliesCouponAndFormatsTotal(t *testing.T) {
	store := newFakeCartStore()
	cat := &fakeCatalog{products: map[uuid.UUID]repo.ProductSummary{}}
	coupons := &fakeCoupons{eval: coupon.Evaluation{Code: "DESCONTO10", Discount: 1300}}
	svc := newCartService(store, cat, coupons, &fakeBus{})
	c := seedCart(store, "tok")
	code := "DESCONTO10"
	require.NoError(t, store.SetCoupon(context.Background(), c.ID, &code))

	p1, p2 := uuid.New(), uuid.New()
	cat.products[p1] = repo.ProductSummary{ID: p1, Name: "A", CurrentPrice: 5000}
	cat.products[p2] = repo.ProductSummary{ID: p2, Name: "B", CurrentPrice: 3000}
	it1 := repo.CartItem{ID: uuid.New(), CartID: c.ID, ProductID: p1, Qty: 2, UnitPrice: 5000, Subtotal: 10000}
	it2 := repo.CartItem{ID: uuid.New(), CartID: c.ID, ProductID: p2, Qty: 1, UnitPrice: 3000, Subtotal: 3000}
	store.items[it1.ID] = it1
	store.items[it2.ID] = it2

	view, err := svc.View(context.Background(), c.ID)
	require.NoError(t, err)
	require.Equal(t, int64(13000), view.Pricing.Subtotal)
	require.Equal(t, int64(1300), view.Pricing.Discount)
	require.Equal(t, int64(11700), view.Pricing.Total)
	require.Equal(t, "R$ 117,00", view.TotalFormatted)
}

func TestRemoveCouponRestoresShippingCost(t *testing.T) {
	store := newFakeCartStore()
	cat := &fakeCatalog{products: map[uuid.UUID]repo.ProductSummary{}}
	coupons := &fakeCoupons{eval: coupon.Evaluation{Code: "FRETEGRATIS", Kind: repo.CouponKindFreeShipping, FreeShipping: true}}
	svc := newCartService(store, cat, coupons, &fakeBus{})
	c := seedCart(store, "tok")

	p := uuid.New()
	cat.products[p] = repo.ProductSummary{ID: p, Name: "A", CurrentPrice: 13000}
	it := repo.CartItem{ID: uuid.New(), CartID: c.ID, ProductID: p, Qty: 1, UnitPrice: 13000, Subtotal: 13000}
	store.items[it.ID] = it

	_, err := svc.ApplyCoupon(context.Background(), c.ID, "FRETEGRATIS")
	require.NoError(t, err)

	est := shipping.Estimator{FreeShippingThreshold: 20000}

	view, err := svc.View(context.Background(), c.ID)
	require.NoError(t, err)
	require.True(t, view.FreeShipping)
	q, err := est.Quote("01310-100", view.Pricing.Subtotal, view.FreeShipping, shipping.TierStandard)
	require.NoError(t, err)
	require.True(t, q.Free)
	require.Equal(t, int64(0), q.Cost)

	// Dropping the coupon below the threshold brings the tariff cost back.
	require.NoError(t, svc.RemoveCoupon(context.Background(), c.ID))

	view, err = svc.View(context.Background(), c.ID)
	require.NoError(t, err)
	require.False(t, view.FreeShipping)
	q, err = est.Quote("01310-100", view.Pricing.Subtotal, view.FreeShipping, shipping.TierStandard)
	require.NoError(t, err)
	require.False(t, q.Free)
	require.Equal(t, int64(1290), q.Cost)
}

func TestViewInvalidCouponShowsNoDiscount(t *testing.T) {
	store := newFakeCartStore()
	cat := &fakeCatalog{products: map[uuid.UUID]repo.ProductSummary{}}
	coupons := &fakeCoupons{err: coupon.ErrExpired}
	svc := newCartService(store, cat, coupons, &fakeBus{})
	c := seedCart(store, "tok")
	code := "VELHO"
	require.NoError(t, store.SetCoupon(context.Background(), c.ID, &code))

	pid := uuid.New()
	cat.products[pid] = repo.ProductSummary{ID: pid, Name: "A", CurrentPrice: 5000}
	it := repo.CartItem{ID: uuid.New(), CartID: c.ID, ProductID: pid, Qty: 1, UnitPrice: 5000, Subtotal: 5000}
	store.items[it.ID] = it

	view, err := svc.View(context.Background(), c.ID)
	require.NoError(t, err)
	require.Equal(t, int64(0), view.Pricing.Discount)
}

func TestViewExpiredCart(t *testing.T) {
	store := newFakeCartStore()
	svc := newCartService(store, &fakeCatalog{}, &fakeCoupons{}, &fakeBus{})
	anon := "tok"
	c := repo.Cart{ID: uuid.New(), AnonID: &anon, ExpiresAt: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)}
	store.carts[c.ID] = c

	_, err := svc.View(context.Background(), c.ID)
	require.ErrorIs(t, err, ErrNotFound)
}
