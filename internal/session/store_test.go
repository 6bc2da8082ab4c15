package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &Store{
		R:                  client,
		SessionTTL:         time.Hour,
		PendingCheckoutTTL: 15 * time.Minute,
	}, mr
}

func TestAnonTokenLifecycle(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()

	token, err := s.NewAnonToken(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	live, err := s.TouchAnonToken(ctx, token)
	require.NoError(t, err)
	require.True(t, live)

	mr.FastForward(2 * time.Hour)
	live, err = s.TouchAnonToken(ctx, token)
	require.NoError(t, err)
	require.False(t, live)
}

func TestTouchUnknownToken(t *testing.T) {
	s, _ := newStore(t)
	live, err := s.TouchAnonToken(context.Background(), "nope")
	require.NoError(t, err)
	require.False(t, live)

	live, err = s.TouchAnonToken(context.Background(), "")
	require.NoError(t, err)
	require.False(t, live)
}

func TestPendingCheckoutSingleSlot(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	cartID := uuid.New()

	first := PendingCheckout{CartID: cartID, Snapshot: json.RawMessage(`{"total":12990}`), StartedAt: time.Now().UTC()}
	require.NoError(t, s.SetPendingCheckout(ctx, first))

	// A second start for the same cart replaces the slot.
	second := PendingCheckout{CartID: cartID, Snapshot: json.RawMessage(`{"total":9990}`), StartedAt: time.Now().UTC()}
	require.NoError(t, s.SetPendingCheckout(ctx, second))

	got, ok, err := s.PendingCheckoutFor(ctx, cartID)
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `{"total":9990}`, string(got.Snapshot))
}

func TestPendingCheckoutExpiry(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()
	cartID := uuid.New()

	require.NoError(t, s.SetPendingCheckout(ctx, PendingCheckout{CartID: cartID, StartedAt: time.Now().UTC()}))
	mr.FastForward(time.Hour)

	_, ok, err := s.PendingCheckoutFor(ctx, cartID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestClearPendingCheckout(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	cartID := uuid.New()

	require.NoError(t, s.SetPendingCheckout(ctx, PendingCheckout{CartID: cartID, StartedAt: time.Now().UTC()}))
	require.NoError(t, s.ClearPendingCheckout(ctx, cartID))

	_, ok, err := s.PendingCheckoutFor(ctx, cartID)
	require.NoError(t, err)
	require.False(t, ok)
}
