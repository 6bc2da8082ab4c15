package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Store keeps the lightweight shopper session state in Redis: the anonymous
// identity token and the single pending-checkout slot per cart.
type Store struct {
	R                  *redis.Client
	SessionTTL         time.Duration
	PendingCheckoutTTL time.Duration
}

// PendingCheckout is the in-flight checkout snapshot. Starting a new checkout
// for the same cart overwrites it; there is never more than one per cart.
type PendingCheckout struct {
	CartID    uuid.UUID       `json:"cartId"`
	Snapshot  json.RawMessage `json:"snapshot"`
	StartedAt time.Time       `json:"startedAt"`
}

// NewAnonToken issues a fresh anonymous identity and records it so the cart
// resolver can tell a live token from an expired one.
func (s *Store) NewAnonToken(ctx context.Context) (string, error) {
	token := uuid.NewString()
	if err := s.R.Set(ctx, anonKey(token), time.Now().UTC().Format(time.RFC3339), s.SessionTTL).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// TouchAnonToken renews the token TTL and reports whether it was still live.
func (s *Store) TouchAnonToken(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	ok, err := s.R.Expire(ctx, anonKey(token), s.SessionTTL).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// SetPendingCheckout stores the checkout snapshot, replacing any previous one
// for the cart.
func (s *Store) SetPendingCheckout(ctx context.Context, p PendingCheckout) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.R.Set(ctx, pendingKey(p.CartID), data, s.PendingCheckoutTTL).Err()
}

// PendingCheckoutFor returns the in-flight checkout for the cart, if any.
func (s *Store) PendingCheckoutFor(ctx context.Context, cartID uuid.UUID) (PendingCheckout, bool, error) {
	data, err := s.R.Get(ctx, pendingKey(cartID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return PendingCheckout{}, false, nil
		}
		return PendingCheckout{}, false, err
	}
	var p PendingCheckout
	if err := json.Unmarshal(data, &p); err != nil {
		return PendingCheckout{}, false, err
	}
	return p, true, nil
}

// ClearPendingCheckout removes the slot after the checkout settles.
func (s *Store) ClearPendingCheckout(ctx context.Context, cartID uuid.UUID) error {
	return s.R.Del(ctx, pendingKey(cartID)).Err()
}

func anonKey(token string) string {
	return "session:anon:" + token
}

func pendingKey(cartID uuid.UUID) string {
	return "checkout:pending:" + cartID.String()
}
