package coupon

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/noah-isme/backend-loja/internal/money"
	"github.com/noah-isme/backend-loja/internal/repo"
)

// Store captures the persistence methods the coupon service needs. Usage
// accounting happens on the worker side, keyed by order, so validation only
// ever reads.
type Store interface {
	GetByCode(ctx context.Context, code string) (repo.Coupon, error)
}

// Evaluation is the outcome of a successful coupon validation.
type Evaluation struct {
	Code         string      `json:"code"`
	Kind         string      `json:"kind"`
	Discount     money.Money `json:"discount"`
	FreeShipping bool        `json:"freeShipping"`
}

// Service evaluates coupon codes against a cart subtotal.
type Service struct {
	Store Store
	Now   func() time.Time
}

// Validate looks up the code and evaluates it against the subtotal. The
// returned errors are the engine sentinels; callers map them to API failures.
func (s *Service) Validate(ctx context.Context, code string, subtotal money.Money) (Evaluation, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return Evaluation{}, ErrNotFound
	}
	c, err := s.Store.GetByCode(ctx, trimmed)
	if err != nil {
		if errors.Is(err, repo.ErrNoRows) {
			return Evaluation{}, ErrNotFound
		}
		return Evaluation{}, err
	}
	rule := RuleFromModel(c)
	if err := rule.Validate(s.now(), subtotal); err != nil {
		return Evaluation{}, err
	}
	return Evaluation{
		Code:         c.Code,
		Kind:         c.Kind,
		Discount:     Compute(subtotal, rule),
		FreeShipping: rule.FreeShipping(),
	}, nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
