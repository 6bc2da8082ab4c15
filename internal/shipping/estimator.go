package shipping

import (
	"errors"
	"strings"

	"github.com/noah-isme/backend-loja/internal/money"
)

// ErrInvalidPostalCode is returned when the CEP does not normalise to eight
// digits. It is a validation failure, never a provider error.
var ErrInvalidPostalCode = errors.New("postal code must have 8 digits")

// Tier selects the delivery speed.
type Tier string

const (
	TierStandard Tier = "standard"
	TierExpress  Tier = "express"
)

// Quote is the transient shipping descriptor consumed by the pricing
// aggregator. It is never persisted; it is recomputed on every postal-code
// submission and on any coupon change that could alter free eligibility.
type Quote struct {
	PostalCode       string
	Tier             Tier
	Cost             money.Money
	DeliveryEstimate string
	Free             bool
}

// Estimator computes shipping quotes from a coarse regional tariff table.
// It is pure given its inputs and safe to call repeatedly while the shopper
// edits the postal code field.
type Estimator struct {
	// FreeShippingThreshold forces cost to zero at or above this subtotal.
	FreeShippingThreshold money.Money
	// ExpressMultiplierPct scales the standard cost, e.g. 180 for 1.8x.
	ExpressMultiplierPct int
}

type tariffBand struct {
	maxPrefix        int
	cost             money.Money
	standardEstimate string
	expressEstimate  string
}

// Coarse regional bands keyed on the CEP's first digit. The exact values are
// an implementation-defined lookup, not a business invariant.
var tariffs = []tariffBand{
	{maxPrefix: 3, cost: 1290, standardEstimate: "3-5 dias úteis", expressEstimate: "1-2 dias úteis"},
	{maxPrefix: 6, cost: 1990, standardEstimate: "5-8 dias úteis", expressEstimate: "2-3 dias úteis"},
	{maxPrefix: 9, cost: 2490, standardEstimate: "7-12 dias úteis", expressEstimate: "3-5 dias úteis"},
}

const freeEstimate = "5-9 dias úteis"

// NormalizeCEP strips separators and validates the eight-digit form.
func NormalizeCEP(raw string) (string, error) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '.' || r == ' ':
			// separators are tolerated on input
		default:
			return "", ErrInvalidPostalCode
		}
	}
	cep := b.String()
	if len(cep) != 8 {
		return "", ErrInvalidPostalCode
	}
	return cep, nil
}

// Quote computes the cost and delivery window for the given destination.
// When freeShippingOverride is set (a free-shipping coupon is applied) or the
// subtotal meets the threshold, the cost is forced to zero and no tariff
// logic runs.
func (e Estimator) Quote(postalCode string, subtotal money.Money, freeShippingOverride bool, tier Tier) (Quote, error) {
	cep, err := NormalizeCEP(postalCode)
	if err != nil {
		return Quote{}, err
	}
	if tier == "" {
		tier = TierStandard
	}
	if freeShippingOverride || (e.FreeShippingThreshold > 0 && subtotal >= e.FreeShippingThreshold) {
		return Quote{
			PostalCode:       cep,
			Tier:             tier,
			Cost:             0,
			DeliveryEstimate: freeEstimate,
			Free:             true,
		}, nil
	}
	band := bandFor(cep)
	q := Quote{
		PostalCode:       cep,
		Tier:             tier,
		Cost:             band.cost,
		DeliveryEstimate: band.standardEstimate,
	}
	if tier == TierExpress {
		pct := e.ExpressMultiplierPct
		if pct <= 0 {
			pct = 180
		}
		q.Cost = band.cost * money.Money(pct) / 100
		q.DeliveryEstimate = band.expressEstimate
	}
	return q, nil
}

func bandFor(cep string) tariffBand {
	prefix := int(cep[0] - '0')
	for _, band := range tariffs {
		if prefix <= band.maxPrefix {
			return band
		}
	}
	return tariffs[len(tariffs)-1]
}
