package checkout

import (
	"context"

	"github.com/shoplane/shoplane-backend/pkg/config"
	pkgerrors "github.com/shoplane/shoplane-backend/pkg/errors"
)

// Delivery methods accepted at checkout.
const (
	DeliveryMethodPickup  = "pickup"
	DeliveryMethodCourier = "courier"
)

// ShippingQuoter prices delivery for an order before the order is persisted.
type ShippingQuoter interface {
	Quote(ctx context.Context, method string, subtotalCents, weightGrams int) (int, error)
}

// FlatRateQuoter prices courier delivery at a flat rate, waived above a
// configurable subtotal. Pickup is always free.
type FlatRateQuoter struct {
	flatRateCents int
	freeOverCents int
}

// NewFlatRateQuoter builds a quoter from shipping configuration.
func NewFlatRateQuoter(cfg config.ShippingConfig) *FlatRateQuoter {
	return &FlatRateQuoter{
		flatRateCents: cfg.FlatRateCents,
		freeOverCents: cfg.FreeOverCents,
	}
}

func (q *FlatRateQuoter) Quote(ctx context.Context, method string, subtotalCents, weightGrams int) (int, error) {
	switch method {
	case DeliveryMethodPickup:
		return 0, nil
	case DeliveryMethodCourier:
		if q.freeOverCents > 0 && subtotalCents >= q.freeOverCents {
			return 0, nil
		}
		return q.flatRateCents, nil
	default:
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "unknown delivery method").
			WithDetails(map[string]any{"delivery_method": method})
	}
}
