// Package quote turns a (vehicle size, service type) pair into a price and the
// effective duration used to size appointment slots.
package quote

import (
	"context"
	"errors"
)

var (
	// ErrNotFound means no active price exists for the pair.
	ErrNotFound = errors.New("no active price for selection")
	// ErrLookup wraps failures of the pricing collaborator.
	ErrLookup = errors.New("pricing lookup failed")
	// ErrInvalidDuration means the derived effective duration is not positive.
	ErrInvalidDuration = errors.New("invalid effective duration")
)

// Price is one active row of the price list.
type Price struct {
	DurationMinutes int
	PriceCents      int
}

// PricingLookup finds the single active price for a pair. ok is false when
// nothing matches.
type PricingLookup interface {
	FindActivePrice(ctx context.Context, vehicleSize, serviceType string) (p Price, ok bool, err error)
}

type PricingLookupFunc func(ctx context.Context, vehicleSize, serviceType string) (Price, bool, error)

func (f PricingLookupFunc) FindActivePrice(ctx context.Context, vehicleSize, serviceType string) (Price, bool, error) {
	return f(ctx, vehicleSize, serviceType)
}

type Quote struct {
	BaseDurationMinutes      int
	TravelPaddingMinutes     int
	EffectiveDurationMinutes int
	PriceCents               int
}

// Valid reports whether q carries a usable effective duration.
func (q Quote) Valid() bool {
	return q.EffectiveDurationMinutes > 0
}

// TravelPadding returns extra minutes to reserve around a service, e.g. for
// driving between customers.
type TravelPadding func(vehicleSize, serviceType string) int

// ZeroPadding is the current policy: no travel time is reserved.
func ZeroPadding(string, string) int { return 0 }
