package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/md-rashed-zaman/detailbook/libs/db"
	"github.com/md-rashed-zaman/detailbook/services/availability-service/internal/quote"
)

// ErrAmbiguousPrice means more than one active row matched a pair.
var ErrAmbiguousPrice = errors.New("multiple active prices")

type PricingRepository struct {
	q db.Querier
}

func NewPricingRepository(q db.Querier) *PricingRepository {
	return &PricingRepository{q: q}
}

// FindActivePrice returns the single active price row for the pair.
func (r *PricingRepository) FindActivePrice(ctx context.Context, vehicleSize, serviceType string) (quote.Price, bool, error) {
	rows, err := r.q.Query(ctx, `
		SELECT duration_minutes, price_cents
		FROM service_pricing
		WHERE vehicle_size = $1
			AND service_type = $2
			AND is_active = true
		LIMIT 2
	`, vehicleSize, serviceType)
	if err != nil {
		return quote.Price{}, false, err
	}
	defer rows.Close()

	var prices []quote.Price
	for rows.Next() {
		var p quote.Price
		if err := rows.Scan(&p.DurationMinutes, &p.PriceCents); err != nil {
			return quote.Price{}, false, err
		}
		prices = append(prices, p)
	}
	if rows.Err() != nil {
		return quote.Price{}, false, rows.Err()
	}

	switch len(prices) {
	case 0:
		return quote.Price{}, false, nil
	case 1:
		return prices[0], true, nil
	default:
		return quote.Price{}, false, fmt.Errorf("%w for %s/%s", ErrAmbiguousPrice, vehicleSize, serviceType)
	}
}
