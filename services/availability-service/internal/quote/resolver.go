package quote

import (
	"context"
	"fmt"

	otelx "github.com/md-rashed-zaman/detailbook/libs/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Resolver struct {
	pricing PricingLookup
	padding TravelPadding
	tracer  trace.Tracer
}

type Option func(*Resolver)

func WithTravelPadding(p TravelPadding) Option {
	return func(r *Resolver) {
		if p != nil {
			r.padding = p
		}
	}
}

func NewResolver(pricing PricingLookup, opts ...Option) *Resolver {
	r := &Resolver{
		pricing: pricing,
		padding: ZeroPadding,
		tracer:  otelx.Tracer("quote"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve issues exactly one pricing lookup and derives a fresh Quote from it.
// It never retries; on any error the zero Quote is returned.
func (r *Resolver) Resolve(ctx context.Context, vehicleSize, serviceType string) (Quote, error) {
	ctx, span := r.tracer.Start(ctx, "quote.resolve", trace.WithAttributes(
		attribute.String("vehicle_size", vehicleSize),
		attribute.String("service_type", serviceType),
	))
	defer span.End()

	q, err := r.resolve(ctx, vehicleSize, serviceType)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Quote{}, err
	}
	span.SetAttributes(attribute.Int("effective_duration_minutes", q.EffectiveDurationMinutes))
	return q, nil
}

func (r *Resolver) resolve(ctx context.Context, vehicleSize, serviceType string) (Quote, error) {
	if r.pricing == nil {
		return Quote{}, fmt.Errorf("%w: no pricing collaborator", ErrLookup)
	}
	price, ok, err := r.pricing.FindActivePrice(ctx, vehicleSize, serviceType)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: %w", ErrLookup, err)
	}
	if !ok {
		return Quote{}, fmt.Errorf("%w: %s/%s", ErrNotFound, vehicleSize, serviceType)
	}

	padding := r.padding(vehicleSize, serviceType)
	q := Quote{
		BaseDurationMinutes:      price.DurationMinutes,
		TravelPaddingMinutes:     padding,
		EffectiveDurationMinutes: price.DurationMinutes + padding,
		PriceCents:               price.PriceCents,
	}
	if !q.Valid() {
		return Quote{}, fmt.Errorf("%w: %d minutes for %s/%s", ErrInvalidDuration, q.EffectiveDurationMinutes, vehicleSize, serviceType)
	}
	return q, nil
}
