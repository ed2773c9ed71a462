// Package selection sequences user selections into quote resolution and
// availability computation for a single booking session.
package selection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	otelx "github.com/md-rashed-zaman/detailbook/libs/otel"
	"github.com/md-rashed-zaman/detailbook/services/availability-service/internal/availability"
	"github.com/md-rashed-zaman/detailbook/services/availability-service/internal/quote"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var ErrInvalidDate = availability.ErrInvalidDate

// QuoteResolver is satisfied by *quote.Resolver.
type QuoteResolver interface {
	Resolve(ctx context.Context, vehicleSize, serviceType string) (quote.Quote, error)
}

// BookingLookup returns confirmed bookings whose start lies in [dayStart, dayEnd].
type BookingLookup interface {
	FindConfirmedBookings(ctx context.Context, dayStart, dayEnd time.Time) ([]availability.Booking, error)
}

type BookingLookupFunc func(ctx context.Context, dayStart, dayEnd time.Time) ([]availability.Booking, error)

func (f BookingLookupFunc) FindConfirmedBookings(ctx context.Context, dayStart, dayEnd time.Time) ([]availability.Booking, error) {
	return f(ctx, dayStart, dayEnd)
}

type RenderMeta struct {
	Date                     availability.Date
	BaseDurationMinutes      int
	EffectiveDurationMinutes int
	PriceCents               int
}

// Renderer receives each successful availability computation. It must not call
// back into the Scheduler's Set methods synchronously.
type Renderer func(slots []availability.Slot, meta RenderMeta)

// Observer is notified of lookup outcomes. Implementations must be safe for
// concurrent use.
type Observer interface {
	ObserveQuote(outcome string)
	ObserveStale(stage string)
	ObserveAvailability(outcome string, slots, available int)
}

type Config struct {
	Engine        *availability.Engine
	Quotes        QuoteResolver
	Bookings      BookingLookup
	Render        Renderer
	FailureMode   FailureMode
	LookupTimeout time.Duration
	Logger        *slog.Logger
	Observer      Observer
}

// Scheduler is the selection state machine of one booking session. Its methods
// are safe for concurrent use; lookups run outside the lock and their results
// are dropped when a newer selection superseded them.
type Scheduler struct {
	engine   *availability.Engine
	quotes   QuoteResolver
	bookings BookingLookup
	render   Renderer
	mode     FailureMode
	timeout  time.Duration
	logger   *slog.Logger
	observer Observer
	tracer   trace.Tracer

	mu sync.Mutex
	m  machine

	// renderMu orders the final staleness check and the Renderer call.
	renderMu sync.Mutex
}

func New(cfg Config) (*Scheduler, error) {
	if cfg.Engine == nil {
		return nil, errors.New("selection: availability engine required")
	}
	if cfg.Quotes == nil {
		return nil, errors.New("selection: quote resolver required")
	}
	if cfg.Bookings == nil {
		return nil, errors.New("selection: booking lookup required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	observer := cfg.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	render := cfg.Render
	if render == nil {
		render = func([]availability.Slot, RenderMeta) {}
	}
	return &Scheduler{
		engine:   cfg.Engine,
		quotes:   cfg.Quotes,
		bookings: cfg.Bookings,
		render:   render,
		mode:     cfg.FailureMode,
		timeout:  cfg.LookupTimeout,
		logger:   logger,
		observer: observer,
		tracer:   otelx.Tracer("selection"),
		m:        machine{quoteStatus: QuoteIdle},
	}, nil
}

func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.snapshot()
}

func (s *Scheduler) State() State {
	return s.Snapshot().State
}

// SetVehicleSize records the vehicle size, invalidates the quote and resolves a
// new one when a service type is also selected. The returned error describes
// this attempt's quote failure, if any; a superseded attempt returns nil.
func (s *Scheduler) SetVehicleSize(ctx context.Context, size string) error {
	s.mu.Lock()
	s.m.sel.VehicleSize = size
	req := s.beginQuoteLocked()
	s.mu.Unlock()
	return s.resolveQuote(ctx, req)
}

// SetServiceType mirrors SetVehicleSize for the service type.
func (s *Scheduler) SetServiceType(ctx context.Context, serviceType string) error {
	s.mu.Lock()
	s.m.sel.ServiceType = serviceType
	req := s.beginQuoteLocked()
	s.mu.Unlock()
	return s.resolveQuote(ctx, req)
}

// SetDate records the calendar date (YYYY-MM-DD) without touching the quote and
// runs the unlock check. An empty string clears the date.
func (s *Scheduler) SetDate(ctx context.Context, dateISO string) error {
	var date availability.Date
	if dateISO != "" {
		d, err := availability.ParseDate(dateISO)
		if err != nil {
			return err
		}
		date = d
	}

	s.mu.Lock()
	s.m.sel.Date = date
	s.m.dateGeneration++
	s.mu.Unlock()

	return s.tryUnlock(ctx)
}

type quoteRequest struct {
	generation  uint64
	vehicleSize string
	serviceType string
}

func (s *Scheduler) beginQuoteLocked() quoteRequest {
	gen := s.m.invalidate()
	return quoteRequest{
		generation:  gen,
		vehicleSize: s.m.sel.VehicleSize,
		serviceType: s.m.sel.ServiceType,
	}
}

func (s *Scheduler) resolveQuote(ctx context.Context, req quoteRequest) error {
	if req.vehicleSize == "" || req.serviceType == "" {
		return nil
	}

	lookupCtx, cancel := s.lookupContext(ctx)
	q, err := s.quotes.Resolve(lookupCtx, req.vehicleSize, req.serviceType)
	cancel()

	s.mu.Lock()
	if req.generation != s.m.generation {
		s.mu.Unlock()
		s.observer.ObserveStale("quote")
		s.logger.Debug("discarding superseded quote",
			"vehicle_size", req.vehicleSize,
			"service_type", req.serviceType,
			"generation", req.generation,
		)
		return nil
	}
	if err != nil {
		s.m.quoteStatus = QuoteFailed
		s.mu.Unlock()
		s.observer.ObserveQuote(quoteOutcome(err))
		s.logger.Error("pricing lookup failed",
			"err", err,
			"vehicle_size", req.vehicleSize,
			"service_type", req.serviceType,
		)
		return err
	}
	s.m.quote = q
	s.m.hasQuote = true
	s.m.quoteStatus = QuoteResolved
	s.mu.Unlock()

	s.observer.ObserveQuote("resolved")
	return s.tryUnlock(ctx)
}

func quoteOutcome(err error) string {
	switch {
	case errors.Is(err, quote.ErrNotFound):
		return "not_found"
	case errors.Is(err, quote.ErrInvalidDuration):
		return "invalid_duration"
	default:
		return "lookup_error"
	}
}

type computation struct {
	date           availability.Date
	quote          quote.Quote
	generation     uint64
	dateGeneration uint64
}

// tryUnlock computes availability iff a date is set and the quote is valid.
func (s *Scheduler) tryUnlock(ctx context.Context) error {
	s.mu.Lock()
	if !s.m.unlocked() {
		s.mu.Unlock()
		return nil
	}
	c := computation{
		date:           s.m.sel.Date,
		quote:          s.m.quote,
		generation:     s.m.generation,
		dateGeneration: s.m.dateGeneration,
	}
	s.mu.Unlock()

	s.loadAvailability(ctx, c)
	return nil
}

func (s *Scheduler) loadAvailability(ctx context.Context, c computation) {
	dayStart, dayEnd := s.engine.DayBounds(c.date)
	bookings, err := s.fetchBookings(ctx, dayStart, dayEnd)

	outcome := "ok"
	var slots []availability.Slot
	switch {
	case err == nil:
		slots = s.engine.Compute(c.date, c.quote.EffectiveDurationMinutes, bookings)
	case s.mode == FailClosed:
		outcome = "fail_closed"
		slots = s.engine.Blocked(c.date)
	default:
		outcome = "fail_open"
		slots = s.engine.Compute(c.date, c.quote.EffectiveDurationMinutes, nil)
	}
	if err != nil {
		s.logger.Warn("booking lookup failed; applying failure mode",
			"err", err,
			"date", c.date.String(),
			"failure_mode", s.mode.String(),
		)
	}

	s.renderMu.Lock()
	defer s.renderMu.Unlock()

	s.mu.Lock()
	current := c.generation == s.m.generation && c.dateGeneration == s.m.dateGeneration && s.m.unlocked()
	s.mu.Unlock()
	if !current {
		s.observer.ObserveStale("availability")
		s.logger.Debug("discarding superseded availability", "date", c.date.String())
		return
	}

	available := 0
	for _, slot := range slots {
		if slot.Available {
			available++
		}
	}
	s.observer.ObserveAvailability(outcome, len(slots), available)
	s.render(slots, RenderMeta{
		Date:                     c.date,
		BaseDurationMinutes:      c.quote.BaseDurationMinutes,
		EffectiveDurationMinutes: c.quote.EffectiveDurationMinutes,
		PriceCents:               c.quote.PriceCents,
	})
}

func (s *Scheduler) fetchBookings(ctx context.Context, dayStart, dayEnd time.Time) ([]availability.Booking, error) {
	ctx, span := s.tracer.Start(ctx, "bookings.fetch", trace.WithAttributes(
		attribute.String("day_start", dayStart.Format(time.RFC3339)),
	))
	defer span.End()

	lookupCtx, cancel := s.lookupContext(ctx)
	defer cancel()
	bookings, err := s.bookings.FindConfirmedBookings(lookupCtx, dayStart, dayEnd)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("find confirmed bookings: %w", err)
	}
	span.SetAttributes(attribute.Int("bookings", len(bookings)))
	return bookings, nil
}

func (s *Scheduler) lookupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

type nopObserver struct{}

func (nopObserver) ObserveQuote(string)                  {}
func (nopObserver) ObserveStale(string)                  {}
func (nopObserver) ObserveAvailability(string, int, int) {}
