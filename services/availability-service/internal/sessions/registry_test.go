package sessions

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/md-rashed-zaman/detailbook/services/availability-service/internal/availability"
	"github.com/md-rashed-zaman/detailbook/services/availability-service/internal/quote"
	"github.com/md-rashed-zaman/detailbook/services/availability-service/internal/selection"
)

func testFactory(t *testing.T) Factory {
	t.Helper()
	engine, err := availability.NewEngine(availability.BusinessHours{StartHour: 8, EndHour: 18}, 30, time.UTC)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	pricing := quote.PricingLookupFunc(func(context.Context, string, string) (quote.Price, bool, error) {
		return quote.Price{DurationMinutes: 60, PriceCents: 8000}, true, nil
	})
	bookings := selection.BookingLookupFunc(func(context.Context, time.Time, time.Time) ([]availability.Booking, error) {
		return nil, nil
	})
	return func(render selection.Renderer) (*selection.Scheduler, error) {
		return selection.New(selection.Config{
			Engine:   engine,
			Quotes:   quote.NewResolver(pricing),
			Bookings: bookings,
			Render:   render,
			Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		})
	}
}

func TestRegistryStoresRenders(t *testing.T) {
	var mu sync.Mutex
	var hooked []string
	sizes := []int{}
	reg := NewRegistry(testFactory(t),
		WithRenderHook(func(id string, r Rendered) {
			mu.Lock()
			hooked = append(hooked, id)
			mu.Unlock()
		}),
		WithSizeObserver(func(n int) { sizes = append(sizes, n) }),
	)

	sess, err := reg.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, ok := sess.LastRendered(); ok {
		t.Fatalf("new session must not have a render")
	}

	ctx := context.Background()
	got, err := reg.Get(sess.ID)
	if err != nil || got != sess {
		t.Fatalf("Get: %v", err)
	}
	if err := got.Scheduler.SetVehicleSize(ctx, "sedan"); err != nil {
		t.Fatalf("SetVehicleSize: %v", err)
	}
	if err := got.Scheduler.SetServiceType(ctx, "wash"); err != nil {
		t.Fatalf("SetServiceType: %v", err)
	}
	if err := got.Scheduler.SetDate(ctx, "2026-04-07"); err != nil {
		t.Fatalf("SetDate: %v", err)
	}

	r, ok := sess.LastRendered()
	if !ok || len(r.Slots) != 20 || r.Meta.EffectiveDurationMinutes != 60 {
		t.Fatalf("unexpected render ok=%v %+v", ok, r.Meta)
	}
	r.Slots[0].Available = false
	again, _ := sess.LastRendered()
	if !again.Slots[0].Available {
		t.Fatalf("LastRendered must return a copy")
	}

	mu.Lock()
	if len(hooked) != 1 || hooked[0] != sess.ID {
		t.Fatalf("unexpected hook calls %v", hooked)
	}
	mu.Unlock()

	reg.Delete(sess.ID)
	if _, err := reg.Get(sess.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(sizes) != 2 || sizes[0] != 1 || sizes[1] != 0 {
		t.Fatalf("unexpected size reports %v", sizes)
	}
}

func TestRegistryFactoryError(t *testing.T) {
	reg := NewRegistry(func(selection.Renderer) (*selection.Scheduler, error) {
		return nil, errors.New("boom")
	})
	if _, err := reg.Create(); err == nil {
		t.Fatalf("expected factory error")
	}
	if reg.Len() != 0 {
		t.Fatalf("failed create must not register a session")
	}
}

func TestRegistryMaxSessions(t *testing.T) {
	reg := NewRegistry(testFactory(t), WithMaxSessions(2))
	first, err := reg.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := reg.Create(); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := reg.Create(); !errors.Is(err, ErrFull) {
		t.Fatalf("expected ErrFull, got %v", err)
	}
	if reg.Len() != 2 {
		t.Fatalf("expected 2 sessions, got %d", reg.Len())
	}

	reg.Delete(first.ID)
	if _, err := reg.Create(); err != nil {
		t.Fatalf("expected room after delete, got %v", err)
	}
}

func TestEvictIdle(t *testing.T) {
	now := time.Date(2026, 4, 7, 12, 0, 0, 0, time.UTC)
	reg := NewRegistry(testFactory(t))
	reg.now = func() time.Time { return now }

	stale, _ := reg.Create()
	now = now.Add(20 * time.Minute)
	fresh, _ := reg.Create()
	now = now.Add(15 * time.Minute)

	if n := reg.EvictIdle(30 * time.Minute); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if _, err := reg.Get(stale.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected stale session evicted")
	}
	if _, err := reg.Get(fresh.ID); err != nil {
		t.Fatalf("expected fresh session kept: %v", err)
	}
}

func TestSweeperStopsOnCancel(t *testing.T) {
	reg := NewRegistry(testFactory(t))
	sw := NewSweeper(reg, slog.New(slog.NewTextHandler(io.Discard, nil)), SweeperConfig{Interval: time.Millisecond, IdleTTL: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sw.Run(ctx)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("sweeper did not stop")
	}
}
