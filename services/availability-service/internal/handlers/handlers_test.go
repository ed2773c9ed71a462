package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/md-rashed-zaman/detailbook/services/availability-service/internal/availability"
	"github.com/md-rashed-zaman/detailbook/services/availability-service/internal/quote"
	"github.com/md-rashed-zaman/detailbook/services/availability-service/internal/selection"
	"github.com/md-rashed-zaman/detailbook/services/availability-service/internal/sessions"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testFactory(t *testing.T) sessions.Factory {
	t.Helper()
	engine, err := availability.NewEngine(availability.BusinessHours{StartHour: 8, EndHour: 18}, 30, time.UTC)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	prices := map[string]quote.Price{
		"suv/full_detail": {DurationMinutes: 60, PriceCents: 14950},
	}
	pricing := quote.PricingLookupFunc(func(_ context.Context, size, svc string) (quote.Price, bool, error) {
		if size == "broken" {
			return quote.Price{}, false, errors.New("connection refused")
		}
		p, ok := prices[size+"/"+svc]
		return p, ok, nil
	})
	bookings := selection.BookingLookupFunc(func(_ context.Context, dayStart, _ time.Time) ([]availability.Booking, error) {
		if availability.DateOf(dayStart).String() != "2026-04-07" {
			return nil, nil
		}
		return []availability.Booking{{
			ScheduledStart: time.Date(2026, 4, 7, 9, 0, 0, 0, time.UTC),
			ScheduledEnd:   time.Date(2026, 4, 7, 10, 0, 0, 0, time.UTC),
		}}, nil
	})
	return func(render selection.Renderer) (*selection.Scheduler, error) {
		return selection.New(selection.Config{
			Engine:   engine,
			Quotes:   quote.NewResolver(pricing),
			Bookings: bookings,
			Render:   render,
			Logger:   discardLogger(),
		})
	}
}

func post(t *testing.T, h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeState(t *testing.T, rec *httptest.ResponseRecorder) sessionStateResponse {
	t.Helper()
	var resp sessionStateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return resp
}

func newSession(t *testing.T, h *SessionHandler) string {
	t.Helper()
	rec := post(t, h.Create, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", rec.Code)
	}
	var resp createSessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.SessionID == "" {
		t.Fatalf("create: bad body %q", rec.Body.String())
	}
	return resp.SessionID
}

func findSlot(t *testing.T, slots []slotItem, start string) slotItem {
	t.Helper()
	for _, s := range slots {
		if s.StartTime == start {
			return s
		}
	}
	t.Fatalf("slot %s not found", start)
	return slotItem{}
}

func TestSessionFlow(t *testing.T) {
	h := NewSessionHandler(sessions.NewRegistry(testFactory(t)), discardLogger())
	id := newSession(t, h)

	rec := post(t, h.SetDate, `{"session_id":"`+id+`","date":"2026-04-07"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("date: expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	if st := decodeState(t, rec); st.State != "partially_selected" || !st.CalendarLocked || st.Availability != nil {
		t.Fatalf("unexpected state after date %+v", st)
	}

	post(t, h.SetVehicle, `{"session_id":"`+id+`","vehicle_size":"suv"}`)
	rec = post(t, h.SetService, `{"session_id":"`+id+`","service_type":"full_detail"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("service: expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	st := decodeState(t, rec)
	if st.State != "ready" || st.CalendarLocked || st.QuoteStatus != "resolved" {
		t.Fatalf("unexpected state %+v", st)
	}
	if st.Quote == nil || st.Quote.EffectiveDurationMinutes != 60 || st.Quote.PriceDisplay != "$149.50" {
		t.Fatalf("unexpected quote %+v", st.Quote)
	}
	if st.Availability == nil || len(st.Availability.Slots) != 20 || st.Availability.Date != "2026-04-07" {
		t.Fatalf("unexpected availability %+v", st.Availability)
	}
	if s := findSlot(t, st.Availability.Slots, "2026-04-07T08:30:00Z"); s.Available || s.EndTime != "2026-04-07T09:30:00Z" {
		t.Fatalf("08:30 should be blocked, got %+v", s)
	}
	if s := findSlot(t, st.Availability.Slots, "2026-04-07T10:00:00Z"); !s.Available {
		t.Fatalf("10:00 should be available")
	}

	req := httptest.NewRequest(http.MethodGet, "/?session_id="+id, nil)
	rec = httptest.NewRecorder()
	h.State(rec, req)
	if rec.Code != http.StatusOK || decodeState(t, rec).Availability == nil {
		t.Fatalf("state: unexpected %d %s", rec.Code, rec.Body.String())
	}

	rec = post(t, h.SetVehicle, `{"session_id":"`+id+`","vehicle_size":"motorcycle"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unpriced pair, got %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	h.State(rec, httptest.NewRequest(http.MethodGet, "/?session_id="+id, nil))
	st = decodeState(t, rec)
	if st.State != "partially_selected" || !st.CalendarLocked || st.QuoteStatus != "failed" || st.Availability != nil {
		t.Fatalf("failed quote must lock the calendar, got %+v", st)
	}
}

func TestSessionErrors(t *testing.T) {
	h := NewSessionHandler(sessions.NewRegistry(testFactory(t)), discardLogger())
	id := newSession(t, h)

	cases := []struct {
		name    string
		handler http.HandlerFunc
		body    string
		want    int
	}{
		{"invalid json", h.SetVehicle, `{`, http.StatusBadRequest},
		{"missing session id", h.SetVehicle, `{"vehicle_size":"suv"}`, http.StatusBadRequest},
		{"unknown session", h.SetVehicle, `{"session_id":"nope","vehicle_size":"suv"}`, http.StatusNotFound},
		{"missing vehicle", h.SetVehicle, `{"session_id":"` + id + `"}`, http.StatusBadRequest},
		{"missing service", h.SetService, `{"session_id":"` + id + `"}`, http.StatusBadRequest},
		{"invalid date", h.SetDate, `{"session_id":"` + id + `","date":"07/04/2026"}`, http.StatusBadRequest},
		{"clear date", h.SetDate, `{"session_id":"` + id + `","date":""}`, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if rec := post(t, tc.handler, tc.body); rec.Code != tc.want {
				t.Fatalf("expected %d, got %d %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}

	post(t, h.SetService, `{"session_id":"`+id+`","service_type":"full_detail"}`)
	if rec := post(t, h.SetVehicle, `{"session_id":"`+id+`","vehicle_size":"broken"}`); rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 on lookup failure, got %d", rec.Code)
	}

	rec := httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	h.State(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without session_id, got %d", rec.Code)
	}
}

func TestSessionsEndpointCreateAndClose(t *testing.T) {
	h := NewSessionHandler(sessions.NewRegistry(testFactory(t)), discardLogger())

	rec := httptest.NewRecorder()
	h.Sessions(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var created createSessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	del := func() int {
		rec := httptest.NewRecorder()
		h.Sessions(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/sessions?session_id="+created.SessionID, nil))
		return rec.Code
	}
	if code := del(); code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", code)
	}
	if code := del(); code != http.StatusNotFound {
		t.Fatalf("expected 404 after close, got %d", code)
	}

	rec = httptest.NewRecorder()
	h.Sessions(rec, httptest.NewRequest(http.MethodPut, "/api/v1/sessions", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestCreateSessionWhenFull(t *testing.T) {
	h := NewSessionHandler(sessions.NewRegistry(testFactory(t), sessions.WithMaxSessions(1)), discardLogger())
	newSession(t, h)

	rec := post(t, h.Create, "")
	if rec.Code != http.StatusServiceUnavailable || rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected 503 with Retry-After, got %d %q", rec.Code, rec.Header().Get("Retry-After"))
	}
}

func TestPublicAvailability(t *testing.T) {
	h := NewPublicHandler(testFactory(t), discardLogger())

	get := func(query string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.Availability(rec, httptest.NewRequest(http.MethodGet, "/api/v1/public/availability?"+query, nil))
		return rec
	}

	rec := get("vehicle_size=suv&service_type=full_detail&date=2026-04-07")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	var resp publicAvailabilityResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Quote == nil || resp.Quote.PriceCents != 14950 || resp.Availability == nil {
		t.Fatalf("unexpected response %s", rec.Body.String())
	}
	if resp.Availability.AvailableSlots != 17 {
		t.Fatalf("expected 17 available slots, got %d", resp.Availability.AvailableSlots)
	}
	if s := findSlot(t, resp.Availability.Slots, "2026-04-07T08:00:00Z"); !s.Available {
		t.Fatalf("08:00 should be available")
	}

	cases := []struct {
		query string
		want  int
	}{
		{"vehicle_size=suv&service_type=full_detail", http.StatusBadRequest},
		{"vehicle_size=suv&service_type=full_detail&date=2026-13-40", http.StatusBadRequest},
		{"vehicle_size=sedan&service_type=full_detail&date=2026-04-07", http.StatusNotFound},
		{"vehicle_size=broken&service_type=full_detail&date=2026-04-07", http.StatusBadGateway},
	}
	for _, tc := range cases {
		if rec := get(tc.query); rec.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.query, tc.want, rec.Code)
		}
	}
}

func TestFormatPrice(t *testing.T) {
	cases := map[int]string{0: "$0.00", 5: "$0.05", 14950: "$149.50", -250: "-$2.50"}
	for cents, want := range cases {
		if got := formatPrice(cents); got != want {
			t.Fatalf("%d: expected %s, got %s", cents, want, got)
		}
	}
}
