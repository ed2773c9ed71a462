package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/detailbook/services/availability-service/internal/availability"
	"github.com/md-rashed-zaman/detailbook/services/availability-service/internal/quote"
	"github.com/md-rashed-zaman/detailbook/services/availability-service/internal/selection"
	"github.com/md-rashed-zaman/detailbook/services/availability-service/internal/sessions"
)

type slotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Available bool   `json:"available"`
}

type quoteItem struct {
	BaseDurationMinutes      int    `json:"base_duration_minutes"`
	TravelPaddingMinutes     int    `json:"travel_padding_minutes"`
	EffectiveDurationMinutes int    `json:"effective_duration_minutes"`
	PriceCents               int    `json:"price_cents"`
	PriceDisplay             string `json:"price_display"`
}

type availabilityItem struct {
	Date           string     `json:"date"`
	RenderedAt     string     `json:"rendered_at,omitempty"`
	AvailableSlots int        `json:"available_slots"`
	Slots          []slotItem `json:"slots"`
}

func slotItems(slots []availability.Slot, effectiveDurationMinutes int) []slotItem {
	d := time.Duration(effectiveDurationMinutes) * time.Minute
	out := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		out = append(out, slotItem{
			StartTime: s.Start.Format(time.RFC3339),
			EndTime:   s.Start.Add(d).Format(time.RFC3339),
			Available: s.Available,
		})
	}
	return out
}

func newAvailabilityItem(slots []availability.Slot, meta selection.RenderMeta) *availabilityItem {
	items := slotItems(slots, meta.EffectiveDurationMinutes)
	available := 0
	for _, s := range items {
		if s.Available {
			available++
		}
	}
	return &availabilityItem{Date: meta.Date.String(), AvailableSlots: available, Slots: items}
}

func newQuoteItem(q quote.Quote) *quoteItem {
	return &quoteItem{
		BaseDurationMinutes:      q.BaseDurationMinutes,
		TravelPaddingMinutes:     q.TravelPaddingMinutes,
		EffectiveDurationMinutes: q.EffectiveDurationMinutes,
		PriceCents:               q.PriceCents,
		PriceDisplay:             formatPrice(q.PriceCents),
	}
}

// formatPrice renders cents as "$x.xx".
func formatPrice(cents int) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}

// statusFor maps selection and lookup errors to an HTTP status and message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, sessions.ErrNotFound):
		return http.StatusNotFound, "session not found"
	case errors.Is(err, sessions.ErrFull):
		return http.StatusServiceUnavailable, "too many active sessions, retry later"
	case errors.Is(err, availability.ErrInvalidDate):
		return http.StatusBadRequest, "invalid date (want YYYY-MM-DD)"
	case errors.Is(err, quote.ErrNotFound):
		return http.StatusNotFound, "no active price for vehicle_size and service_type"
	case errors.Is(err, quote.ErrInvalidDuration):
		return http.StatusUnprocessableEntity, "price has no usable duration"
	case errors.Is(err, quote.ErrLookup):
		return http.StatusBadGateway, "pricing lookup failed"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
