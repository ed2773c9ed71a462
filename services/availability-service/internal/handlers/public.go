package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/detailbook/services/availability-service/internal/availability"
	"github.com/md-rashed-zaman/detailbook/services/availability-service/internal/selection"
	"github.com/md-rashed-zaman/detailbook/services/availability-service/internal/sessions"
)

// PublicHandler answers one-shot availability queries by running a throwaway
// scheduler over the full selection.
type PublicHandler struct {
	factory sessions.Factory
	logger  *slog.Logger
}

func NewPublicHandler(factory sessions.Factory, logger *slog.Logger) *PublicHandler {
	return &PublicHandler{factory: factory, logger: logger}
}

type publicAvailabilityResponse struct {
	VehicleSize  string            `json:"vehicle_size"`
	ServiceType  string            `json:"service_type"`
	Quote        *quoteItem        `json:"quote"`
	Availability *availabilityItem `json:"availability"`
}

func (h *PublicHandler) Availability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	vehicleSize := strings.TrimSpace(q.Get("vehicle_size"))
	serviceType := strings.TrimSpace(q.Get("service_type"))
	date := strings.TrimSpace(q.Get("date"))
	if vehicleSize == "" || serviceType == "" || date == "" {
		http.Error(w, "vehicle_size, service_type, and date are required", http.StatusBadRequest)
		return
	}
	if _, err := availability.ParseDate(date); err != nil {
		status, msg := statusFor(err)
		http.Error(w, msg, status)
		return
	}

	var (
		slots    []availability.Slot
		meta     selection.RenderMeta
		rendered bool
	)
	sched, err := h.factory(func(s []availability.Slot, m selection.RenderMeta) {
		slots, meta, rendered = s, m, true
	})
	if err != nil {
		h.logger.Error("build scheduler failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	if err := sched.SetDate(ctx, date); err != nil {
		status, msg := statusFor(err)
		http.Error(w, msg, status)
		return
	}
	if err := sched.SetVehicleSize(ctx, vehicleSize); err != nil {
		status, msg := statusFor(err)
		http.Error(w, msg, status)
		return
	}
	if err := sched.SetServiceType(ctx, serviceType); err != nil {
		status, msg := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("public availability failed", "err", err)
		}
		http.Error(w, msg, status)
		return
	}
	if !rendered {
		http.Error(w, "availability unavailable", http.StatusServiceUnavailable)
		return
	}

	snap := sched.Snapshot()
	writeJSON(w, http.StatusOK, publicAvailabilityResponse{
		VehicleSize:  vehicleSize,
		ServiceType:  serviceType,
		Quote:        newQuoteItem(snap.Quote),
		Availability: newAvailabilityItem(slots, meta),
	})
}
