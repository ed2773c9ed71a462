package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/detailbook/services/availability-service/internal/selection"
	"github.com/md-rashed-zaman/detailbook/services/availability-service/internal/sessions"
)

type SessionHandler struct {
	registry *sessions.Registry
	logger   *slog.Logger
}

func NewSessionHandler(registry *sessions.Registry, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{registry: registry, logger: logger}
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
}

type selectionRequest struct {
	SessionID   string `json:"session_id"`
	VehicleSize string `json:"vehicle_size"`
	ServiceType string `json:"service_type"`
	Date        string `json:"date"`
}

type sessionStateResponse struct {
	SessionID      string            `json:"session_id"`
	State          string            `json:"state"`
	VehicleSize    string            `json:"vehicle_size,omitempty"`
	ServiceType    string            `json:"service_type,omitempty"`
	Date           string            `json:"date,omitempty"`
	QuoteStatus    string            `json:"quote_status"`
	CalendarLocked bool              `json:"calendar_locked"`
	Quote          *quoteItem        `json:"quote,omitempty"`
	Availability   *availabilityItem `json:"availability,omitempty"`
}

// Sessions creates a session on POST and ends one on DELETE.
func (h *SessionHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.Create(w, r)
	case http.MethodDelete:
		h.Close(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *SessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if id == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}
	if _, err := h.registry.Get(id); err != nil {
		status, msg := statusFor(err)
		http.Error(w, msg, status)
		return
	}
	h.registry.Delete(id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sess, err := h.registry.Create()
	if err != nil {
		status, msg := statusFor(err)
		if status == http.StatusServiceUnavailable {
			h.logger.Warn("session limit reached", "sessions", h.registry.Len())
			w.Header().Set("Retry-After", "60")
		} else {
			h.logger.Error("create session failed", "err", err)
			msg = "failed to create session"
		}
		http.Error(w, msg, status)
		return
	}
	writeJSON(w, http.StatusCreated, createSessionResponse{SessionID: sess.ID})
}

func (h *SessionHandler) SetVehicle(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, func(req selectionRequest, s *selection.Scheduler) error {
		if req.VehicleSize == "" {
			return errMissingField("vehicle_size")
		}
		return s.SetVehicleSize(r.Context(), req.VehicleSize)
	})
}

func (h *SessionHandler) SetService(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, func(req selectionRequest, s *selection.Scheduler) error {
		if req.ServiceType == "" {
			return errMissingField("service_type")
		}
		return s.SetServiceType(r.Context(), req.ServiceType)
	})
}

// SetDate accepts an empty date to clear the selection.
func (h *SessionHandler) SetDate(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, func(req selectionRequest, s *selection.Scheduler) error {
		return s.SetDate(r.Context(), req.Date)
	})
}

func (h *SessionHandler) State(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if id == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}
	sess, err := h.registry.Get(id)
	if err != nil {
		status, msg := statusFor(err)
		http.Error(w, msg, status)
		return
	}
	writeJSON(w, http.StatusOK, stateResponse(sess))
}

type errMissingField string

func (e errMissingField) Error() string { return string(e) + " is required" }

func (h *SessionHandler) update(w http.ResponseWriter, r *http.Request, apply func(selectionRequest, *selection.Scheduler) error) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.SessionID = strings.TrimSpace(req.SessionID)
	req.VehicleSize = strings.TrimSpace(req.VehicleSize)
	req.ServiceType = strings.TrimSpace(req.ServiceType)
	req.Date = strings.TrimSpace(req.Date)
	if req.SessionID == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}

	sess, err := h.registry.Get(req.SessionID)
	if err != nil {
		status, msg := statusFor(err)
		http.Error(w, msg, status)
		return
	}

	if err := apply(req, sess.Scheduler); err != nil {
		var missing errMissingField
		if errors.As(err, &missing) {
			http.Error(w, missing.Error(), http.StatusBadRequest)
			return
		}
		status, msg := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("selection update failed", "err", err, "session_id", sess.ID)
		}
		http.Error(w, msg, status)
		return
	}
	writeJSON(w, http.StatusOK, stateResponse(sess))
}

func stateResponse(sess *sessions.Session) sessionStateResponse {
	snap := sess.Scheduler.Snapshot()
	resp := sessionStateResponse{
		SessionID:      sess.ID,
		State:          snap.State.String(),
		VehicleSize:    snap.Selection.VehicleSize,
		ServiceType:    snap.Selection.ServiceType,
		QuoteStatus:    string(snap.QuoteStatus),
		CalendarLocked: snap.CalendarLocked,
	}
	if !snap.Selection.Date.IsZero() {
		resp.Date = snap.Selection.Date.String()
	}
	if snap.HasQuote {
		resp.Quote = newQuoteItem(snap.Quote)
	}
	// Only show a render that still matches the current selection.
	if rendered, ok := sess.LastRendered(); ok && snap.State == selection.Ready &&
		rendered.Meta.Date == snap.Selection.Date &&
		rendered.Meta.EffectiveDurationMinutes == snap.Quote.EffectiveDurationMinutes {
		resp.Availability = newAvailabilityItem(rendered.Slots, rendered.Meta)
		resp.Availability.RenderedAt = rendered.RenderedAt.UTC().Format(time.RFC3339)
	}
	return resp
}
