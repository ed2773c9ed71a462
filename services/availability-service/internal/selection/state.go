package selection

import (
	"fmt"
	"strings"

	"github.com/md-rashed-zaman/detailbook/services/availability-service/internal/availability"
	"github.com/md-rashed-zaman/detailbook/services/availability-service/internal/quote"
)

// State is the externally visible phase of a booking selection.
type State int

const (
	// Empty: nothing selected.
	Empty State = iota
	// PartiallySelected: something is selected but no valid quote exists yet.
	PartiallySelected
	// Quoted: vehicle and service resolved to a quote, no date chosen.
	Quoted
	// Ready: quoted and a date is chosen; availability is computed.
	Ready
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case PartiallySelected:
		return "partially_selected"
	case Quoted:
		return "quoted"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type QuoteStatus string

const (
	QuoteIdle     QuoteStatus = "idle"
	QuotePending  QuoteStatus = "pending"
	QuoteResolved QuoteStatus = "resolved"
	QuoteFailed   QuoteStatus = "failed"
)

// Selection holds the raw user choices. Empty strings and the zero Date mean unset.
type Selection struct {
	VehicleSize string
	ServiceType string
	Date        availability.Date
}

func (s Selection) hasPair() bool {
	return s.VehicleSize != "" && s.ServiceType != ""
}

// FailureMode decides what a booking-fetch failure does to the rendered day.
type FailureMode int

const (
	// FailOpen treats the day as having no bookings. Risks double booking.
	FailOpen FailureMode = iota
	// FailClosed renders every slot of the day as blocked.
	FailClosed
)

func (m FailureMode) String() string {
	if m == FailClosed {
		return "closed"
	}
	return "open"
}

func ParseFailureMode(raw string) (FailureMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "open", "fail-open", "fail_open":
		return FailOpen, nil
	case "closed", "fail-closed", "fail_closed":
		return FailClosed, nil
	default:
		return FailOpen, fmt.Errorf("unknown booking fetch failure mode %q", raw)
	}
}

// Snapshot is a consistent copy of the machine's state.
type Snapshot struct {
	State          State
	Selection      Selection
	Quote          quote.Quote
	HasQuote       bool
	QuoteStatus    QuoteStatus
	CalendarLocked bool
	Generation     uint64
}

// machine is the mutable state owned by a Scheduler. All access is under Scheduler.mu.
type machine struct {
	sel         Selection
	quote       quote.Quote
	hasQuote    bool
	quoteStatus QuoteStatus
	// generation counts vehicle/service changes; a quote lookup result is only
	// applied while the generation it was issued under is still current.
	generation uint64
	// dateGeneration counts date changes for the same purpose on availability results.
	dateGeneration uint64
}

func (m *machine) state() State {
	quoted := m.hasQuote && m.quote.Valid()
	switch {
	case quoted && !m.sel.Date.IsZero():
		return Ready
	case quoted:
		return Quoted
	case m.sel.VehicleSize == "" && m.sel.ServiceType == "" && m.sel.Date.IsZero():
		return Empty
	default:
		return PartiallySelected
	}
}

// invalidate drops the derived quote and starts a new generation.
func (m *machine) invalidate() uint64 {
	m.quote = quote.Quote{}
	m.hasQuote = false
	m.generation++
	if m.sel.hasPair() {
		m.quoteStatus = QuotePending
	} else {
		m.quoteStatus = QuoteIdle
	}
	return m.generation
}

func (m *machine) unlocked() bool {
	return !m.sel.Date.IsZero() && m.hasQuote && m.quote.Valid()
}

func (m *machine) snapshot() Snapshot {
	return Snapshot{
		State:          m.state(),
		Selection:      m.sel,
		Quote:          m.quote,
		HasQuote:       m.hasQuote,
		QuoteStatus:    m.quoteStatus,
		CalendarLocked: !m.unlocked(),
		Generation:     m.generation,
	}
}
