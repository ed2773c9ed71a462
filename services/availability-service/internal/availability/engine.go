package availability

import (
	"fmt"
	"time"
)

// Booking is a confirmed appointment occupying the calendar.
type Booking struct {
	ScheduledStart time.Time
	ScheduledEnd   time.Time
}

type Slot struct {
	Start     time.Time
	Available bool
}

// ComputeAvailability marks each start as available iff
// [start, start+effectiveDurationMinutes) overlaps none of the bookings.
// Output order matches starts.
//
// The scan is O(len(starts) * len(bookings)). A day holds tens of each; a sorted
// sweep would be the next step if booking volume grows.
func ComputeAvailability(starts []time.Time, effectiveDurationMinutes int, bookings []Booking) []Slot {
	d := time.Duration(effectiveDurationMinutes) * time.Minute
	out := make([]Slot, 0, len(starts))
	for _, start := range starts {
		out = append(out, Slot{Start: start, Available: !conflicts(start, start.Add(d), bookings)})
	}
	return out
}

func conflicts(start, end time.Time, bookings []Booking) bool {
	for _, b := range bookings {
		if Overlaps(start, end, b.ScheduledStart, b.ScheduledEnd) {
			return true
		}
	}
	return false
}

// Engine binds the immutable day layout (hours, grid, clock) so callers only
// supply the per-request inputs.
type Engine struct {
	hours    BusinessHours
	interval int
	loc      *time.Location
}

func NewEngine(hours BusinessHours, intervalMinutes int, loc *time.Location) (*Engine, error) {
	if err := hours.Validate(); err != nil {
		return nil, err
	}
	if intervalMinutes <= 0 || intervalMinutes > 60 {
		return nil, fmt.Errorf("slot interval must be in [1,60] minutes (got %d)", intervalMinutes)
	}
	if loc == nil {
		loc = time.Local
	}
	return &Engine{hours: hours, interval: intervalMinutes, loc: loc}, nil
}

func (e *Engine) Location() *time.Location { return e.loc }

func (e *Engine) Slots(date Date) []time.Time {
	return GenerateSlots(date, e.hours, e.interval, e.loc)
}

// Compute is ComputeAvailability over the day's generated grid.
func (e *Engine) Compute(date Date, effectiveDurationMinutes int, bookings []Booking) []Slot {
	return ComputeAvailability(e.Slots(date), effectiveDurationMinutes, bookings)
}

// Blocked returns the day's grid with every slot unavailable.
func (e *Engine) Blocked(date Date) []Slot {
	starts := e.Slots(date)
	out := make([]Slot, 0, len(starts))
	for _, s := range starts {
		out = append(out, Slot{Start: s})
	}
	return out
}

// DayBounds is the booking query window for date on the engine's clock.
func (e *Engine) DayBounds(date Date) (time.Time, time.Time) {
	return DayBounds(date, e.loc)
}
