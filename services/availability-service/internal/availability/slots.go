package availability

import (
	"fmt"
	"time"
)

// BusinessHours is the [StartHour, EndHour) range in which slots may start.
type BusinessHours struct {
	StartHour int
	EndHour   int
}

func (h BusinessHours) Validate() error {
	if h.StartHour < 0 || h.EndHour > 24 || h.StartHour >= h.EndHour {
		return fmt.Errorf("business hours must satisfy 0 <= start < end <= 24 (got %d-%d)", h.StartHour, h.EndHour)
	}
	return nil
}

// GenerateSlots returns the candidate start instants of a business day: every
// intervalMinutes offset within each hour of [hours.StartHour, hours.EndHour).
//
// Offsets restart at :00 every hour. When intervalMinutes does not divide 60 the
// trailing offsets of each hour are simply those that fall before :60; they are
// not rounded or carried into the next hour.
func GenerateSlots(date Date, hours BusinessHours, intervalMinutes int, loc *time.Location) []time.Time {
	if intervalMinutes <= 0 || hours.StartHour >= hours.EndHour {
		return nil
	}
	perHour := (59 / intervalMinutes) + 1
	slots := make([]time.Time, 0, (hours.EndHour-hours.StartHour)*perHour)
	for h := hours.StartHour; h < hours.EndHour; h++ {
		for m := 0; m < 60; m += intervalMinutes {
			slots = append(slots, date.At(h, m, loc))
		}
	}
	return slots
}
