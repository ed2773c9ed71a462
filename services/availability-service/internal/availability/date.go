package availability

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

var ErrInvalidDate = errors.New("invalid calendar date")

// Date is a calendar day without a time of day or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate accepts an ISO calendar date (YYYY-MM-DD).
func ParseDate(iso string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(iso))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, iso)
	}
	return DateOf(t), nil
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// At returns the instant d@hour:minute:00.000 in loc.
func (d Date) At(hour, minute int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(d.Year, d.Month, d.Day, hour, minute, 0, 0, loc)
}

// DayBounds returns the first and last millisecond of d in loc,
// matching the inclusive window used by the booking query.
func DayBounds(d Date, loc *time.Location) (time.Time, time.Time) {
	start := d.At(0, 0, loc)
	end := time.Date(d.Year, d.Month, d.Day, 23, 59, 59, int(999*time.Millisecond), start.Location())
	return start, end
}
