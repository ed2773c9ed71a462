package availability

import (
	"errors"
	"testing"
	"time"
)

var testDay = Date{Year: 2026, Month: time.March, Day: 14}

func at(h, m int) time.Time {
	return testDay.At(h, m, time.UTC)
}

func TestOverlaps(t *testing.T) {
	cases := []struct {
		name       string
		a, b       Interval
		overlapped bool
	}{
		{"disjoint", Interval{at(8, 0), at(9, 0)}, Interval{at(10, 0), at(11, 0)}, false},
		{"touching end to start", Interval{at(8, 0), at(9, 0)}, Interval{at(9, 0), at(10, 0)}, false},
		{"partial", Interval{at(8, 30), at(9, 30)}, Interval{at(9, 0), at(10, 0)}, true},
		{"contained", Interval{at(9, 15), at(9, 45)}, Interval{at(9, 0), at(10, 0)}, true},
		{"identical", Interval{at(9, 0), at(10, 0)}, Interval{at(9, 0), at(10, 0)}, true},
		{"one minute overlap", Interval{at(8, 0), at(9, 1)}, Interval{at(9, 0), at(10, 0)}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.a.Overlaps(tc.b); got != tc.overlapped {
				t.Fatalf("a.Overlaps(b) = %v, want %v", got, tc.overlapped)
			}
			if got := tc.b.Overlaps(tc.a); got != tc.overlapped {
				t.Fatalf("overlap not symmetric: b.Overlaps(a) = %v", got)
			}
			if got := Overlaps(tc.a.Start, tc.a.End, tc.b.Start, tc.b.End); got != tc.overlapped {
				t.Fatalf("Overlaps() = %v, want %v", got, tc.overlapped)
			}
		})
	}
}

func TestGenerateSlots_BusinessDay(t *testing.T) {
	slots := GenerateSlots(testDay, BusinessHours{StartHour: 8, EndHour: 18}, 30, time.UTC)
	if len(slots) != 20 {
		t.Fatalf("expected 20 slots, got %d", len(slots))
	}
	if !slots[0].Equal(at(8, 0)) {
		t.Fatalf("expected first slot 08:00, got %s", slots[0].Format(time.RFC3339))
	}
	if !slots[len(slots)-1].Equal(at(17, 30)) {
		t.Fatalf("expected last slot 17:30, got %s", slots[len(slots)-1].Format(time.RFC3339))
	}
	for i, s := range slots {
		if DateOf(s) != testDay {
			t.Fatalf("slot %d on %s, want %s", i, DateOf(s), testDay)
		}
		if s.Second() != 0 || s.Nanosecond() != 0 {
			t.Fatalf("slot %d not on a whole minute: %s", i, s)
		}
		if i > 0 && !s.After(slots[i-1]) {
			t.Fatalf("slots not strictly increasing at %d", i)
		}
	}
}

func TestGenerateSlots_UnevenIntervalKeepsPerHourOffsets(t *testing.T) {
	slots := GenerateSlots(testDay, BusinessHours{StartHour: 9, EndHour: 11}, 25, time.UTC)
	want := []time.Time{at(9, 0), at(9, 25), at(9, 50), at(10, 0), at(10, 25), at(10, 50)}
	if len(slots) != len(want) {
		t.Fatalf("expected %d slots, got %d", len(want), len(slots))
	}
	for i := range want {
		if !slots[i].Equal(want[i]) {
			t.Fatalf("slot %d = %s, want %s", i, slots[i].Format("15:04"), want[i].Format("15:04"))
		}
	}
}

func TestGenerateSlots_Degenerate(t *testing.T) {
	if got := GenerateSlots(testDay, BusinessHours{StartHour: 8, EndHour: 18}, 0, time.UTC); got != nil {
		t.Fatalf("expected nil for zero interval, got %d slots", len(got))
	}
	if got := GenerateSlots(testDay, BusinessHours{StartHour: 18, EndHour: 8}, 30, time.UTC); got != nil {
		t.Fatalf("expected nil for inverted hours, got %d slots", len(got))
	}
}

func TestComputeAvailability_BookingBlocksOverlappingStarts(t *testing.T) {
	engine, err := NewEngine(BusinessHours{StartHour: 8, EndHour: 18}, 30, time.UTC)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	bookings := []Booking{{ScheduledStart: at(9, 0), ScheduledEnd: at(10, 0)}}

	slots := engine.Compute(testDay, 60, bookings)
	if len(slots) != 20 {
		t.Fatalf("expected 20 slots, got %d", len(slots))
	}
	byTime := map[string]bool{}
	for _, s := range slots {
		byTime[s.Start.Format("15:04")] = s.Available
	}
	expect := map[string]bool{
		"08:00": true,  // 08:00-09:00 touches the booking
		"08:30": false, // 08:30-09:30 overlaps
		"09:00": false,
		"09:30": false,
		"10:00": true,
		"17:30": true,
	}
	for hhmm, want := range expect {
		if got := byTime[hhmm]; got != want {
			t.Fatalf("slot %s available=%v, want %v", hhmm, got, want)
		}
	}
	for i := 1; i < len(slots); i++ {
		if !slots[i].Start.After(slots[i-1].Start) {
			t.Fatalf("output not chronological at %d", i)
		}
	}
}

func TestComputeAvailability_NoBookings(t *testing.T) {
	starts := []time.Time{at(8, 0), at(8, 30)}
	for _, s := range ComputeAvailability(starts, 90, nil) {
		if !s.Available {
			t.Fatalf("expected %s available", s.Start)
		}
	}
}

func TestEngineBlockedAndBounds(t *testing.T) {
	engine, err := NewEngine(BusinessHours{StartHour: 8, EndHour: 10}, 30, time.UTC)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	blocked := engine.Blocked(testDay)
	if len(blocked) != 4 {
		t.Fatalf("expected 4 slots, got %d", len(blocked))
	}
	for _, s := range blocked {
		if s.Available {
			t.Fatalf("expected every slot blocked")
		}
	}

	start, end := engine.DayBounds(testDay)
	if !start.Equal(at(0, 0)) {
		t.Fatalf("unexpected day start %s", start)
	}
	wantEnd := time.Date(2026, time.March, 14, 23, 59, 59, int(999*time.Millisecond), time.UTC)
	if !end.Equal(wantEnd) {
		t.Fatalf("unexpected day end %s", end)
	}
}

func TestNewEngineValidation(t *testing.T) {
	if _, err := NewEngine(BusinessHours{StartHour: 8, EndHour: 25}, 30, nil); err == nil {
		t.Fatalf("expected hours error")
	}
	if _, err := NewEngine(BusinessHours{StartHour: 8, EndHour: 18}, 0, nil); err == nil {
		t.Fatalf("expected interval error")
	}
	e, err := NewEngine(BusinessHours{StartHour: 8, EndHour: 18}, 15, nil)
	if err != nil || e.Location() != time.Local {
		t.Fatalf("expected local clock default, err=%v", err)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate(" 2026-03-14 ")
	if err != nil || d != testDay {
		t.Fatalf("ParseDate = %v, %v", d, err)
	}
	if d.String() != "2026-03-14" {
		t.Fatalf("unexpected String %q", d.String())
	}
	for _, bad := range []string{"", "2026-02-30", "14/03/2026", "2026-03-14T10:00:00Z"} {
		if _, err := ParseDate(bad); !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("ParseDate(%q) expected ErrInvalidDate, got %v", bad, err)
		}
	}
}
