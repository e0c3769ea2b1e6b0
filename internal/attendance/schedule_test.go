package attendance

import (
	"testing"
	"time"
)

func TestClassifyBoundaries(t *testing.T) {
	schedule := DefaultSchedule()
	day := func(h, m, s, ns int) time.Time {
		return time.Date(2026, 3, 2, h, m, s, ns, time.UTC)
	}
	cases := map[time.Time]Status{
		day(0, 0, 0, 0):           StatusEarly,
		day(7, 59, 59, 0):         StatusEarly,
		day(7, 59, 59, 999999999): StatusEarly,
		day(8, 0, 0, 0):           StatusPresent,
		day(8, 30, 0, 0):          StatusPresent,
		day(9, 15, 0, 0):          StatusPresent,
		day(9, 15, 0, 500000000):  StatusPresent,
		day(9, 15, 1, 0):          StatusLate,
		day(23, 59, 59, 0):        StatusLate,
	}
	for at, expected := range cases {
		if got := schedule.Classify(at); got != expected {
			t.Fatalf("at %s expected %s, got %s", at.Format("15:04:05.000"), expected, got)
		}
	}
}

func TestClassifyUsesWallClockOfLocation(t *testing.T) {
	loc := time.FixedZone("EAT", 3*3600)
	at := time.Date(2026, 3, 2, 5, 30, 0, 0, time.UTC) // 08:30 EAT
	if got := DefaultSchedule().Classify(at.In(loc)); got != StatusPresent {
		t.Fatalf("expected Present in EAT, got %s", got)
	}
	if got := DefaultSchedule().Classify(at); got != StatusEarly {
		t.Fatalf("expected Early in UTC, got %s", got)
	}
}

func TestParseClockTime(t *testing.T) {
	cases := map[string]ClockTime{
		"08:00:00": NewClockTime(8, 0, 0),
		"09:15":    NewClockTime(9, 15, 0),
		"23:59:59": NewClockTime(23, 59, 59),
	}
	for input, expected := range cases {
		got, err := ParseClockTime(input)
		if err != nil {
			t.Fatalf("parse %s: %v", input, err)
		}
		if got != expected {
			t.Fatalf("parse %s: expected %s, got %s", input, expected, got)
		}
	}
	for _, input := range []string{"", "25:00:00", "8am", "08:60:00"} {
		if _, err := ParseClockTime(input); err == nil {
			t.Fatalf("expected %q to be rejected", input)
		}
	}
}

func TestScheduleValidate(t *testing.T) {
	bad := Schedule{WorkStart: NewClockTime(10, 0, 0), LateAfter: NewClockTime(9, 0, 0)}
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected inverted schedule to be rejected")
	}
	if err := DefaultSchedule().Validate(); err != nil {
		t.Fatalf("default schedule invalid: %v", err)
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"Present", "Late", "Early"} {
		if _, err := ParseStatus(s); err != nil {
			t.Fatalf("expected %s to be valid", s)
		}
	}
	if _, err := ParseStatus("present"); err == nil {
		t.Fatalf("expected lowercase status to be rejected")
	}
}
