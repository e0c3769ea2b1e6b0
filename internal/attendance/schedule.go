package attendance

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusPresent Status = "Present"
	StatusLate    Status = "Late"
	StatusEarly   Status = "Early"
)

func ParseStatus(value string) (Status, error) {
	switch Status(value) {
	case StatusPresent, StatusLate, StatusEarly:
		return Status(value), nil
	default:
		return "", fmt.Errorf("unknown status %q", value)
	}
}

// ClockTime is a time of day in whole seconds since midnight.
type ClockTime int

func NewClockTime(hour, minute, second int) ClockTime {
	return ClockTime(hour*3600 + minute*60 + second)
}

// ParseClockTime reads "15:04:05" or "15:04".
func ParseClockTime(value string) (ClockTime, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return NewClockTime(parsed.Hour(), parsed.Minute(), parsed.Second()), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q", value)
}

// ClockOf truncates t to whole seconds of its wall clock.
func ClockOf(t time.Time) ClockTime {
	return NewClockTime(t.Hour(), t.Minute(), t.Second())
}

func (c ClockTime) String() string {
	s := int(c)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s%3600)/60, s%60)
}

type Schedule struct {
	WorkStart ClockTime
	LateAfter ClockTime
}

func DefaultSchedule() Schedule {
	return Schedule{
		WorkStart: NewClockTime(8, 0, 0),
		LateAfter: NewClockTime(9, 15, 0),
	}
}

func (s Schedule) Validate() error {
	if s.LateAfter < s.WorkStart {
		return fmt.Errorf("late threshold %s is before work start %s", s.LateAfter, s.WorkStart)
	}
	return nil
}

// Classify labels a check-in by its wall-clock time; callers convert t to the site location.
func (s Schedule) Classify(t time.Time) Status {
	clock := ClockOf(t)
	switch {
	case clock < s.WorkStart:
		return StatusEarly
	case clock <= s.LateAfter:
		return StatusPresent
	default:
		return StatusLate
	}
}
