package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseClock converts an "HH:MM" 24-hour clock string into minutes after
// midnight.
func ParseClock(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	return h*60 + m, nil
}

// ClockWindowOn materialises clock-minute bounds on the given day in the
// day's location.
func ClockWindowOn(day time.Time, startMin, endMin int) Window {
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return Window{
		Start: midnight.Add(time.Duration(startMin) * time.Minute),
		End:   midnight.Add(time.Duration(endMin) * time.Minute),
	}
}

// OperationalSettings carries the knobs recognised by the engine. Each field
// has a single effect, documented on the field.
type OperationalSettings struct {
	// GapBetweenFlightsMinutes is the minimum buffer between two consecutive
	// occupations of one stand.
	GapBetweenFlightsMinutes int `json:"gap_between_flights_minutes"`
	// SlotDurationMinutes is the slot length used by the capacity calculator.
	SlotDurationMinutes int `json:"slot_duration_minutes"`
	// OperatingDayStart clamps utilisation and idle detection ("HH:MM").
	OperatingDayStart string `json:"operating_day_start"`
	// OperatingDayEnd clamps utilisation and idle detection ("HH:MM").
	OperatingDayEnd string `json:"operating_day_end"`
	// MaxEligibleStandsPerFlight bounds candidate enumeration; 0 is unbounded.
	MaxEligibleStandsPerFlight int `json:"max_eligible_stands_per_flight"`
	// WorkerCount bounds parallelism in validation, capacity and utilisation.
	WorkerCount int `json:"worker_count"`
	// AllocationDeadlineSeconds aborts a run that exceeds it; 0 disables.
	AllocationDeadlineSeconds int `json:"allocation_deadline_seconds"`
	// UseEstimatedTimes derives occupation windows from estimated rather than
	// scheduled times when an estimate is present.
	UseEstimatedTimes bool `json:"use_estimated_times"`
}

// SetDefaults applies sane defaults.
func (s *OperationalSettings) SetDefaults() {
	if s.GapBetweenFlightsMinutes < 0 {
		s.GapBetweenFlightsMinutes = 0
	}
	if s.SlotDurationMinutes == 0 {
		s.SlotDurationMinutes = 60
	}
	if s.OperatingDayStart == "" {
		s.OperatingDayStart = "06:00"
	}
	if s.OperatingDayEnd == "" {
		s.OperatingDayEnd = "23:00"
	}
	if s.WorkerCount == 0 {
		s.WorkerCount = 4
	}
}

// Validate checks the settings invariants.
func (s OperationalSettings) Validate() error {
	if s.GapBetweenFlightsMinutes < 0 {
		return fmt.Errorf("gap between flights must not be negative")
	}
	if s.SlotDurationMinutes < 1 {
		return fmt.Errorf("slot duration must be at least one minute")
	}
	start, err := ParseClock(s.OperatingDayStart)
	if err != nil {
		return fmt.Errorf("operating day start: %w", err)
	}
	end, err := ParseClock(s.OperatingDayEnd)
	if err != nil {
		return fmt.Errorf("operating day end: %w", err)
	}
	if end <= start {
		return fmt.Errorf("operating day end must be after start")
	}
	if s.MaxEligibleStandsPerFlight < 0 {
		return fmt.Errorf("max eligible stands must not be negative")
	}
	if s.WorkerCount < 0 {
		return fmt.Errorf("worker count must not be negative")
	}
	return nil
}

// Gap returns the inter-occupation buffer as a duration.
func (s OperationalSettings) Gap() time.Duration {
	return time.Duration(s.GapBetweenFlightsMinutes) * time.Minute
}

// OperatingWindowOn returns the operating-day window on the given day.
// Validate must have passed.
func (s OperationalSettings) OperatingWindowOn(day time.Time) Window {
	start, _ := ParseClock(s.OperatingDayStart)
	end, _ := ParseClock(s.OperatingDayEnd)
	return ClockWindowOn(day, start, end)
}

// AllocationDeadline returns the configured run deadline, zero when disabled.
func (s OperationalSettings) AllocationDeadline() time.Duration {
	return time.Duration(s.AllocationDeadlineSeconds) * time.Second
}

// TimeSlot is one reporting slot for the capacity calculator. Slots may
// overlap; reports enumerate them explicitly.
type TimeSlot struct {
	ID         string
	Name       string
	StartClock string
	EndClock   string
	IsActive   bool
}

// Validate checks the slot definition.
func (t TimeSlot) Validate() error {
	start, err := ParseClock(t.StartClock)
	if err != nil {
		return fmt.Errorf("slot %s start: %w", t.ID, err)
	}
	end, err := ParseClock(t.EndClock)
	if err != nil {
		return fmt.Errorf("slot %s end: %w", t.ID, err)
	}
	if end <= start {
		return fmt.Errorf("slot %s: end must be after start", t.ID)
	}
	return nil
}

// WindowOn materialises the slot on the given day. Validate must have passed.
func (t TimeSlot) WindowOn(day time.Time) Window {
	start, _ := ParseClock(t.StartClock)
	end, _ := ParseClock(t.EndClock)
	return ClockWindowOn(day, start, end)
}
