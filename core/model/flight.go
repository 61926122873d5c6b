package model

import (
	"fmt"
	"time"
)

// Nature distinguishes arrivals from departures.
type Nature int

const (
	Arrival Nature = iota
	Departure
)

// String returns a human-readable representation of the flight nature.
func (n Nature) String() string {
	switch n {
	case Arrival:
		return "arrival"
	case Departure:
		return "departure"
	default:
		return "unknown"
	}
}

// ValidationStatus tracks the outcome of row validation for a flight.
type ValidationStatus int

const (
	ValidationPending ValidationStatus = iota
	ValidationValid
	ValidationInvalid
)

// String returns a human-readable representation of the validation status.
func (s ValidationStatus) String() string {
	switch s {
	case ValidationPending:
		return "pending"
	case ValidationValid:
		return "valid"
	case ValidationInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// RawFlight is one ingested schedule row before validation. All fields are
// strings as delivered by the flight source; the validator parses and
// resolves them against the reference snapshot.
type RawFlight struct {
	FlightNumber string
	AirlineCode  string
	Nature       string
	ScheduledAt  string
	EstimatedAt  string
	OtherAirport string
	TypeCode     string
	Terminal     string
	SeatCapacity string
	Registration string
}

// Flight is a validated, canonical schedule entry.
type Flight struct {
	ID           string
	FlightNumber string
	AirlineCode  string
	Nature       Nature
	ScheduledAt  time.Time
	// EstimatedAt is zero when the source row carried no estimate.
	EstimatedAt  time.Time
	OtherAirport string
	TypeCode     string
	Terminal     string
	SeatCapacity int
	Registration string
	// StandPreferences lists stand ids in decreasing preference order.
	StandPreferences []string
	// StandRestrictions lists stand ids the flight must never use.
	StandRestrictions []string
	HasFixedStand     bool
	// FixedStandID holds the mandated stand when HasFixedStand is true.
	FixedStandID      string
	TurnaroundMinutes int
	Status            ValidationStatus
}

// Validate checks the invariants a Valid flight must satisfy.
func (f Flight) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("flight id is required")
	}
	if f.ScheduledAt.IsZero() {
		return fmt.Errorf("flight %s: scheduled time is required", f.ID)
	}
	if f.TurnaroundMinutes < 1 {
		return fmt.Errorf("flight %s: turnaround must be at least one minute", f.ID)
	}
	return nil
}

// Restricted reports whether the flight forbids the given stand.
func (f Flight) Restricted(standID string) bool {
	for _, id := range f.StandRestrictions {
		if id == standID {
			return true
		}
	}
	return false
}

// AllocationSource records whether an allocation was produced by the engine
// or entered by an operator.
type AllocationSource int

const (
	SourceAutomated AllocationSource = iota
	SourceManual
)

// String returns a human-readable representation of the source.
func (s AllocationSource) String() string {
	switch s {
	case SourceAutomated:
		return "automated"
	case SourceManual:
		return "manual"
	default:
		return "unknown"
	}
}

// AllocationStatus tracks the confidence of an allocation.
type AllocationStatus int

const (
	StatusAllocated AllocationStatus = iota
	StatusTentative
)

// String returns a human-readable representation of the allocation status.
func (s AllocationStatus) String() string {
	switch s {
	case StatusAllocated:
		return "allocated"
	case StatusTentative:
		return "tentative"
	default:
		return "unknown"
	}
}

// StandAllocation binds one flight to one stand for an occupation window.
type StandAllocation struct {
	FlightID string
	StandID  string
	Occupies Window
	Source   AllocationSource
	Status   AllocationStatus
}

// Validate checks the allocation invariants that hold in isolation.
func (a StandAllocation) Validate() error {
	if a.FlightID == "" || a.StandID == "" {
		return fmt.Errorf("allocation must name a flight and a stand")
	}
	if !a.Occupies.Valid() {
		return fmt.Errorf("allocation %s@%s: occupation start must precede end", a.FlightID, a.StandID)
	}
	return nil
}
