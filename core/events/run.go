package events

import (
	"time"

	"github.com/kfloy/apron/core/alloc"
)

// RunStartedEvent is published when a scheduling run begins.
type RunStartedEvent struct {
	RunID      string
	ScheduleID string
	Flights    int
	At         time.Time
}

// PhaseEvent is published when the coordinator finishes one phase.
type PhaseEvent struct {
	RunID string
	Phase string
	Units int
	Err   error
	At    time.Time
}

// PlacementEvent is published for every allocation decision.
type PlacementEvent struct {
	RunID    string
	FlightID string
	StandID  string
	Placed   bool
	Reason   alloc.Reason
}

// RunFinishedEvent is published when a run reaches a terminal state.
type RunFinishedEvent struct {
	RunID       string
	ScheduleID  string
	State       string
	Allocated   int
	Unallocated int
	Err         error
	At          time.Time
}
