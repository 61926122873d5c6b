package alloc

// Reason is the closed set of placement failures.
type Reason int

const (
	NoEligibleStand Reason = iota
	AllEligibleOccupied
	AdjacencyConflict
	MaintenanceBlackout
	FixedStandConflict
	NoValidTimes
)

// String returns a stable identifier for the reason.
func (r Reason) String() string {
	switch r {
	case NoEligibleStand:
		return "no_eligible_stand"
	case AllEligibleOccupied:
		return "all_eligible_occupied"
	case AdjacencyConflict:
		return "adjacency_conflict"
	case MaintenanceBlackout:
		return "maintenance_blackout"
	case FixedStandConflict:
		return "fixed_stand_conflict"
	case NoValidTimes:
		return "no_valid_times"
	default:
		return "unknown"
	}
}

// maxDetailLen bounds the free-text detail carried with an unallocated entry.
const maxDetailLen = 250

// Unallocated records one flight the allocator could not place.
type Unallocated struct {
	FlightID string
	Reason   Reason
	Detail   string
}

func truncateDetail(s string) string {
	if len(s) <= maxDetailLen {
		return s
	}
	return s[:maxDetailLen]
}
