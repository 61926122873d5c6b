package model

import "fmt"

// Stand represents a parking position able to service one aircraft at a time.
type Stand struct {
	ID              string
	Name            string
	Terminal        string
	Pier            string
	MaxSizeCategory SizeCategory
	// CompatibleTypeCodes, when non-empty, supersedes MaxSizeCategory as the
	// eligibility rule for this stand.
	CompatibleTypeCodes []string
	// AirlinePriorities lists airline codes in decreasing priority order.
	AirlinePriorities []string
	IsActive          bool
	FuelEnabled       bool
}

// Validate checks that the stand definition is sound.
func (s Stand) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("stand id is required")
	}
	if s.Name == "" {
		return fmt.Errorf("stand %s: name is required", s.ID)
	}
	return nil
}

// Accepts reports whether the given aircraft type may use this stand,
// ignoring adjacency and occupancy. The explicit compatibility overlay wins
// over the size category when present.
func (s Stand) Accepts(t AircraftType) bool {
	if len(s.CompatibleTypeCodes) > 0 {
		for _, code := range s.CompatibleTypeCodes {
			if code == t.TypeCode {
				return true
			}
		}
		return false
	}
	return t.SizeCategory <= s.MaxSizeCategory
}

// AirlineRank returns the position of the airline in the stand's priority
// list, or -1 when the airline is not listed.
func (s Stand) AirlineRank(airlineCode string) int {
	for i, code := range s.AirlinePriorities {
		if code == airlineCode {
			return i
		}
	}
	return -1
}

// RestrictionKind enumerates the outcomes an adjacency rule can impose on the
// affected stand.
type RestrictionKind int

const (
	// NoUseAffected forbids any use of the affected stand.
	NoUseAffected RestrictionKind = iota
	// MaxSizeReduced caps the affected stand at TargetSize.
	MaxSizeReduced
	// TypeProhibited forbids a single aircraft type on the affected stand.
	TypeProhibited
)

// String returns a human-readable representation of the restriction kind.
func (k RestrictionKind) String() string {
	switch k {
	case NoUseAffected:
		return "no_use_affected"
	case MaxSizeReduced:
		return "max_size_reduced"
	case TypeProhibited:
		return "type_prohibited"
	default:
		return "unknown"
	}
}

// AdjacencyRule is a directional constraint: while an aircraft whose type is
// in TriggerTypeCodes occupies PrimaryStandID, the restriction applies to
// AffectedStandID. Multiple rules naming the same affected stand compose by
// taking the most restrictive outcome.
type AdjacencyRule struct {
	PrimaryStandID   string
	TriggerTypeCodes []string
	AffectedStandID  string
	Restriction      RestrictionKind
	// TargetSize applies when Restriction is MaxSizeReduced.
	TargetSize SizeCategory
	// ProhibitedTypeCode applies when Restriction is TypeProhibited.
	ProhibitedTypeCode string
}

// Triggers reports whether the rule is activated by the given type code.
func (r AdjacencyRule) Triggers(typeCode string) bool {
	for _, c := range r.TriggerTypeCodes {
		if c == typeCode {
			return true
		}
	}
	return false
}

// Validate checks that the rule definition is sound.
func (r AdjacencyRule) Validate() error {
	if r.PrimaryStandID == "" || r.AffectedStandID == "" {
		return fmt.Errorf("adjacency rule must name primary and affected stands")
	}
	if len(r.TriggerTypeCodes) == 0 {
		return fmt.Errorf("adjacency rule %s->%s: at least one trigger type is required", r.PrimaryStandID, r.AffectedStandID)
	}
	if r.Restriction == TypeProhibited && r.ProhibitedTypeCode == "" {
		return fmt.Errorf("adjacency rule %s->%s: prohibited type code is required", r.PrimaryStandID, r.AffectedStandID)
	}
	return nil
}

// TurnaroundRule overrides the default minimum dwell for one aircraft type.
type TurnaroundRule struct {
	TypeCode             string
	MinTurnaroundMinutes int
}

// Validate checks that the rule definition is sound.
func (r TurnaroundRule) Validate() error {
	if r.TypeCode == "" {
		return fmt.Errorf("turnaround rule: type code is required")
	}
	if r.MinTurnaroundMinutes < 1 {
		return fmt.Errorf("turnaround rule %s: minimum turnaround must be at least one minute", r.TypeCode)
	}
	return nil
}
