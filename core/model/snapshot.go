package model

import "fmt"

// Snapshot is one immutable version of the reference data. A scheduling run
// loads a snapshot once and never observes later edits.
type Snapshot struct {
	Version         int64
	Airlines        []string
	Airports        []string
	AircraftTypes   []AircraftType
	Stands          []Stand
	AdjacencyRules  []AdjacencyRule
	TurnaroundRules []TurnaroundRule
	TimeSlots       []TimeSlot
	Settings        OperationalSettings
}

// Validate checks every embedded entity and cross-entity references.
func (s *Snapshot) Validate() error {
	if s == nil {
		return fmt.Errorf("snapshot is nil")
	}
	types := make(map[string]bool, len(s.AircraftTypes))
	for _, t := range s.AircraftTypes {
		if err := t.Validate(); err != nil {
			return err
		}
		if types[t.TypeCode] {
			return fmt.Errorf("duplicate aircraft type %s", t.TypeCode)
		}
		types[t.TypeCode] = true
	}
	stands := make(map[string]bool, len(s.Stands))
	names := make(map[string]bool, len(s.Stands))
	for _, st := range s.Stands {
		if err := st.Validate(); err != nil {
			return err
		}
		if stands[st.ID] {
			return fmt.Errorf("duplicate stand %s", st.ID)
		}
		if names[st.Name] {
			return fmt.Errorf("duplicate stand name %s", st.Name)
		}
		stands[st.ID] = true
		names[st.Name] = true
	}
	for _, r := range s.AdjacencyRules {
		if err := r.Validate(); err != nil {
			return err
		}
		if !stands[r.PrimaryStandID] {
			return fmt.Errorf("adjacency rule references unknown primary stand %s", r.PrimaryStandID)
		}
		if !stands[r.AffectedStandID] {
			return fmt.Errorf("adjacency rule references unknown affected stand %s", r.AffectedStandID)
		}
	}
	seen := make(map[string]bool, len(s.TurnaroundRules))
	for _, r := range s.TurnaroundRules {
		if err := r.Validate(); err != nil {
			return err
		}
		if seen[r.TypeCode] {
			return fmt.Errorf("duplicate turnaround rule for type %s", r.TypeCode)
		}
		seen[r.TypeCode] = true
	}
	for _, slot := range s.TimeSlots {
		if err := slot.Validate(); err != nil {
			return err
		}
	}
	return s.Settings.Validate()
}
