// Package registry provides read-only lookup over one reference snapshot:
// airlines, airports, aircraft types, stands, turnaround and adjacency rules.
package registry

import (
	"errors"
	"fmt"
	"sort"

	"github.com/kfloy/apron/core/model"
)

// ErrNotFound is returned when a lookup misses.
var ErrNotFound = errors.New("not found")

// Registry answers reference lookups against an immutable snapshot.
type Registry struct {
	snapshot *model.Snapshot

	types      map[string]model.AircraftType
	stands     map[string]model.Stand
	turnaround map[string]int
	airlines   map[string]bool
	airports   map[string]bool

	// adjacency rules indexed both ways: byPrimary drives trigger lookups,
	// byAffected drives restriction composition.
	byPrimary  map[string][]model.AdjacencyRule
	byAffected map[string][]model.AdjacencyRule

	activeStands []model.Stand
}

// New builds a Registry over the snapshot. The snapshot must already have
// passed Validate; New does not copy it and callers must not mutate it.
func New(snap *model.Snapshot) (*Registry, error) {
	if snap == nil {
		return nil, fmt.Errorf("registry: snapshot is nil")
	}
	r := &Registry{
		snapshot:   snap,
		types:      make(map[string]model.AircraftType, len(snap.AircraftTypes)),
		stands:     make(map[string]model.Stand, len(snap.Stands)),
		turnaround: make(map[string]int, len(snap.TurnaroundRules)),
		airlines:   make(map[string]bool, len(snap.Airlines)),
		airports:   make(map[string]bool, len(snap.Airports)),
		byPrimary:  make(map[string][]model.AdjacencyRule),
		byAffected: make(map[string][]model.AdjacencyRule),
	}
	for _, t := range snap.AircraftTypes {
		r.types[t.TypeCode] = t
	}
	for _, st := range snap.Stands {
		r.stands[st.ID] = st
		if st.IsActive {
			r.activeStands = append(r.activeStands, st)
		}
	}
	sort.Slice(r.activeStands, func(i, j int) bool {
		return r.activeStands[i].ID < r.activeStands[j].ID
	})
	for _, rule := range snap.AdjacencyRules {
		r.byPrimary[rule.PrimaryStandID] = append(r.byPrimary[rule.PrimaryStandID], rule)
		r.byAffected[rule.AffectedStandID] = append(r.byAffected[rule.AffectedStandID], rule)
	}
	for _, tr := range snap.TurnaroundRules {
		r.turnaround[tr.TypeCode] = tr.MinTurnaroundMinutes
	}
	for _, a := range snap.Airlines {
		r.airlines[a] = true
	}
	for _, a := range snap.Airports {
		r.airports[a] = true
	}
	return r, nil
}

// Snapshot returns the underlying snapshot.
func (r *Registry) Snapshot() *model.Snapshot { return r.snapshot }

// Settings returns the operational settings embedded in the snapshot.
func (r *Registry) Settings() model.OperationalSettings { return r.snapshot.Settings }

// AircraftType looks up one aircraft type by code.
func (r *Registry) AircraftType(code string) (model.AircraftType, error) {
	t, ok := r.types[code]
	if !ok {
		return model.AircraftType{}, fmt.Errorf("aircraft type %s: %w", code, ErrNotFound)
	}
	return t, nil
}

// Stand looks up one stand by id.
func (r *Registry) Stand(id string) (model.Stand, error) {
	s, ok := r.stands[id]
	if !ok {
		return model.Stand{}, fmt.Errorf("stand %s: %w", id, ErrNotFound)
	}
	return s, nil
}

// ActiveStands returns all active stands ordered by id. Callers must not
// mutate the returned slice.
func (r *Registry) ActiveStands() []model.Stand { return r.activeStands }

// KnownAirline reports whether the airline code resolves.
func (r *Registry) KnownAirline(code string) bool { return r.airlines[code] }

// KnownAirport reports whether the airport code resolves.
func (r *Registry) KnownAirport(code string) bool { return r.airports[code] }

// Turnaround returns the effective minimum turnaround in minutes for the
// type, falling back to the type's default when no rule overrides it.
func (r *Registry) Turnaround(typeCode string) (int, error) {
	if m, ok := r.turnaround[typeCode]; ok {
		return m, nil
	}
	t, err := r.AircraftType(typeCode)
	if err != nil {
		return 0, err
	}
	return t.DefaultTurnaroundMinutes, nil
}

// AdjacencyRulesFor returns the rules whose primary stand is standID.
func (r *Registry) AdjacencyRulesFor(standID string) []model.AdjacencyRule {
	return r.byPrimary[standID]
}

// AdjacencyRulesAffecting returns the rules whose affected stand is standID.
func (r *Registry) AdjacencyRulesAffecting(standID string) []model.AdjacencyRule {
	return r.byAffected[standID]
}

// EligibleStandsFor returns the active stands able to accept the type,
// ordered by id. The compatibility overlay is applied before the size
// category, per Stand.Accepts.
func (r *Registry) EligibleStandsFor(typeCode string) ([]model.Stand, error) {
	t, err := r.AircraftType(typeCode)
	if err != nil {
		return nil, err
	}
	var out []model.Stand
	for _, s := range r.activeStands {
		if s.Accepts(t) {
			out = append(out, s)
		}
	}
	return out, nil
}

// BestAirlineRank returns the best (lowest) priority rank the airline holds
// across all active stands, or -1 when no stand lists it.
func (r *Registry) BestAirlineRank(airlineCode string) int {
	best := -1
	for _, s := range r.activeStands {
		if rank := s.AirlineRank(airlineCode); rank >= 0 && (best < 0 || rank < best) {
			best = rank
		}
	}
	return best
}
