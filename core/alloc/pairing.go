package alloc

import (
	"sort"
	"time"

	"github.com/kfloy/apron/core/model"
)

// occupation is one stand-occupation unit: either a single flight or an
// arrival paired with a same-tail departure sharing one window.
type occupation struct {
	flights []model.Flight
	window  model.Window
	// windowOK is false when no valid window could be derived.
	windowOK bool

	fixed        bool
	fixedStandID string
	// fixedConflict is set when paired flights mandate different stands.
	fixedConflict bool

	preferences  []string
	restrictions map[string]bool
	typeCode     string
	airlineCode  string
	turnaround   time.Duration
}

func (o *occupation) flightIDs() []string {
	ids := make([]string, len(o.flights))
	for i, f := range o.flights {
		ids[i] = f.ID
	}
	return ids
}

// timeBasis returns the instant defining the occupation boundary for f.
func timeBasis(f model.Flight, useEstimated bool) time.Time {
	if useEstimated && !f.EstimatedAt.IsZero() {
		return f.EstimatedAt
	}
	return f.ScheduledAt
}

// buildOccupations pairs arrivals with departures by registration and derives
// occupation windows. Flights without a registration are unpaired. An
// arrival pairs with the earliest later departure of the same registration.
func buildOccupations(flights []model.Flight, settings model.OperationalSettings) []*occupation {
	gap := settings.Gap()
	useEst := settings.UseEstimatedTimes

	// Departures grouped by registration, earliest first, consumed as
	// arrivals claim them.
	depByReg := make(map[string][]model.Flight)
	for _, f := range flights {
		if f.Nature == model.Departure && f.Registration != "" {
			depByReg[f.Registration] = append(depByReg[f.Registration], f)
		}
	}
	for reg := range depByReg {
		deps := depByReg[reg]
		sort.Slice(deps, func(i, j int) bool {
			ti, tj := timeBasis(deps[i], useEst), timeBasis(deps[j], useEst)
			if ti.Equal(tj) {
				return deps[i].ID < deps[j].ID
			}
			return ti.Before(tj)
		})
		depByReg[reg] = deps
	}

	paired := make(map[string]bool)
	var units []*occupation

	ordered := append([]model.Flight(nil), flights...)
	sort.Slice(ordered, func(i, j int) bool {
		ti, tj := timeBasis(ordered[i], useEst), timeBasis(ordered[j], useEst)
		if ti.Equal(tj) {
			return ordered[i].ID < ordered[j].ID
		}
		return ti.Before(tj)
	})

	for _, f := range ordered {
		if f.Nature != model.Arrival || f.Registration == "" {
			continue
		}
		arrAt := timeBasis(f, useEst)
		deps := depByReg[f.Registration]
		for _, dep := range deps {
			if paired[dep.ID] || !timeBasis(dep, useEst).After(arrAt) {
				continue
			}
			paired[f.ID] = true
			paired[dep.ID] = true
			units = append(units, newOccupation([]model.Flight{f, dep},
				model.Window{Start: arrAt, End: timeBasis(dep, useEst)}, gap))
			break
		}
	}

	for _, f := range ordered {
		if paired[f.ID] {
			continue
		}
		turn := time.Duration(f.TurnaroundMinutes) * time.Minute
		if turn < gap {
			turn = gap
		}
		at := timeBasis(f, useEst)
		var w model.Window
		if f.Nature == model.Arrival {
			w = model.Window{Start: at, End: at.Add(turn)}
		} else {
			w = model.Window{Start: at.Add(-turn), End: at}
		}
		units = append(units, newOccupation([]model.Flight{f}, w, gap))
	}
	return units
}

func newOccupation(flights []model.Flight, w model.Window, gap time.Duration) *occupation {
	o := &occupation{
		flights:      flights,
		window:       w,
		windowOK:     w.Valid(),
		restrictions: make(map[string]bool),
	}
	lead := flights[0]
	o.typeCode = lead.TypeCode
	o.airlineCode = lead.AirlineCode
	turn := time.Duration(lead.TurnaroundMinutes) * time.Minute
	if turn < gap {
		turn = gap
	}
	o.turnaround = turn

	seenPref := make(map[string]bool)
	for _, f := range flights {
		for _, p := range f.StandPreferences {
			if !seenPref[p] {
				seenPref[p] = true
				o.preferences = append(o.preferences, p)
			}
		}
		for _, r := range f.StandRestrictions {
			o.restrictions[r] = true
		}
		if f.HasFixedStand {
			standID := f.FixedStandID
			if standID == "" && len(f.StandPreferences) > 0 {
				standID = f.StandPreferences[0]
			}
			if o.fixed && standID != o.fixedStandID {
				o.fixedConflict = true
			}
			o.fixed = true
			if o.fixedStandID == "" {
				o.fixedStandID = standID
			}
		}
	}
	return o
}
