// Package maintenance keeps per-stand unavailability intervals derived from
// maintenance requests and answers window and daily-impact queries.
package maintenance

import (
	"sort"
	"time"

	"github.com/kfloy/apron/core/model"
)

// Severity grades an unavailability interval.
type Severity int

const (
	// Potential marks windows from requests that are merely requested.
	Potential Severity = iota
	// Definite marks windows from approved or in-progress requests.
	Definite
)

// String returns a human-readable representation of the severity.
func (s Severity) String() string {
	if s == Definite {
		return "definite"
	}
	return "potential"
}

// Interval is one unavailability window on a stand.
type Interval struct {
	Window   model.Window
	Severity Severity
}

// Overlay holds, per stand, an ordered disjoint sequence of unavailability
// intervals. Definite intervals take precedence where they overlap potential
// ones. An Overlay is immutable once built.
type Overlay struct {
	byStand map[string][]Interval
}

// NewOverlay derives the overlay from maintenance requests. Requests with no
// capacity impact (rejected, completed, cancelled) and zero-length windows
// are ignored.
func NewOverlay(requests []model.MaintenanceRequest) *Overlay {
	definite := make(map[string][]model.Window)
	potential := make(map[string][]model.Window)
	for _, req := range requests {
		if !req.Window.Valid() {
			continue
		}
		switch {
		case req.Status.DefinitelyImpacts():
			definite[req.StandID] = append(definite[req.StandID], req.Window)
		case req.Status.PotentiallyImpacts():
			potential[req.StandID] = append(potential[req.StandID], req.Window)
		}
	}

	o := &Overlay{byStand: make(map[string][]Interval)}
	stands := make(map[string]bool)
	for id := range definite {
		stands[id] = true
	}
	for id := range potential {
		stands[id] = true
	}
	for id := range stands {
		def := mergeWindows(definite[id])
		pot := subtractAll(mergeWindows(potential[id]), def)
		var seq []Interval
		for _, w := range def {
			seq = append(seq, Interval{Window: w, Severity: Definite})
		}
		for _, w := range pot {
			seq = append(seq, Interval{Window: w, Severity: Potential})
		}
		sort.Slice(seq, func(i, j int) bool {
			return seq[i].Window.Start.Before(seq[j].Window.Start)
		})
		o.byStand[id] = seq
	}
	return o
}

// Unavailability returns the severity intervals for the stand restricted to
// the query window, in chronological order.
func (o *Overlay) Unavailability(standID string, query model.Window) []Interval {
	var out []Interval
	for _, iv := range o.byStand[standID] {
		if clipped, ok := iv.Window.Clip(query); ok {
			out = append(out, Interval{Window: clipped, Severity: iv.Severity})
		}
	}
	return out
}

// Blocked reports whether any Definite interval on the stand intersects the
// window.
func (o *Overlay) Blocked(standID string, w model.Window) bool {
	for _, iv := range o.byStand[standID] {
		if iv.Severity == Definite && iv.Window.Overlaps(w) {
			return true
		}
	}
	return false
}

// DefiniteOverlapMinutes sums, in minutes, the Definite unavailability on the
// stand inside the window.
func (o *Overlay) DefiniteOverlapMinutes(standID string, w model.Window) int {
	total := 0
	for _, iv := range o.byStand[standID] {
		if iv.Severity == Definite {
			total += iv.Window.OverlapMinutes(w)
		}
	}
	return total
}

// ImpactSet aggregates the stands and minutes removed on one day.
type ImpactSet struct {
	StandIDs     []string
	TotalMinutes int
}

// DailyImpact reports the definite and potential capacity impact for the
// 24-hour day containing the given time.
type DailyImpact struct {
	Day       time.Time
	Definite  ImpactSet
	Potential ImpactSet
}

// DailyImpact computes the impact sets for the day of the given time.
func (o *Overlay) DailyImpact(day time.Time) DailyImpact {
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	bounds := model.Window{Start: midnight, End: midnight.Add(24 * time.Hour)}

	impact := DailyImpact{Day: midnight}
	defSeen := make(map[string]bool)
	potSeen := make(map[string]bool)
	for id, seq := range o.byStand {
		for _, iv := range seq {
			minutes := iv.Window.OverlapMinutes(bounds)
			if minutes == 0 {
				continue
			}
			if iv.Severity == Definite {
				impact.Definite.TotalMinutes += minutes
				defSeen[id] = true
			} else {
				impact.Potential.TotalMinutes += minutes
				potSeen[id] = true
			}
		}
	}
	impact.Definite.StandIDs = sortedKeys(defSeen)
	impact.Potential.StandIDs = sortedKeys(potSeen)
	return impact
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// mergeWindows sorts and coalesces overlapping or touching windows.
func mergeWindows(ws []model.Window) []model.Window {
	if len(ws) == 0 {
		return nil
	}
	sorted := append([]model.Window(nil), ws...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })
	out := []model.Window{sorted[0]}
	for _, w := range sorted[1:] {
		last := &out[len(out)-1]
		if !w.Start.After(last.End) {
			if w.End.After(last.End) {
				last.End = w.End
			}
			continue
		}
		out = append(out, w)
	}
	return out
}

// subtractAll removes every window in sub from each window in base.
func subtractAll(base, sub []model.Window) []model.Window {
	out := base
	for _, s := range sub {
		var next []model.Window
		for _, b := range out {
			next = append(next, subtract(b, s)...)
		}
		out = next
	}
	return out
}

// subtract returns b minus s, zero, one or two windows.
func subtract(b, s model.Window) []model.Window {
	if !b.Overlaps(s) {
		return []model.Window{b}
	}
	var out []model.Window
	if b.Start.Before(s.Start) {
		out = append(out, model.Window{Start: b.Start, End: s.Start})
	}
	if s.End.Before(b.End) {
		out = append(out, model.Window{Start: s.End, End: b.End})
	}
	return out
}
