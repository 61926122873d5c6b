// Package alloc assigns flights to stands respecting eligibility, turnaround
// gaps, stand-stand adjacency and maintenance blackouts. The algorithm is a
// deterministic greedy pass with well-defined tie-breaks: identical inputs
// always produce identical results.
package alloc

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kfloy/apron/core/logger"
	"github.com/kfloy/apron/core/maintenance"
	"github.com/kfloy/apron/core/model"
	"github.com/kfloy/apron/core/registry"
)

// Result partitions the input flights: every flight appears in exactly one of
// Allocated or Unallocated.
type Result struct {
	Allocated   []model.StandAllocation
	Unallocated []Unallocated
}

// placement is one occupied window on a stand.
type placement struct {
	flightID string
	typeCode string
	window   model.Window
}

// placementBoard tracks occupied windows per stand during a pass.
type placementBoard struct {
	byStand map[string][]placement
}

func newBoard() *placementBoard {
	return &placementBoard{byStand: make(map[string][]placement)}
}

func (b *placementBoard) on(standID string) []placement { return b.byStand[standID] }

func (b *placementBoard) add(standID string, p placement) {
	b.byStand[standID] = append(b.byStand[standID], p)
}

// conflicts applies the symmetric gap rule: two occupations clash when
// either end plus the gap overruns the other's start.
func (b *placementBoard) conflicts(standID string, w model.Window, gap time.Duration) bool {
	for _, p := range b.byStand[standID] {
		if p.window.End.Add(gap).After(w.Start) && w.End.Add(gap).After(p.window.Start) {
			return true
		}
	}
	return false
}

// Allocator places valid flights onto stands for one schedule run.
type Allocator struct {
	reg      *registry.Registry
	overlay  *maintenance.Overlay
	settings model.OperationalSettings
	log      logger.Logger
}

// New creates an Allocator over one immutable snapshot and overlay.
func New(reg *registry.Registry, overlay *maintenance.Overlay, settings model.OperationalSettings, log logger.Logger) *Allocator {
	return &Allocator{reg: reg, overlay: overlay, settings: settings, log: log}
}

// Allocate runs the greedy pass. Per-flight failures are collected into the
// result; only cancellation aborts with an error.
func (a *Allocator) Allocate(ctx context.Context, flights []model.Flight) (*Result, error) {
	started := time.Now()
	units := buildOccupations(flights, a.settings)

	var fixed, free []*occupation
	for _, u := range units {
		if u.fixed {
			fixed = append(fixed, u)
		} else {
			free = append(free, u)
		}
	}
	sortUnits(fixed, nil)
	ranks := a.priorityRanks(free)
	sortUnits(free, ranks)

	res := &Result{}
	board := newBoard()
	gap := a.settings.Gap()

	for _, u := range fixed {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a.placeFixed(u, board, gap, res)
	}
	for _, u := range free {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a.placeFree(u, board, gap, res)
	}

	allocationDuration.Observe(time.Since(started).Seconds())
	a.log.Infof("allocated %d flights, %d unallocated", len(res.Allocated), len(res.Unallocated))
	return res, nil
}

// sortUnits orders units by (start ascending, priority descending, lead
// flight id ascending). A nil rank map means priority zero for everyone.
func sortUnits(units []*occupation, ranks map[*occupation]int) {
	sort.SliceStable(units, func(i, j int) bool {
		ui, uj := units[i], units[j]
		if !ui.window.Start.Equal(uj.window.Start) {
			return ui.window.Start.Before(uj.window.Start)
		}
		if ranks != nil && ranks[ui] != ranks[uj] {
			return ranks[ui] > ranks[uj]
		}
		return ui.flights[0].ID < uj.flights[0].ID
	})
}

// priorityRanks derives a priority per unit from the preference count and the
// airline's best priority rank across the stand fleet. Explicit preferences
// dominate airline ranking.
func (a *Allocator) priorityRanks(units []*occupation) map[*occupation]int {
	ranks := make(map[*occupation]int, len(units))
	for _, u := range units {
		prio := 10 * len(u.preferences)
		if rank := a.reg.BestAirlineRank(u.airlineCode); rank >= 0 && rank < 10 {
			prio += 9 - rank
		}
		ranks[u] = prio
	}
	return ranks
}

func (a *Allocator) placeFixed(u *occupation, board *placementBoard, gap time.Duration, res *Result) {
	if !u.windowOK {
		a.reject(u, res, NoValidTimes, "occupation window could not be derived")
		return
	}
	if u.fixedConflict {
		a.reject(u, res, FixedStandConflict, "paired flights mandate different stands")
		return
	}
	stand, err := a.reg.Stand(u.fixedStandID)
	if err != nil || !stand.IsActive {
		a.reject(u, res, FixedStandConflict, fmt.Sprintf("fixed stand %s is unknown or inactive", u.fixedStandID))
		return
	}
	if a.overlay.Blocked(stand.ID, u.window) {
		a.reject(u, res, FixedStandConflict, fmt.Sprintf("fixed stand %s is under maintenance", stand.ID))
		return
	}
	if board.conflicts(stand.ID, u.window, gap) {
		a.reject(u, res, FixedStandConflict, fmt.Sprintf("fixed stand %s is already occupied", stand.ID))
		return
	}
	// Eligibility and adjacency are operator overrides for fixed stands; the
	// placement still participates as a trigger for later free placements.
	a.commit(u, stand.ID, model.SourceManual, board, res)
}

func (a *Allocator) placeFree(u *occupation, board *placementBoard, gap time.Duration, res *Result) {
	if !u.windowOK {
		a.reject(u, res, NoValidTimes, "occupation window could not be derived")
		return
	}
	candidates, err := a.candidateStands(u)
	if err != nil || len(candidates) == 0 {
		a.reject(u, res, NoEligibleStand, fmt.Sprintf("no eligible stand for type %s", u.typeCode))
		return
	}
	standsConsidered.Observe(float64(len(candidates)))

	var sawOccupied, sawAdjacency, sawMaintenance bool
	for _, stand := range candidates {
		if a.overlay.Blocked(stand.ID, u.window) {
			sawMaintenance = true
			continue
		}
		if board.conflicts(stand.ID, u.window, gap) {
			sawOccupied = true
			continue
		}
		if adjacencyDenied(a.reg, board, u.typeCode, stand.ID, u.window) {
			sawAdjacency = true
			continue
		}
		a.commit(u, stand.ID, model.SourceAutomated, board, res)
		return
	}

	// Precedence between mixed rejections: adjacency is actionable through
	// rule changes, maintenance next, plain occupancy last.
	switch {
	case sawAdjacency:
		a.reject(u, res, AdjacencyConflict, fmt.Sprintf("adjacency restrictions deny type %s on all remaining stands", u.typeCode))
	case sawMaintenance:
		a.reject(u, res, MaintenanceBlackout, "all eligible stands are under definite maintenance in the window")
	case sawOccupied:
		a.reject(u, res, AllEligibleOccupied, fmt.Sprintf("all %d eligible stands are occupied in the window", len(candidates)))
	default:
		a.reject(u, res, NoEligibleStand, fmt.Sprintf("no usable stand for type %s", u.typeCode))
	}
}

// candidateStands enumerates stands in the order mandated by the scheduling
// algorithm: preferred stands first in preference order, then the remaining
// eligible stands by (airline rank ascending, stand id ascending). Restricted
// stands are skipped; the list is capped by MaxEligibleStandsPerFlight.
func (a *Allocator) candidateStands(u *occupation) ([]model.Stand, error) {
	eligible, err := a.reg.EligibleStandsFor(u.typeCode)
	if err != nil {
		return nil, err
	}
	eligibleByID := make(map[string]model.Stand, len(eligible))
	for _, s := range eligible {
		eligibleByID[s.ID] = s
	}

	var out []model.Stand
	seen := make(map[string]bool)
	for _, id := range u.preferences {
		s, ok := eligibleByID[id]
		if !ok || u.restrictions[id] || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, s)
	}

	rest := make([]model.Stand, 0, len(eligible))
	for _, s := range eligible {
		if seen[s.ID] || u.restrictions[s.ID] {
			continue
		}
		rest = append(rest, s)
	}
	sort.SliceStable(rest, func(i, j int) bool {
		ri := airlineRankOrLast(rest[i], u.airlineCode)
		rj := airlineRankOrLast(rest[j], u.airlineCode)
		if ri != rj {
			return ri < rj
		}
		return rest[i].ID < rest[j].ID
	})
	out = append(out, rest...)

	if max := a.settings.MaxEligibleStandsPerFlight; max > 0 && len(out) > max {
		out = out[:max]
	}
	return out, nil
}

func airlineRankOrLast(s model.Stand, airline string) int {
	if rank := s.AirlineRank(airline); rank >= 0 {
		return rank
	}
	return int(^uint(0) >> 1)
}

func (a *Allocator) commit(u *occupation, standID string, source model.AllocationSource, board *placementBoard, res *Result) {
	board.add(standID, placement{flightID: u.flights[0].ID, typeCode: u.typeCode, window: u.window})
	for _, f := range u.flights {
		res.Allocated = append(res.Allocated, model.StandAllocation{
			FlightID: f.ID,
			StandID:  standID,
			Occupies: u.window,
			Source:   source,
			Status:   model.StatusAllocated,
		})
		flightsPlaced.Inc()
	}
	a.log.Debugw("flight placed", map[string]any{
		"stand":  standID,
		"flight": u.flights[0].ID,
		"start":  u.window.Start,
		"end":    u.window.End,
	})
}

func (a *Allocator) reject(u *occupation, res *Result, reason Reason, detail string) {
	for _, f := range u.flights {
		res.Unallocated = append(res.Unallocated, Unallocated{
			FlightID: f.ID,
			Reason:   reason,
			Detail:   truncateDetail(detail),
		})
		flightsUnallocated.WithLabelValues(reason.String()).Inc()
	}
}
