// Package capacity computes, per configured time slot and aircraft type, the
// best-case and worst-case number of aircraft the stand fleet can
// accommodate. Best case ignores adjacency interference; worst case assumes
// every adjacency rule is triggered by the heaviest traffic first.
package capacity

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/kfloy/apron/core/logger"
	"github.com/kfloy/apron/core/maintenance"
	"github.com/kfloy/apron/core/model"
	"github.com/kfloy/apron/core/registry"
)

// BodyCounts is the narrow/wide roll-up for one slot.
type BodyCounts struct {
	NarrowBest  int
	NarrowWorst int
	WideBest    int
	WideWorst   int
}

// Report is the two-dimensional capacity table plus roll-ups for one day.
// The computation is a pure function of its inputs.
type Report struct {
	Day       time.Time
	SlotIDs   []string
	TypeCodes []string
	// BestCase and WorstCase map slot id -> type code -> aircraft count.
	BestCase  map[string]map[string]int
	WorstCase map[string]map[string]int
	// BodyType maps slot id -> narrow/wide visualisation counts.
	BodyType map[string]BodyCounts
}

// Calculator computes capacity forecasts over one snapshot and overlay.
type Calculator struct {
	reg     *registry.Registry
	overlay *maintenance.Overlay
	log     logger.Logger
}

// New creates a Calculator.
func New(reg *registry.Registry, overlay *maintenance.Overlay, log logger.Logger) *Calculator {
	return &Calculator{reg: reg, overlay: overlay, log: log}
}

// Compute builds the capacity report for the given day across the provided
// slots. Inactive slots are skipped. Slots are computed in parallel bounded
// by workers; results are deterministic regardless of worker count.
func (c *Calculator) Compute(ctx context.Context, day time.Time, slots []model.TimeSlot, settings model.OperationalSettings, workers int) (*Report, error) {
	var active []model.TimeSlot
	for _, s := range slots {
		if s.IsActive {
			active = append(active, s)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].ID < active[j].ID })

	types := append([]model.AircraftType(nil), c.reg.Snapshot().AircraftTypes...)
	sort.Slice(types, func(i, j int) bool { return types[i].TypeCode < types[j].TypeCode })

	report := &Report{
		Day:       day,
		BestCase:  make(map[string]map[string]int, len(active)),
		WorstCase: make(map[string]map[string]int, len(active)),
		BodyType:  make(map[string]BodyCounts, len(active)),
	}
	for _, s := range active {
		report.SlotIDs = append(report.SlotIDs, s.ID)
	}
	for _, t := range types {
		report.TypeCodes = append(report.TypeCodes, t.TypeCode)
	}

	if workers < 1 {
		workers = 1
	}
	if workers > len(active) {
		workers = len(active)
	}
	type slotResult struct {
		slotID string
		best   map[string]int
		worst  map[string]int
		body   BodyCounts
	}
	results := make([]slotResult, len(active))
	idx := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idx {
				slot := active[i]
				best, worst, body := c.computeSlot(slot.WindowOn(day), types, settings)
				results[i] = slotResult{slotID: slot.ID, best: best, worst: worst, body: body}
			}
		}()
	}
feed:
	for i := range active {
		select {
		case idx <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(idx)
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, r := range results {
		report.BestCase[r.slotID] = r.best
		report.WorstCase[r.slotID] = r.worst
		report.BodyType[r.slotID] = r.body
	}
	c.log.Debugf("capacity computed for %d slots x %d types", len(active), len(types))
	return report, nil
}

func (c *Calculator) computeSlot(slotWin model.Window, types []model.AircraftType, settings model.OperationalSettings) (best, worst map[string]int, body BodyCounts) {
	best = make(map[string]int, len(types))
	worst = make(map[string]int, len(types))
	slotMinutes := slotWin.Minutes()

	// Heaviest-first ordering for the worst-case trigger sweep.
	bySize := append([]model.AircraftType(nil), types...)
	sort.Slice(bySize, func(i, j int) bool {
		if bySize[i].SizeCategory != bySize[j].SizeCategory {
			return bySize[i].SizeCategory > bySize[j].SizeCategory
		}
		return bySize[i].TypeCode < bySize[j].TypeCode
	})

	for _, t := range types {
		eligible, err := c.reg.EligibleStandsFor(t.TypeCode)
		if err != nil {
			continue
		}
		bestTotal := 0
		for _, s := range eligible {
			bestTotal += c.standOps(s, t, slotWin, slotMinutes, settings)
		}
		best[t.TypeCode] = bestTotal

		// Worst case: remove every stand an active trigger could block,
		// assuming a trigger of each heavier-first type occupies any
		// reachable primary stand during the slot.
		blocked := make(map[string]bool)
		for _, trigger := range bySize {
			for _, rule := range c.reg.Snapshot().AdjacencyRules {
				if !rule.Triggers(trigger.TypeCode) {
					continue
				}
				if !c.primaryReachable(rule.PrimaryStandID, trigger, slotWin, slotMinutes) {
					continue
				}
				restr := composedFor(rule)
				if restr.denies(t) {
					blocked[rule.AffectedStandID] = true
				}
			}
		}
		worstTotal := 0
		for _, s := range eligible {
			if blocked[s.ID] {
				continue
			}
			worstTotal += c.standOps(s, t, slotWin, slotMinutes, settings)
		}
		worst[t.TypeCode] = worstTotal

		if t.BodyClass == model.WideBody {
			body.WideBest += bestTotal
			body.WideWorst += worstTotal
		} else {
			body.NarrowBest += bestTotal
			body.NarrowWorst += worstTotal
		}
	}
	return best, worst, body
}

// standOps returns the operations the stand can host for the type in the
// slot. A stand with at least half the slot under definite maintenance is
// excluded entirely; smaller overlaps scale the count proportionally.
func (c *Calculator) standOps(s model.Stand, t model.AircraftType, slotWin model.Window, slotMinutes int, settings model.OperationalSettings) int {
	if slotMinutes <= 0 {
		return 0
	}
	overlap := c.overlay.DefiniteOverlapMinutes(s.ID, slotWin)
	if overlap*2 >= slotMinutes {
		return 0
	}
	turn, err := c.reg.Turnaround(t.TypeCode)
	if err != nil {
		return 0
	}
	perOp := turn + settings.GapBetweenFlightsMinutes
	if perOp <= 0 {
		return 0
	}
	ops := slotMinutes / perOp
	if overlap == 0 {
		return ops
	}
	scaled := float64(ops) * float64(slotMinutes-overlap) / float64(slotMinutes)
	return int(math.Round(scaled))
}

// primaryReachable reports whether a trigger aircraft could occupy the
// primary stand during the slot. Occupation does not require a complete
// operation inside the slot: an aircraft whose turnaround overhangs the slot
// still sits on the stand, so only eligibility and a maintenance exclusion
// covering at least half the slot rule the primary out.
func (c *Calculator) primaryReachable(standID string, trigger model.AircraftType, slotWin model.Window, slotMinutes int) bool {
	s, err := c.reg.Stand(standID)
	if err != nil || !s.IsActive || !s.Accepts(trigger) {
		return false
	}
	overlap := c.overlay.DefiniteOverlapMinutes(s.ID, slotWin)
	return overlap*2 < slotMinutes
}

// composedFor builds a single-rule restriction for worst-case blocking.
type singleRestriction struct {
	noUse      bool
	maxSize    model.SizeCategory
	maxSizeSet bool
	prohibited string
}

func composedFor(rule model.AdjacencyRule) singleRestriction {
	r := singleRestriction{}
	switch rule.Restriction {
	case model.NoUseAffected:
		r.noUse = true
	case model.MaxSizeReduced:
		r.maxSize = rule.TargetSize
		r.maxSizeSet = true
	case model.TypeProhibited:
		r.prohibited = rule.ProhibitedTypeCode
	}
	return r
}

func (r singleRestriction) denies(t model.AircraftType) bool {
	if r.noUse {
		return true
	}
	if r.maxSizeSet && t.SizeCategory > r.maxSize {
		return true
	}
	return r.prohibited != "" && r.prohibited == t.TypeCode
}
