package utilisation

import (
	"fmt"
	"sort"
	"time"

	"github.com/kfloy/apron/core/model"
)

// RecommendationKind classifies an optimisation recommendation.
type RecommendationKind int

const (
	// Reallocation flags stands whose utilisation is below 30%.
	Reallocation RecommendationKind = iota
	// RuleModification flags adjacency rules whose estimated lost capacity
	// reaches ten operations over the operating day.
	RuleModification
	// ScheduleAdjustment flags stands that are both peak-heavy and
	// idle-heavy.
	ScheduleAdjustment
)

// String returns a human-readable representation of the kind.
func (k RecommendationKind) String() string {
	switch k {
	case Reallocation:
		return "reallocation"
	case RuleModification:
		return "rule_modification"
	case ScheduleAdjustment:
		return "schedule_adjustment"
	default:
		return "unknown"
	}
}

const (
	lowUtilisationThreshold = 0.30
	lostCapacityThreshold   = 10.0
	busySpreadThreshold     = 2
)

// Recommendation is one deterministic optimisation suggestion. EstimatedGain
// is expressed in operations (rule changes) or recoverable minutes
// (reallocation and schedule adjustments); recommendations are sorted by it
// in descending order.
type Recommendation struct {
	Kind          RecommendationKind
	StandID       string
	RuleRef       string
	EstimatedGain float64
	Description   string
}

func (a *Analyser) recommend(reports []StandReport, byStand map[string][]standOccupation, operating model.Window, settings model.OperationalSettings) []Recommendation {
	var recs []Recommendation
	operMinutes := operating.Minutes()

	for _, r := range reports {
		if r.UtilisationRate < lowUtilisationThreshold {
			gain := (lowUtilisationThreshold - r.UtilisationRate) * float64(operMinutes)
			recs = append(recs, Recommendation{
				Kind:          Reallocation,
				StandID:       r.StandID,
				EstimatedGain: gain,
				Description:   fmt.Sprintf("stand %s is utilised %.0f%%; reallocate traffic towards it", r.StandID, r.UtilisationRate*100),
			})
		}
		if len(r.PeakPeriods) >= busySpreadThreshold && len(r.IdlePeriods) >= busySpreadThreshold {
			idleMinutes := 0
			for _, w := range r.IdlePeriods {
				idleMinutes += w.Minutes()
			}
			recs = append(recs, Recommendation{
				Kind:          ScheduleAdjustment,
				StandID:       r.StandID,
				EstimatedGain: float64(idleMinutes),
				Description:   fmt.Sprintf("stand %s alternates %d peaks with %d idle gaps; smooth the schedule", r.StandID, len(r.PeakPeriods), len(r.IdlePeriods)),
			})
		}
	}

	for _, rule := range a.reg.Snapshot().AdjacencyRules {
		lost := a.estimatedLostCapacity(rule, byStand[rule.PrimaryStandID], operating, settings)
		if lost >= lostCapacityThreshold {
			recs = append(recs, Recommendation{
				Kind:          RuleModification,
				RuleRef:       fmt.Sprintf("%s->%s", rule.PrimaryStandID, rule.AffectedStandID),
				EstimatedGain: lost,
				Description:   fmt.Sprintf("adjacency rule %s->%s costs an estimated %.0f operations per day", rule.PrimaryStandID, rule.AffectedStandID, lost),
			})
		}
	}

	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].EstimatedGain != recs[j].EstimatedGain {
			return recs[i].EstimatedGain > recs[j].EstimatedGain
		}
		if recs[i].StandID != recs[j].StandID {
			return recs[i].StandID < recs[j].StandID
		}
		return recs[i].RuleRef < recs[j].RuleRef
	})
	return recs
}

// estimatedLostCapacity counts, over the operating day, the slots in which
// the rule's primary stand holds a trigger-type occupation, multiplied by
// the operations the affected stand could have hosted per slot.
func (a *Analyser) estimatedLostCapacity(rule model.AdjacencyRule, primaryOccs []standOccupation, operating model.Window, settings model.OperationalSettings) float64 {
	if settings.SlotDurationMinutes <= 0 {
		return 0
	}
	affected, err := a.reg.Stand(rule.AffectedStandID)
	if err != nil || !affected.IsActive {
		return 0
	}

	// Per-slot throughput of the affected stand, using the fastest type it
	// accepts.
	minTurn := 0
	for _, t := range a.reg.Snapshot().AircraftTypes {
		if !affected.Accepts(t) {
			continue
		}
		turn, terr := a.reg.Turnaround(t.TypeCode)
		if terr != nil {
			continue
		}
		if minTurn == 0 || turn < minTurn {
			minTurn = turn
		}
	}
	if minTurn == 0 {
		return 0
	}
	opsPerSlot := settings.SlotDurationMinutes / (minTurn + settings.GapBetweenFlightsMinutes)
	if opsPerSlot == 0 {
		return 0
	}

	slotDur := time.Duration(settings.SlotDurationMinutes) * time.Minute
	triggeredSlots := 0
	for start := operating.Start; start.Before(operating.End); start = start.Add(slotDur) {
		slot := model.Window{Start: start, End: start.Add(slotDur)}
		for _, o := range primaryOccs {
			if rule.Triggers(o.typeCode) && o.window.Overlaps(slot) {
				triggeredSlots++
				break
			}
		}
	}
	return float64(triggeredSlots * opsPerSlot)
}
