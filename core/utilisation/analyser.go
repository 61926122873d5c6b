// Package utilisation derives per-stand usage metrics and optimisation
// recommendations from one allocation result.
package utilisation

import (
	"context"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kfloy/apron/core/alloc"
	"github.com/kfloy/apron/core/logger"
	"github.com/kfloy/apron/core/model"
	"github.com/kfloy/apron/core/registry"
)

// StandReport carries the metrics for one stand.
type StandReport struct {
	StandID          string
	UtilisationRate  float64
	AllocatedMinutes int
	FlightCount      int
	// PeakPeriods are maximal runs of two or more back-to-back occupations
	// whose inter-flight gap does not exceed the configured gap.
	PeakPeriods []model.Window
	// IdlePeriods are gaps of at least three slot durations inside the
	// operating day, including the day head and tail.
	IdlePeriods []model.Window
	// OptimalTypeUtilisation maps each type seen on the stand to the share
	// of the stand's flights that are of that type and inside the stand's
	// compatibility set.
	OptimalTypeUtilisation map[string]float64
	// SuboptimalAllocations counts flights whose type falls outside the
	// compatibility set; these arise only from fixed-stand overrides.
	SuboptimalAllocations int
}

// FleetSummary aggregates utilisation across the stand fleet.
type FleetSummary struct {
	MeanUtilisation  float64
	MinUtilisation   float64
	MaxUtilisation   float64
	AllocatedMinutes int
	// ByTerminal maps terminal name to mean utilisation of its stands.
	ByTerminal map[string]float64
}

// Report is the full utilisation analysis for one allocation result.
type Report struct {
	Day             time.Time
	Stands          []StandReport
	Summary         FleetSummary
	Recommendations []Recommendation
}

// Analyser computes utilisation reports.
type Analyser struct {
	reg *registry.Registry
	log logger.Logger
}

// New creates an Analyser over the registry.
func New(reg *registry.Registry, log logger.Logger) *Analyser {
	return &Analyser{reg: reg, log: log}
}

// Analyse computes per-stand metrics in parallel bounded by workers, then
// derives recommendations. The operating day is taken from the earliest
// allocation start.
func (a *Analyser) Analyse(ctx context.Context, result *alloc.Result, flights []model.Flight, settings model.OperationalSettings, workers int) (*Report, error) {
	report := &Report{}
	if len(result.Allocated) == 0 {
		return report, nil
	}

	day := result.Allocated[0].Occupies.Start
	for _, al := range result.Allocated {
		if al.Occupies.Start.Before(day) {
			day = al.Occupies.Start
		}
	}
	report.Day = day
	operating := settings.OperatingWindowOn(day)

	flightsByID := make(map[string]model.Flight, len(flights))
	for _, f := range flights {
		flightsByID[f.ID] = f
	}

	// Group occupations per stand, deduplicating paired flights that share
	// one window.
	byStand := make(map[string][]standOccupation)
	for _, al := range result.Allocated {
		f := flightsByID[al.FlightID]
		occs := byStand[al.StandID]
		merged := false
		for i := range occs {
			if occs[i].window == al.Occupies && occs[i].typeCode == f.TypeCode {
				occs[i].flights++
				merged = true
				break
			}
		}
		if !merged {
			occs = append(occs, standOccupation{window: al.Occupies, typeCode: f.TypeCode, flights: 1})
		}
		byStand[al.StandID] = occs
	}

	standIDs := make([]string, 0, len(byStand))
	for id := range byStand {
		standIDs = append(standIDs, id)
	}
	sort.Strings(standIDs)

	reports := make([]StandReport, len(standIDs))
	if workers < 1 {
		workers = 1
	}
	if workers > len(standIDs) {
		workers = len(standIDs)
	}
	idx := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idx {
				id := standIDs[i]
				occs := byStand[id]
				sort.Slice(occs, func(x, y int) bool {
					return occs[x].window.Start.Before(occs[y].window.Start)
				})
				reports[i] = a.standReport(id, occs, operating, settings)
			}
		}()
	}
feed:
	for i := range standIDs {
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

	report.Stands = reports
	report.Summary = a.summarise(reports)
	report.Recommendations = a.recommend(reports, byStand, operating, settings)
	a.log.Infof("utilisation analysed for %d stands, %d recommendations", len(reports), len(report.Recommendations))
	return report, nil
}

// standOccupation is one deduplicated occupation of a stand; paired flights
// sharing a window count as two flights in one occupation.
type standOccupation struct {
	window   model.Window
	typeCode string
	flights  int
}

func (a *Analyser) standReport(standID string, occs []standOccupation, operating model.Window, settings model.OperationalSettings) StandReport {
	rep := StandReport{StandID: standID, OptimalTypeUtilisation: make(map[string]float64)}

	stand, standErr := a.reg.Stand(standID)

	var busyMinutes int
	totalFlights := 0
	typeCompatible := make(map[string]int)
	for _, o := range occs {
		totalFlights += o.flights
		if clipped, ok := o.window.Clip(operating); ok {
			busyMinutes += clipped.Minutes()
		}
		rep.AllocatedMinutes += o.window.Minutes()

		compatible := false
		if standErr == nil {
			if t, err := a.reg.AircraftType(o.typeCode); err == nil {
				compatible = stand.Accepts(t)
			}
		}
		if compatible {
			typeCompatible[o.typeCode] += o.flights
		} else {
			rep.SuboptimalAllocations += o.flights
		}
	}
	rep.FlightCount = totalFlights

	operMinutes := operating.Minutes()
	if operMinutes > 0 {
		rate := float64(busyMinutes) / float64(operMinutes)
		if rate < 0 {
			rate = 0
		}
		if rate > 1 {
			rate = 1
		}
		rep.UtilisationRate = rate
	}
	if totalFlights > 0 {
		for code, n := range typeCompatible {
			rep.OptimalTypeUtilisation[code] = float64(n) / float64(totalFlights)
		}
	}

	gap := settings.Gap()
	idleThreshold := time.Duration(3*settings.SlotDurationMinutes) * time.Minute

	// Peak periods: chains of occupations whose inter-flight gap is at most
	// the configured gap. Single occupations do not form a peak.
	var run model.Window
	runLen := 0
	flush := func() {
		if runLen >= 2 {
			rep.PeakPeriods = append(rep.PeakPeriods, run)
		}
		runLen = 0
	}
	for _, o := range occs {
		if runLen == 0 {
			run = o.window
			runLen = 1
			continue
		}
		if o.window.Start.Sub(run.End) <= gap {
			if o.window.End.After(run.End) {
				run.End = o.window.End
			}
			runLen++
			continue
		}
		flush()
		run = o.window
		runLen = 1
	}
	flush()

	// Idle periods inside the operating day, including head and tail.
	cursor := operating.Start
	for _, o := range occs {
		clipped, ok := o.window.Clip(operating)
		if !ok {
			continue
		}
		if clipped.Start.Sub(cursor) >= idleThreshold {
			rep.IdlePeriods = append(rep.IdlePeriods, model.Window{Start: cursor, End: clipped.Start})
		}
		if clipped.End.After(cursor) {
			cursor = clipped.End
		}
	}
	if operating.End.Sub(cursor) >= idleThreshold {
		rep.IdlePeriods = append(rep.IdlePeriods, model.Window{Start: cursor, End: operating.End})
	}
	return rep
}

func (a *Analyser) summarise(reports []StandReport) FleetSummary {
	summary := FleetSummary{ByTerminal: make(map[string]float64)}
	if len(reports) == 0 {
		return summary
	}
	rates := make([]float64, len(reports))
	terminalRates := make(map[string][]float64)
	for i, r := range reports {
		rates[i] = r.UtilisationRate
		summary.AllocatedMinutes += r.AllocatedMinutes
		if stand, err := a.reg.Stand(r.StandID); err == nil && stand.Terminal != "" {
			terminalRates[stand.Terminal] = append(terminalRates[stand.Terminal], r.UtilisationRate)
		}
	}
	summary.MeanUtilisation = stat.Mean(rates, nil)
	summary.MinUtilisation = floats.Min(rates)
	summary.MaxUtilisation = floats.Max(rates)
	for term, rs := range terminalRates {
		summary.ByTerminal[term] = stat.Mean(rs, nil)
	}
	return summary
}
