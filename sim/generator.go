// Package sim generates synthetic reference snapshots, maintenance plans and
// flight schedules for the CLI and load tests. Generation is fully seeded:
// the same config always yields the same data.
package sim

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/kfloy/apron/core/model"
)

// Config holds parameters for bulk schedule generation.
type Config struct {
	Seed        int64
	Stands      int
	Flights     int
	Maintenance int
	// Day anchors all generated times at midnight UTC.
	Day time.Time
	// InvalidRate is the fraction of raw rows generated with a defect.
	InvalidRate float64
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Stands <= 0 {
		c.Stands = 20
	}
	if c.Flights <= 0 {
		c.Flights = 120
	}
	if c.Day.IsZero() {
		c.Day = time.Now().UTC().Truncate(24 * time.Hour)
	}
}

var airlines = []string{"AF", "BA", "LH", "KL", "EK", "U2"}

var airports = []string{"CDG", "LHR", "FRA", "AMS", "DXB", "JFK"}

var aircraftTypes = []model.AircraftType{
	{TypeCode: "AT76", BodyClass: model.NarrowBody, SizeCategory: model.SizeB, DefaultTurnaroundMinutes: 35},
	{TypeCode: "A320", BodyClass: model.NarrowBody, SizeCategory: model.SizeC, DefaultTurnaroundMinutes: 45},
	{TypeCode: "B738", BodyClass: model.NarrowBody, SizeCategory: model.SizeC, DefaultTurnaroundMinutes: 45},
	{TypeCode: "A321", BodyClass: model.NarrowBody, SizeCategory: model.SizeC, DefaultTurnaroundMinutes: 50},
	{TypeCode: "B77W", BodyClass: model.WideBody, SizeCategory: model.SizeE, DefaultTurnaroundMinutes: 90},
	{TypeCode: "A388", BodyClass: model.WideBody, SizeCategory: model.SizeF, DefaultTurnaroundMinutes: 120},
}

var seats = map[string]int{
	"AT76": 78, "A320": 180, "B738": 189, "A321": 220, "B77W": 396, "A388": 516,
}

// Generator produces deterministic synthetic schedules.
type Generator struct {
	cfg Config
	rng *rand.Rand
}

// New creates a Generator with the given config.
func New(cfg Config) *Generator {
	cfg.SetDefaults()
	return &Generator{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}
}

// Snapshot generates a reference snapshot with stands, adjacency rules and
// hourly time slots.
func (g *Generator) Snapshot() *model.Snapshot {
	snap := &model.Snapshot{
		Version:       g.cfg.Seed,
		Airlines:      airlines,
		Airports:      airports,
		AircraftTypes: aircraftTypes,
	}
	snap.Settings.SetDefaults()

	sizes := []model.SizeCategory{model.SizeC, model.SizeC, model.SizeC, model.SizeD, model.SizeE, model.SizeF}
	for i := 0; i < g.cfg.Stands; i++ {
		terminal := "T1"
		if i >= g.cfg.Stands/2 {
			terminal = "T2"
		}
		s := model.Stand{
			ID:              fmt.Sprintf("S%02d", i+1),
			Name:            fmt.Sprintf("Stand %02d", i+1),
			Terminal:        terminal,
			Pier:            fmt.Sprintf("P%d", i/5+1),
			MaxSizeCategory: sizes[g.rng.Intn(len(sizes))],
			IsActive:        true,
			FuelEnabled:     g.rng.Float64() < 0.7,
		}
		if g.rng.Float64() < 0.4 {
			s.AirlinePriorities = []string{airlines[g.rng.Intn(len(airlines))]}
		}
		snap.Stands = append(snap.Stands, s)
	}

	// Adjacency: a handful of wide-body triggers restricting the neighbour.
	for i := 0; i+1 < len(snap.Stands); i += 5 {
		snap.AdjacencyRules = append(snap.AdjacencyRules, model.AdjacencyRule{
			PrimaryStandID:   snap.Stands[i].ID,
			TriggerTypeCodes: []string{"B77W", "A388"},
			AffectedStandID:  snap.Stands[i+1].ID,
			Restriction:      model.MaxSizeReduced,
			TargetSize:       model.SizeC,
		})
	}

	start, _ := model.ParseClock(snap.Settings.OperatingDayStart)
	end, _ := model.ParseClock(snap.Settings.OperatingDayEnd)
	for m, n := start, 1; m < end; m, n = m+60, n+1 {
		to := m + 60
		if to > end {
			to = end
		}
		snap.TimeSlots = append(snap.TimeSlots, model.TimeSlot{
			ID:         fmt.Sprintf("SL%02d", n),
			Name:       fmt.Sprintf("%02d:%02d-%02d:%02d", m/60, m%60, to/60, to%60),
			StartClock: fmt.Sprintf("%02d:%02d", m/60, m%60),
			EndClock:   fmt.Sprintf("%02d:%02d", to/60, to%60),
			IsActive:   true,
		})
	}
	return snap
}

// MaintenancePlan generates maintenance requests against the snapshot's
// stands with a mix of statuses.
func (g *Generator) MaintenancePlan(snap *model.Snapshot) []model.MaintenanceRequest {
	statuses := []model.MaintenanceStatus{
		model.MaintenanceRequested,
		model.MaintenanceApproved,
		model.MaintenanceInProgress,
		model.MaintenanceCompleted,
	}
	var reqs []model.MaintenanceRequest
	for i := 0; i < g.cfg.Maintenance; i++ {
		stand := snap.Stands[g.rng.Intn(len(snap.Stands))]
		startMin := 6*60 + g.rng.Intn(10*60)
		dur := 60 + g.rng.Intn(4*60)
		reqs = append(reqs, model.MaintenanceRequest{
			ID:      fmt.Sprintf("M%03d", i+1),
			StandID: stand.ID,
			Window: model.Window{
				Start: g.cfg.Day.Add(time.Duration(startMin) * time.Minute),
				End:   g.cfg.Day.Add(time.Duration(startMin+dur) * time.Minute),
			},
			Status: statuses[g.rng.Intn(len(statuses))],
		})
	}
	return reqs
}

// Rows generates raw flight rows: paired arrival/departure turnarounds spread
// over the operating day, with a configurable fraction of defective rows.
func (g *Generator) Rows(snap *model.Snapshot) []model.RawFlight {
	var rows []model.RawFlight
	pairs := g.cfg.Flights / 2
	for i := 0; i < pairs; i++ {
		airline := airlines[g.rng.Intn(len(airlines))]
		airport := airports[g.rng.Intn(len(airports))]
		t := aircraftTypes[g.rng.Intn(len(aircraftTypes))]
		reg := fmt.Sprintf("F-SIM%03d", i+1)
		number := fmt.Sprintf("%d", 100+g.rng.Intn(8900))
		arrMin := 5*60 + g.rng.Intn(15*60)
		depMin := arrMin + t.DefaultTurnaroundMinutes + g.rng.Intn(120)
		terminal := snap.Stands[g.rng.Intn(len(snap.Stands))].Terminal

		arr := model.RawFlight{
			FlightNumber: number,
			AirlineCode:  airline,
			Nature:       "arrival",
			ScheduledAt:  g.cfg.Day.Add(time.Duration(arrMin) * time.Minute).Format(time.RFC3339),
			OtherAirport: airport,
			TypeCode:     t.TypeCode,
			Terminal:     terminal,
			SeatCapacity: fmt.Sprintf("%d", seats[t.TypeCode]),
			Registration: reg,
		}
		dep := arr
		dep.FlightNumber = fmt.Sprintf("%d", 100+g.rng.Intn(8900))
		dep.Nature = "departure"
		dep.ScheduledAt = g.cfg.Day.Add(time.Duration(depMin) * time.Minute).Format(time.RFC3339)

		g.maybeBreak(&arr)
		g.maybeBreak(&dep)
		rows = append(rows, arr, dep)
	}
	return rows
}

// maybeBreak injects one defect per the configured invalid rate.
func (g *Generator) maybeBreak(r *model.RawFlight) {
	if g.cfg.InvalidRate <= 0 || g.rng.Float64() >= g.cfg.InvalidRate {
		return
	}
	switch g.rng.Intn(4) {
	case 0:
		r.FlightNumber = ""
	case 1:
		r.ScheduledAt = "not-a-date"
	case 2:
		r.AirlineCode = "ZZ"
	case 3:
		r.SeatCapacity = "9999"
	}
}
