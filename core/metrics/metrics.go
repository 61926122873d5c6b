package metrics

import (
	"time"

	"github.com/kfloy/apron/core/alloc"
)

// RunResult represents one finished scheduling run to be recorded.
type RunResult struct {
	RunID       string
	ScheduleID  string
	State       string
	Allocated   int
	Unallocated int
	Duration    time.Duration
	Time        time.Time
}

// Sink records run results for observability purposes.
type Sink interface {
	RecordRunResult(res RunResult) error
}

// PlacementEvent is a per-flight allocation outcome.
type PlacementEvent struct {
	RunID    string
	FlightID string
	StandID  string
	Placed   bool
	Reason   alloc.Reason
	Time     time.Time
}

// PlacementRecorder records individual placement outcomes.
type PlacementRecorder interface {
	RecordPlacement(ev PlacementEvent) error
}

// CapacityCell is one (slot, type) cell of a capacity report.
type CapacityCell struct {
	Day      time.Time
	SlotID   string
	TypeCode string
	Best     int
	Worst    int
}

// CapacityRecorder records capacity forecast cells.
type CapacityRecorder interface {
	RecordCapacity(cells []CapacityCell) error
}

// UtilisationEvent is one stand's utilisation outcome.
type UtilisationEvent struct {
	RunID           string
	StandID         string
	UtilisationRate float64
	Suboptimal      int
	Time            time.Time
}

// UtilisationRecorder records stand utilisation.
type UtilisationRecorder interface {
	RecordUtilisation(ev UtilisationEvent) error
}

// Config carries metrics sink settings.
type Config struct {
	PrometheusEnabled bool   `json:"prometheus_enabled"`
	PrometheusPort    int    `json:"prometheus_port"`
	InfluxEnabled     bool   `json:"influx_enabled"`
	InfluxURL         string `json:"influx_url"`
	InfluxToken       string `json:"influx_token"`
	InfluxOrg         string `json:"influx_org"`
	InfluxBucket      string `json:"influx_bucket"`
}

// NopSink implements Sink with no-op methods.
type NopSink struct{}

func (NopSink) RecordRunResult(RunResult) error          { return nil }
func (NopSink) RecordPlacement(PlacementEvent) error     { return nil }
func (NopSink) RecordCapacity([]CapacityCell) error      { return nil }
func (NopSink) RecordUtilisation(UtilisationEvent) error { return nil }
