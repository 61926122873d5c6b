// Package results persists the outcome of scheduling runs. Stores guarantee
// at-least-once durability with per-batch transactional semantics: rows are
// written in bounded batches and a failed batch fails the whole save.
package results

import (
	"context"
	"time"
)

// batchSize bounds the number of rows per insert statement.
const batchSize = 500

// AllocationRow is one persisted allocation.
type AllocationRow struct {
	FlightID string    `json:"flight_id"`
	StandID  string    `json:"stand_id"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Source   string    `json:"source"`
	Status   string    `json:"status"`
}

// UnallocatedRow is one persisted placement failure.
type UnallocatedRow struct {
	FlightID string `json:"flight_id"`
	Reason   string `json:"reason"`
	Detail   string `json:"detail"`
}

// StandMetricRow is one persisted stand utilisation metric.
type StandMetricRow struct {
	StandID         string  `json:"stand_id"`
	UtilisationRate float64 `json:"utilisation_rate"`
	AllocatedMin    int     `json:"allocated_minutes"`
	Suboptimal      int     `json:"suboptimal"`
}

// IssueRow is one persisted validation issue.
type IssueRow struct {
	Row      int    `json:"row"`
	FlightID string `json:"flight_id"`
	Code     string `json:"code"`
	Severity string `json:"severity"`
	Field    string `json:"field"`
	Message  string `json:"message"`
}

// RunRecord captures one scheduling run and its result rows.
type RunRecord struct {
	RunID       string           `json:"run_id"`
	ScheduleID  string           `json:"schedule_id"`
	State       string           `json:"state"`
	Error       string           `json:"error,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
	FinishedAt  time.Time        `json:"finished_at"`
	Allocations []AllocationRow  `json:"allocations"`
	Unallocated []UnallocatedRow `json:"unallocated"`
	Metrics     []StandMetricRow `json:"metrics"`
	Issues      []IssueRow       `json:"issues"`
}

// Query defines filters for retrieving run records.
type Query struct {
	ScheduleID string
	Start      time.Time
	End        time.Time
}

// Store persists RunRecords and supports querying.
type Store interface {
	SaveRun(ctx context.Context, rec RunRecord) error
	Runs(ctx context.Context, q Query) ([]RunRecord, error)
	Close() error
}

// NopStore discards records.
type NopStore struct{}

func (NopStore) SaveRun(context.Context, RunRecord) error         { return nil }
func (NopStore) Runs(context.Context, Query) ([]RunRecord, error) { return nil, nil }
func (NopStore) Close() error                                     { return nil }
