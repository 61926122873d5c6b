package results

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func sampleRecord(runID, scheduleID string, started time.Time) RunRecord {
	return RunRecord{
		RunID:      runID,
		ScheduleID: scheduleID,
		State:      "completed",
		StartedAt:  started,
		FinishedAt: started.Add(2 * time.Second),
		Allocations: []AllocationRow{
			{FlightID: "AF123-arrival-20260314T1000", StandID: "S1",
				Start: started, End: started.Add(2 * time.Hour), Source: "automated", Status: "allocated"},
		},
		Unallocated: []UnallocatedRow{
			{FlightID: "BA456-departure-20260314T1200", Reason: "all_eligible_occupied", Detail: "all 3 eligible stands are occupied in the window"},
		},
		Metrics: []StandMetricRow{
			{StandID: "S1", UtilisationRate: 0.42, AllocatedMin: 120, Suboptimal: 0},
		},
		Issues: []IssueRow{
			{Row: 3, Code: "code_unknown", Severity: "error", Field: "airline_code", Message: "unknown airline ZZ"},
		},
	}
}

func testStores(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	sqlite, err := NewSQLiteStore(filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	jsonl, err := NewJSONLStore(filepath.Join(dir, "runs.log"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, sqlite.Close())
		require.NoError(t, jsonl.Close())
	})
	return map[string]Store{"sqlite": sqlite, "jsonl": jsonl}
}

func TestSaveAndQueryRoundTrip(t *testing.T) {
	started := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rec := sampleRecord("run-1", "sched-a", started)
			require.NoError(t, store.SaveRun(ctx, rec))
			require.NoError(t, store.SaveRun(ctx, sampleRecord("run-2", "sched-b", started.Add(time.Hour))))

			got, err := store.Runs(ctx, Query{ScheduleID: "sched-a"})
			require.NoError(t, err)
			require.Len(t, got, 1)
			require.Equal(t, "run-1", got[0].RunID)
			require.Len(t, got[0].Allocations, 1)
			require.Equal(t, "S1", got[0].Allocations[0].StandID)
			require.Len(t, got[0].Unallocated, 1)
			require.Equal(t, "all_eligible_occupied", got[0].Unallocated[0].Reason)
			require.Len(t, got[0].Metrics, 1)
			require.Len(t, got[0].Issues, 1)
		})
	}
}

func TestQueryByTimeRange(t *testing.T) {
	started := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 3; i++ {
				rec := sampleRecord(fmt.Sprintf("run-%d", i), "sched-a", started.Add(time.Duration(i)*time.Hour))
				require.NoError(t, store.SaveRun(ctx, rec))
			}
			got, err := store.Runs(ctx, Query{Start: started.Add(30 * time.Minute), End: started.Add(90 * time.Minute)})
			require.NoError(t, err)
			require.Len(t, got, 1)
			require.Equal(t, "run-1", got[0].RunID)
		})
	}
}

func TestQueryOrderedByStart(t *testing.T) {
	started := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.SaveRun(ctx, sampleRecord("late", "s", started.Add(time.Hour))))
			require.NoError(t, store.SaveRun(ctx, sampleRecord("early", "s", started)))
			got, err := store.Runs(ctx, Query{})
			require.NoError(t, err)
			require.Len(t, got, 2)
			require.Equal(t, "early", got[0].RunID)
			require.Equal(t, "late", got[1].RunID)
		})
	}
}

func TestSaveManyRowsCrossesBatches(t *testing.T) {
	started := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	dir := t.TempDir()
	store, err := NewSQLiteStore(filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	defer func() { require.NoError(t, store.Close()) }()

	rec := sampleRecord("run-big", "sched-a", started)
	rec.Allocations = nil
	for i := 0; i < batchSize+50; i++ {
		rec.Allocations = append(rec.Allocations, AllocationRow{
			FlightID: fmt.Sprintf("f-%04d", i), StandID: "S1",
			Start: started, End: started.Add(time.Hour), Source: "automated", Status: "allocated",
		})
	}
	ctx := context.Background()
	require.NoError(t, store.SaveRun(ctx, rec))

	got, err := store.Runs(ctx, Query{ScheduleID: "sched-a"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Len(t, got[0].Allocations, batchSize+50)
}
