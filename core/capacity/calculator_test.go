package capacity

import (
	"context"
	"testing"
	"time"

	"github.com/kfloy/apron/core/maintenance"
	"github.com/kfloy/apron/core/model"
	"github.com/kfloy/apron/core/registry"
	"github.com/kfloy/apron/infra/logger"
)

var day = time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

func testSnapshot() *model.Snapshot {
	snap := &model.Snapshot{
		Version: 1,
		AircraftTypes: []model.AircraftType{
			{TypeCode: "A320", SizeCategory: model.SizeC, DefaultTurnaroundMinutes: 45},
			{TypeCode: "B77W", BodyClass: model.WideBody, SizeCategory: model.SizeE, DefaultTurnaroundMinutes: 90},
		},
		Stands: []model.Stand{
			{ID: "S1", Name: "Stand 1", Terminal: "T1", MaxSizeCategory: model.SizeC, IsActive: true},
			{ID: "S2", Name: "Stand 2", Terminal: "T1", MaxSizeCategory: model.SizeC, IsActive: true},
			{ID: "S3", Name: "Stand 3", Terminal: "T1", MaxSizeCategory: model.SizeE, IsActive: true},
		},
		TimeSlots: []model.TimeSlot{
			{ID: "SL1", Name: "morning", StartClock: "08:00", EndClock: "09:00", IsActive: true},
			{ID: "SL2", Name: "inactive", StartClock: "09:00", EndClock: "10:00"},
		},
	}
	snap.Settings.SetDefaults()
	snap.Settings.GapBetweenFlightsMinutes = 15
	return snap
}

func compute(t *testing.T, snap *model.Snapshot, reqs []model.MaintenanceRequest) *Report {
	t.Helper()
	reg, err := registry.New(snap)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	calc := New(reg, maintenance.NewOverlay(reqs), logger.NopLogger{})
	report, err := calc.Compute(context.Background(), day, snap.TimeSlots, snap.Settings, 2)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	return report
}

func TestBestCaseThroughput(t *testing.T) {
	report := compute(t, testSnapshot(), nil)

	if len(report.SlotIDs) != 1 || report.SlotIDs[0] != "SL1" {
		t.Fatalf("slots = %v, inactive slot must be skipped", report.SlotIDs)
	}
	// 60 minutes / (45 turnaround + 15 gap) = 1 operation per stand, and all
	// three stands accept the narrow body.
	if got := report.BestCase["SL1"]["A320"]; got != 3 {
		t.Fatalf("A320 best = %d, want 3", got)
	}
	// A wide-body cycle does not fit in one hour.
	if got := report.BestCase["SL1"]["B77W"]; got != 0 {
		t.Fatalf("B77W best = %d, want 0", got)
	}
	body := report.BodyType["SL1"]
	if body.NarrowBest != 3 || body.WideBest != 0 {
		t.Fatalf("body counts = %+v", body)
	}
}

func TestWorstCaseDeductsAdjacency(t *testing.T) {
	snap := testSnapshot()
	snap.AdjacencyRules = []model.AdjacencyRule{
		{PrimaryStandID: "S3", TriggerTypeCodes: []string{"B77W"}, AffectedStandID: "S2", Restriction: model.NoUseAffected},
	}
	report := compute(t, snap, nil)

	if got := report.BestCase["SL1"]["A320"]; got != 3 {
		t.Fatalf("A320 best = %d, want 3", got)
	}
	// Worst case loses S2 while a wide body sits on S3. The wide body's own
	// cycle overhangs the one-hour slot; it still occupies the primary.
	if got := report.WorstCase["SL1"]["A320"]; got != 2 {
		t.Fatalf("A320 worst = %d, want 2", got)
	}
	body := report.BodyType["SL1"]
	if body.NarrowWorst != 2 {
		t.Fatalf("narrow worst = %d, want 2", body.NarrowWorst)
	}
}

func TestWorstCaseSkipsMaintainedPrimary(t *testing.T) {
	snap := testSnapshot()
	snap.AdjacencyRules = []model.AdjacencyRule{
		{PrimaryStandID: "S3", TriggerTypeCodes: []string{"B77W"}, AffectedStandID: "S2", Restriction: model.NoUseAffected},
	}
	// Definite maintenance covers half the slot on S3: the primary is out of
	// play, so no trigger can occupy it and S2 stays usable.
	reqs := []model.MaintenanceRequest{
		{ID: "m1", StandID: "S3", Status: model.MaintenanceApproved,
			Window: model.Window{Start: day.Add(8 * time.Hour), End: day.Add(8*time.Hour + 30*time.Minute)}},
	}
	report := compute(t, snap, reqs)
	if got := report.BestCase["SL1"]["A320"]; got != 2 {
		t.Fatalf("A320 best = %d, want 2", got)
	}
	if got := report.WorstCase["SL1"]["A320"]; got != 2 {
		t.Fatalf("A320 worst = %d, want 2", got)
	}
}

func TestWorstNeverExceedsBest(t *testing.T) {
	snap := testSnapshot()
	snap.TimeSlots = append(snap.TimeSlots, model.TimeSlot{
		ID: "SL3", Name: "long", StartClock: "10:00", EndClock: "14:00", IsActive: true,
	})
	snap.AdjacencyRules = []model.AdjacencyRule{
		{PrimaryStandID: "S3", TriggerTypeCodes: []string{"B77W"}, AffectedStandID: "S2", Restriction: model.MaxSizeReduced, TargetSize: model.SizeB},
		{PrimaryStandID: "S1", TriggerTypeCodes: []string{"A320"}, AffectedStandID: "S3", Restriction: model.TypeProhibited, ProhibitedTypeCode: "B77W"},
	}
	report := compute(t, snap, nil)
	for _, slotID := range report.SlotIDs {
		for _, tc := range report.TypeCodes {
			if report.WorstCase[slotID][tc] > report.BestCase[slotID][tc] {
				t.Errorf("%s/%s: worst %d > best %d", slotID, tc,
					report.WorstCase[slotID][tc], report.BestCase[slotID][tc])
			}
		}
	}
}

func TestMaintenanceScaling(t *testing.T) {
	// 30 of 60 minutes under definite maintenance on S1: the stand is
	// excluded for the slot.
	reqs := []model.MaintenanceRequest{
		{ID: "m1", StandID: "S1", Status: model.MaintenanceApproved,
			Window: model.Window{Start: day.Add(8 * time.Hour), End: day.Add(8*time.Hour + 30*time.Minute)}},
	}
	report := compute(t, testSnapshot(), reqs)
	if got := report.BestCase["SL1"]["A320"]; got != 2 {
		t.Fatalf("A320 best with half-blocked stand = %d, want 2", got)
	}

	// 20 of 60 minutes scales the single operation by 40/60 and rounds back
	// to one.
	reqs[0].Window.End = day.Add(8*time.Hour + 20*time.Minute)
	report = compute(t, testSnapshot(), reqs)
	if got := report.BestCase["SL1"]["A320"]; got != 3 {
		t.Fatalf("A320 best with scaled stand = %d, want 3", got)
	}

	// Potential maintenance has no capacity effect.
	reqs[0].Status = model.MaintenanceRequested
	reqs[0].Window.End = day.Add(9 * time.Hour)
	report = compute(t, testSnapshot(), reqs)
	if got := report.BestCase["SL1"]["A320"]; got != 3 {
		t.Fatalf("A320 best with potential maintenance = %d, want 3", got)
	}
}

func TestComputeCancelled(t *testing.T) {
	snap := testSnapshot()
	reg, _ := registry.New(snap)
	calc := New(reg, maintenance.NewOverlay(nil), logger.NopLogger{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := calc.Compute(ctx, day, snap.TimeSlots, snap.Settings, 2); err == nil {
		t.Fatal("expected context error")
	}
}
