package alloc

import (
	"context"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/kfloy/apron/core/maintenance"
	"github.com/kfloy/apron/core/model"
	"github.com/kfloy/apron/core/registry"
	"github.com/kfloy/apron/infra/logger"
)

var day = time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

func at(min int) time.Time { return day.Add(time.Duration(min) * time.Minute) }

func testSnapshot(stands ...model.Stand) *model.Snapshot {
	snap := &model.Snapshot{
		Version:  1,
		Airlines: []string{"AF", "BA"},
		Airports: []string{"CDG", "LHR"},
		AircraftTypes: []model.AircraftType{
			{TypeCode: "A320", SizeCategory: model.SizeC, DefaultTurnaroundMinutes: 45},
			{TypeCode: "B77W", BodyClass: model.WideBody, SizeCategory: model.SizeE, DefaultTurnaroundMinutes: 90},
		},
		Stands: stands,
	}
	snap.Settings.SetDefaults()
	snap.Settings.GapBetweenFlightsMinutes = 15
	return snap
}

func stand(id string, size model.SizeCategory) model.Stand {
	return model.Stand{ID: id, Name: "Stand " + id, Terminal: "T1", MaxSizeCategory: size, IsActive: true}
}

func arrival(id string, min int, typeCode, reg string) model.Flight {
	return model.Flight{
		ID: id, FlightNumber: "100", AirlineCode: "AF", Nature: model.Arrival,
		ScheduledAt: at(min), TypeCode: typeCode, Registration: reg,
		TurnaroundMinutes: 45, Status: model.ValidationValid,
	}
}

func departure(id string, min int, typeCode, reg string) model.Flight {
	f := arrival(id, min, typeCode, reg)
	f.Nature = model.Departure
	return f
}

func newAllocator(t *testing.T, snap *model.Snapshot, reqs []model.MaintenanceRequest) *Allocator {
	t.Helper()
	reg, err := registry.New(snap)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return New(reg, maintenance.NewOverlay(reqs), snap.Settings, logger.NopLogger{})
}

func allocate(t *testing.T, a *Allocator, flights []model.Flight) *Result {
	t.Helper()
	res, err := a.Allocate(context.Background(), flights)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	return res
}

func standOf(t *testing.T, res *Result, flightID string) string {
	t.Helper()
	for _, al := range res.Allocated {
		if al.FlightID == flightID {
			return al.StandID
		}
	}
	t.Fatalf("flight %s not allocated; unallocated: %+v", flightID, res.Unallocated)
	return ""
}

func reasonOf(t *testing.T, res *Result, flightID string) Reason {
	t.Helper()
	for _, u := range res.Unallocated {
		if u.FlightID == flightID {
			return u.Reason
		}
	}
	t.Fatalf("flight %s not in unallocated set", flightID)
	return 0
}

func TestPairedTurnaroundSharesStand(t *testing.T) {
	snap := testSnapshot(stand("S1", model.SizeC), stand("S2", model.SizeC))
	a := newAllocator(t, snap, nil)

	res := allocate(t, a, []model.Flight{
		arrival("arr", 600, "A320", "F-AAAA"),
		departure("dep", 720, "A320", "F-AAAA"),
	})
	if len(res.Allocated) != 2 || len(res.Unallocated) != 0 {
		t.Fatalf("allocated %d unallocated %d", len(res.Allocated), len(res.Unallocated))
	}
	if standOf(t, res, "arr") != standOf(t, res, "dep") {
		t.Fatal("paired flights must share one stand")
	}
	for _, al := range res.Allocated {
		want := model.Window{Start: at(600), End: at(720)}
		if al.Occupies != want {
			t.Fatalf("occupation = %+v, want %+v", al.Occupies, want)
		}
	}
}

func TestRepeatedRotationsPairDistinctDepartures(t *testing.T) {
	snap := testSnapshot(stand("S1", model.SizeC), stand("S2", model.SizeC))
	a := newAllocator(t, snap, nil)

	// Same tail flies two rotations; each arrival must claim its own
	// departure, in time order.
	res := allocate(t, a, []model.Flight{
		arrival("arr1", 600, "A320", "F-AAAA"),
		departure("dep1", 700, "A320", "F-AAAA"),
		arrival("arr2", 800, "A320", "F-AAAA"),
		departure("dep2", 900, "A320", "F-AAAA"),
	})
	if len(res.Allocated) != 4 || len(res.Unallocated) != 0 {
		t.Fatalf("allocated %d unallocated %d", len(res.Allocated), len(res.Unallocated))
	}
	windows := map[string]model.Window{
		"arr1": {Start: at(600), End: at(700)},
		"dep1": {Start: at(600), End: at(700)},
		"arr2": {Start: at(800), End: at(900)},
		"dep2": {Start: at(800), End: at(900)},
	}
	for _, al := range res.Allocated {
		if al.Occupies != windows[al.FlightID] {
			t.Errorf("%s occupies %+v, want %+v", al.FlightID, al.Occupies, windows[al.FlightID])
		}
	}
}

func TestGapRuleSeparatesOccupations(t *testing.T) {
	snap := testSnapshot(stand("S1", model.SizeC))
	a := newAllocator(t, snap, nil)

	// Second arrival starts 5 minutes after the first occupation ends, inside
	// the 15-minute gap.
	res := allocate(t, a, []model.Flight{
		arrival("f1", 600, "A320", ""),
		arrival("f2", 650, "A320", ""),
	})
	if len(res.Allocated) != 1 {
		t.Fatalf("allocated = %d, want 1", len(res.Allocated))
	}
	if got := reasonOf(t, res, "f2"); got != AllEligibleOccupied {
		t.Fatalf("reason = %s, want all_eligible_occupied", got)
	}

	// At exactly the gap boundary both fit.
	res = allocate(t, a, []model.Flight{
		arrival("f1", 600, "A320", ""),
		arrival("f2", 660, "A320", ""),
	})
	if len(res.Allocated) != 2 {
		t.Fatalf("allocated = %d, want 2: %+v", len(res.Allocated), res.Unallocated)
	}
}

func TestAdjacencyBlocksAffectedStand(t *testing.T) {
	snap := testSnapshot(stand("S1", model.SizeC), stand("S2", model.SizeC), stand("S3", model.SizeE))
	snap.AdjacencyRules = []model.AdjacencyRule{
		{PrimaryStandID: "S3", TriggerTypeCodes: []string{"B77W"}, AffectedStandID: "S2", Restriction: model.NoUseAffected},
	}
	a := newAllocator(t, snap, nil)

	wide := arrival("wide", 600, "B77W", "")
	wide.TurnaroundMinutes = 90
	res := allocate(t, a, []model.Flight{
		wide,
		arrival("n1", 610, "A320", ""),
		arrival("n2", 620, "A320", ""),
	})

	if standOf(t, res, "wide") != "S3" {
		t.Fatalf("wide body on %s, want S3", standOf(t, res, "wide"))
	}
	// n1 takes S1; n2 finds S1 occupied and S2 adjacency-blocked. The
	// adjacency reason wins over plain occupancy.
	if standOf(t, res, "n1") != "S1" {
		t.Fatalf("n1 on %s, want S1", standOf(t, res, "n1"))
	}
	if got := reasonOf(t, res, "n2"); got != AdjacencyConflict {
		t.Fatalf("reason = %s, want adjacency_conflict", got)
	}
}

func TestAdjacencyReverseDirection(t *testing.T) {
	snap := testSnapshot(stand("S2", model.SizeC), stand("S3", model.SizeE))
	snap.AdjacencyRules = []model.AdjacencyRule{
		{PrimaryStandID: "S3", TriggerTypeCodes: []string{"B77W"}, AffectedStandID: "S2", Restriction: model.NoUseAffected},
	}
	a := newAllocator(t, snap, nil)

	// The narrow body lands first on S2; the wide body may not then occupy the
	// primary stand S3 while S2 is in use.
	wide := arrival("wide", 610, "B77W", "")
	wide.TurnaroundMinutes = 90
	res := allocate(t, a, []model.Flight{
		arrival("n1", 600, "A320", ""),
		wide,
	})
	if standOf(t, res, "n1") != "S2" {
		t.Fatalf("n1 on %s, want S2", standOf(t, res, "n1"))
	}
	if got := reasonOf(t, res, "wide"); got != AdjacencyConflict {
		t.Fatalf("reason = %s, want adjacency_conflict", got)
	}
}

func TestMaintenanceBlackout(t *testing.T) {
	snap := testSnapshot(stand("S1", model.SizeC))
	reqs := []model.MaintenanceRequest{
		{ID: "m1", StandID: "S1", Window: model.Window{Start: at(500), End: at(800)}, Status: model.MaintenanceApproved},
	}
	a := newAllocator(t, snap, reqs)

	res := allocate(t, a, []model.Flight{arrival("f1", 600, "A320", "")})
	if got := reasonOf(t, res, "f1"); got != MaintenanceBlackout {
		t.Fatalf("reason = %s, want maintenance_blackout", got)
	}

	// Potential maintenance does not block.
	reqs[0].Status = model.MaintenanceRequested
	a = newAllocator(t, snap, reqs)
	res = allocate(t, a, []model.Flight{arrival("f1", 600, "A320", "")})
	if len(res.Allocated) != 1 {
		t.Fatal("potential maintenance must not block placement")
	}
}

func TestNoEligibleStand(t *testing.T) {
	snap := testSnapshot(stand("S1", model.SizeC))
	a := newAllocator(t, snap, nil)
	wide := arrival("wide", 600, "B77W", "")
	res := allocate(t, a, []model.Flight{wide})
	if got := reasonOf(t, res, "wide"); got != NoEligibleStand {
		t.Fatalf("reason = %s, want no_eligible_stand", got)
	}
}

func TestPreferencesHonoured(t *testing.T) {
	snap := testSnapshot(stand("S1", model.SizeC), stand("S2", model.SizeC), stand("S3", model.SizeC))
	a := newAllocator(t, snap, nil)
	f := arrival("f1", 600, "A320", "")
	f.StandPreferences = []string{"S3", "S1"}
	res := allocate(t, a, []model.Flight{f})
	if standOf(t, res, "f1") != "S3" {
		t.Fatalf("placed on %s, want preferred S3", standOf(t, res, "f1"))
	}
}

func TestRestrictionsExcludeStands(t *testing.T) {
	snap := testSnapshot(stand("S1", model.SizeC), stand("S2", model.SizeC))
	a := newAllocator(t, snap, nil)
	f := arrival("f1", 600, "A320", "")
	f.StandRestrictions = []string{"S1"}
	res := allocate(t, a, []model.Flight{f})
	if standOf(t, res, "f1") != "S2" {
		t.Fatalf("placed on %s, want S2", standOf(t, res, "f1"))
	}
}

func TestFixedStand(t *testing.T) {
	snap := testSnapshot(stand("S1", model.SizeC), stand("S2", model.SizeC))
	a := newAllocator(t, snap, nil)

	// A fixed assignment bypasses eligibility: a wide body forced onto a size
	// C stand is accepted and marked manual.
	wide := arrival("wide", 600, "B77W", "")
	wide.TurnaroundMinutes = 90
	wide.HasFixedStand = true
	wide.FixedStandID = "S2"
	res := allocate(t, a, []model.Flight{wide})
	if standOf(t, res, "wide") != "S2" {
		t.Fatalf("fixed placement on %s, want S2", standOf(t, res, "wide"))
	}
	if res.Allocated[0].Source != model.SourceManual {
		t.Fatalf("source = %s, want manual", res.Allocated[0].Source)
	}

	// Unknown fixed stand is a conflict.
	bad := arrival("bad", 600, "A320", "")
	bad.HasFixedStand = true
	bad.FixedStandID = "S9"
	res = allocate(t, a, []model.Flight{bad})
	if got := reasonOf(t, res, "bad"); got != FixedStandConflict {
		t.Fatalf("reason = %s, want fixed_stand_conflict", got)
	}
}

func TestFixedStandPlacedBeforeFree(t *testing.T) {
	snap := testSnapshot(stand("S1", model.SizeC))
	a := newAllocator(t, snap, nil)

	// The free flight is earlier but the fixed one owns the stand.
	fixed := arrival("fixed", 610, "A320", "")
	fixed.HasFixedStand = true
	fixed.FixedStandID = "S1"
	res := allocate(t, a, []model.Flight{arrival("free", 600, "A320", ""), fixed})
	if standOf(t, res, "fixed") != "S1" {
		t.Fatal("fixed flight must win the stand")
	}
	if got := reasonOf(t, res, "free"); got != AllEligibleOccupied {
		t.Fatalf("reason = %s, want all_eligible_occupied", got)
	}
}

func TestDeterministicAcrossInputOrder(t *testing.T) {
	snap := testSnapshot(stand("S1", model.SizeC), stand("S2", model.SizeC), stand("S3", model.SizeE))
	a := newAllocator(t, snap, nil)

	flights := []model.Flight{
		arrival("a1", 600, "A320", "F-AAAA"),
		departure("d1", 700, "A320", "F-AAAA"),
		arrival("a2", 605, "A320", ""),
		arrival("a3", 610, "B77W", ""),
		arrival("a4", 615, "A320", ""),
	}
	first := allocate(t, a, flights)

	reversed := make([]model.Flight, len(flights))
	for i, f := range flights {
		reversed[len(flights)-1-i] = f
	}
	second := allocate(t, a, reversed)

	if !reflect.DeepEqual(sortedAllocations(first), sortedAllocations(second)) {
		t.Fatalf("allocations differ across input order:\n%+v\n%+v",
			sortedAllocations(first), sortedAllocations(second))
	}
}

func sortedAllocations(res *Result) []model.StandAllocation {
	out := append([]model.StandAllocation(nil), res.Allocated...)
	sort.Slice(out, func(i, j int) bool { return out[i].FlightID < out[j].FlightID })
	return out
}

func TestEveryFlightAccountedOnce(t *testing.T) {
	snap := testSnapshot(stand("S1", model.SizeC))
	a := newAllocator(t, snap, nil)
	flights := []model.Flight{
		arrival("f1", 600, "A320", ""),
		arrival("f2", 605, "A320", ""),
		arrival("f3", 900, "B77W", ""),
	}
	res := allocate(t, a, flights)
	seen := make(map[string]int)
	for _, al := range res.Allocated {
		seen[al.FlightID]++
	}
	for _, u := range res.Unallocated {
		seen[u.FlightID]++
	}
	for _, f := range flights {
		if seen[f.ID] != 1 {
			t.Errorf("flight %s accounted %d times", f.ID, seen[f.ID])
		}
	}
}

func TestAllocateCancellation(t *testing.T) {
	snap := testSnapshot(stand("S1", model.SizeC))
	a := newAllocator(t, snap, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := a.Allocate(ctx, []model.Flight{arrival("f1", 600, "A320", "")}); err == nil {
		t.Fatal("expected context error")
	}
}
