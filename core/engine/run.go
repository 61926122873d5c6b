package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kfloy/apron/core/alloc"
	"github.com/kfloy/apron/core/capacity"
	"github.com/kfloy/apron/core/events"
	"github.com/kfloy/apron/core/heartbeat"
	"github.com/kfloy/apron/core/maintenance"
	"github.com/kfloy/apron/core/metrics"
	"github.com/kfloy/apron/core/model"
	"github.com/kfloy/apron/core/registry"
	"github.com/kfloy/apron/core/results"
	"github.com/kfloy/apron/core/utilisation"
	"github.com/kfloy/apron/core/validate"
)

// RunState is the lifecycle state of a scheduling run.
type RunState int

const (
	RunPending RunState = iota
	RunRunning
	RunCompleted
	RunFailed
	RunCancelled
)

// String returns a stable identifier for the run state.
func (s RunState) String() string {
	switch s {
	case RunPending:
		return "pending"
	case RunRunning:
		return "running"
	case RunCompleted:
		return "completed"
	case RunFailed:
		return "failed"
	case RunCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// RunRequest describes one scheduling run.
type RunRequest struct {
	// RunID is assigned when empty.
	RunID      string
	ScheduleID string
	// Day anchors slot and operating windows; derived from the earliest
	// valid flight when zero.
	Day         time.Time
	Snapshot    *model.Snapshot
	Rows        []model.RawFlight
	Maintenance []model.MaintenanceRequest
}

// RunResult is the outcome of one scheduling run.
type RunResult struct {
	RunID       string
	ScheduleID  string
	State       RunState
	Outcomes    []validate.Outcome
	Allocation  *alloc.Result
	Capacity    *capacity.Report
	Utilisation *utilisation.Report
	StartedAt   time.Time
	FinishedAt  time.Time
	Err         error
}

// RunAllocation executes the full pipeline for one schedule: validation,
// maintenance overlay, allocation, capacity forecast and utilisation
// analysis. A terminal record is persisted even for failed runs.
func (e *Engine) RunAllocation(ctx context.Context, req RunRequest) (*RunResult, error) {
	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	res := &RunResult{RunID: runID, ScheduleID: req.ScheduleID, State: RunPending, StartedAt: time.Now()}

	if !e.lockSchedule(req.ScheduleID) {
		res.State = RunFailed
		res.Err = &RunError{Kind: ScheduleLocked, Err: fmt.Errorf("schedule %s already running", req.ScheduleID)}
		res.FinishedAt = time.Now()
		return res, res.Err
	}
	defer e.unlockSchedule(req.ScheduleID)

	reg, err := registry.New(req.Snapshot)
	if err != nil {
		return e.finish(ctx, res, &RunError{Kind: SnapshotLoadFailed, Err: err})
	}
	settings := reg.Settings()

	if d := settings.AllocationDeadline(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	res.State = RunRunning
	e.publish(events.RunStartedEvent{RunID: runID, ScheduleID: req.ScheduleID, Flights: len(req.Rows), At: time.Now()})
	e.log.Infof("run %s started for schedule %s with %d rows", runID, req.ScheduleID, len(req.Rows))

	// Phase 1: validation
	v := validate.New(reg, e.log)
	res.Outcomes = v.Validate(ctx, req.Rows, e.workers)
	if err := runErr(ctx); err != nil {
		return e.finish(ctx, res, err)
	}
	flights := make([]model.Flight, 0, len(res.Outcomes))
	for _, o := range res.Outcomes {
		if o.Valid() {
			flights = append(flights, o.Flight)
		}
	}
	e.phase(runID, req.ScheduleID, "validate", len(res.Outcomes), len(req.Rows))

	day := req.Day
	if day.IsZero() {
		day = earliestDay(flights)
	}

	// Phase 2: maintenance overlay
	overlay := maintenance.NewOverlay(req.Maintenance)
	e.phase(runID, req.ScheduleID, "maintenance", len(req.Maintenance), len(req.Maintenance))

	// Phase 3: allocation
	allocator := alloc.New(reg, overlay, settings, e.log)
	res.Allocation, err = allocator.Allocate(ctx, flights)
	if err != nil {
		return e.finish(ctx, res, coalesce(ctx, err))
	}
	e.recordPlacements(runID, res.Allocation)
	e.phase(runID, req.ScheduleID, "allocate", len(res.Allocation.Allocated), len(flights))

	// Phase 4: capacity forecast
	res.Capacity, err = capacity.New(reg, overlay, e.log).Compute(ctx, day, req.Snapshot.TimeSlots, settings, e.workers)
	if err != nil {
		return e.finish(ctx, res, coalesce(ctx, err))
	}
	e.recordCapacity(day, res.Capacity)
	e.phase(runID, req.ScheduleID, "capacity", len(res.Capacity.SlotIDs), len(res.Capacity.SlotIDs))

	// Phase 5: utilisation analysis
	res.Utilisation, err = utilisation.New(reg, e.log).Analyse(ctx, res.Allocation, flights, settings, e.workers)
	if err != nil {
		return e.finish(ctx, res, coalesce(ctx, err))
	}
	e.recordUtilisation(runID, res.Utilisation)
	e.phase(runID, req.ScheduleID, "utilisation", len(res.Utilisation.Stands), len(res.Utilisation.Stands))

	return e.finish(ctx, res, nil)
}

// finish moves the run to its terminal state, persists the record and
// notifies sinks. It never overwrites an earlier failure with a later one.
func (e *Engine) finish(ctx context.Context, res *RunResult, cause error) (*RunResult, error) {
	res.FinishedAt = time.Now()
	res.Err = cause
	switch {
	case cause == nil:
		res.State = RunCompleted
	case isKind(cause, Cancelled):
		res.State = RunCancelled
	default:
		res.State = RunFailed
	}

	rec := e.record(res)
	// Persist with a fresh context so a cancelled run still leaves a record.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := e.store.SaveRun(saveCtx, rec); err != nil {
		e.log.Errorf("run %s: persist failed: %v", res.RunID, err)
		if res.Err == nil {
			res.Err = &RunError{Kind: SinkWriteFailed, Err: err}
			res.State = RunFailed
		}
	}

	allocated, unallocated := 0, 0
	if res.Allocation != nil {
		allocated = len(res.Allocation.Allocated)
		unallocated = len(res.Allocation.Unallocated)
	}
	if err := e.sink.RecordRunResult(metrics.RunResult{
		RunID:       res.RunID,
		ScheduleID:  res.ScheduleID,
		State:       res.State.String(),
		Allocated:   allocated,
		Unallocated: unallocated,
		Duration:    res.FinishedAt.Sub(res.StartedAt),
		Time:        res.FinishedAt,
	}); err != nil {
		e.log.Errorf("run %s: metrics sink failed: %v", res.RunID, err)
	}
	e.publish(events.RunFinishedEvent{
		RunID:       res.RunID,
		ScheduleID:  res.ScheduleID,
		State:       res.State.String(),
		Allocated:   allocated,
		Unallocated: unallocated,
		Err:         res.Err,
		At:          res.FinishedAt,
	})
	e.beat(res.RunID, res.ScheduleID, res.State.String(), allocated, allocated+unallocated)
	e.log.Infof("run %s finished: %s (%d allocated, %d unallocated)", res.RunID, res.State, allocated, unallocated)
	return res, res.Err
}

// record flattens the run result into its persisted form.
func (e *Engine) record(res *RunResult) results.RunRecord {
	rec := results.RunRecord{
		RunID:      res.RunID,
		ScheduleID: res.ScheduleID,
		State:      res.State.String(),
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
	}
	if res.Err != nil {
		rec.Error = truncateErr(res.Err)
	}
	if res.Allocation != nil {
		for _, a := range res.Allocation.Allocated {
			rec.Allocations = append(rec.Allocations, results.AllocationRow{
				FlightID: a.FlightID,
				StandID:  a.StandID,
				Start:    a.Occupies.Start,
				End:      a.Occupies.End,
				Source:   a.Source.String(),
				Status:   a.Status.String(),
			})
		}
		for _, u := range res.Allocation.Unallocated {
			rec.Unallocated = append(rec.Unallocated, results.UnallocatedRow{
				FlightID: u.FlightID,
				Reason:   u.Reason.String(),
				Detail:   u.Detail,
			})
		}
	}
	if res.Utilisation != nil {
		for _, s := range res.Utilisation.Stands {
			rec.Metrics = append(rec.Metrics, results.StandMetricRow{
				StandID:         s.StandID,
				UtilisationRate: s.UtilisationRate,
				AllocatedMin:    s.AllocatedMinutes,
				Suboptimal:      s.SuboptimalAllocations,
			})
		}
	}
	for _, o := range res.Outcomes {
		for _, iss := range o.Issues {
			rec.Issues = append(rec.Issues, results.IssueRow{
				Row:      o.Row,
				FlightID: o.Flight.ID,
				Code:     iss.Code.String(),
				Severity: iss.Severity.String(),
				Field:    iss.Field,
				Message:  iss.Message,
			})
		}
	}
	return rec
}

func (e *Engine) recordPlacements(runID string, result *alloc.Result) {
	rec, ok := e.sink.(metrics.PlacementRecorder)
	now := time.Now()
	for _, a := range result.Allocated {
		ev := metrics.PlacementEvent{RunID: runID, FlightID: a.FlightID, StandID: a.StandID, Placed: true, Time: now}
		if ok {
			if err := rec.RecordPlacement(ev); err != nil {
				e.log.Errorf("placement metric failed: %v", err)
			}
		}
		e.publish(events.PlacementEvent{RunID: runID, FlightID: a.FlightID, StandID: a.StandID, Placed: true})
	}
	for _, u := range result.Unallocated {
		ev := metrics.PlacementEvent{RunID: runID, FlightID: u.FlightID, Placed: false, Reason: u.Reason, Time: now}
		if ok {
			if err := rec.RecordPlacement(ev); err != nil {
				e.log.Errorf("placement metric failed: %v", err)
			}
		}
		e.publish(events.PlacementEvent{RunID: runID, FlightID: u.FlightID, Placed: false, Reason: u.Reason})
	}
}

func (e *Engine) recordCapacity(day time.Time, report *capacity.Report) {
	rec, ok := e.sink.(metrics.CapacityRecorder)
	if !ok {
		return
	}
	var cells []metrics.CapacityCell
	for _, slotID := range report.SlotIDs {
		for _, tc := range report.TypeCodes {
			cells = append(cells, metrics.CapacityCell{
				Day:      day,
				SlotID:   slotID,
				TypeCode: tc,
				Best:     report.BestCase[slotID][tc],
				Worst:    report.WorstCase[slotID][tc],
			})
		}
	}
	if err := rec.RecordCapacity(cells); err != nil {
		e.log.Errorf("capacity metric failed: %v", err)
	}
}

func (e *Engine) recordUtilisation(runID string, report *utilisation.Report) {
	rec, ok := e.sink.(metrics.UtilisationRecorder)
	if !ok {
		return
	}
	now := time.Now()
	for _, s := range report.Stands {
		ev := metrics.UtilisationEvent{
			RunID:           runID,
			StandID:         s.StandID,
			UtilisationRate: s.UtilisationRate,
			Suboptimal:      s.SuboptimalAllocations,
			Time:            now,
		}
		if err := rec.RecordUtilisation(ev); err != nil {
			e.log.Errorf("utilisation metric failed: %v", err)
		}
	}
}

// phase emits the end-of-phase heartbeat and bus event.
func (e *Engine) phase(runID, scheduleID, name string, done, total int) {
	e.publish(events.PhaseEvent{RunID: runID, Phase: name, Units: done, At: time.Now()})
	e.beat(runID, scheduleID, name, done, total)
}

func (e *Engine) beat(runID, scheduleID, phase string, done, total int) {
	if _, err := e.hb.PublishProgress(heartbeat.Progress{
		RunID:      runID,
		ScheduleID: scheduleID,
		Phase:      phase,
		Done:       done,
		Total:      total,
		At:         time.Now(),
	}); err != nil {
		e.log.Warnf("heartbeat failed: %v", err)
	}
}

func (e *Engine) publish(ev any) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}

// coalesce prefers the context's failure kind over a phase error.
func coalesce(ctx context.Context, err error) error {
	if cause := runErr(ctx); cause != nil {
		return cause
	}
	return err
}

// runErr maps a context failure to its run error kind.
func runErr(ctx context.Context) error {
	switch ctx.Err() {
	case context.Canceled:
		return &RunError{Kind: Cancelled, Err: ctx.Err()}
	case context.DeadlineExceeded:
		return &RunError{Kind: DeadlineExceeded, Err: ctx.Err()}
	default:
		return nil
	}
}

func isKind(err error, kind ErrorKind) bool {
	re, ok := err.(*RunError)
	return ok && re.Kind == kind
}

func earliestDay(flights []model.Flight) time.Time {
	var earliest time.Time
	for _, f := range flights {
		if earliest.IsZero() || f.ScheduledAt.Before(earliest) {
			earliest = f.ScheduledAt
		}
	}
	if earliest.IsZero() {
		return time.Now().UTC().Truncate(24 * time.Hour)
	}
	return time.Date(earliest.Year(), earliest.Month(), earliest.Day(), 0, 0, 0, 0, earliest.Location())
}
