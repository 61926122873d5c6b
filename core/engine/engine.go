// Package engine coordinates a full scheduling run: validation, maintenance
// overlay, allocation, capacity forecast and utilisation analysis. It owns
// run lifecycle, per-schedule locking and delivery of results to the
// configured observability sinks.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/kfloy/apron/core/alloc"
	"github.com/kfloy/apron/core/capacity"
	"github.com/kfloy/apron/core/heartbeat"
	"github.com/kfloy/apron/core/logger"
	"github.com/kfloy/apron/core/maintenance"
	"github.com/kfloy/apron/core/metrics"
	"github.com/kfloy/apron/core/model"
	"github.com/kfloy/apron/core/registry"
	"github.com/kfloy/apron/core/results"
	"github.com/kfloy/apron/core/utilisation"
	"github.com/kfloy/apron/core/validate"
	"github.com/kfloy/apron/internal/eventbus"
)

// Options configures an Engine. Nil fields fall back to no-op
// implementations.
type Options struct {
	Logger      logger.Logger
	Metrics     metrics.Sink
	Results     results.Store
	Heartbeat   heartbeat.Publisher
	Bus         eventbus.EventBus
	WorkerCount int
}

// Engine is the scheduling facade. It is safe for concurrent use; runs on
// distinct schedules execute in parallel while runs on the same schedule are
// serialised by an exclusive lock.
type Engine struct {
	log     logger.Logger
	sink    metrics.Sink
	store   results.Store
	hb      heartbeat.Publisher
	bus     eventbus.EventBus
	workers int

	mu     sync.Mutex
	active map[string]bool
}

// New creates an Engine from the given options.
func New(opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = nopLogger{}
	}
	sink := opts.Metrics
	if sink == nil {
		sink = metrics.NopSink{}
	}
	store := opts.Results
	if store == nil {
		store = results.NopStore{}
	}
	hb := opts.Heartbeat
	if hb == nil {
		hb = heartbeat.NopPublisher{}
	}
	workers := opts.WorkerCount
	if workers <= 0 {
		workers = 4
	}
	return &Engine{
		log:     log,
		sink:    sink,
		store:   store,
		hb:      hb,
		bus:     opts.Bus,
		workers: workers,
		active:  make(map[string]bool),
	}
}

// ValidateFlights validates raw rows against the snapshot without running a
// full allocation.
func (e *Engine) ValidateFlights(ctx context.Context, rows []model.RawFlight, snap *model.Snapshot) ([]validate.Outcome, error) {
	reg, err := registry.New(snap)
	if err != nil {
		return nil, &RunError{Kind: SnapshotLoadFailed, Err: err}
	}
	v := validate.New(reg, e.log)
	return v.Validate(ctx, rows, e.workers), nil
}

// ComputeCapacity produces a standalone capacity forecast for one day.
func (e *Engine) ComputeCapacity(ctx context.Context, snap *model.Snapshot, requests []model.MaintenanceRequest, day time.Time) (*capacity.Report, error) {
	reg, err := registry.New(snap)
	if err != nil {
		return nil, &RunError{Kind: SnapshotLoadFailed, Err: err}
	}
	overlay := maintenance.NewOverlay(requests)
	calc := capacity.New(reg, overlay, e.log)
	return calc.Compute(ctx, day, snap.TimeSlots, reg.Settings(), e.workers)
}

// ComputeUtilisation produces a standalone utilisation report for an
// existing allocation result.
func (e *Engine) ComputeUtilisation(ctx context.Context, snap *model.Snapshot, res *alloc.Result, flights []model.Flight) (*utilisation.Report, error) {
	reg, err := registry.New(snap)
	if err != nil {
		return nil, &RunError{Kind: SnapshotLoadFailed, Err: err}
	}
	an := utilisation.New(reg, e.log)
	return an.Analyse(ctx, res, flights, reg.Settings(), e.workers)
}

// Close releases the engine's sinks.
func (e *Engine) Close() error {
	if e.bus != nil {
		e.bus.Close()
	}
	if err := e.hb.Close(); err != nil {
		return err
	}
	return e.store.Close()
}

// lockSchedule acquires the exclusive per-schedule lock.
func (e *Engine) lockSchedule(scheduleID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active[scheduleID] {
		return false
	}
	e.active[scheduleID] = true
	return true
}

func (e *Engine) unlockSchedule(scheduleID string) {
	e.mu.Lock()
	delete(e.active, scheduleID)
	e.mu.Unlock()
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any)         {}
func (nopLogger) Debugw(string, map[string]any) {}
func (nopLogger) Infof(string, ...any)          {}
func (nopLogger) Warnf(string, ...any)          {}
func (nopLogger) Errorf(string, ...any)         {}
