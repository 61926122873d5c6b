package metrics

import (
	"strconv"

	coremetrics "github.com/kfloy/apron/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records run events in Prometheus metrics.
type PromSink struct {
	runs        *prometheus.CounterVec
	runDuration prometheus.Histogram
	placements  *prometheus.CounterVec
	utilisation *prometheus.GaugeVec
}

// NewPromSink registers run metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using cfg.PrometheusPort.
func NewPromSink(cfg coremetrics.Config) (coremetrics.Sink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(cfg coremetrics.Config, reg prometheus.Registerer) (coremetrics.Sink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "apron_runs_total",
		Help: "Total number of scheduling runs by terminal state",
	}, []string{"schedule_id", "state"})
	runDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "apron_run_duration_seconds",
		Help:    "Wall time of scheduling runs",
		Buckets: prometheus.DefBuckets,
	})
	placements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "apron_placements_total",
		Help: "Per-flight placement outcomes",
	}, []string{"placed", "reason"})
	utilisation := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "apron_stand_utilisation_rate",
		Help: "Utilisation rate per stand from the latest analysed run",
	}, []string{"stand_id"})

	if err := reg.Register(runs); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			runs = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(runDuration); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			runDuration = are.ExistingCollector.(prometheus.Histogram)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(placements); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			placements = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(utilisation); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			utilisation = are.ExistingCollector.(*prometheus.GaugeVec)
		} else {
			return nil, err
		}
	}
	return &PromSink{runs: runs, runDuration: runDuration, placements: placements, utilisation: utilisation}, nil
}

// RecordRunResult increments the run counter and observes the duration.
func (s *PromSink) RecordRunResult(res coremetrics.RunResult) error {
	s.runs.WithLabelValues(res.ScheduleID, res.State).Inc()
	s.runDuration.Observe(res.Duration.Seconds())
	return nil
}

// RecordPlacement increments the placement counter.
func (s *PromSink) RecordPlacement(ev coremetrics.PlacementEvent) error {
	reason := ""
	if !ev.Placed {
		reason = ev.Reason.String()
	}
	s.placements.WithLabelValues(strconv.FormatBool(ev.Placed), reason).Inc()
	return nil
}

// RecordUtilisation sets the per-stand utilisation gauge.
func (s *PromSink) RecordUtilisation(ev coremetrics.UtilisationEvent) error {
	s.utilisation.WithLabelValues(ev.StandID).Set(ev.UtilisationRate)
	return nil
}
