package alloc

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	flightsPlaced      prometheus.Counter
	flightsUnallocated *prometheus.CounterVec
	allocationDuration prometheus.Histogram
	standsConsidered   prometheus.Histogram
)

// newCollectors creates new metric collectors.
func newCollectors() (prometheus.Counter, *prometheus.CounterVec, prometheus.Histogram, prometheus.Histogram) {
	placed := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "allocation_flights_placed_total",
			Help: "Number of flights successfully assigned to a stand",
		},
	)
	unalloc := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "allocation_flights_unallocated_total",
			Help: "Number of flights left without a stand",
		},
		[]string{"reason"},
	)
	dur := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "allocation_run_duration_seconds",
			Help:    "Wall time of one allocation pass",
			Buckets: prometheus.DefBuckets,
		},
	)
	considered := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "allocation_stands_considered",
			Help:    "Candidate stands examined per occupation unit",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8),
		},
	)
	return placed, unalloc, dur, considered
}

func init() {
	flightsPlaced, flightsUnallocated, allocationDuration, standsConsidered = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers allocator metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(flightsPlaced, flightsUnallocated, allocationDuration, standsConsidered)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	flightsPlaced, flightsUnallocated, allocationDuration, standsConsidered = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
