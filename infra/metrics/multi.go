package metrics

import coremetrics "github.com/kfloy/apron/core/metrics"

// MultiSink fanouts run events to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordRunResult forwards the record to all sinks, returning the first error encountered.
func (m *MultiSink) RecordRunResult(res coremetrics.RunResult) error {
	for _, s := range m.Sinks {
		if err := s.RecordRunResult(res); err != nil {
			return err
		}
	}
	return nil
}

// RecordPlacement forwards placement events when supported by the sink.
func (m *MultiSink) RecordPlacement(ev coremetrics.PlacementEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.PlacementRecorder); ok {
			if err := rec.RecordPlacement(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordCapacity forwards capacity cells when supported by the sink.
func (m *MultiSink) RecordCapacity(cells []coremetrics.CapacityCell) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.CapacityRecorder); ok {
			if err := rec.RecordCapacity(cells); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordUtilisation forwards utilisation events when supported by the sink.
func (m *MultiSink) RecordUtilisation(ev coremetrics.UtilisationEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.UtilisationRecorder); ok {
			if err := rec.RecordUtilisation(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
