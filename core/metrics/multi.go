package metrics

import "errors"

// MultiSink fans records out to several sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordDispatchResult forwards to every sink and joins their errors.
func (m *MultiSink) RecordDispatchResult(res []DispatchResult) error {
	var errs []error
	for _, s := range m.Sinks {
		if err := s.RecordDispatchResult(res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordFlowRun forwards to the sinks that record flow runs.
func (m *MultiSink) RecordFlowRun(ev FlowRunEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(FlowRecorder); ok {
			if err := rec.RecordFlowRun(ev); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink that holds resources.
func (m *MultiSink) Close() {
	for _, s := range m.Sinks {
		if c, ok := s.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
