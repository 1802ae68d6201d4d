package metrics

import (
	"context"
	"errors"
)

// MultiSink fans out run metrics to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordRun forwards the summary to all sinks, returning the first error encountered.
func (m *MultiSink) RecordRun(s RunSummary) error {
	for _, sink := range m.Sinks {
		if err := sink.RecordRun(s); err != nil {
			return err
		}
	}
	return nil
}

// RecordGroup forwards group events to sinks supporting them.
func (m *MultiSink) RecordGroup(ev GroupEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(GroupRecorder); ok {
			if err := rec.RecordGroup(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordCandidate forwards candidate events.
func (m *MultiSink) RecordCandidate(ev CandidateEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(CandidateRecorder); ok {
			if err := rec.RecordCandidate(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordStage forwards stage durations.
func (m *MultiSink) RecordStage(ev StageEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(StageRecorder); ok {
			if err := rec.RecordStage(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// Flush flushes every buffering sink and joins their errors.
func (m *MultiSink) Flush(ctx context.Context) error {
	var errs []error
	for _, s := range m.Sinks {
		if f, ok := s.(Flusher); ok {
			if err := f.Flush(ctx); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
