package metrics

import (
	"context"
	"time"
)

// RunSummary is the outcome of one optimization run.
type RunSummary struct {
	RunID        string
	Command      string
	Algorithm    string
	CostFunction string
	Trips        int
	Rejected     int
	Vehicles     int
	// Unconstrained is the vehicle count without fuel or range limits.
	Unconstrained int
	FuelAdded     bool
	RangeSplits   int
	ZEMet         bool
	Revenue       float64
	Labor         float64
	Energy        float64
	Profit        float64
	Scored        int
	Duration      time.Duration
	Time          time.Time
}

// MetricsSink records run summaries for observability purposes.
type MetricsSink interface {
	RecordRun(s RunSummary) error
}

// GroupEvent describes a converged matching group.
type GroupEvent struct {
	Group         string
	Trips         int
	Vehicles      int
	Unconstrained int
	Rejections    int
	Fallbacks     int
	Time          time.Time
}

// GroupRecorder records matching group results.
type GroupRecorder interface {
	RecordGroup(ev GroupEvent) error
}

// CandidateEvent describes one configuration scored by the profit search.
type CandidateEvent struct {
	Round    int
	Seq      int
	Vehicles int
	Profit   float64
	Time     time.Time
}

// CandidateRecorder records profit search candidates.
type CandidateRecorder interface {
	RecordCandidate(ev CandidateEvent) error
}

// StageEvent is the duration of a completed run stage.
type StageEvent struct {
	RunID    string
	Stage    string
	Duration time.Duration
	Failed   bool
	Time     time.Time
}

// StageRecorder records stage durations.
type StageRecorder interface {
	RecordStage(ev StageEvent) error
}

// Flusher is implemented by sinks that buffer metrics until the end of a run.
type Flusher interface {
	Flush(ctx context.Context) error
}

// NopSink is a MetricsSink that does nothing.
type NopSink struct{}

// RecordRun implements MetricsSink.
func (NopSink) RecordRun(RunSummary) error { return nil }

// RecordGroup implements GroupRecorder.
func (NopSink) RecordGroup(GroupEvent) error { return nil }

// RecordCandidate implements CandidateRecorder.
func (NopSink) RecordCandidate(CandidateEvent) error { return nil }

// RecordStage implements StageRecorder.
func (NopSink) RecordStage(StageEvent) error { return nil }
