package metrics

import (
	"context"
	"time"

	"github.com/kilianp07/rotaplan/core/events"
	coremetrics "github.com/kilianp07/rotaplan/core/metrics"
	"github.com/kilianp07/rotaplan/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records metrics for events.
// On cancellation it records the events already buffered before it stops.
// It also stops when the bus is closed. The returned channel is closed once
// the collector has exited.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				drain(sub, sink)
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				record(sink, ev)
			}
		}
	}()
	return done
}

// drain records the events already buffered on sub.
func drain(sub <-chan eventbus.Event, sink coremetrics.MetricsSink) {
	for {
		select {
		case ev, ok := <-sub:
			if !ok {
				return
			}
			record(sink, ev)
		default:
			return
		}
	}
}

func record(sink coremetrics.MetricsSink, ev eventbus.Event) {
	now := time.Now()
	switch e := ev.(type) {
	case events.GroupSolvedEvent:
		if r, ok := sink.(coremetrics.GroupRecorder); ok {
			_ = r.RecordGroup(coremetrics.GroupEvent{
				Group:         e.Group,
				Trips:         e.Trips,
				Vehicles:      e.Vehicles,
				Unconstrained: e.Unconstrained,
				Rejections:    e.Rejections,
				Fallbacks:     e.Fallbacks,
				Time:          now,
			})
		}
	case events.CandidateEvent:
		if r, ok := sink.(coremetrics.CandidateRecorder); ok {
			_ = r.RecordCandidate(coremetrics.CandidateEvent{
				Round:    e.Round,
				Seq:      e.Seq,
				Vehicles: e.Vehicles,
				Profit:   e.Profit,
				Time:     now,
			})
		}
	case events.StageEvent:
		if e.Action != events.ActionDone {
			return
		}
		if r, ok := sink.(coremetrics.StageRecorder); ok {
			_ = r.RecordStage(coremetrics.StageEvent{
				RunID:    e.RunID,
				Stage:    e.Stage,
				Duration: e.Elapsed,
				Failed:   e.Err != nil,
				Time:     now,
			})
		}
	}
}
