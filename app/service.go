package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/rotaplan/config"
	"github.com/kilianp07/rotaplan/core/events"
	coremetrics "github.com/kilianp07/rotaplan/core/metrics"
	"github.com/kilianp07/rotaplan/core/runlog"
	"github.com/kilianp07/rotaplan/infra/logger"
	"github.com/kilianp07/rotaplan/infra/metrics"
	"github.com/kilianp07/rotaplan/infra/mqtt"
	"github.com/kilianp07/rotaplan/internal/eventbus"
)

// Service orchestrates optimization runs and their reporting side channels:
// the metrics sink, the run history and the MQTT publisher.
type Service struct {
	cfg   *config.Config
	log   logger.Logger
	bus   eventbus.EventBus
	sink  coremetrics.MetricsSink
	store runlog.Store
	pub   mqtt.Publisher
	newID func() string
	now   func() time.Time
}

// Deps are the collaborators of a Service. Zero fields get no-op
// implementations.
type Deps struct {
	Log       logger.Logger
	Bus       eventbus.EventBus
	Sink      coremetrics.MetricsSink
	Store     runlog.Store
	Publisher mqtt.Publisher
	NewID     func() string
	Now       func() time.Time
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	store, err := runlog.Open(cfg.History)
	if err != nil {
		return nil, fmt.Errorf("run history: %w", err)
	}
	pub, err := mqtt.NewPublisher(cfg.MQTT)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("mqtt publisher: %w", err)
	}
	return NewWithDeps(cfg, Deps{
		Log:       logger.New("service"),
		Bus:       eventbus.New(),
		Sink:      sink,
		Store:     store,
		Publisher: pub,
	}), nil
}

// NewWithDeps creates a Service with explicit collaborators.
func NewWithDeps(cfg *config.Config, d Deps) *Service {
	s := &Service{
		cfg:   cfg,
		log:   d.Log,
		bus:   d.Bus,
		sink:  d.Sink,
		store: d.Store,
		pub:   d.Publisher,
		newID: d.NewID,
		now:   d.Now,
	}
	if s.log == nil {
		s.log = logger.NopLogger{}
	}
	if s.bus == nil {
		s.bus = eventbus.New()
	}
	if s.sink == nil {
		s.sink = coremetrics.NopSink{}
	}
	if s.store == nil {
		s.store = runlog.NopStore{}
	}
	if s.pub == nil {
		s.pub = mqtt.NewMockPublisher()
	}
	if s.newID == nil {
		s.newID = func() string { return uuid.NewString() }
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Close releases the history store, the broker connection and the bus.
func (s *Service) Close() error {
	s.pub.Disconnect()
	s.bus.Close()
	return s.store.Close()
}

// History returns the recorded runs matching q.
func (s *Service) History(ctx context.Context, q runlog.Query) ([]runlog.Record, error) {
	return s.store.Query(ctx, q)
}

// collect records bus events on the metrics sink until the returned stop
// function is called.
func (s *Service) collect(ctx context.Context) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := metrics.StartEventCollector(ctx, s.bus, s.sink)
	return func() {
		cancel()
		<-done
		if d, ok := s.bus.(interface{ Dropped() uint64 }); ok && d.Dropped() > 0 {
			s.log.Debugf("event bus dropped %d progress events", d.Dropped())
		}
	}
}

// stage runs fn between a start and a done StageEvent.
func (s *Service) stage(runID, name string, fn func() error) error {
	start := s.now()
	s.bus.Publish(events.StageEvent{RunID: runID, Stage: name, Action: events.ActionStart})
	err := fn()
	s.bus.Publish(events.StageEvent{
		RunID: runID, Stage: name, Action: events.ActionDone,
		Elapsed: s.now().Sub(start), Err: err,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// finish stores, measures and publishes a finished run. Failures of the
// side channels are logged and joined into the returned error only for the
// history store.
func (s *Service) finish(ctx context.Context, rec runlog.Record) error {
	var errs []error
	if err := s.store.Append(ctx, rec); err != nil {
		errs = append(errs, fmt.Errorf("append run history: %w", err))
	}
	if err := s.sink.RecordRun(summary(rec)); err != nil {
		s.log.Warnf("record run metrics: %v", err)
	}
	if f, ok := s.sink.(coremetrics.Flusher); ok {
		if err := f.Flush(ctx); err != nil {
			s.log.Warnf("flush metrics: %v", err)
		}
	}
	if err := s.pub.PublishRun(ctx, rec); err != nil {
		s.log.Warnf("publish run %s: %v", rec.RunID, err)
	}
	return errors.Join(errs...)
}

func summary(rec runlog.Record) coremetrics.RunSummary {
	s := coremetrics.RunSummary{
		RunID:         rec.RunID,
		Command:       rec.Command,
		Algorithm:     rec.Algorithm,
		CostFunction:  rec.CostFunction,
		Trips:         rec.Inputs.Trips,
		Rejected:      rec.Inputs.Rejected,
		Vehicles:      rec.Vehicles,
		Unconstrained: rec.Unconstrained,
		FuelAdded:     rec.FuelAdded,
		RangeSplits:   rec.RangeSplits,
		ZEMet:         rec.ZEMet,
		Revenue:       rec.Finance.Revenue,
		Labor:         rec.Finance.Labor,
		Energy:        rec.Finance.Energy,
		Profit:        rec.Finance.Profit,
		Duration:      rec.Duration(),
		Time:          rec.FinishedAt,
	}
	if rec.Search != nil {
		s.Scored = rec.Search.Scored
	}
	return s
}
