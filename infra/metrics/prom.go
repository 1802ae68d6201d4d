package metrics

import (
	"context"
	"errors"
	"fmt"

	coremetrics "github.com/kilianp07/rotaplan/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// PromConfig controls where a batch run exposes its metrics. Runs are short
// lived, so metrics are either pushed to a Pushgateway or written to a
// node_exporter textfile when the run is flushed.
type PromConfig struct {
	PushURL  string `json:"push_url"`
	Job      string `json:"job"`
	Textfile string `json:"textfile"`
}

// PromSink records optimization runs in Prometheus metrics.
type PromSink struct {
	cfg      PromConfig
	gatherer prometheus.Gatherer

	runs          *prometheus.CounterVec
	vehicles      *prometheus.GaugeVec
	unconstrained prometheus.Gauge
	profit        prometheus.Gauge
	splits        prometheus.Counter
	duration      prometheus.Histogram
	stages        *prometheus.HistogramVec
	groups        *prometheus.GaugeVec
	rejections    *prometheus.CounterVec
	candidates    prometheus.Counter
}

// NewPromSink registers run metrics on the default Prometheus registerer.
func NewPromSink(cfg PromConfig) (*PromSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(cfg PromConfig, reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if cfg.Job == "" {
		cfg.Job = "rotaplan"
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	s := &PromSink{cfg: cfg, gatherer: gatherer}
	var err error
	if s.runs, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rotaplan_runs_total",
		Help: "Total number of optimization runs",
	}, []string{"command", "algorithm", "cost_function"})); err != nil {
		return nil, err
	}
	if s.vehicles, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rotaplan_vehicles",
		Help: "Vehicles required by the last run",
	}, []string{"command"})); err != nil {
		return nil, err
	}
	if s.unconstrained, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rotaplan_unconstrained_vehicles",
		Help: "Vehicles required by the last run without fuel or range limits",
	})); err != nil {
		return nil, err
	}
	if s.profit, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rotaplan_profit",
		Help: "Profit of the selected rotation set",
	})); err != nil {
		return nil, err
	}
	if s.splits, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rotaplan_range_splits_total",
		Help: "Chains split because they could not be kept in range",
	})); err != nil {
		return nil, err
	}
	if s.duration, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "rotaplan_run_duration_seconds",
		Help:    "Wall time of an optimization run",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})); err != nil {
		return nil, err
	}
	if s.stages, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rotaplan_stage_duration_seconds",
		Help:    "Wall time of a run stage",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
	}, []string{"stage", "failed"})); err != nil {
		return nil, err
	}
	if s.groups, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rotaplan_group_vehicles",
		Help: "Vehicles required per matching group",
	}, []string{"group"})); err != nil {
		return nil, err
	}
	if s.rejections, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rotaplan_range_rejections_total",
		Help: "Augmenting paths rejected by the range tracker",
	}, []string{"group"})); err != nil {
		return nil, err
	}
	if s.candidates, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rotaplan_search_candidates_total",
		Help: "Configurations scored by the profit search",
	})); err != nil {
		return nil, err
	}
	return s, nil
}

// register adds c to reg, reusing the collector already registered under the
// same descriptor.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordRun updates the run counters and gauges.
func (s *PromSink) RecordRun(r coremetrics.RunSummary) error {
	s.runs.WithLabelValues(r.Command, r.Algorithm, r.CostFunction).Inc()
	s.vehicles.WithLabelValues(r.Command).Set(float64(r.Vehicles))
	s.unconstrained.Set(float64(r.Unconstrained))
	s.profit.Set(r.Profit)
	s.splits.Add(float64(r.RangeSplits))
	s.duration.Observe(r.Duration.Seconds())
	return nil
}

// RecordGroup sets the per-group vehicle gauge.
func (s *PromSink) RecordGroup(ev coremetrics.GroupEvent) error {
	s.groups.WithLabelValues(ev.Group).Set(float64(ev.Vehicles))
	s.rejections.WithLabelValues(ev.Group).Add(float64(ev.Rejections))
	return nil
}

// RecordCandidate counts scored search candidates.
func (s *PromSink) RecordCandidate(coremetrics.CandidateEvent) error {
	s.candidates.Inc()
	return nil
}

// RecordStage observes the stage duration histogram.
func (s *PromSink) RecordStage(ev coremetrics.StageEvent) error {
	failed := "false"
	if ev.Failed {
		failed = "true"
	}
	s.stages.WithLabelValues(ev.Stage, failed).Observe(ev.Duration.Seconds())
	return nil
}

// Flush pushes the gathered metrics to the configured Pushgateway and
// textfile. Without either target it is a no-op.
func (s *PromSink) Flush(ctx context.Context) error {
	var errs []error
	if s.cfg.PushURL != "" {
		if err := push.New(s.cfg.PushURL, s.cfg.Job).Gatherer(s.gatherer).PushContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("push metrics: %w", err))
		}
	}
	if s.cfg.Textfile != "" {
		if err := prometheus.WriteToTextfile(s.cfg.Textfile, s.gatherer); err != nil {
			errs = append(errs, fmt.Errorf("write textfile: %w", err))
		}
	}
	return errors.Join(errs...)
}
