package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/rotaplan/core/metrics"
	"github.com/kilianp07/rotaplan/infra/logger"
)

// InfluxConfig holds the connection settings of an InfluxDB v2 sink.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes run metrics to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordRun writes the run summary as an optimization_run point.
func (s *InfluxSink) RecordRun(r coremetrics.RunSummary) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("optimization_run").
		AddTag("run_id", r.RunID).
		AddTag("command", r.Command).
		AddTag("algorithm", r.Algorithm).
		AddTag("cost_function", r.CostFunction).
		AddField("trips", r.Trips).
		AddField("rejected", r.Rejected).
		AddField("vehicles", r.Vehicles).
		AddField("unconstrained_vehicles", r.Unconstrained).
		AddField("fuel_added", r.FuelAdded).
		AddField("range_splits", r.RangeSplits).
		AddField("ze_met", r.ZEMet).
		AddField("revenue", round3(r.Revenue)).
		AddField("labor", round3(r.Labor)).
		AddField("energy", round3(r.Energy)).
		AddField("profit", round3(r.Profit)).
		AddField("candidates", r.Scored).
		AddField("duration_ms", r.Duration.Milliseconds()).
		SetTime(r.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordGroup persists the outcome of one matching group.
func (s *InfluxSink) RecordGroup(ev coremetrics.GroupEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("matching_group").
		AddTag("group", ev.Group).
		AddField("trips", ev.Trips).
		AddField("vehicles", ev.Vehicles).
		AddField("unconstrained_vehicles", ev.Unconstrained).
		AddField("rejections", ev.Rejections).
		AddField("fallbacks", ev.Fallbacks).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordCandidate writes one profit search candidate.
func (s *InfluxSink) RecordCandidate(ev coremetrics.CandidateEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("search_candidate").
		AddTag("round", strconv.Itoa(ev.Round)).
		AddField("seq", ev.Seq).
		AddField("vehicles", ev.Vehicles).
		AddField("profit", round3(ev.Profit)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordStage writes a completed stage with its duration.
func (s *InfluxSink) RecordStage(ev coremetrics.StageEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("run_stage").
		AddTag("run_id", ev.RunID).
		AddTag("stage", ev.Stage).
		AddTag("failed", strconv.FormatBool(ev.Failed)).
		AddField("duration_ms", round3(float64(ev.Duration.Microseconds())/1000)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Flush closes the underlying client. The sink must not be used afterwards.
func (s *InfluxSink) Flush(context.Context) error {
	s.client.Close()
	return nil
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
