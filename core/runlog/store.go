package runlog

import (
	"context"
	"time"
)

// Record captures the outcome of one optimization run.
type Record struct {
	RunID      string    `json:"run_id"`
	Command    string    `json:"command"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Inputs     Inputs    `json:"inputs"`

	Algorithm     string  `json:"algorithm"`
	CostFunction  string  `json:"cost_function"`
	Vehicles      int     `json:"vehicles"`
	Unconstrained int     `json:"unconstrained_vehicles"`
	FuelAdded     bool    `json:"fuel_constraints_added_vehicles"`
	RangeSplits   int     `json:"range_splits"`
	ZEMet         bool    `json:"ze_minimum_met"`
	Cost          float64 `json:"cost"`

	Finance  Finance  `json:"finance"`
	Search   *Search  `json:"search,omitempty"`
	Reserve  *Reserve `json:"reserve,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// Duration is the wall time of the run.
func (r Record) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Inputs counts the trips read for the run.
type Inputs struct {
	Trips    int `json:"trips"`
	Valid    int `json:"valid"`
	Rejected int `json:"rejected"`
}

// Finance is the profit breakdown of the selected rotation set.
type Finance struct {
	Revenue float64 `json:"revenue"`
	Labor   float64 `json:"labor"`
	Energy  float64 `json:"energy"`
	Bonus   float64 `json:"bonus"`
	Malus   float64 `json:"malus"`
	Profit  float64 `json:"profit"`
}

// Search summarizes the profit search.
type Search struct {
	Scored       int     `json:"candidates_scored"`
	Rounds       int     `json:"rounds"`
	BestOrigin   string  `json:"best_origin"`
	BaseVehicles int     `json:"base_vehicles"`
	Improvement  float64 `json:"improvement"`
}

// Reserve summarizes reserve duty coverage.
type Reserve struct {
	Required   int `json:"required"`
	Covered    int `json:"covered"`
	Additional int `json:"additional_vehicles"`
}

// Query defines filters for retrieving records. Limit keeps the most recent
// records when positive.
type Query struct {
	Start   time.Time
	End     time.Time
	Command string
	RunID   string
	Limit   int
}

func (q Query) match(r Record) bool {
	if !q.Start.IsZero() && r.StartedAt.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.StartedAt.After(q.End) {
		return false
	}
	if q.Command != "" && r.Command != q.Command {
		return false
	}
	if q.RunID != "" && r.RunID != q.RunID {
		return false
	}
	return true
}

// Store persists run records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// NopStore discards records.
type NopStore struct{}

func (NopStore) Append(context.Context, Record) error          { return nil }
func (NopStore) Query(context.Context, Query) ([]Record, error) { return nil, nil }
func (NopStore) Close() error                                   { return nil }
