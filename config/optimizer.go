package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/kilianp07/rotaplan/core/cost"
	"github.com/kilianp07/rotaplan/core/factory"
	"github.com/kilianp07/rotaplan/core/feasibility"
	"github.com/kilianp07/rotaplan/core/matching"
	"github.com/kilianp07/rotaplan/core/search"
)

// InputsConfig points to the input files of a run.
type InputsConfig struct {
	Trips       string `json:"trips"`
	TravelTable string `json:"travel_table"`
	Stations    string `json:"stations"`
	Reserves    string `json:"reserves"`
	// Timezone interprets local times of the inputs. Empty means UTC.
	Timezone string `json:"timezone"`
}

// Location returns the configured time zone.
func (c InputsConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

// Validate checks the time zone.
func (c InputsConfig) Validate() error {
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("inputs.timezone: %w", err)
	}
	return nil
}

// OptimizerConfig controls the feasibility model and the matching engine.
type OptimizerConfig struct {
	// Mode is single_day or multi_day.
	Mode      string `json:"mode"`
	Algorithm string `json:"algorithm"`
	// Cost selects the cost strategy by registered name (time, profit).
	Cost factory.ModuleConfig `json:"cost"`
	// DefaultTurnaroundMinutes applies to vehicle types without an entry in
	// TurnaroundMinutes. Zero uses the built-in per-family defaults.
	DefaultTurnaroundMinutes int            `json:"default_turnaround_minutes"`
	TurnaroundMinutes        map[string]int `json:"turnaround_minutes"`
	// DetectTurnaround derives the turnaround per vehicle type from the
	// timetable; configured values still take precedence.
	DetectTurnaround  bool `json:"detect_turnaround"`
	HorizonDays       int  `json:"horizon_days"`
	ServiceConstraint bool `json:"service_constraint"`
	Workers           int  `json:"workers"`
	// VerifyMaxTrips bounds the groups certified with the LP relaxation.
	VerifyMaxTrips int `json:"verify_max_trips"`
}

// SetDefaults applies fallback values.
func (c *OptimizerConfig) SetDefaults() {
	if c.Mode == "" {
		c.Mode = feasibility.SingleDay.String()
	}
	if c.Algorithm == "" {
		c.Algorithm = string(matching.SuccessiveShortestPath)
	}
	if c.Cost.Type == "" {
		c.Cost.Type = "time"
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.VerifyMaxTrips <= 0 {
		c.VerifyMaxTrips = 60
	}
}

// Validate checks names against the registered implementations.
func (c OptimizerConfig) Validate() error {
	var errs []error
	if _, err := feasibility.ParseMode(c.Mode); err != nil {
		errs = append(errs, fmt.Errorf("optimizer.mode: %w", err))
	}
	if _, err := matching.ParseAlgorithm(c.Algorithm); err != nil {
		errs = append(errs, fmt.Errorf("optimizer.algorithm: %w", err))
	}
	if !known(cost.Names(), c.Cost.Type) {
		errs = append(errs, fmt.Errorf("optimizer.cost.type %q unknown, expected one of %s",
			c.Cost.Type, strings.Join(cost.Names(), ", ")))
	}
	if c.DefaultTurnaroundMinutes < 0 {
		errs = append(errs, errors.New("optimizer.default_turnaround_minutes must not be negative"))
	}
	for vt, m := range c.TurnaroundMinutes {
		if m < 0 {
			errs = append(errs, fmt.Errorf("optimizer.turnaround_minutes[%s] must not be negative", vt))
		}
	}
	if c.HorizonDays < 0 {
		errs = append(errs, errors.New("optimizer.horizon_days must not be negative"))
	}
	return errors.Join(errs...)
}

// Turnarounds returns the configured turnaround per vehicle type.
func (c OptimizerConfig) Turnarounds() map[string]time.Duration {
	out := make(map[string]time.Duration, len(c.TurnaroundMinutes))
	for vt, m := range c.TurnaroundMinutes {
		out[vt] = time.Duration(m) * time.Minute
	}
	return out
}

// SearchConfig enables and bounds the profit search.
type SearchConfig struct {
	Enabled       bool `json:"enabled"`
	search.Config `json:",squash"`
	Generator     factory.ModuleConfig `json:"generator"`
}

// SetDefaults applies fallback values.
func (c *SearchConfig) SetDefaults() {
	c.Config.SetDefaults()
	if c.Generator.Type == "" {
		c.Generator.Type = "split"
	}
}

// Validate checks the bounds and the generator name.
func (c SearchConfig) Validate() error {
	var errs []error
	if err := c.Config.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("search: %w", err))
	}
	if !known(search.Generators(), c.Generator.Type) {
		errs = append(errs, fmt.Errorf("search.generator.type %q unknown", c.Generator.Type))
	}
	return errors.Join(errs...)
}

// OutputConfig selects where and how results are exported.
type OutputConfig struct {
	Dir     string   `json:"dir"`
	Formats []string `json:"formats"`
}

// SetDefaults applies fallback values.
func (c *OutputConfig) SetDefaults() {
	if c.Dir == "" {
		c.Dir = "out"
	}
	if len(c.Formats) == 0 {
		c.Formats = []string{"json", "csv"}
	}
}

// Validate checks the formats.
func (c OutputConfig) Validate() error {
	for _, f := range c.Formats {
		switch strings.ToLower(f) {
		case "json", "csv":
		default:
			return fmt.Errorf("output.formats: unknown format %q", f)
		}
	}
	return nil
}

// Wants reports whether format is enabled.
func (c OutputConfig) Wants(format string) bool {
	for _, f := range c.Formats {
		if strings.EqualFold(f, format) {
			return true
		}
	}
	return false
}

func known(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
