package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrInvalidTrip is returned by Validate for trips that cannot be scheduled.
var ErrInvalidTrip = errors.New("invalid trip")

// Trip is a single timetabled piece of work. Trips are created once from the
// schedule and never mutated afterwards.
type Trip struct {
	ID          string    `json:"id" yaml:"id"`
	VehicleType string    `json:"vehicle_type" yaml:"vehicle_type"`
	Date        time.Time `json:"date" yaml:"date"` // service date, zero means the departure day
	Origin      string    `json:"origin" yaml:"origin"`
	Destination string    `json:"destination" yaml:"destination"`
	Departure   time.Time `json:"departure" yaml:"departure"`
	Arrival     time.Time `json:"arrival" yaml:"arrival"`
	DistanceKM  float64   `json:"distance_km" yaml:"distance_km"`

	// Service groups trips of the same line when the service constraint is on.
	Service string `json:"service,omitempty" yaml:"service,omitempty"`
	// Reserve marks a phantom reserve duty: no turnaround, no revenue.
	Reserve bool `json:"reserve,omitempty" yaml:"reserve,omitempty"`
}

// Validate checks the mandatory fields of a trip.
func (t Trip) Validate() error {
	var errs []error
	if strings.TrimSpace(t.ID) == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if strings.TrimSpace(t.VehicleType) == "" {
		errs = append(errs, errors.New("vehicle type is required"))
	}
	if strings.TrimSpace(t.Origin) == "" || strings.TrimSpace(t.Destination) == "" {
		errs = append(errs, errors.New("origin and destination are required"))
	}
	if t.Departure.IsZero() || t.Arrival.IsZero() {
		errs = append(errs, errors.New("departure and arrival are required"))
	} else if !t.Arrival.After(t.Departure) {
		errs = append(errs, fmt.Errorf("non-positive duration %s", t.Arrival.Sub(t.Departure)))
	}
	if t.DistanceKM < 0 {
		errs = append(errs, fmt.Errorf("negative distance %.1f", t.DistanceKM))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w %q: %w", ErrInvalidTrip, t.ID, errors.Join(errs...))
}

// Duration returns the scheduled driving time of the trip.
func (t Trip) Duration() time.Duration { return t.Arrival.Sub(t.Departure) }

// ServiceDay returns the calendar day the trip belongs to.
func (t Trip) ServiceDay() time.Time {
	if !t.Date.IsZero() {
		return DayOf(t.Date)
	}
	return DayOf(t.Departure)
}

// DayOf returns midnight of the calendar day of ts in its own location.
func DayOf(ts time.Time) time.Time {
	y, m, d := ts.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, ts.Location())
}

// DaysBetween returns the number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

// Rejection reports a trip excluded from optimization.
type Rejection struct {
	TripID string `json:"trip_id"`
	Reason string `json:"reason"`
}

// FilterValid splits trips into valid ones and rejections. Duplicate IDs are
// rejected after their first occurrence.
func FilterValid(trips []Trip) ([]Trip, []Rejection) {
	valid := make([]Trip, 0, len(trips))
	var rejected []Rejection
	seen := make(map[string]struct{}, len(trips))
	for _, t := range trips {
		if err := t.Validate(); err != nil {
			rejected = append(rejected, Rejection{TripID: t.ID, Reason: err.Error()})
			continue
		}
		if _, ok := seen[t.ID]; ok {
			rejected = append(rejected, Rejection{TripID: t.ID, Reason: "duplicate trip id"})
			continue
		}
		seen[t.ID] = struct{}{}
		valid = append(valid, t)
	}
	return valid, rejected
}

// SortTrips orders trips by departure, arrival then ID.
func SortTrips(trips []Trip) {
	sort.SliceStable(trips, func(i, j int) bool {
		a, b := trips[i], trips[j]
		if !a.Departure.Equal(b.Departure) {
			return a.Departure.Before(b.Departure)
		}
		if !a.Arrival.Equal(b.Arrival) {
			return a.Arrival.Before(b.Arrival)
		}
		return a.ID < b.ID
	})
}
