package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// FuelType is the energy carrier assigned to a rotation.
type FuelType string

const (
	FuelDiesel FuelType = "diesel"
	FuelHVO    FuelType = "hvo"
	FuelZE     FuelType = "ze"
)

// Valid reports whether f is a known fuel type.
func (f FuelType) Valid() bool {
	switch f {
	case FuelDiesel, FuelHVO, FuelZE:
		return true
	}
	return false
}

// Link describes an accepted connection between two consecutive trips.
type Link struct {
	Deadhead   time.Duration `json:"deadhead"`
	DeadheadKM float64       `json:"deadhead_km"`
	Idle       time.Duration `json:"idle"` // full gap between arrival and next departure
}

// EventKind distinguishes refuel stops from charging sessions.
type EventKind string

const (
	EventRefuel EventKind = "refuel"
	EventCharge EventKind = "charge"
)

// EnergyEvent is a refuel or charge stop inserted after a trip.
type EnergyEvent struct {
	Kind      EventKind     `json:"kind"`
	AfterTrip int           `json:"after_trip"` // index into Rotation.Trips
	Station   string        `json:"station"`
	StationKM float64       `json:"station_km"` // one way from the trip's destination
	Start     time.Time     `json:"start"`
	Duration  time.Duration `json:"duration"`
	AddedKM   float64       `json:"added_km"`
}

// Rotation is the ordered list of trips driven by one vehicle.
type Rotation struct {
	ID          string        `json:"id"`
	VehicleType string        `json:"vehicle_type"`
	Trips       []Trip        `json:"trips"`
	Links       []Link        `json:"links"` // len(Trips)-1 entries
	Events      []EnergyEvent `json:"events,omitempty"`
	FuelType    FuelType      `json:"fuel_type,omitempty"`
}

// Start returns the departure of the first trip.
func (r Rotation) Start() time.Time {
	if len(r.Trips) == 0 {
		return time.Time{}
	}
	return r.Trips[0].Departure
}

// End returns the arrival of the last trip.
func (r Rotation) End() time.Time {
	if len(r.Trips) == 0 {
		return time.Time{}
	}
	return r.Trips[len(r.Trips)-1].Arrival
}

// TripKM is the revenue distance.
func (r Rotation) TripKM() float64 {
	var km float64
	for _, t := range r.Trips {
		km += t.DistanceKM
	}
	return km
}

// DeadheadKM is the empty running distance between trips.
func (r Rotation) DeadheadKM() float64 {
	var km float64
	for _, l := range r.Links {
		km += l.DeadheadKM
	}
	return km
}

// TotalKM is trip plus deadhead distance.
func (r Rotation) TotalKM() float64 { return r.TripKM() + r.DeadheadKM() }

// DrivingTime sums the scheduled duration of non-reserve trips.
func (r Rotation) DrivingTime() time.Duration {
	var d time.Duration
	for _, t := range r.Trips {
		if t.Reserve {
			continue
		}
		d += t.Duration()
	}
	return d
}

// MultiDay reports whether the rotation spans more than one service day.
func (r Rotation) MultiDay() bool {
	if len(r.Trips) < 2 {
		return false
	}
	return DaysBetween(r.Trips[0].ServiceDay(), r.Trips[len(r.Trips)-1].ServiceDay()) > 0
}

// Shift is the part of a rotation driven on one service day.
type Shift struct {
	Day   time.Time
	Trips []Trip
	Links []Link
}

// Start returns the first departure of the shift.
func (s Shift) Start() time.Time { return s.Trips[0].Departure }

// End returns the last arrival of the shift.
func (s Shift) End() time.Time { return s.Trips[len(s.Trips)-1].Arrival }

// Span is the shift length from first departure to last arrival.
func (s Shift) Span() time.Duration { return s.End().Sub(s.Start()) }

// Shifts decomposes the rotation into per-day segments.
func (r Rotation) Shifts() []Shift {
	var out []Shift
	for i, t := range r.Trips {
		day := t.ServiceDay()
		if len(out) == 0 || !out[len(out)-1].Day.Equal(day) {
			out = append(out, Shift{Day: day})
		} else {
			out[len(out)-1].Links = append(out[len(out)-1].Links, r.Links[i-1])
		}
		out[len(out)-1].Trips = append(out[len(out)-1].Trips, t)
	}
	return out
}

// Split cuts the rotation after trip i. Energy events are dropped and must be
// planned again by the caller.
func (r Rotation) Split(i int) (Rotation, Rotation, error) {
	if i < 0 || i >= len(r.Trips)-1 {
		return Rotation{}, Rotation{}, fmt.Errorf("split index %d out of range for %d trips", i, len(r.Trips))
	}
	left := Rotation{
		VehicleType: r.VehicleType,
		Trips:       append([]Trip(nil), r.Trips[:i+1]...),
		Links:       append([]Link(nil), r.Links[:i]...),
		FuelType:    r.FuelType,
	}
	right := Rotation{
		VehicleType: r.VehicleType,
		Trips:       append([]Trip(nil), r.Trips[i+1:]...),
		Links:       append([]Link(nil), r.Links[i+1:]...),
		FuelType:    r.FuelType,
	}
	return left, right, nil
}

// Clone returns a deep copy of the rotation.
func (r Rotation) Clone() Rotation {
	c := r
	c.Trips = append([]Trip(nil), r.Trips...)
	c.Links = append([]Link(nil), r.Links...)
	c.Events = append([]EnergyEvent(nil), r.Events...)
	return c
}

// CloneAll deep copies a rotation set.
func CloneAll(rs []Rotation) []Rotation {
	out := make([]Rotation, len(rs))
	for i, r := range rs {
		out[i] = r.Clone()
	}
	return out
}

// SortRotations orders rotations by first departure, vehicle type, then first
// trip ID so that IDs are stable between runs.
func SortRotations(rs []Rotation) {
	sort.SliceStable(rs, func(i, j int) bool {
		a, b := rs[i], rs[j]
		if !a.Start().Equal(b.Start()) {
			return a.Start().Before(b.Start())
		}
		if a.VehicleType != b.VehicleType {
			return a.VehicleType < b.VehicleType
		}
		return a.Trips[0].ID < b.Trips[0].ID
	})
}

// AssignIDs sorts the set and numbers rotations as PREFIX-DAY-NNN where PREFIX
// is derived from the vehicle type and DAY is the weekday, or MD for rotations
// spanning several days.
func AssignIDs(rs []Rotation) {
	SortRotations(rs)
	counters := make(map[string]int)
	for i := range rs {
		r := &rs[i]
		day := "MD"
		if !r.MultiDay() && len(r.Trips) > 0 {
			day = strings.ToUpper(r.Trips[0].ServiceDay().Weekday().String()[:3])
		}
		key := typePrefix(r.VehicleType) + "-" + day
		counters[key]++
		r.ID = fmt.Sprintf("%s-%03d", key, counters[key])
	}
}

func typePrefix(vehicleType string) string {
	var b strings.Builder
	for _, c := range strings.ToUpper(vehicleType) {
		if c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
		if b.Len() == 2 {
			break
		}
	}
	if b.Len() == 0 {
		return "XX"
	}
	return b.String()
}
