package feasibility

import (
	"fmt"
	"strings"
	"time"

	"github.com/kilianp07/rotaplan/core/model"
)

// Mode selects how service dates constrain connections.
type Mode int

const (
	// SingleDay only chains trips of the same service date.
	SingleDay Mode = iota
	// MultiDay allows chaining onto the same or a later date.
	MultiDay
)

func (m Mode) String() string {
	switch m {
	case SingleDay:
		return "single_day"
	case MultiDay:
		return "multi_day"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode converts a configuration value to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "single_day", "single-day", "single":
		return SingleDay, nil
	case "multi_day", "multi-day", "multi":
		return MultiDay, nil
	}
	return SingleDay, fmt.Errorf("unknown planning mode %q", s)
}

// Model holds everything CanConnect needs. It is read-only once built.
type Model struct {
	Mode Mode
	// Turnaround is the minimum dwell time per vehicle type.
	Turnaround map[string]time.Duration
	// DefaultTurnaround applies to vehicle types missing from Turnaround.
	DefaultTurnaround time.Duration
	// Table provides deadhead legs. Nil restricts chaining to same-location pairs.
	Table TravelTable
	// HorizonDays bounds how many days later b may run in multi-day mode. Zero
	// means unbounded.
	HorizonDays int
	// ServiceConstraint keeps non-reserve trips of different services apart.
	ServiceConstraint bool
}

// TurnaroundFor returns the dwell time required for the vehicle type.
func (m Model) TurnaroundFor(vehicleType string) time.Duration {
	if d, ok := m.Turnaround[vehicleType]; ok {
		return d
	}
	if m.DefaultTurnaround > 0 {
		return m.DefaultTurnaround
	}
	return FallbackTurnaround
}

// WithTurnaround returns a copy of m using d for the given vehicle type.
func (m Model) WithTurnaround(vehicleType string, d time.Duration) Model {
	ta := make(map[string]time.Duration, len(m.Turnaround)+1)
	for k, v := range m.Turnaround {
		ta[k] = v
	}
	ta[vehicleType] = d
	m.Turnaround = ta
	return m
}

// CanConnect reports whether b can directly follow a on the same vehicle.
func (m Model) CanConnect(a, b model.Trip) bool {
	_, ok := m.Connect(a, b)
	return ok
}

// Connect checks the connection a->b and returns its deadhead and idle data.
func (m Model) Connect(a, b model.Trip) (model.Link, bool) {
	if a.VehicleType != b.VehicleType {
		return model.Link{}, false
	}
	days := model.DaysBetween(a.ServiceDay(), b.ServiceDay())
	switch m.Mode {
	case SingleDay:
		if days != 0 {
			return model.Link{}, false
		}
	case MultiDay:
		if days < 0 || (m.HorizonDays > 0 && days > m.HorizonDays) {
			return model.Link{}, false
		}
	}
	if m.ServiceConstraint && !a.Reserve && !b.Reserve && a.Service != b.Service {
		return model.Link{}, false
	}
	if !b.Departure.After(a.Arrival) {
		return model.Link{}, false
	}

	var leg Leg
	if Normalize(a.Destination) != Normalize(b.Origin) {
		if m.Table == nil {
			return model.Link{}, false
		}
		var ok bool
		leg, ok = m.Table.Lookup(a.Destination, b.Origin)
		if !ok {
			return model.Link{}, false
		}
	}

	turnaround := m.TurnaroundFor(a.VehicleType)
	if a.Reserve || b.Reserve {
		turnaround = 0
	}
	gap := b.Departure.Sub(a.Arrival)
	if gap < turnaround+leg.Duration {
		return model.Link{}, false
	}
	return model.Link{Deadhead: leg.Duration, DeadheadKM: leg.DistanceKM, Idle: gap}, true
}
