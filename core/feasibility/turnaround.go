package feasibility

import (
	"sort"
	"strings"
	"time"

	"github.com/kilianp07/rotaplan/core/model"
)

const (
	// MinTurnaround is the smallest gap accepted as a real turnaround.
	MinTurnaround = 2 * time.Minute
	// FallbackTurnaround applies to vehicle types without data or configuration.
	FallbackTurnaround = 8 * time.Minute
)

// DefaultTurnarounds are the standard dwell times per vehicle family.
var DefaultTurnarounds = map[string]time.Duration{
	"dubbeldekker": 15 * time.Minute,
	"touringcar":   8 * time.Minute,
	"lagevloerbus": 12 * time.Minute,
	"midi bus":     10 * time.Minute,
	"taxibus":      5 * time.Minute,
}

// DefaultTurnaround looks up the standard dwell time for a vehicle type.
func DefaultTurnaround(vehicleType string) time.Duration {
	if d, ok := DefaultTurnarounds[strings.ToLower(strings.TrimSpace(vehicleType))]; ok {
		return d
	}
	return FallbackTurnaround
}

type stopKey struct {
	vehicleType string
	day         time.Time
	location    string
	service     string
}

// DetectTurnarounds derives the minimum observed turnaround per vehicle type:
// for every arrival, the first departure of the same type, day and location at
// least MinTurnaround later. Types without such a pair get FallbackTurnaround.
// With perService set, only pairs of the same service are considered.
func DetectTurnarounds(trips []model.Trip, perService bool) map[string]time.Duration {
	departures := make(map[stopKey][]time.Time)
	for _, t := range trips {
		k := stopKey{vehicleType: t.VehicleType, day: t.ServiceDay(), location: Normalize(t.Origin)}
		if perService {
			k.service = t.Service
		}
		departures[k] = append(departures[k], t.Departure)
	}
	for _, deps := range departures {
		sort.Slice(deps, func(i, j int) bool { return deps[i].Before(deps[j]) })
	}

	best := make(map[string]time.Duration)
	for _, t := range trips {
		k := stopKey{vehicleType: t.VehicleType, day: t.ServiceDay(), location: Normalize(t.Destination)}
		if perService {
			k.service = t.Service
		}
		deps := departures[k]
		i := sort.Search(len(deps), func(i int) bool { return deps[i].Sub(t.Arrival) >= MinTurnaround })
		if i == len(deps) {
			continue
		}
		gap := deps[i].Sub(t.Arrival)
		if cur, ok := best[t.VehicleType]; !ok || gap < cur {
			best[t.VehicleType] = gap
		}
	}

	out := make(map[string]time.Duration)
	for _, t := range trips {
		if d, ok := best[t.VehicleType]; ok {
			out[t.VehicleType] = d
		} else {
			out[t.VehicleType] = FallbackTurnaround
		}
	}
	return out
}
