package rangetrack

import (
	"sort"
	"time"

	"github.com/kilianp07/rotaplan/core/feasibility"
)

// Station is a refuel or charge point reachable from a trip location.
type Station struct {
	Name       string        `json:"name" yaml:"name"`
	Location   string        `json:"location" yaml:"location"` // trip location the distances refer to
	DriveTime  time.Duration `json:"drive_time" yaml:"drive_time"`
	DistanceKM float64       `json:"distance_km" yaml:"distance_km"`
	// PowerKW is the charger power; zero marks a fuel station.
	PowerKW float64 `json:"power_kw" yaml:"power_kw"`
}

// Charger reports whether the station charges electric vehicles.
func (s Station) Charger() bool { return s.PowerKW > 0 }

// StationLookup returns the stations near a location.
type StationLookup interface {
	Nearby(location string) []Station
}

// StationIndex is an in-memory StationLookup keyed by normalised location.
type StationIndex map[string][]Station

// NewStationIndex groups stations by location, nearest first.
func NewStationIndex(stations []Station) StationIndex {
	idx := make(StationIndex)
	for _, s := range stations {
		k := feasibility.Normalize(s.Location)
		idx[k] = append(idx[k], s)
	}
	for _, list := range idx {
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].DriveTime != list[j].DriveTime {
				return list[i].DriveTime < list[j].DriveTime
			}
			return list[i].Name < list[j].Name
		})
	}
	return idx
}

// Nearby implements StationLookup.
func (idx StationIndex) Nearby(location string) []Station {
	return idx[feasibility.Normalize(location)]
}
