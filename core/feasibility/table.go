package feasibility

import (
	"strings"
	"time"
)

// Leg is the empty drive between two locations.
type Leg struct {
	Duration   time.Duration `json:"duration"`
	DistanceKM float64       `json:"distance_km"`
}

// TravelTable resolves deadhead legs between locations.
type TravelTable interface {
	Lookup(from, to string) (Leg, bool)
}

// Normalize canonicalises a location name for comparison.
func Normalize(loc string) string {
	return strings.ToLower(strings.Join(strings.Fields(loc), " "))
}

// Matrix is an in-memory TravelTable keyed by normalised location names.
type Matrix map[string]map[string]Leg

// NewMatrix returns an empty matrix.
func NewMatrix() Matrix { return make(Matrix) }

// Set stores the leg from -> to.
func (m Matrix) Set(from, to string, leg Leg) {
	f := Normalize(from)
	row, ok := m[f]
	if !ok {
		row = make(map[string]Leg)
		m[f] = row
	}
	row[Normalize(to)] = leg
}

// Lookup implements TravelTable.
func (m Matrix) Lookup(from, to string) (Leg, bool) {
	row, ok := m[Normalize(from)]
	if !ok {
		return Leg{}, false
	}
	leg, ok := row[Normalize(to)]
	return leg, ok
}

// Len returns the number of stored legs.
func (m Matrix) Len() int {
	n := 0
	for _, row := range m {
		n += len(row)
	}
	return n
}
