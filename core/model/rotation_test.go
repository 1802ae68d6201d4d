package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRotation() Rotation {
	return Rotation{
		VehicleType: "Touringcar",
		Trips: []Trip{
			{ID: "t1", Departure: at(4, 7, 0), Arrival: at(4, 8, 0), DistanceKM: 40},
			{ID: "t2", Departure: at(4, 8, 30), Arrival: at(4, 9, 30), DistanceKM: 40, Reserve: true},
			{ID: "t3", Departure: at(5, 7, 0), Arrival: at(5, 8, 0), DistanceKM: 40},
		},
		Links: []Link{
			{Deadhead: 10 * time.Minute, DeadheadKM: 5, Idle: 30 * time.Minute},
			{Idle: 21*time.Hour + 30*time.Minute},
		},
	}
}

func TestRotationDerived(t *testing.T) {
	r := sampleRotation()
	assert.Equal(t, 120.0, r.TripKM())
	assert.Equal(t, 5.0, r.DeadheadKM())
	assert.Equal(t, 125.0, r.TotalKM())
	assert.Equal(t, 2*time.Hour, r.DrivingTime())
	assert.True(t, r.MultiDay())

	shifts := r.Shifts()
	require.Len(t, shifts, 2)
	assert.Len(t, shifts[0].Trips, 2)
	assert.Len(t, shifts[0].Links, 1)
	assert.Len(t, shifts[1].Links, 0)
	assert.Equal(t, 150*time.Minute, shifts[0].Span())
}

func TestRotationSplit(t *testing.T) {
	r := sampleRotation()
	left, right, err := r.Split(0)
	require.NoError(t, err)
	assert.Len(t, left.Trips, 1)
	assert.Len(t, left.Links, 0)
	assert.Len(t, right.Trips, 2)
	assert.Len(t, right.Links, 1)
	assert.Equal(t, 21*time.Hour+30*time.Minute, right.Links[0].Idle)

	_, _, err = r.Split(2)
	assert.Error(t, err)
}

func TestAssignIDs(t *testing.T) {
	single := Rotation{VehicleType: "Dubbeldekker", Trips: []Trip{{ID: "x", Departure: at(4, 6, 0), Arrival: at(4, 7, 0)}}}
	rs := []Rotation{sampleRotation(), single}
	AssignIDs(rs)
	assert.Equal(t, "DU-MON-001", rs[0].ID)
	assert.Equal(t, "TO-MD-001", rs[1].ID)
}
