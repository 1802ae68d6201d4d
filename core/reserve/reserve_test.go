package reserve

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/rotaplan/core/model"
)

func at(h, m int) time.Time { return time.Date(2024, 3, 5, h, m, 0, 0, time.UTC) }

func rotation(id string, trips ...model.Trip) model.Rotation {
	r := model.Rotation{ID: id, VehicleType: "DD", Trips: trips}
	for i := 1; i < len(trips); i++ {
		r.Links = append(r.Links, model.Link{Idle: trips[i].Departure.Sub(trips[i-1].Arrival)})
	}
	return r
}

func trip(id, from, to string, dep, arr time.Time) model.Trip {
	return model.Trip{ID: id, VehicleType: "DD", Origin: from, Destination: to, Departure: dep, Arrival: arr}
}

func TestAnalyzeMatchesIdleWindows(t *testing.T) {
	rs := []model.Rotation{
		// waits at Utrecht 09:00-12:00
		rotation("R1", trip("a", "Zeist", "Utrecht", at(8, 0), at(9, 0)), trip("b", "Utrecht", "Zeist", at(12, 0), at(13, 0))),
		// waits at Utrecht from 10:00 until the end of the day
		rotation("R2", trip("c", "Zeist", "utrecht ", at(9, 0), at(10, 0))),
		// starts from Utrecht at 14:00
		rotation("R3", trip("d", "Utrecht", "Zeist", at(14, 0), at(15, 0))),
	}
	reqs := []Requirement{
		{Station: "Utrecht", Start: at(10, 0), End: at(11, 0), Count: 2},
		{Station: "Utrecht", Start: at(10, 30), End: at(11, 30), Count: 2},
		{Station: "Zeist", Start: at(7, 0), End: at(7, 30), Count: 1},
	}
	rep := Analyze(rs, reqs)

	assert.Equal(t, 5, rep.Required)
	// R1, R2 and R3 each have one suitable window for the Utrecht slots; R1 and
	// R2 also wait at Zeist before their first trip.
	assert.Equal(t, 4, rep.Covered)
	assert.Equal(t, 3, rep.Coverage[0].Covered+rep.Coverage[1].Covered)
	assert.Equal(t, 1, rep.Coverage[2].Covered)
	assert.Equal(t, 1, rep.AdditionalVehicles)
}

func TestAnalyzeVehicleTypeFilter(t *testing.T) {
	rs := []model.Rotation{rotation("R1", trip("a", "X", "X", at(8, 0), at(9, 0)))}
	rep := Analyze(rs, []Requirement{{Station: "X", Start: at(10, 0), End: at(11, 0), Count: 1, VehicleType: "TC"}})
	assert.Equal(t, 0, rep.Covered)
	assert.Equal(t, 1, rep.Coverage[0].Shortfall)
	assert.Equal(t, 1, rep.AdditionalVehicles)
}

func TestPeakShortfallReusesVehicles(t *testing.T) {
	cov := []Coverage{
		{Requirement: Requirement{Start: at(8, 0), End: at(9, 0)}, Shortfall: 2},
		{Requirement: Requirement{Start: at(9, 0), End: at(10, 0)}, Shortfall: 1},
		{Requirement: Requirement{Start: at(9, 30), End: at(10, 30)}, Shortfall: 1},
	}
	assert.Equal(t, 2, peakShortfall(cov))
}

func TestPhantomTrips(t *testing.T) {
	trips := []model.Trip{
		trip("a", "Utrecht", "Zeist", at(8, 0), at(9, 0)),
		trip("b", "Zeist", "Utrecht", at(9, 30), at(10, 30)),
		{ID: "c", VehicleType: "TC", Origin: "Utrecht", Destination: "Amersfoort", Departure: at(8, 0), Arrival: at(9, 0)},
	}
	reqs := []Requirement{
		{Station: "Utrecht", Start: at(10, 0), End: at(11, 0), Count: 2},
		{Station: "Gouda", Start: at(10, 0), End: at(11, 0), Count: 1},
	}
	out, unassigned := PhantomTrips(reqs, trips)
	require.Len(t, out, 2)
	require.Len(t, unassigned, 1)
	assert.Equal(t, "Gouda", unassigned[0].Station)
	assert.Equal(t, "DD", out[0].VehicleType)
	assert.True(t, out[0].Reserve)
	assert.Equal(t, "RES-Utrecht-20240305T1000-1", out[0].ID)
	assert.NoError(t, out[1].Validate())
}

func TestRequirementValidate(t *testing.T) {
	err := Requirement{Station: " ", Start: at(10, 0), End: at(9, 0)}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty station")
	assert.Contains(t, err.Error(), "count must be positive")
}

func TestPhantomCoverage(t *testing.T) {
	duty := func(id string) model.Trip {
		tr := trip(id, "Utrecht", "Utrecht", at(10, 0), at(11, 0))
		tr.Reserve = true
		return tr
	}
	rs := []model.Rotation{
		rotation("R2", trip("a", "Zeist", "Utrecht", at(8, 0), at(9, 0)), duty("RES-1")),
		rotation("R1", duty("RES-2")),
	}
	reqs := []Requirement{
		{Station: "utrecht", Start: at(10, 0), End: at(11, 0), Count: 3},
		{Station: "Zeist", Start: at(10, 0), End: at(11, 0), Count: 1},
	}
	rep := PhantomCoverage(reqs, rs)
	assert.Equal(t, 4, rep.Required)
	assert.Equal(t, 2, rep.Covered)
	assert.Equal(t, []string{"R1", "R2"}, rep.Coverage[0].Rotations)
	assert.Equal(t, 1, rep.Coverage[0].Shortfall)
	assert.Equal(t, 1, rep.Coverage[1].Shortfall)
	assert.Zero(t, rep.AdditionalVehicles)
}
