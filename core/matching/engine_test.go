package matching

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/rotaplan/core/cost"
	"github.com/kilianp07/rotaplan/core/feasibility"
	"github.com/kilianp07/rotaplan/core/model"
	"github.com/kilianp07/rotaplan/core/rangetrack"
)

func at(day, h, m int) time.Time { return time.Date(2024, 3, day, h, m, 0, 0, time.UTC) }

func trip(id, from, to string, dep, arr time.Time) model.Trip {
	return model.Trip{ID: id, VehicleType: "DD", Date: model.DayOf(dep), Origin: from, Destination: to, Departure: dep, Arrival: arr, DistanceKM: 20}
}

func baseModel() feasibility.Model {
	table := feasibility.NewMatrix()
	table.Set("X", "Y", feasibility.Leg{Duration: 10 * time.Minute, DistanceKM: 8})
	table.Set("Y", "X", feasibility.Leg{Duration: 10 * time.Minute, DistanceKM: 8})
	return feasibility.Model{Turnaround: map[string]time.Duration{"DD": 5 * time.Minute}, Table: table}
}

// costInstance has two maximum matchings: {a1-b1, a2-b2} costs 100 and
// {a1-b2, a2-b1} costs 150 under the time-based function.
func costInstance() []model.Trip {
	return []model.Trip{
		trip("a1", "Z", "X", at(4, 8, 0), at(4, 9, 0)),
		trip("a2", "Z", "Y", at(4, 8, 10), at(4, 9, 10)),
		trip("b1", "X", "Z", at(4, 9, 30), at(4, 10, 40)),
		trip("b2", "Y", "Z", at(4, 10, 30), at(4, 11, 0)),
	}
}

func ids(r model.Rotation) []string {
	out := make([]string, len(r.Trips))
	for i, t := range r.Trips {
		out[i] = t.ID
	}
	return out
}

func TestSolveMinimumCost(t *testing.T) {
	e := New(baseModel(), cost.TimeBased{}, nil, Options{}, nil)
	res, err := e.Solve(context.Background(), costInstance())
	require.NoError(t, err)
	require.Equal(t, 2, res.Vehicles)
	assert.Equal(t, 2, res.UnconstrainedVehicles)
	assert.False(t, res.FuelAddedVehicles)
	assert.InDelta(t, 110, res.Cost, 1e-9)
	assert.Equal(t, []string{"a1", "b1"}, ids(res.Rotations[0]))
	assert.Equal(t, []string{"a2", "b2"}, ids(res.Rotations[1]))
	assert.Equal(t, 30*time.Minute, res.Rotations[0].Links[0].Idle)
}

func TestGreedyBestFit(t *testing.T) {
	e := New(baseModel(), cost.TimeBased{}, nil, Options{Algorithm: Greedy}, nil)
	res, err := e.Solve(context.Background(), costInstance())
	require.NoError(t, err)
	require.Equal(t, 2, res.Vehicles)
	// b1 takes the smallest idle gap (after a2), leaving a1 for b2.
	assert.Equal(t, []string{"a1", "b2"}, ids(res.Rotations[0]))
	assert.Equal(t, []string{"a2", "b1"}, ids(res.Rotations[1]))
	assert.InDelta(t, 150, res.Cost, 1e-9)
}

func TestParseAlgorithm(t *testing.T) {
	a, err := ParseAlgorithm(" Greedy ")
	require.NoError(t, err)
	assert.Equal(t, Greedy, a)
	a, err = ParseAlgorithm("")
	require.NoError(t, err)
	assert.Equal(t, SuccessiveShortestPath, a)
	_, err = ParseAlgorithm("hungarian")
	assert.Error(t, err)
}

// randomTrips builds a reproducible timetable over a few locations.
func randomTrips(seed int64, n int, types ...string) []model.Trip {
	rnd := rand.New(rand.NewSource(seed))
	locs := []string{"X", "Y"}
	trips := make([]model.Trip, n)
	for i := range trips {
		dep := at(4+rnd.Intn(2), 6+rnd.Intn(12), rnd.Intn(60))
		trips[i] = model.Trip{
			ID:          "t" + string(rune('A'+i/26)) + string(rune('a'+i%26)),
			VehicleType: types[rnd.Intn(len(types))],
			Origin:      locs[rnd.Intn(2)],
			Destination: locs[rnd.Intn(2)],
			Departure:   dep,
			Arrival:     dep.Add(time.Duration(20+rnd.Intn(90)) * time.Minute),
			DistanceKM:  float64(10 + rnd.Intn(60)),
		}
		trips[i].Date = model.DayOf(dep)
	}
	return trips
}

func checkPartition(t *testing.T, fm feasibility.Model, trips []model.Trip, rs []model.Rotation) {
	t.Helper()
	seen := make(map[string]int)
	for _, r := range rs {
		require.Len(t, r.Links, len(r.Trips)-1)
		for i, tr := range r.Trips {
			seen[tr.ID]++
			if i > 0 {
				link, ok := fm.Connect(r.Trips[i-1], tr)
				require.Truef(t, ok, "%s -> %s is not a feasible connection", r.Trips[i-1].ID, tr.ID)
				assert.Equal(t, link, r.Links[i-1])
			}
		}
	}
	require.Len(t, seen, len(trips))
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("trip %s assigned %d times", id, n)
		}
	}
}

func TestSolveIsMaximumAndPartitions(t *testing.T) {
	fm := baseModel()
	for seed := int64(1); seed <= 5; seed++ {
		trips := randomTrips(seed, 60, "DD", "TC")
		e := New(fm, cost.TimeBased{}, nil, Options{}, nil)
		res, err := e.Solve(context.Background(), trips)
		require.NoError(t, err)
		checkPartition(t, fm, trips, res.Rotations)
		assert.Equal(t, res.UnconstrainedVehicles, res.Vehicles, "seed %d", seed)
		assert.Equal(t, 4, res.Groups)

		greedy, err := New(fm, cost.TimeBased{}, nil, Options{Algorithm: Greedy}, nil).Solve(context.Background(), trips)
		require.NoError(t, err)
		checkPartition(t, fm, trips, greedy.Rotations)
		assert.GreaterOrEqual(t, greedy.Vehicles, res.Vehicles)
	}
}

func TestSolveDeterministic(t *testing.T) {
	trips := randomTrips(7, 50, "DD")
	fm := baseModel()
	fm.Mode = feasibility.MultiDay
	first, err := New(fm, nil, nil, Options{Workers: 1}, nil).Solve(context.Background(), trips)
	require.NoError(t, err)

	shuffled := append([]model.Trip(nil), trips...)
	rand.New(rand.NewSource(3)).Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	second, err := New(fm, nil, nil, Options{Workers: 4}, nil).Solve(context.Background(), shuffled)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSolveMultiDay(t *testing.T) {
	trips := []model.Trip{
		trip("mon", "X", "X", at(4, 8, 0), at(4, 9, 0)),
		trip("tue", "X", "X", at(5, 8, 0), at(5, 9, 0)),
	}
	single, err := New(baseModel(), nil, nil, Options{}, nil).Solve(context.Background(), trips)
	require.NoError(t, err)
	assert.Equal(t, 2, single.Vehicles)
	assert.Equal(t, 2, single.Groups)

	fm := baseModel()
	fm.Mode = feasibility.MultiDay
	multi, err := New(fm, nil, nil, Options{}, nil).Solve(context.Background(), trips)
	require.NoError(t, err)
	assert.Equal(t, 1, multi.Vehicles)
	assert.Equal(t, 1, multi.Groups)
}

func rangeTracker(t *testing.T, km float64) *rangetrack.Tracker {
	t.Helper()
	tr, err := rangetrack.New(rangetrack.Config{Profiles: map[string]rangetrack.Profile{"DD": {RangeKM: km, Energy: rangetrack.Fuel}}}, nil, nil)
	require.NoError(t, err)
	return tr
}

func TestRangeSplitsChain(t *testing.T) {
	a := trip("a", "X", "X", at(4, 8, 0), at(4, 9, 0))
	b := trip("b", "X", "X", at(4, 9, 30), at(4, 10, 30))
	a.DistanceKM, b.DistanceKM = 160, 150

	res, err := New(baseModel(), nil, rangeTracker(t, 300), Options{}, nil).Solve(context.Background(), []model.Trip{a, b})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Vehicles)
	assert.Equal(t, 1, res.UnconstrainedVehicles)
	assert.True(t, res.FuelAddedVehicles)
	assert.Equal(t, 1, res.RangeSplits)
	assert.Equal(t, 1, res.Rejections)
}

func TestRangeRejectionKeepsShorterChain(t *testing.T) {
	trips := []model.Trip{
		trip("a", "X", "X", at(4, 8, 0), at(4, 9, 0)),
		trip("b", "X", "X", at(4, 10, 0), at(4, 11, 0)),
		trip("c", "X", "X", at(4, 12, 0), at(4, 13, 0)),
	}
	trips[0].DistanceKM, trips[1].DistanceKM, trips[2].DistanceKM = 200, 150, 80
	profile := rangetrack.Profile{RangeKM: 300, Energy: rangetrack.Fuel}

	fm := baseModel()
	res, err := New(fm, nil, rangeTracker(t, 300), Options{}, nil).Solve(context.Background(), trips)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Vehicles)
	assert.Equal(t, 1, res.UnconstrainedVehicles)
	checkPartition(t, fm, trips, res.Rotations)
	for _, r := range res.Rotations {
		assert.NoError(t, rangetrack.Verify(profile, r))
	}
}

func TestRangeInvariantOnRandomTimetables(t *testing.T) {
	fm := baseModel()
	profile := rangetrack.Profile{RangeKM: 150, Energy: rangetrack.Fuel}
	for seed := int64(1); seed <= 3; seed++ {
		trips := randomTrips(seed, 40, "DD")
		for _, alg := range []Algorithm{SuccessiveShortestPath, Greedy} {
			res, err := New(fm, nil, rangeTracker(t, 150), Options{Algorithm: alg}, nil).Solve(context.Background(), trips)
			require.NoError(t, err)
			checkPartition(t, fm, trips, res.Rotations)
			assert.GreaterOrEqual(t, res.Vehicles, res.UnconstrainedVehicles)
			for _, r := range res.Rotations {
				assert.NoError(t, rangetrack.Verify(profile, r))
			}
		}
	}
}

// chainLength penalises long chains and rewards early connections, so its
// costs change between augmentations.
type chainLength struct{}

func (chainLength) Name() string         { return "chain_length" }
func (chainLength) StateDependent() bool { return true }
func (chainLength) Cost(c cost.Chain, b model.Trip, link model.Link) float64 {
	return float64(len(c.Trips)*len(c.Trips)) - link.Idle.Minutes()/10
}

func TestStateDependentCostKeepsMaximality(t *testing.T) {
	fm := baseModel()
	trips := randomTrips(11, 60, "DD")
	res, err := New(fm, chainLength{}, nil, Options{}, nil).Solve(context.Background(), trips)
	require.NoError(t, err)
	checkPartition(t, fm, trips, res.Rotations)
	assert.Equal(t, res.UnconstrainedVehicles, res.Vehicles)
}

func TestSolveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(baseModel(), nil, nil, Options{}, nil).Solve(ctx, costInstance())
	assert.True(t, errors.Is(err, context.Canceled))
}
