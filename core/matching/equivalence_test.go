package matching

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/rotaplan/core/cost"
	"github.com/kilianp07/rotaplan/core/feasibility"
	"github.com/kilianp07/rotaplan/core/finance"
	"github.com/kilianp07/rotaplan/core/model"
)

func profitCost(t *testing.T) *cost.ProfitBased {
	t.Helper()
	fin, err := finance.New(finance.Config{
		HourlyRates: map[string]float64{"DD": 100},
		Labor: finance.LaborConfig{
			BaseWage: 30,
			BreakBrackets: []finance.BreakBracket{
				{UpToHours: 4.5, DeductMinutes: 0},
				{UpToHours: 24, DeductMinutes: 30},
			},
		},
		Energy: finance.EnergyConfig{
			Prices:      map[model.FuelType]float64{model.FuelDiesel: 1.8},
			Consumption: map[string]map[model.FuelType]float64{"DD": {model.FuelDiesel: 0.4}},
		},
	})
	require.NoError(t, err)
	p, err := cost.NewProfitBased(fin, model.FuelDiesel)
	require.NoError(t, err)
	return p
}

// connections lists, for every trip, the trips it can be followed by.
func connections(fm feasibility.Model, trips []model.Trip) [][]int {
	adj := make([][]int, len(trips))
	for i, a := range trips {
		for j, b := range trips {
			if i != j && fm.CanConnect(a, b) {
				adj[i] = append(adj[i], j)
			}
		}
	}
	return adj
}

// With a single chaining that reaches the minimum fleet, the cost function
// has nothing to choose and both strategies return the same rotations.
func TestUniqueMaximumMatchingIgnoresCost(t *testing.T) {
	fm := baseModel()
	profit := profitCost(t)
	unique := 0
	for seed := int64(1); seed <= 400; seed++ {
		trips := randomTrips(seed, 3+int(seed%5), "DD")
		if _, n := maxMatchings(connections(fm, trips), len(trips)); n != 1 {
			continue
		}
		unique++

		byTime, err := New(fm, cost.TimeBased{}, nil, Options{}, nil).Solve(context.Background(), trips)
		require.NoError(t, err)
		byProfit, err := New(fm, profit, nil, Options{}, nil).Solve(context.Background(), trips)
		require.NoError(t, err)
		if !reflect.DeepEqual(byTime.Rotations, byProfit.Rotations) {
			t.Fatalf("seed %d: time and profit rotations differ\ntime:   %v\nprofit: %v", seed, byTime.Rotations, byProfit.Rotations)
		}
	}
	assert.NotZero(t, unique)
}
