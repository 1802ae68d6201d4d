package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/rotaplan/core/factory"
	"github.com/kilianp07/rotaplan/core/finance"
	"github.com/kilianp07/rotaplan/core/model"
	"github.com/kilianp07/rotaplan/core/rangetrack"
	"github.com/kilianp07/rotaplan/internal/eventbus"
)

func at(h, m int) time.Time { return time.Date(2024, 3, 5, h, m, 0, 0, time.UTC) }

func financeModel(t *testing.T, coordinator float64) *finance.Model {
	t.Helper()
	m, err := finance.New(finance.Config{
		HourlyRates: map[string]float64{"DD": 100},
		Labor:       finance.LaborConfig{BaseWage: 20},
		Energy: finance.EnergyConfig{
			Prices:      map[model.FuelType]float64{model.FuelDiesel: 1.5, model.FuelZE: 0.3},
			Consumption: map[string]map[model.FuelType]float64{"DD": {model.FuelDiesel: 40, model.FuelZE: 150}},
		},
		CoordinatorCostPerShift: coordinator,
	})
	require.NoError(t, err)
	return m
}

// broken is a rotation with a long midday gap: 06:00-09:00 and 15:00-18:00.
func broken(prefix string, offset time.Duration) model.Rotation {
	a := model.Trip{ID: prefix + "1", VehicleType: "DD", Origin: "X", Destination: "X", Departure: at(6, 0).Add(offset), Arrival: at(9, 0).Add(offset), DistanceKM: 60}
	b := model.Trip{ID: prefix + "2", VehicleType: "DD", Origin: "X", Destination: "X", Departure: at(15, 0).Add(offset), Arrival: at(18, 0).Add(offset), DistanceKM: 60}
	return model.Rotation{VehicleType: "DD", Trips: []model.Trip{a, b}, Links: []model.Link{{Idle: 6 * time.Hour}}}
}

func newSearcher(t *testing.T, cfg Config, fin *finance.Model, notes Annotator, bus eventbus.EventBus) *Searcher {
	t.Helper()
	gen, err := NewGenerator(factory.ModuleConfig{}, Options{Finance: fin})
	require.NoError(t, err)
	s, err := New(cfg, gen, fin, notes, bus, nil)
	require.NoError(t, err)
	return s
}

func TestSearchSplitsExpensiveRotation(t *testing.T) {
	fin := financeModel(t, 0)
	base := []model.Rotation{broken("a", 0), broken("b", 10*time.Minute)}
	s := newSearcher(t, Config{MaxExtraPct: 50}, fin, nil, nil)

	res, err := s.Run(context.Background(), base)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Budget)
	assert.Equal(t, 2, res.Baseline.Vehicles())
	assert.Equal(t, 3, res.Best.Vehicles())
	// one 12 hour shift becomes two 3 hour shifts: 6 paid hours at 20 saved
	assert.InDelta(t, 120, res.Improvement(), 1e-9)
	assert.Equal(t, 1, res.Best.Seq)
	assert.Equal(t, "split DD-TUE-001 after a1", res.Best.Origin)
	assert.Equal(t, 3, res.Scored)
	assert.Equal(t, 1, res.Rounds)
	assert.True(t, res.Best.ZE.Met)
}

func TestSearchKeepsBaselineWithoutImprovement(t *testing.T) {
	fin := financeModel(t, 500)
	base := []model.Rotation{broken("a", 0), broken("b", 10*time.Minute)}
	s := newSearcher(t, Config{MaxExtraPct: 100}, fin, nil, nil)

	res, err := s.Run(context.Background(), base)
	require.NoError(t, err)
	assert.Equal(t, BaselineOrigin, res.Best.Origin)
	assert.Equal(t, 0, res.Best.Seq)
	assert.Equal(t, res.Baseline.Breakdown.Profit, res.Best.Breakdown.Profit)
	assert.Equal(t, 2, res.Budget)
	assert.Equal(t, 1, res.Rounds)
}

func TestSearchZeroBudget(t *testing.T) {
	fin := financeModel(t, 0)
	s := newSearcher(t, Config{MaxExtraPct: 10}, fin, nil, nil)
	res, err := s.Run(context.Background(), []model.Rotation{broken("a", 0)})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Budget)
	assert.Equal(t, 1, res.Scored)
	assert.Equal(t, BaselineOrigin, res.Best.Origin)
	assert.Zero(t, res.ProfitStdDev)
}

func TestSearchDeterministicAcrossWorkers(t *testing.T) {
	fin := financeModel(t, 20)
	var base []model.Rotation
	for i := 0; i < 8; i++ {
		base = append(base, broken(string(rune('a'+i)), time.Duration(i)*7*time.Minute))
	}
	bus := eventbus.New()
	ch := bus.Subscribe()
	one, err := newSearcher(t, Config{MaxExtraPct: 50, Workers: 1}, fin, nil, nil).Run(context.Background(), base)
	require.NoError(t, err)
	many, err := newSearcher(t, Config{MaxExtraPct: 50, Workers: 8}, fin, nil, bus).Run(context.Background(), base)
	require.NoError(t, err)

	assert.Equal(t, one.Best.Origin, many.Best.Origin)
	assert.Equal(t, one.Best.Seq, many.Best.Seq)
	assert.Equal(t, one.Best.Breakdown.Profit, many.Best.Breakdown.Profit)
	assert.Equal(t, one.Best.Rotations, many.Best.Rotations)
	assert.Equal(t, 12, many.Best.Vehicles())
	assert.GreaterOrEqual(t, many.Best.Breakdown.Profit, many.Baseline.Breakdown.Profit)

	select {
	case ev := <-ch:
		assert.NotNil(t, ev)
	default:
		t.Fatalf("expected candidate events on the bus")
	}
}

func TestSearchRunsFuelPostPass(t *testing.T) {
	fin := financeModel(t, 0)
	tracker, err := rangetrack.New(rangetrack.Config{ZE: rangetrack.ZEConfig{
		MinCount: 1,
		Profiles: map[string]rangetrack.Profile{"DD": {RangeKM: 200, ConsumptionKWhPerKM: 1.5}},
	}}, nil, nil)
	require.NoError(t, err)
	s := newSearcher(t, Config{MaxExtraPct: 50}, fin, tracker, nil)

	res, err := s.Run(context.Background(), []model.Rotation{broken("a", 0), broken("b", time.Minute)})
	require.NoError(t, err)
	assert.True(t, res.Baseline.ZE.Met)
	zes := 0
	for _, r := range res.Best.Rotations {
		if r.FuelType == model.FuelZE {
			zes++
		}
	}
	assert.Equal(t, 1, zes)
}

func TestSearchCancelled(t *testing.T) {
	fin := financeModel(t, 0)
	s := newSearcher(t, Config{MaxExtraPct: 100}, fin, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Run(ctx, []model.Rotation{broken("a", 0), broken("b", 0)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGapGenerator(t *testing.T) {
	r := broken("a", 0)
	c := model.Trip{ID: "a3", VehicleType: "DD", Departure: at(18, 30), Arrival: at(19, 0)}
	r.Trips = append(r.Trips, c)
	r.Links = append(r.Links, model.Link{Idle: 30 * time.Minute})
	r.ID = "R1"

	props := GapGenerator{}.Generate([]model.Rotation{r, {ID: "R2", Trips: []model.Trip{c}}}, 1)
	require.Len(t, props, 1)
	assert.Equal(t, "split R1 after a1", props[0].Origin)
	assert.Len(t, props[0].Rotations, 3)
	assert.Empty(t, GapGenerator{}.Generate([]model.Rotation{r}, 0))
}

func TestSplitGeneratorOrder(t *testing.T) {
	fin := financeModel(t, 0)
	short := model.Rotation{ID: "S", VehicleType: "DD", Trips: []model.Trip{
		{ID: "s1", Departure: at(6, 0), Arrival: at(7, 0)},
		{ID: "s2", Departure: at(7, 30), Arrival: at(8, 0)},
	}, Links: []model.Link{{Idle: 30 * time.Minute}}}
	long := broken("l", 0)
	long.ID = "L"

	g := &SplitGenerator{Finance: fin}
	props := g.Generate([]model.Rotation{short, long}, 1)
	require.Len(t, props, 2)
	assert.Equal(t, "split L after l1", props[0].Origin)
	assert.Equal(t, "split S after s1", props[1].Origin)

	g.MaxProposals = 1
	assert.Len(t, g.Generate([]model.Rotation{short, long}, 1), 1)
}

func TestConfigBudget(t *testing.T) {
	assert.Equal(t, 1, Config{MaxExtraPct: 15}.Budget(10))
	assert.Equal(t, 5, Config{MaxExtraPct: 50}.Budget(10))
	assert.Error(t, Config{MaxExtraPct: -1}.Validate())
	_, err := NewGenerator(factory.ModuleConfig{Type: "split"}, Options{})
	assert.Error(t, err)
	assert.Equal(t, []string{"gap", "split"}, Generators())
}
