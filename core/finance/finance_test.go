package finance

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/rotaplan/core/model"
)

func ts(day, h, m int) time.Time {
	return time.Date(2024, 3, day, h, m, 0, 0, time.UTC)
}

func testConfig() Config {
	return Config{
		HourlyRates: map[string]float64{"DD": 100},
		Labor: LaborConfig{
			BaseWage:       20,
			EmployerFactor: 1,
			BreakBrackets: []BreakBracket{
				{UpToHours: 4.5, DeductMinutes: 0},
				{UpToHours: 7.5, DeductMinutes: 30},
				{UpToHours: 10.5, DeductMinutes: 60},
			},
			Surcharges: []SurchargeWindow{
				{Name: "evening", Days: []string{"mon", "tue", "wed", "thu", "fri"}, Start: "19:00", End: "24:00", RatePerHour: 5},
				{Name: "early", Days: []string{"mon", "tue", "wed", "thu", "fri"}, Start: "00:00", End: "07:30", RatePerHour: 5},
				{Name: "sunday", Days: []string{"sunday"}, Start: "00:00", End: "00:00", RatePerHour: 10},
			},
			BrokenShift:           BrokenShift{MinGapMinutes: 120, Allowance: 15},
			Meals:                 []MealAllowance{{MinShiftHours: 11, Amount: 22.5}, {MinShiftHours: 14, Amount: 36.72}},
			VacationSurchargeRate: 0.1,
		},
		Energy: EnergyConfig{
			Prices: map[model.FuelType]float64{model.FuelDiesel: 1.5, model.FuelHVO: 1.8, model.FuelZE: 0.3},
			Consumption: map[string]map[model.FuelType]float64{
				"DD": {model.FuelDiesel: 40, model.FuelZE: 150},
			},
		},
		Sustainability: SustainabilityConfig{
			ZEBonusPerKM: 0.12,
			HVO:          HVOIncentive{DiffMax: 0.35, Stimulus: 0.05, MaxTotal: 0.4},
		},
	}
}

func newModel(t *testing.T, cfg Config) *Model {
	t.Helper()
	m, err := New(cfg)
	require.NoError(t, err)
	return m
}

func single(dep, arr time.Time, km float64) model.Rotation {
	return model.Rotation{VehicleType: "DD", Trips: []model.Trip{{ID: "t", VehicleType: "DD", Departure: dep, Arrival: arr, DistanceKM: km}}}
}

func TestLaborBrokenShift(t *testing.T) {
	m := newModel(t, testConfig())
	r := model.Rotation{
		VehicleType: "DD",
		Trips: []model.Trip{
			{ID: "a", Departure: ts(4, 8, 0), Arrival: ts(4, 11, 0), DistanceKM: 50},
			{ID: "b", Departure: ts(4, 13, 30), Arrival: ts(4, 16, 0), DistanceKM: 50},
		},
		Links: []model.Link{{Idle: 150 * time.Minute}},
	}
	lb := m.Labor(r)
	require.Len(t, lb.Shifts, 1)
	s := lb.Shifts[0]
	assert.InDelta(t, 8.0, s.SpanHours, 1e-9)
	assert.InDelta(t, 60.0, s.BreakMinutes, 1e-9)
	assert.InDelta(t, 7.0, s.PaidHours, 1e-9)
	assert.InDelta(t, 140.0, s.Base, 1e-9)
	assert.InDelta(t, 0.0, s.Surcharge, 1e-9)
	assert.InDelta(t, 15.0, s.Broken, 1e-9)
	assert.InDelta(t, 170.5, lb.Total, 1e-9)
	assert.InDelta(t, 550.0, m.Revenue(r), 1e-9)
}

func TestLaborSurchargeWindows(t *testing.T) {
	m := newModel(t, testConfig())

	evening := single(ts(4, 17, 0), ts(4, 21, 0), 10)
	assert.InDelta(t, 99.0, m.LaborCost(evening), 1e-9)

	// Sunday 22:00 until Monday 02:00: two hours at the Sunday rate, two early hours.
	overnight := single(ts(3, 22, 0), ts(4, 2, 0), 10)
	lb := m.Labor(overnight)
	assert.InDelta(t, 4.0, lb.Shifts[0].SurchargeHours, 1e-9)
	assert.InDelta(t, 30.0, lb.Shifts[0].Surcharge, 1e-9)
	assert.InDelta(t, 121.0, lb.Total, 1e-9)
}

func TestSurchargeHighestRateWins(t *testing.T) {
	cfg := testConfig()
	cfg.Labor.Surcharges = []SurchargeWindow{
		{Name: "all", Start: "00:00", End: "00:00", RatePerHour: 3},
		{Name: "lunch", Start: "12:00", End: "14:00", RatePerHour: 8},
	}
	m := newModel(t, cfg)
	hours, amount := m.surcharge(ts(4, 10, 0), ts(4, 16, 0))
	assert.InDelta(t, 6.0, hours, 1e-9)
	assert.InDelta(t, 28.0, amount, 1e-9)
}

func TestBracketsAndMeals(t *testing.T) {
	m := newModel(t, testConfig())
	assert.Equal(t, 0.0, m.BreakDeduction(4.5))
	assert.Equal(t, 30.0, m.BreakDeduction(4.6))
	assert.Equal(t, 60.0, m.BreakDeduction(20))
	assert.Equal(t, 0.0, m.MealAllowance(10))
	assert.Equal(t, 22.5, m.MealAllowance(13.9))
	assert.Equal(t, 36.72, m.MealAllowance(14))
}

func TestOvertimeAndCoordinator(t *testing.T) {
	cfg := testConfig()
	cfg.Labor.VacationSurchargeRate = 0
	cfg.Labor.Overtime = OvertimeConfig{ThresholdHours: 3, Rate: 0.5}
	cfg.CoordinatorCostPerShift = 7
	m := newModel(t, cfg)
	lb := m.Labor(single(ts(5, 8, 0), ts(5, 12, 0), 10))
	// 4 paid hours, 1 beyond the threshold at half the hourly cost.
	assert.InDelta(t, 10.0, lb.Overtime, 1e-9)
	assert.InDelta(t, 80+10+7, lb.Total, 1e-9)
}

func TestEnergyAndHVO(t *testing.T) {
	m := newModel(t, testConfig())
	r := single(ts(4, 8, 0), ts(4, 9, 0), 100)
	assert.InDelta(t, 60.0, m.EnergyCost(r), 1e-9)

	r.FuelType = model.FuelZE
	use := m.Energy(r)
	assert.InDelta(t, 150.0, use.Units, 1e-9)
	assert.InDelta(t, 45.0, use.Cost, 1e-9)

	r.FuelType = model.FuelHVO
	assert.InDelta(t, 72.0, m.EnergyCost(r), 1e-9)
	assert.InDelta(t, 0.35, m.HVOBonusPerLiter(), 1e-9)
	assert.True(t, m.PreferHVO(r))

	cfg := testConfig()
	cfg.Energy.Prices[model.FuelHVO] = 2.5
	cfg.Sustainability.HVO.Stimulus = 0
	assert.False(t, newModel(t, cfg).PreferHVO(r))
}

func TestGarageCounted(t *testing.T) {
	cfg := testConfig()
	cfg.Garage = GarageConfig{Count: true, DistanceKM: 5, Minutes: 30}
	cfg.Labor.VacationSurchargeRate = 0
	m := newModel(t, cfg)
	r := single(ts(5, 9, 0), ts(5, 12, 0), 100)
	assert.InDelta(t, 110.0, m.RotationKM(r), 1e-9)
	// 4h span including depot runs, no break deduction.
	assert.InDelta(t, 80.0, m.LaborCost(r), 1e-9)
}

func TestSustainabilityAndProfit(t *testing.T) {
	cfg := testConfig()
	cfg.Sustainability.KPIs = []KPITarget{{Name: "fuel", Metric: MetricSustainableFuel, TargetPct: 60, StepPct: 0.1, MalusPerStep: 1000}}
	cfg.Sustainability.MalusCapFraction = 0.01
	cfg.Sustainability.BonusCapFraction = 0.005
	cfg.Sustainability.AnnualizationFactor = 1000
	m := newModel(t, cfg)

	ze := single(ts(5, 8, 0), ts(5, 9, 0), 100)
	ze.FuelType = model.FuelZE
	diesel := single(ts(5, 8, 0), ts(5, 9, 0), 100)
	b := m.Profit([]model.Rotation{ze, diesel})

	require.Len(t, b.Sustainability.KPIs, 1)
	k := b.Sustainability.KPIs[0]
	assert.InDelta(t, 50.0, k.ActualPct, 1e-9)
	assert.Equal(t, 100, k.Steps)
	assert.InDelta(t, 100000.0, b.Sustainability.MalusRaw, 1e-6)
	assert.InDelta(t, 2000.0, b.Malus, 1e-6)
	assert.True(t, b.Sustainability.MalusCapped)
	assert.InDelta(t, 12.0, b.Bonus, 1e-9)

	assert.InDelta(t, 200.0, b.Revenue, 1e-9)
	assert.InDelta(t, 105.0, b.Energy, 1e-9)
	assert.InDelta(t, 44.0, b.Labor, 1e-9)
	assert.InDelta(t, b.Revenue-b.Labor-b.Energy-b.Malus+b.Bonus, b.Profit, 1e-9)
	assert.Equal(t, 2, b.Vehicles)
}

func TestValidate(t *testing.T) {
	cfg := testConfig()
	cfg.HourlyRates = nil
	_, err := New(cfg)
	assert.True(t, errors.Is(err, ErrMissingRate))

	cfg = testConfig()
	cfg.Labor.BreakBrackets = append(cfg.Labor.BreakBrackets, BreakBracket{UpToHours: 12, DeductMinutes: 60})
	_, err = New(cfg)
	assert.True(t, errors.Is(err, ErrInvalidBrackets))

	cfg = testConfig()
	delete(cfg.Energy.Prices, model.FuelDiesel)
	_, err = New(cfg)
	assert.True(t, errors.Is(err, ErrMissingPrice))

	cfg = testConfig()
	cfg.Labor.Surcharges[0].Start = "25:00"
	_, err = New(cfg)
	assert.Error(t, err)

	m := newModel(t, testConfig())
	assert.NoError(t, m.Require([]string{"DD"}, []model.FuelType{model.FuelDiesel, model.FuelZE}))
	err = m.Require([]string{"DD", "TC"}, []model.FuelType{model.FuelDiesel})
	assert.True(t, errors.Is(err, ErrMissingRate))
	assert.True(t, errors.Is(err, ErrMissingConsumption))
}

func TestDefaultsAreValid(t *testing.T) {
	m := newModel(t, Defaults())
	assert.NoError(t, m.Require([]string{"Dubbeldekker", "Taxibus"}, []model.FuelType{model.FuelDiesel, model.FuelHVO, model.FuelZE}))
}
