package finance

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/rotaplan/core/model"
)

var (
	// ErrMissingRate is returned when a rate-determining parameter is absent.
	ErrMissingRate = errors.New("missing rate")
	// ErrMissingPrice is returned when a used fuel has no price.
	ErrMissingPrice = errors.New("missing fuel price")
	// ErrMissingConsumption is returned when a vehicle type has no consumption for a used fuel.
	ErrMissingConsumption = errors.New("missing consumption")
	// ErrInvalidBrackets is returned for non-monotonic break brackets.
	ErrInvalidBrackets = errors.New("invalid break brackets")
)

// Config is the externally supplied financial parameter set. It is loaded
// once per run and never mutated; use New to obtain a validated Model.
type Config struct {
	// HourlyRates is the revenue per driving hour per vehicle type.
	HourlyRates    map[string]float64   `json:"hourly_rates"`
	Labor          LaborConfig          `json:"labor"`
	Energy         EnergyConfig         `json:"energy"`
	Sustainability SustainabilityConfig `json:"sustainability"`
	Garage         GarageConfig         `json:"garage"`
	// CoordinatorCostPerShift is a flat overhead per driven shift.
	CoordinatorCostPerShift float64 `json:"coordinator_cost_per_shift"`
}

// LaborConfig holds the driver cost parameters.
type LaborConfig struct {
	BaseWage              float64           `json:"base_wage"`
	EmployerFactor        float64           `json:"employer_factor"`
	BreakBrackets         []BreakBracket    `json:"break_brackets"`
	Surcharges            []SurchargeWindow `json:"surcharges"`
	Overtime              OvertimeConfig    `json:"overtime"`
	BrokenShift           BrokenShift       `json:"broken_shift"`
	Meals                 []MealAllowance   `json:"meals"`
	VacationSurchargeRate float64           `json:"vacation_surcharge_rate"`
}

// BreakBracket deducts DeductMinutes of unpaid break from shifts up to UpToHours long.
type BreakBracket struct {
	UpToHours     float64 `json:"up_to_hours"`
	DeductMinutes float64 `json:"deduct_minutes"`
}

// SurchargeWindow is an unsocial-hours window. Start and End are "HH:MM";
// End at or before Start wraps past midnight, equal values cover the whole day.
// Days lists weekday abbreviations (mon..sun); empty means every day.
type SurchargeWindow struct {
	Name        string   `json:"name"`
	Days        []string `json:"days"`
	Start       string   `json:"start"`
	End         string   `json:"end"`
	RatePerHour float64  `json:"rate_per_hour"`
}

// OvertimeConfig pays Rate (fraction of the hourly cost) for paid hours of a
// rotation beyond ThresholdHours.
type OvertimeConfig struct {
	ThresholdHours float64 `json:"threshold_hours"`
	Rate           float64 `json:"rate"`
}

// BrokenShift pays Allowance when a shift contains a gap of at least MinGapMinutes.
type BrokenShift struct {
	MinGapMinutes float64 `json:"min_gap_minutes"`
	Allowance     float64 `json:"allowance"`
}

// MealAllowance pays Amount for shifts of at least MinShiftHours. Only the
// highest reached threshold is paid.
type MealAllowance struct {
	MinShiftHours float64 `json:"min_shift_hours"`
	Amount        float64 `json:"amount"`
}

// EnergyConfig holds prices per fuel (EUR per litre or kWh) and consumption
// per vehicle type and fuel (litres or kWh per 100 km).
type EnergyConfig struct {
	Prices      map[model.FuelType]float64            `json:"prices"`
	Consumption map[string]map[model.FuelType]float64 `json:"consumption"`
}

// GarageConfig describes the depot run at the start and end of every shift.
type GarageConfig struct {
	Count      bool    `json:"count"`
	DistanceKM float64 `json:"distance_km"`
	Minutes    float64 `json:"minutes"`
}

// SustainabilityConfig holds bonus and malus rules.
type SustainabilityConfig struct {
	ZEBonusPerKM float64      `json:"ze_bonus_per_km"`
	HVO          HVOIncentive `json:"hvo"`
	KPIs         []KPITarget  `json:"kpis"`
	// MalusCapFraction caps the total malus at a fraction of annual revenue.
	MalusCapFraction float64 `json:"malus_cap_fraction"`
	// BonusCapFraction caps the total bonus at a fraction of annual revenue.
	BonusCapFraction float64 `json:"bonus_cap_fraction"`
	// AnnualizationFactor scales planned revenue to annual revenue.
	AnnualizationFactor float64 `json:"annualization_factor"`
}

// HVOIncentive is the per-litre HVO compensation: the price difference with
// diesel capped at DiffMax, plus Stimulus when the difference exceeds
// DiffThreshold, capped at MaxTotal.
type HVOIncentive struct {
	DiffThreshold float64 `json:"diff_threshold"`
	DiffMax       float64 `json:"diff_max"`
	Stimulus      float64 `json:"stimulus"`
	MaxTotal      float64 `json:"max_total"`
}

// KPI metric names.
const (
	MetricSustainableFuel = "sustainable_fuel_share"
	MetricZeroEmission    = "zero_emission_share"
	MetricEmissionNorm    = "emission_norm_share"
	MetricTripCoverage    = "trip_coverage"
)

// KPITarget charges MalusPerStep for every StepPct percentage points the
// metric falls below TargetPct.
type KPITarget struct {
	Name         string  `json:"name"`
	Metric       string  `json:"metric"`
	TargetPct    float64 `json:"target_pct"`
	StepPct      float64 `json:"step_pct"`
	MalusPerStep float64 `json:"malus_per_step"`
	// VehicleTypes meeting the emission norm, used by emission_norm_share.
	// Empty means every type complies.
	VehicleTypes []string `json:"vehicle_types"`
}

// SetDefaults fills optional, non rate-determining fields.
func (c *Config) SetDefaults() {
	if c.Labor.EmployerFactor == 0 {
		c.Labor.EmployerFactor = 1
	}
	if c.Sustainability.AnnualizationFactor == 0 {
		c.Sustainability.AnnualizationFactor = 1
	}
	for i := range c.Sustainability.KPIs {
		if c.Sustainability.KPIs[i].StepPct == 0 {
			c.Sustainability.KPIs[i].StepPct = 0.1
		}
	}
}

// Validate checks the configuration independently of the trips it will price.
func (c Config) Validate() error {
	var errs []error
	if len(c.HourlyRates) == 0 {
		errs = append(errs, fmt.Errorf("%w: hourly_rates is empty", ErrMissingRate))
	}
	for vt, r := range c.HourlyRates {
		if r <= 0 {
			errs = append(errs, fmt.Errorf("%w: hourly rate for %s must be positive", ErrMissingRate, vt))
		}
	}
	if c.Labor.BaseWage <= 0 {
		errs = append(errs, fmt.Errorf("%w: labor.base_wage must be positive", ErrMissingRate))
	}
	if c.Energy.Prices[model.FuelDiesel] <= 0 {
		errs = append(errs, fmt.Errorf("%w: diesel", ErrMissingPrice))
	}
	if c.Labor.VacationSurchargeRate < 0 {
		errs = append(errs, errors.New("labor.vacation_surcharge_rate must not be negative"))
	}
	if err := validateBrackets(c.Labor.BreakBrackets); err != nil {
		errs = append(errs, err)
	}
	for _, w := range c.Labor.Surcharges {
		if _, err := parseWindow(w); err != nil {
			errs = append(errs, err)
		}
	}
	for _, k := range c.Sustainability.KPIs {
		switch k.Metric {
		case MetricSustainableFuel, MetricZeroEmission, MetricEmissionNorm, MetricTripCoverage:
		default:
			errs = append(errs, fmt.Errorf("kpi %s: unknown metric %q", k.Name, k.Metric))
		}
	}
	return errors.Join(errs...)
}

func validateBrackets(bs []BreakBracket) error {
	for i := 1; i < len(bs); i++ {
		if bs[i].UpToHours <= bs[i-1].UpToHours || bs[i].DeductMinutes <= bs[i-1].DeductMinutes {
			return fmt.Errorf("%w: bracket %d (%.2fh, %.0fmin) does not increase on bracket %d",
				ErrInvalidBrackets, i, bs[i].UpToHours, bs[i].DeductMinutes, i-1)
		}
	}
	return nil
}

type window struct {
	days       [7]bool
	start, end time.Duration
	rate       float64
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

func parseWindow(w SurchargeWindow) (window, error) {
	var out window
	start, err := parseClock(w.Start)
	if err != nil {
		return out, fmt.Errorf("surcharge %s: start: %w", w.Name, err)
	}
	end, err := parseClock(w.End)
	if err != nil {
		return out, fmt.Errorf("surcharge %s: end: %w", w.Name, err)
	}
	out.start, out.end, out.rate = start, end, w.RatePerHour
	if len(w.Days) == 0 {
		for i := range out.days {
			out.days[i] = true
		}
		return out, nil
	}
	for _, d := range w.Days {
		key := strings.ToLower(strings.TrimSpace(d))
		if len(key) > 3 {
			key = key[:3]
		}
		wd, ok := weekdays[key]
		if !ok {
			return out, fmt.Errorf("surcharge %s: unknown day %q", w.Name, d)
		}
		out.days[wd] = true
	}
	return out, nil
}

func parseClock(s string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

// Defaults returns the standard collective agreement parameters for the
// known vehicle families.
func Defaults() Config {
	types := []string{"Dubbeldekker", "Touringcar", "Lagevloerbus", "Midi bus", "Taxibus"}
	rates := []float64{116.37, 80.455, 80.445, 74.85, 50.455}
	diesel := []float64{45, 32, 38, 25, 12}
	ze := []float64{180, 130, 150, 100, 50}
	c := Config{
		HourlyRates: map[string]float64{},
		Labor: LaborConfig{
			BaseWage:       18.50,
			EmployerFactor: 1.35,
			BreakBrackets: []BreakBracket{
				{UpToHours: 4.5, DeductMinutes: 0},
				{UpToHours: 7.5, DeductMinutes: 30},
				{UpToHours: 10.5, DeductMinutes: 60},
				{UpToHours: 13.5, DeductMinutes: 90},
				{UpToHours: 16.5, DeductMinutes: 120},
				{UpToHours: 24, DeductMinutes: 150},
			},
			Surcharges: []SurchargeWindow{
				{Name: "weekday_evening", Days: []string{"mon", "tue", "wed", "thu", "fri"}, Start: "19:00", End: "24:00", RatePerHour: 4.80},
				{Name: "weekday_early", Days: []string{"mon", "tue", "wed", "thu", "fri"}, Start: "00:00", End: "07:30", RatePerHour: 4.80},
				{Name: "saturday", Days: []string{"sat"}, Start: "00:00", End: "00:00", RatePerHour: 4.80},
				{Name: "sunday", Days: []string{"sun"}, Start: "00:00", End: "00:00", RatePerHour: 6.68},
			},
			Overtime:              OvertimeConfig{ThresholdHours: 173.33, Rate: 0.35},
			BrokenShift:           BrokenShift{MinGapMinutes: 120, Allowance: 15},
			Meals:                 []MealAllowance{{MinShiftHours: 11, Amount: 22.50}, {MinShiftHours: 14, Amount: 36.72}},
			VacationSurchargeRate: 0.08,
		},
		Energy: EnergyConfig{
			Prices:      map[model.FuelType]float64{model.FuelDiesel: 1.65, model.FuelHVO: 1.95, model.FuelZE: 0.35},
			Consumption: map[string]map[model.FuelType]float64{},
		},
		Sustainability: SustainabilityConfig{
			ZEBonusPerKM: 0.12,
			HVO:          HVOIncentive{DiffThreshold: 0, DiffMax: 0.35, Stimulus: 0.05, MaxTotal: 0.40},
			KPIs: []KPITarget{
				{Name: "sustainable_fuel", Metric: MetricSustainableFuel, TargetPct: 35, StepPct: 0.1, MalusPerStep: 1000},
				{Name: "emission_norm", Metric: MetricEmissionNorm, TargetPct: 100, StepPct: 0.1, MalusPerStep: 1000},
			},
			MalusCapFraction:    0.01,
			BonusCapFraction:    0.005,
			AnnualizationFactor: 1,
		},
	}
	for i, vt := range types {
		c.HourlyRates[vt] = rates[i]
		c.Energy.Consumption[vt] = map[model.FuelType]float64{model.FuelDiesel: diesel[i], model.FuelZE: ze[i]}
	}
	return c
}
