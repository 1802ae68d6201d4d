package finance

import (
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/rotaplan/core/model"
)

// Model is a validated, read-only view of a Config. All methods are pure and
// safe for concurrent use.
type Model struct {
	cfg     Config
	windows []window
}

// New validates cfg and prepares it for evaluation.
func New(cfg Config) (*Model, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("financial config: %w", err)
	}
	m := &Model{cfg: cfg}
	for _, w := range cfg.Labor.Surcharges {
		pw, err := parseWindow(w)
		if err != nil {
			return nil, err
		}
		m.windows = append(m.windows, pw)
	}
	return m, nil
}

// Config returns a copy of the underlying configuration.
func (m *Model) Config() Config { return m.cfg }

// Require checks that every rate needed to price the given vehicle types and
// fuels is configured.
func (m *Model) Require(vehicleTypes []string, fuels []model.FuelType) error {
	var errs []error
	for _, vt := range vehicleTypes {
		if m.cfg.HourlyRates[vt] <= 0 {
			errs = append(errs, fmt.Errorf("%w: hourly rate for vehicle type %q", ErrMissingRate, vt))
		}
		for _, f := range fuels {
			if m.consumption(vt, f) <= 0 {
				errs = append(errs, fmt.Errorf("%w: %s for vehicle type %q", ErrMissingConsumption, f, vt))
			}
		}
	}
	for _, f := range fuels {
		if m.cfg.Energy.Prices[f] <= 0 {
			errs = append(errs, fmt.Errorf("%w: %s", ErrMissingPrice, f))
		}
	}
	return errors.Join(errs...)
}

// Revenue is the paid driving time of the rotation times the hourly rate of
// its vehicle type. Idle, deadhead and reserve duty earn nothing.
func (m *Model) Revenue(r model.Rotation) float64 {
	return r.DrivingTime().Hours() * m.cfg.HourlyRates[r.VehicleType]
}

func (m *Model) garageTime() time.Duration {
	if !m.cfg.Garage.Count {
		return 0
	}
	return time.Duration(m.cfg.Garage.Minutes * float64(time.Minute))
}

func (m *Model) garageKM() float64 {
	if !m.cfg.Garage.Count {
		return 0
	}
	return m.cfg.Garage.DistanceKM
}
