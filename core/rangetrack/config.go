package rangetrack

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// EnergyKind tells how a vehicle replenishes its range.
type EnergyKind string

const (
	Fuel     EnergyKind = "fuel"
	Electric EnergyKind = "electric"
)

// Profile is the range behaviour of a vehicle type.
type Profile struct {
	RangeKM float64    `json:"range_km"`
	Energy  EnergyKind `json:"energy"`
	// ConsumptionKWhPerKM converts charged energy into range for electric profiles.
	ConsumptionKWhPerKM float64 `json:"consumption_kwh_per_km"`
}

// Validate checks the profile.
func (p Profile) Validate() error {
	if p.RangeKM <= 0 {
		return errors.New("range_km must be positive")
	}
	switch p.Energy {
	case Fuel:
	case Electric:
		if p.ConsumptionKWhPerKM <= 0 {
			return errors.New("electric profile requires consumption_kwh_per_km")
		}
	default:
		return fmt.Errorf("unknown energy kind %q", p.Energy)
	}
	return nil
}

// ZEConfig controls the zero-emission assignment pass.
type ZEConfig struct {
	// VehicleTypes eligible for ZE. Empty means every type with a ZE profile.
	VehicleTypes []string `json:"vehicle_types"`
	MinCount     int      `json:"min_count"`
	// Profiles overrides the built-in electric profiles per vehicle type.
	Profiles map[string]Profile `json:"profiles"`
}

// Config is the range tracker configuration.
type Config struct {
	// Profiles constrain matching for the listed vehicle types.
	Profiles         map[string]Profile `json:"profiles"`
	RefuelMinutes    int                `json:"refuel_minutes"`
	MinChargeMinutes int                `json:"min_charge_minutes"`
	ChargeEfficiency float64            `json:"charge_efficiency"`
	// FastChargeKW is the minimum charger power counted as a charge opportunity.
	FastChargeKW float64  `json:"fast_charge_kw"`
	ZE           ZEConfig `json:"ze"`
}

// SetDefaults applies fallback values.
func (c *Config) SetDefaults() {
	if c.RefuelMinutes <= 0 {
		c.RefuelMinutes = 15
	}
	if c.MinChargeMinutes <= 0 {
		c.MinChargeMinutes = 30
	}
	if c.ChargeEfficiency <= 0 {
		c.ChargeEfficiency = 0.8
	}
	if c.FastChargeKW <= 0 {
		c.FastChargeKW = 50
	}
}

// Validate checks every configured profile.
func (c Config) Validate() error {
	var errs []error
	for vt, p := range c.Profiles {
		if err := p.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("range profile %s: %w", vt, err))
		}
	}
	for vt, p := range c.ZE.Profiles {
		if p.Energy == "" {
			p.Energy = Electric
		}
		if err := p.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("ze profile %s: %w", vt, err))
		}
	}
	if c.ChargeEfficiency > 1 {
		errs = append(errs, errors.New("charge_efficiency must not exceed 1"))
	}
	if c.ZE.MinCount < 0 {
		errs = append(errs, errors.New("ze.min_count must not be negative"))
	}
	return errors.Join(errs...)
}

func (c Config) refuelTime() time.Duration {
	return time.Duration(c.RefuelMinutes) * time.Minute
}

func (c Config) minCharge() time.Duration {
	return time.Duration(c.MinChargeMinutes) * time.Minute
}

// DefaultZEProfiles are the electric profiles of the known vehicle families.
var DefaultZEProfiles = map[string]Profile{
	"touringcar":   {RangeKM: 300, Energy: Electric, ConsumptionKWhPerKM: 1.3},
	"dubbeldekker": {RangeKM: 250, Energy: Electric, ConsumptionKWhPerKM: 1.8},
	"lagevloerbus": {RangeKM: 280, Energy: Electric, ConsumptionKWhPerKM: 1.5},
	"midi bus":     {RangeKM: 350, Energy: Electric, ConsumptionKWhPerKM: 1.0},
	"taxibus":      {RangeKM: 400, Energy: Electric, ConsumptionKWhPerKM: 0.5},
}

// zeProfile returns the electric profile used for ZE assignment.
func (c Config) zeProfile(vehicleType string) (Profile, bool) {
	if p, ok := c.ZE.Profiles[vehicleType]; ok {
		if p.Energy == "" {
			p.Energy = Electric
		}
		return p, true
	}
	p, ok := DefaultZEProfiles[strings.ToLower(strings.TrimSpace(vehicleType))]
	return p, ok
}
