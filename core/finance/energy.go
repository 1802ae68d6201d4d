package finance

import (
	"math"

	"github.com/kilianp07/rotaplan/core/model"
)

// EnergyUse is the energy drawn by one rotation.
type EnergyUse struct {
	Fuel  model.FuelType `json:"fuel"`
	KM    float64        `json:"km"`
	Units float64        `json:"units"` // litres or kWh
	Cost  float64        `json:"cost"`
}

// FuelOf returns the rotation's fuel, diesel when untagged.
func FuelOf(r model.Rotation) model.FuelType {
	if r.FuelType == "" {
		return model.FuelDiesel
	}
	return r.FuelType
}

// consumption returns units per 100 km. HVO falls back to diesel consumption.
func (m *Model) consumption(vehicleType string, fuel model.FuelType) float64 {
	per := m.cfg.Energy.Consumption[vehicleType]
	if c, ok := per[fuel]; ok && c > 0 {
		return c
	}
	if fuel == model.FuelHVO {
		return per[model.FuelDiesel]
	}
	return 0
}

// Price returns the configured price of a fuel.
func (m *Model) Price(fuel model.FuelType) float64 {
	return m.cfg.Energy.Prices[fuel]
}

// EnergyPerKM is the energy cost of one kilometre.
func (m *Model) EnergyPerKM(vehicleType string, fuel model.FuelType) float64 {
	return m.consumption(vehicleType, fuel) / 100 * m.Price(fuel)
}

// RotationKM is the distance priced for the rotation, including depot runs
// when they are counted.
func (m *Model) RotationKM(r model.Rotation) float64 {
	return r.TotalKM() + 2*m.garageKM()*float64(len(r.Shifts()))
}

// Energy prices the rotation with its tagged fuel.
func (m *Model) Energy(r model.Rotation) EnergyUse {
	return m.EnergyWith(r, FuelOf(r))
}

// EnergyWith prices the rotation as if it ran on fuel.
func (m *Model) EnergyWith(r model.Rotation, fuel model.FuelType) EnergyUse {
	km := m.RotationKM(r)
	units := km * m.consumption(r.VehicleType, fuel) / 100
	return EnergyUse{Fuel: fuel, KM: km, Units: units, Cost: units * m.Price(fuel)}
}

// EnergyCost returns the energy cost of the rotation.
func (m *Model) EnergyCost(r model.Rotation) float64 {
	return m.Energy(r).Cost
}

// HVOBonusPerLiter is the compensation paid per litre of HVO.
func (m *Model) HVOBonusPerLiter() float64 {
	inc := m.cfg.Sustainability.HVO
	diff := m.Price(model.FuelHVO) - m.Price(model.FuelDiesel)
	if m.Price(model.FuelHVO) <= 0 || diff <= inc.DiffThreshold {
		return 0
	}
	v := math.Max(diff, 0)
	if inc.DiffMax > 0 {
		v = math.Min(v, inc.DiffMax)
	}
	v += inc.Stimulus
	if inc.MaxTotal > 0 {
		v = math.Min(v, inc.MaxTotal)
	}
	return v
}

// PreferHVO reports whether running the rotation on HVO, net of the HVO
// bonus, is not more expensive than diesel.
func (m *Model) PreferHVO(r model.Rotation) bool {
	if m.Price(model.FuelHVO) <= 0 {
		return false
	}
	hvo := m.EnergyWith(r, model.FuelHVO)
	diesel := m.EnergyWith(r, model.FuelDiesel)
	return hvo.Cost-hvo.Units*m.HVOBonusPerLiter() <= diesel.Cost
}
