package finance

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/rotaplan/core/model"
)

// RotationResult is the financial view of one rotation.
type RotationResult struct {
	RotationID string         `json:"rotation_id"`
	Vehicle    string         `json:"vehicle_type"`
	Fuel       model.FuelType `json:"fuel"`
	KM         float64        `json:"km"`
	Revenue    float64        `json:"revenue"`
	Labor      LaborBreakdown `json:"labor"`
	Energy     EnergyUse      `json:"energy"`
	Margin     float64        `json:"margin"`
}

// Breakdown is the full profit evaluation of a rotation set.
type Breakdown struct {
	Vehicles       int              `json:"vehicles"`
	Revenue        float64          `json:"revenue"`
	Labor          float64          `json:"labor"`
	Energy         float64          `json:"energy"`
	Bonus          float64          `json:"bonus"`
	Malus          float64          `json:"malus"`
	Profit         float64          `json:"profit"`
	AvgShiftHours  float64          `json:"avg_shift_hours"`
	Sustainability Sustainability   `json:"sustainability"`
	Rotations      []RotationResult `json:"rotations"`
}

// Evaluate prices a single rotation.
func (m *Model) Evaluate(r model.Rotation) RotationResult {
	res := RotationResult{
		RotationID: r.ID,
		Vehicle:    r.VehicleType,
		Fuel:       FuelOf(r),
		Revenue:    m.Revenue(r),
		Labor:      m.Labor(r),
		Energy:     m.Energy(r),
	}
	res.KM = res.Energy.KM
	res.Margin = res.Revenue - res.Labor.Total - res.Energy.Cost
	return res
}

// Profit evaluates a rotation set assuming every scheduled trip is served.
func (m *Model) Profit(rs []model.Rotation) Breakdown {
	return m.ProfitWithCoverage(rs, 100)
}

// ProfitWithCoverage evaluates a rotation set:
// revenue - labor - energy - malus + bonus.
func (m *Model) ProfitWithCoverage(rs []model.Rotation, coverage float64) Breakdown {
	b := Breakdown{Vehicles: len(rs), Rotations: make([]RotationResult, len(rs))}
	rev := make([]float64, len(rs))
	lab := make([]float64, len(rs))
	eng := make([]float64, len(rs))
	var spans []float64
	for i, r := range rs {
		res := m.Evaluate(r)
		b.Rotations[i] = res
		rev[i], lab[i], eng[i] = res.Revenue, res.Labor.Total, res.Energy.Cost
		for _, s := range res.Labor.Shifts {
			spans = append(spans, s.SpanHours)
		}
	}
	b.Revenue = floats.Sum(rev)
	b.Labor = floats.Sum(lab)
	b.Energy = floats.Sum(eng)
	if len(spans) > 0 {
		b.AvgShiftHours = stat.Mean(spans, nil)
	}
	b.Sustainability = m.Sustainability(rs, b.Revenue, coverage)
	b.Bonus = b.Sustainability.Bonus
	b.Malus = b.Sustainability.Malus
	b.Profit = b.Revenue - b.Labor - b.Energy - b.Malus + b.Bonus
	return b
}
