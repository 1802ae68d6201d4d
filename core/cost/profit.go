package cost

import (
	"errors"

	"github.com/kilianp07/rotaplan/core/finance"
	"github.com/kilianp07/rotaplan/core/model"
)

// ProfitBased costs a connection by the marginal driver cost of appending b
// to the chain, plus deadhead energy, minus any zero-emission bonus earned on
// the deadhead. Revenue is the same for every matching and is left out.
//
// Labor brackets make the marginal cost depend on the whole chain, so the
// value is an estimate against the chain known when the edge is relaxed.
// Final profit is always recomputed by the financial model.
type ProfitBased struct {
	fin     *finance.Model
	fuel    model.FuelType
	zeBonus float64
}

// NewProfitBased builds the strategy. A financial model is required.
func NewProfitBased(fin *finance.Model, fuel model.FuelType) (*ProfitBased, error) {
	if fin == nil {
		return nil, errors.New("profit cost requires a financial model")
	}
	if fuel == "" {
		fuel = model.FuelDiesel
	}
	return &ProfitBased{fin: fin, fuel: fuel, zeBonus: fin.Config().Sustainability.ZEBonusPerKM}, nil
}

func (*ProfitBased) Name() string         { return "profit" }
func (*ProfitBased) StateDependent() bool { return true }

func (p *ProfitBased) Cost(chain Chain, b model.Trip, link model.Link) float64 {
	without := p.fin.LaborCost(chain.Rotation(p.fuel))
	with := p.fin.LaborCost(chain.Extend(b, link).Rotation(p.fuel))
	c := with - without
	c += link.DeadheadKM * p.fin.EnergyPerKM(b.VehicleType, p.fuel)
	if p.fuel == model.FuelZE {
		c -= link.DeadheadKM * p.zeBonus
	}
	return c
}
