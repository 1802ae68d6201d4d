package finance

import (
	"math"

	"github.com/kilianp07/rotaplan/core/model"
)

// KPIResult reports one KPI against its target.
type KPIResult struct {
	Name      string  `json:"name"`
	Metric    string  `json:"metric"`
	ActualPct float64 `json:"actual_pct"`
	TargetPct float64 `json:"target_pct"`
	Steps     int     `json:"steps"`
	Malus     float64 `json:"malus"`
}

// Sustainability is the set-level bonus and malus.
type Sustainability struct {
	ZEBonus     float64     `json:"ze_bonus"`
	HVOBonus    float64     `json:"hvo_bonus"`
	Bonus       float64     `json:"bonus"` // after cap
	MalusRaw    float64     `json:"malus_raw"`
	Malus       float64     `json:"malus"` // after cap
	KPIs        []KPIResult `json:"kpis"`
	AnnualRev   float64     `json:"annual_revenue"`
	BonusCapped bool        `json:"bonus_capped"`
	MalusCapped bool        `json:"malus_capped"`
}

// kmShares holds distance per category for KPI evaluation.
type kmShares struct {
	total, ze, hvo float64
	byType         map[string]float64 // combustion km only
}

func (m *Model) shares(rs []model.Rotation) kmShares {
	s := kmShares{byType: make(map[string]float64)}
	for _, r := range rs {
		km := m.RotationKM(r)
		s.total += km
		switch FuelOf(r) {
		case model.FuelZE:
			s.ze += km
		case model.FuelHVO:
			s.hvo += km
			s.byType[r.VehicleType] += km
		default:
			s.byType[r.VehicleType] += km
		}
	}
	return s
}

// Sustainability evaluates bonuses and KPI maluses for a rotation set.
// coverage is the share of scheduled trips served, in percent.
func (m *Model) Sustainability(rs []model.Rotation, revenue, coverage float64) Sustainability {
	cfg := m.cfg.Sustainability
	var out Sustainability
	perL := m.HVOBonusPerLiter()
	for _, r := range rs {
		switch FuelOf(r) {
		case model.FuelZE:
			out.ZEBonus += m.RotationKM(r) * cfg.ZEBonusPerKM
		case model.FuelHVO:
			out.HVOBonus += m.Energy(r).Units * perL
		}
	}
	out.AnnualRev = revenue * cfg.AnnualizationFactor
	out.Bonus = out.ZEBonus + out.HVOBonus
	if cfg.BonusCapFraction > 0 {
		if limit := cfg.BonusCapFraction * out.AnnualRev; out.Bonus > limit {
			out.Bonus = limit
			out.BonusCapped = true
		}
	}

	sh := m.shares(rs)
	for _, k := range cfg.KPIs {
		res := KPIResult{Name: k.Name, Metric: k.Metric, TargetPct: k.TargetPct}
		res.ActualPct = sh.metric(k, coverage)
		if short := k.TargetPct - res.ActualPct; short > 1e-9 && k.StepPct > 0 {
			res.Steps = int(math.Ceil(short/k.StepPct - 1e-9))
			res.Malus = float64(res.Steps) * k.MalusPerStep
		}
		out.MalusRaw += res.Malus
		out.KPIs = append(out.KPIs, res)
	}
	out.Malus = out.MalusRaw
	if cfg.MalusCapFraction > 0 {
		if limit := cfg.MalusCapFraction * out.AnnualRev; out.Malus > limit {
			out.Malus = limit
			out.MalusCapped = true
		}
	}
	return out
}

func (s kmShares) metric(k KPITarget, coverage float64) float64 {
	if k.Metric == MetricTripCoverage {
		return coverage
	}
	if s.total == 0 {
		return 100
	}
	switch k.Metric {
	case MetricSustainableFuel:
		return (s.ze + s.hvo) / s.total * 100
	case MetricZeroEmission:
		return s.ze / s.total * 100
	case MetricEmissionNorm:
		if len(k.VehicleTypes) == 0 {
			return 100
		}
		compliant := s.ze
		for _, vt := range k.VehicleTypes {
			compliant += s.byType[vt]
		}
		return compliant / s.total * 100
	}
	return 0
}
