package rangetrack

import (
	"sort"
	"strings"

	"github.com/kilianp07/rotaplan/core/model"
)

// FuelAdvisor decides between biofuel and diesel for a combustion rotation.
type FuelAdvisor interface {
	PreferHVO(r model.Rotation) bool
}

// ZEResult summarises the fuel assignment pass.
type ZEResult struct {
	Required   int      `json:"required"`
	Candidates int      `json:"candidates"`
	Assigned   []string `json:"assigned"`
	Met        bool     `json:"met"`
}

type zeCandidate struct {
	idx  int
	plan Plan
	km   float64
}

// AssignFuels tags rotations in place. The configured minimum number of
// ZE-feasible rotations gets the ZE tag with its charge events; every other
// rotation is tagged HVO or diesel by the advisor. A nil advisor means
// diesel. Trip order is never changed.
func (t *Tracker) AssignFuels(rs []model.Rotation, advisor FuelAdvisor) ZEResult {
	res := ZEResult{Required: t.cfg.ZE.MinCount}

	var cands []zeCandidate
	if res.Required > 0 {
		for i, r := range rs {
			if !t.zeEligible(r.VehicleType) {
				continue
			}
			p, ok := t.cfg.zeProfile(r.VehicleType)
			if !ok {
				continue
			}
			plan, ok := t.PlanWith(p, r.Trips, r.Links)
			if !ok {
				continue
			}
			cands = append(cands, zeCandidate{idx: i, plan: plan, km: r.TotalKM()})
		}
	}
	res.Candidates = len(cands)

	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		an, bn := len(a.plan.Events) == 0, len(b.plan.Events) == 0
		if an != bn {
			return an
		}
		if a.km != b.km {
			return a.km < b.km
		}
		if a.plan.Opportunities != b.plan.Opportunities {
			return a.plan.Opportunities > b.plan.Opportunities
		}
		return rs[a.idx].ID < rs[b.idx].ID
	})

	ze := make(map[int]bool)
	for _, c := range cands {
		if len(ze) == res.Required {
			break
		}
		ze[c.idx] = true
		rs[c.idx].FuelType = model.FuelZE
		rs[c.idx].Events = c.plan.Events
		res.Assigned = append(res.Assigned, rs[c.idx].ID)
	}
	res.Met = len(ze) >= res.Required
	if !res.Met {
		t.log.Warnf("ZE minimum not met: %d of %d rotations are ZE-feasible", len(ze), res.Required)
	}

	for i := range rs {
		if ze[i] {
			continue
		}
		rs[i].FuelType = model.FuelDiesel
		if advisor != nil && advisor.PreferHVO(rs[i]) {
			rs[i].FuelType = model.FuelHVO
		}
	}
	return res
}

func (t *Tracker) zeEligible(vehicleType string) bool {
	if len(t.cfg.ZE.VehicleTypes) == 0 {
		return true
	}
	for _, vt := range t.cfg.ZE.VehicleTypes {
		if strings.EqualFold(strings.TrimSpace(vt), strings.TrimSpace(vehicleType)) {
			return true
		}
	}
	return false
}

// Annotate replans the energy events of range-constrained rotations and runs
// the fuel assignment. It is used after rotations were split or rebuilt.
func (t *Tracker) Annotate(rs []model.Rotation, advisor FuelAdvisor) ZEResult {
	for i := range rs {
		rs[i].Events = nil
		if plan, ok := t.Plan(rs[i].VehicleType, rs[i].Trips, rs[i].Links); ok {
			rs[i].Events = plan.Events
		}
	}
	return t.AssignFuels(rs, advisor)
}
