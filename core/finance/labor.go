package finance

import (
	"math"
	"sort"
	"time"

	"github.com/kilianp07/rotaplan/core/model"
)

// ShiftLabor details the driver cost of one shift.
type ShiftLabor struct {
	Day            time.Time `json:"day"`
	SpanHours      float64   `json:"span_hours"`
	BreakMinutes   float64   `json:"break_minutes"`
	PaidHours      float64   `json:"paid_hours"`
	Base           float64   `json:"base"`
	SurchargeHours float64   `json:"surcharge_hours"`
	Surcharge      float64   `json:"surcharge"`
	Broken         float64   `json:"broken"`
	Meal           float64   `json:"meal"`
}

// LaborBreakdown is the driver cost of a rotation.
type LaborBreakdown struct {
	Shifts      []ShiftLabor `json:"shifts"`
	PaidHours   float64      `json:"paid_hours"`
	Overtime    float64      `json:"overtime"`
	Vacation    float64      `json:"vacation"`
	Coordinator float64      `json:"coordinator"`
	Total       float64      `json:"total"`
}

// LaborCost returns the total driver cost of the rotation.
func (m *Model) LaborCost(r model.Rotation) float64 {
	return m.Labor(r).Total
}

// Labor computes the driver cost per shift plus rotation-level overtime and
// vacation surcharge.
func (m *Model) Labor(r model.Rotation) LaborBreakdown {
	var out LaborBreakdown
	var subtotal float64
	for _, s := range r.Shifts() {
		sl := m.shiftLabor(s)
		out.Shifts = append(out.Shifts, sl)
		out.PaidHours += sl.PaidHours
		subtotal += sl.Base + sl.Surcharge + sl.Broken + sl.Meal
	}
	ot := m.cfg.Labor.Overtime
	if ot.ThresholdHours > 0 && out.PaidHours > ot.ThresholdHours {
		out.Overtime = (out.PaidHours - ot.ThresholdHours) * m.hourlyCost() * ot.Rate
		subtotal += out.Overtime
	}
	out.Vacation = subtotal * m.cfg.Labor.VacationSurchargeRate
	out.Coordinator = float64(len(out.Shifts)) * m.cfg.CoordinatorCostPerShift
	out.Total = subtotal + out.Vacation + out.Coordinator
	return out
}

func (m *Model) hourlyCost() float64 {
	return m.cfg.Labor.BaseWage * m.cfg.Labor.EmployerFactor
}

func (m *Model) shiftLabor(s model.Shift) ShiftLabor {
	garage := m.garageTime()
	start := s.Start().Add(-garage)
	end := s.End().Add(garage)
	span := end.Sub(start).Hours()

	sl := ShiftLabor{Day: s.Day, SpanHours: span}
	sl.BreakMinutes = m.BreakDeduction(span)
	sl.PaidHours = math.Max(0, span-sl.BreakMinutes/60)
	sl.Base = sl.PaidHours * m.hourlyCost()
	sl.SurchargeHours, sl.Surcharge = m.surcharge(start, end)

	bs := m.cfg.Labor.BrokenShift
	if bs.MinGapMinutes > 0 {
		minGap := time.Duration(bs.MinGapMinutes * float64(time.Minute))
		for _, l := range s.Links {
			if l.Idle >= minGap {
				sl.Broken = bs.Allowance
				break
			}
		}
	}
	sl.Meal = m.MealAllowance(span)
	return sl
}

// BreakDeduction returns the unpaid break in minutes for a shift of the given
// length. Shifts longer than every bracket use the last one.
func (m *Model) BreakDeduction(spanHours float64) float64 {
	bs := m.cfg.Labor.BreakBrackets
	for _, b := range bs {
		if spanHours <= b.UpToHours {
			return b.DeductMinutes
		}
	}
	if len(bs) == 0 {
		return 0
	}
	return bs[len(bs)-1].DeductMinutes
}

// MealAllowance returns the allowance of the highest threshold reached.
func (m *Model) MealAllowance(spanHours float64) float64 {
	var best MealAllowance
	for _, meal := range m.cfg.Labor.Meals {
		if spanHours >= meal.MinShiftHours && meal.MinShiftHours >= best.MinShiftHours {
			best = meal
		}
	}
	return best.Amount
}

type rated struct {
	from, to time.Time
	rate     float64
}

// surcharge returns the hours of [start, end) falling in any surcharge window
// and their cost. Where windows overlap the highest rate applies.
func (m *Model) surcharge(start, end time.Time) (float64, float64) {
	if len(m.windows) == 0 || !end.After(start) {
		return 0, 0
	}
	var segs []rated
	for d := model.DayOf(start).AddDate(0, 0, -1); !d.After(end); d = d.AddDate(0, 0, 1) {
		for _, w := range m.windows {
			if !w.days[d.Weekday()] {
				continue
			}
			ws := d.Add(w.start)
			we := d.Add(w.end)
			if w.end <= w.start {
				we = d.AddDate(0, 0, 1).Add(w.end)
			}
			if ws.Before(start) {
				ws = start
			}
			if we.After(end) {
				we = end
			}
			if ws.Before(we) {
				segs = append(segs, rated{from: ws, to: we, rate: w.rate})
			}
		}
	}
	if len(segs) == 0 {
		return 0, 0
	}

	points := make([]time.Time, 0, 2*len(segs))
	for _, s := range segs {
		points = append(points, s.from, s.to)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Before(points[j]) })

	var hours, amount float64
	for i := 1; i < len(points); i++ {
		p0, p1 := points[i-1], points[i]
		if !p1.After(p0) {
			continue
		}
		best, covered := 0.0, false
		for _, s := range segs {
			if !s.from.After(p0) && !s.to.Before(p1) {
				if !covered || s.rate > best {
					best = s.rate
				}
				covered = true
			}
		}
		if covered {
			h := p1.Sub(p0).Hours()
			hours += h
			amount += h * best
		}
	}
	return hours, amount
}
