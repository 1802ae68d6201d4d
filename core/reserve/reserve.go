// Package reserve matches standby requirements to the idle windows of
// planned rotations.
package reserve

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kilianp07/rotaplan/core/feasibility"
	"github.com/kilianp07/rotaplan/core/matching"
	"github.com/kilianp07/rotaplan/core/model"
)

// Requirement asks for Count vehicles standing by at Station between Start
// and End.
type Requirement struct {
	Station string    `json:"station" yaml:"station"`
	Start   time.Time `json:"start" yaml:"start"`
	End     time.Time `json:"end" yaml:"end"`
	Count   int       `json:"count" yaml:"count"`
	// VehicleType restricts the requirement. Empty accepts any type.
	VehicleType string `json:"vehicle_type,omitempty" yaml:"vehicle_type"`
	Remark      string `json:"remark,omitempty" yaml:"remark"`
}

// Validate checks the requirement.
func (r Requirement) Validate() error {
	var errs []error
	if strings.TrimSpace(r.Station) == "" {
		errs = append(errs, errors.New("empty station"))
	}
	if !r.End.After(r.Start) {
		errs = append(errs, errors.New("end must be after start"))
	}
	if r.Count < 1 {
		errs = append(errs, errors.New("count must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("reserve %s %s: %w", r.Station, r.Start.Format(time.DateTime), err)
	}
	return nil
}

// Coverage reports how one requirement is served.
type Coverage struct {
	Requirement Requirement `json:"requirement"`
	Covered     int         `json:"covered"`
	Rotations   []string    `json:"rotations"`
	Shortfall   int         `json:"shortfall"`
}

// Report is the coverage of every requirement.
type Report struct {
	Coverage []Coverage `json:"coverage"`
	Required int        `json:"required"`
	Covered  int        `json:"covered"`
	// AdditionalVehicles is the number of dedicated reserve vehicles needed.
	AdditionalVehicles int `json:"additional_vehicles"`
}

// window is a period in which a rotation's vehicle waits at a location.
type window struct {
	rotation    string
	vehicleType string
	location    string
	from, to    time.Time
}

// idleWindows lists the waiting periods of a rotation: between trips, and
// on each service day before its first and after its last trip.
func idleWindows(r model.Rotation) []window {
	var out []window
	for _, s := range r.Shifts() {
		first, last := s.Trips[0], s.Trips[len(s.Trips)-1]
		out = append(out, window{r.ID, r.VehicleType, feasibility.Normalize(first.Origin), s.Day, first.Departure})
		for i := 1; i < len(s.Trips); i++ {
			prev := s.Trips[i-1]
			out = append(out, window{r.ID, r.VehicleType, feasibility.Normalize(prev.Destination), prev.Arrival, s.Trips[i].Departure})
		}
		out = append(out, window{r.ID, r.VehicleType, feasibility.Normalize(last.Destination), last.Arrival, s.Day.AddDate(0, 0, 1)})
	}
	return out
}

func (w window) covers(req Requirement) bool {
	if req.VehicleType != "" && !strings.EqualFold(req.VehicleType, w.vehicleType) {
		return false
	}
	return w.location == feasibility.Normalize(req.Station) && !w.from.After(req.Start) && !w.to.Before(req.End)
}

// Analyze assigns at most one requirement slot per idle window with a
// maximum bipartite matching, maximising the number of covered slots.
func Analyze(rs []model.Rotation, reqs []Requirement) Report {
	var windows []window
	for _, r := range rs {
		windows = append(windows, idleWindows(r)...)
	}
	type slot struct{ req int }
	var slots []slot
	for i, req := range reqs {
		for k := 0; k < req.Count; k++ {
			slots = append(slots, slot{req: i})
		}
	}

	adj := make([][]int, len(windows))
	for i, w := range windows {
		for j, s := range slots {
			if w.covers(reqs[s.req]) {
				adj[i] = append(adj[i], j)
			}
		}
	}
	_, match := matching.MaxCardinality(adj, len(slots))

	byReq := make([][]string, len(reqs))
	for i, j := range match {
		if j != -1 {
			req := slots[j].req
			byReq[req] = append(byReq[req], windows[i].rotation)
		}
	}

	rep := Report{Coverage: make([]Coverage, len(reqs))}
	for i, req := range reqs {
		sort.Strings(byReq[i])
		c := Coverage{Requirement: req, Covered: len(byReq[i]), Rotations: byReq[i]}
		c.Shortfall = req.Count - c.Covered
		rep.Coverage[i] = c
		rep.Required += req.Count
		rep.Covered += c.Covered
	}
	rep.AdditionalVehicles = peakShortfall(rep.Coverage)
	return rep
}

// peakShortfall is the largest number of uncovered slots open at the same
// time. One dedicated vehicle can serve shortfalls that do not overlap.
func peakShortfall(cov []Coverage) int {
	type edge struct {
		at    time.Time
		delta int
	}
	var edges []edge
	for _, c := range cov {
		if c.Shortfall > 0 {
			edges = append(edges, edge{c.Requirement.Start, c.Shortfall}, edge{c.Requirement.End, -c.Shortfall})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if !edges[i].at.Equal(edges[j].at) {
			return edges[i].at.Before(edges[j].at)
		}
		return edges[i].delta < edges[j].delta
	})
	cur, peak := 0, 0
	for _, e := range edges {
		cur += e.delta
		if cur > peak {
			peak = cur
		}
	}
	return peak
}

// PhantomTrips turns requirements into reserve trips so that the matching
// engine plans them like service. Each trip gets the requirement's vehicle
// type, or the type with the most trips at that station on that day.
// Requirements without any candidate type are returned as unassigned.
func PhantomTrips(reqs []Requirement, trips []model.Trip) ([]model.Trip, []Requirement) {
	counts := make(map[string]map[string]int)
	for _, t := range trips {
		day := t.ServiceDay().Format(time.DateOnly)
		for _, loc := range []string{t.Origin, t.Destination} {
			k := feasibility.Normalize(loc) + "|" + day
			if counts[k] == nil {
				counts[k] = make(map[string]int)
			}
			counts[k][t.VehicleType]++
		}
	}

	var out []model.Trip
	var unassigned []Requirement
	for _, req := range reqs {
		day := model.DayOf(req.Start)
		vt := req.VehicleType
		if vt == "" {
			best := 0
			for t, n := range counts[feasibility.Normalize(req.Station)+"|"+day.Format(time.DateOnly)] {
				if n > best || (n == best && t < vt) {
					vt, best = t, n
				}
			}
		}
		if vt == "" {
			unassigned = append(unassigned, req)
			continue
		}
		for k := 1; k <= req.Count; k++ {
			out = append(out, model.Trip{
				ID:          fmt.Sprintf("RES-%s-%s-%d", strings.ReplaceAll(req.Station, " ", ""), req.Start.Format("20060102T1504"), k),
				VehicleType: vt,
				Date:        day,
				Origin:      req.Station,
				Destination: req.Station,
				Departure:   req.Start,
				Arrival:     req.End,
				Service:     "reserve " + req.Station,
				Reserve:     true,
			})
		}
	}
	return out, unassigned
}

// PhantomCoverage reports how requirements planned as reserve trips ended up
// in rotations. A requirement slot is covered by a reserve trip at its station
// spanning exactly its window. AdditionalVehicles is left to the caller, who
// knows the fleet without reserve duty.
func PhantomCoverage(reqs []Requirement, rs []model.Rotation) Report {
	type key struct {
		station    string
		start, end int64
	}
	onDuty := make(map[key][]string)
	for _, r := range rs {
		for _, t := range r.Trips {
			if !t.Reserve {
				continue
			}
			k := key{feasibility.Normalize(t.Origin), t.Departure.Unix(), t.Arrival.Unix()}
			onDuty[k] = append(onDuty[k], r.ID)
		}
	}

	rep := Report{Coverage: make([]Coverage, len(reqs))}
	for i, req := range reqs {
		k := key{feasibility.Normalize(req.Station), req.Start.Unix(), req.End.Unix()}
		ids := onDuty[k]
		n := min(req.Count, len(ids))
		onDuty[k] = ids[n:]
		got := append([]string(nil), ids[:n]...)
		sort.Strings(got)
		rep.Coverage[i] = Coverage{Requirement: req, Covered: n, Rotations: got, Shortfall: req.Count - n}
		rep.Required += req.Count
		rep.Covered += n
	}
	return rep
}
