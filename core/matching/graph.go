package matching

import (
	"sort"
	"time"

	"github.com/kilianp07/rotaplan/core/feasibility"
	"github.com/kilianp07/rotaplan/core/model"
)

// edge is a feasible connection from trip `from` to trip `to` of one group.
type edge struct {
	from, to int
	link     model.Link
}

// group is an independent matching problem: trips that may share vehicles.
type group struct {
	key         string
	vehicleType string
	trips       []model.Trip
	edges       []edge
	out         [][]int // edge indices by predecessor
	in          [][]int // edge indices by successor
}

// partition splits trips into groups by vehicle type, plus service date in
// single-day mode. Groups and the trips inside them are deterministically
// ordered.
func partition(trips []model.Trip, mode feasibility.Mode) []*group {
	byKey := make(map[string]*group)
	for _, t := range trips {
		key := t.VehicleType
		if mode == feasibility.SingleDay {
			key += "|" + t.ServiceDay().Format(time.DateOnly)
		}
		g, ok := byKey[key]
		if !ok {
			g = &group{key: key, vehicleType: t.VehicleType}
			byKey[key] = g
		}
		g.trips = append(g.trips, t)
	}
	groups := make([]*group, 0, len(byKey))
	for _, g := range byKey {
		model.SortTrips(g.trips)
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].key < groups[j].key })
	return groups
}

// connect evaluates every ordered pair with the feasibility model. Trips are
// sorted by departure, so successors of i are only searched after i.
func (g *group) connect(fm feasibility.Model, skip func(i int) bool) {
	n := len(g.trips)
	g.edges = g.edges[:0]
	g.out = make([][]int, n)
	g.in = make([][]int, n)
	for i := 0; i < n; i++ {
		if skip != nil && skip(i) {
			continue
		}
		a := g.trips[i]
		for j := i + 1; j < n; j++ {
			if skip != nil && skip(j) {
				continue
			}
			b := g.trips[j]
			if !b.Departure.After(a.Arrival) {
				continue
			}
			link, ok := fm.Connect(a, b)
			if !ok {
				continue
			}
			idx := len(g.edges)
			g.edges = append(g.edges, edge{from: i, to: j, link: link})
			g.out[i] = append(g.out[i], idx)
			g.in[j] = append(g.in[j], idx)
		}
	}
}

// adjacency returns successor lists for cardinality matching.
func (g *group) adjacency() [][]int {
	adj := make([][]int, len(g.trips))
	for i, es := range g.out {
		for _, e := range es {
			adj[i] = append(adj[i], g.edges[e].to)
		}
	}
	return adj
}

// edgeBetween returns the edge index of i->j or -1.
func (g *group) edgeBetween(i, j int) int {
	for _, e := range g.out[i] {
		if g.edges[e].to == j {
			return e
		}
	}
	return -1
}
