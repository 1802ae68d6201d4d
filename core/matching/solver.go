package matching

import (
	"context"
	"math"

	"github.com/kilianp07/rotaplan/core/cost"
	"github.com/kilianp07/rotaplan/core/logger"
	"github.com/kilianp07/rotaplan/core/model"
)

const eps = 1e-9

// solver holds the matching state of one group. Trip i as predecessor is
// left node i, as successor right node n+i.
type solver struct {
	g   *group
	fn  cost.Function
	rng RangeChecker // nil when the group is not range constrained

	next, prev []int     // matched successor / predecessor, -1 when none
	nextEdge   []int     // edge index of the pair (i, next[i])
	pushed     []float64 // cost at which the pair (i, next[i]) was augmented

	banned map[int]bool // edges refused by the range tracker since the last augmentation

	costs  map[int]float64
	chains map[int]cost.Chain

	rejections int
	fallbacks  int
}

func newSolver(g *group, fn cost.Function, rng RangeChecker) *solver {
	n := len(g.trips)
	s := &solver{
		g: g, fn: fn, rng: rng,
		next: fill(n), prev: fill(n), nextEdge: fill(n),
		pushed: make([]float64, n),
		banned: make(map[int]bool),
	}
	s.resetRound()
	return s
}

func fill(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = -1
	}
	return out
}

// resetRound drops the memoised chains and costs. The matching is fixed
// during a search so state-dependent costs stay consistent within it.
func (s *solver) resetRound() {
	s.costs = make(map[int]float64)
	s.chains = make(map[int]cost.Chain)
}

// chainEndingAt returns the current partial rotation whose last trip is a.
func (s *solver) chainEndingAt(a int) cost.Chain {
	if c, ok := s.chains[a]; ok {
		return c
	}
	c := chainOf(s.g, s.prev, s.nextEdge, a)
	s.chains[a] = c
	return c
}

func chainOf(g *group, prev, nextEdge []int, a int) cost.Chain {
	idx := []int{a}
	for p := prev[a]; p != -1; p = prev[p] {
		idx = append(idx, p)
	}
	c := cost.Chain{Trips: make([]model.Trip, 0, len(idx)), Links: make([]model.Link, 0, len(idx)-1)}
	for k := len(idx) - 1; k >= 0; k-- {
		c.Trips = append(c.Trips, g.trips[idx[k]])
		if k > 0 {
			c.Links = append(c.Links, g.edges[nextEdge[idx[k]]].link)
		}
	}
	return c
}

// edgeCost evaluates the cost function lazily against the chain currently
// ending at the edge's predecessor.
func (s *solver) edgeCost(e int) float64 {
	if c, ok := s.costs[e]; ok {
		return c
	}
	ed := s.g.edges[e]
	c := s.fn.Cost(s.chainEndingAt(ed.from), s.g.trips[ed.to], ed.link)
	s.costs[e] = c
	return c
}

// path is an augmenting path given by its forward edges in source-to-sink
// order. Every predecessor on it except the first loses its current match.
type path []int

// successiveShortestPaths augments along minimum-cost paths until the
// matching is maximum.
func (s *solver) successiveShortestPaths(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		p, ok, guarded := s.shortestPath()
		if guarded {
			s.fallbacks++
			p, ok = s.anyPath()
		}
		if !ok {
			return nil
		}
		if s.rng != nil && !s.admit(p) {
			s.resetRound()
			continue
		}
		s.augment(p)
	}
}

// shortestPath runs a label-correcting search from every free predecessor
// over the residual graph. Reverse edges carry the negated cost they were
// pushed at. guarded reports that a node was relaxed too often, which means
// a negative cycle from state-dependent costs.
func (s *solver) shortestPath() (path, bool, bool) {
	n := len(s.g.trips)
	nodes := 2 * n
	dist := make([]float64, nodes)
	parent := make([]int, nodes) // forward edge for right nodes, right node for left nodes
	for i := range dist {
		dist[i] = math.Inf(1)
		parent[i] = -1
	}
	inQueue := make([]bool, nodes)
	dequeued := make([]int, nodes)
	queue := make([]int, 0, nodes)
	for i := 0; i < n; i++ {
		if s.next[i] == -1 {
			dist[i] = 0
			queue = append(queue, i)
			inQueue[i] = true
		}
	}

	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		inQueue[u] = false
		dequeued[u]++
		if dequeued[u] > nodes {
			return nil, false, true
		}
		if u < n {
			for _, e := range s.g.out[u] {
				ed := s.g.edges[e]
				if s.banned[e] || s.next[u] == ed.to {
					continue
				}
				v := n + ed.to
				if d := dist[u] + s.edgeCost(e); d < dist[v]-eps {
					dist[v] = d
					parent[v] = e
					if !inQueue[v] {
						queue = append(queue, v)
						inQueue[v] = true
					}
				}
			}
			continue
		}
		a := s.prev[u-n]
		if a == -1 {
			continue
		}
		if d := dist[u] - s.pushed[a]; d < dist[a]-eps {
			dist[a] = d
			parent[a] = u
			if !inQueue[a] {
				queue = append(queue, a)
				inQueue[a] = true
			}
		}
	}

	best := -1
	for j := 0; j < n; j++ {
		if s.prev[j] != -1 || math.IsInf(dist[n+j], 1) {
			continue
		}
		if best == -1 || dist[n+j] < dist[n+best]-eps {
			best = j
		}
	}
	if best == -1 {
		return nil, false, false
	}

	var rev path
	for v := n + best; ; {
		e := parent[v]
		rev = append(rev, e)
		if len(rev) > n {
			return nil, false, true
		}
		from := s.g.edges[e].from
		if parent[from] == -1 {
			break
		}
		v = parent[from]
	}
	return reversed(rev), true, false
}

// anyPath finds an augmenting path ignoring costs with a breadth-first
// search over alternating paths.
func (s *solver) anyPath() (path, bool) {
	n := len(s.g.trips)
	seenL := make([]bool, n)
	via := make([]int, n) // forward edge that reached the right node
	for i := range via {
		via[i] = -1
	}
	queue := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if s.next[i] == -1 {
			seenL[i] = true
			queue = append(queue, i)
		}
	}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, e := range s.g.out[u] {
			ed := s.g.edges[e]
			if s.banned[e] || s.next[u] == ed.to || via[ed.to] != -1 {
				continue
			}
			via[ed.to] = e
			a := s.prev[ed.to]
			if a == -1 {
				var rev path
				for j := ed.to; ; {
					fe := via[j]
					rev = append(rev, fe)
					from := s.g.edges[fe].from
					if s.next[from] == -1 {
						break
					}
					j = s.next[from]
				}
				return reversed(rev), true
			}
			if !seenL[a] {
				seenL[a] = true
				queue = append(queue, a)
			}
		}
	}
	return nil, false
}

func reversed(p path) path {
	for i, j := 0, len(p)-1; i < j; i, j = i+1, j-1 {
		p[i], p[j] = p[j], p[i]
	}
	return p
}

// apply flips the path on the given state.
func (s *solver) apply(p path, next, prev, nextEdge []int) {
	for _, e := range p {
		if old := next[s.g.edges[e].from]; old != -1 {
			prev[old] = -1
		}
	}
	for _, e := range p {
		ed := s.g.edges[e]
		next[ed.from] = ed.to
		prev[ed.to] = ed.from
		nextEdge[ed.from] = e
	}
}

func (s *solver) augment(p path) {
	costs := make([]float64, len(p))
	for i, e := range p {
		costs[i] = s.edgeCost(e)
	}
	s.apply(p, s.next, s.prev, s.nextEdge)
	for i, e := range p {
		s.pushed[s.g.edges[e].from] = costs[i]
	}
	s.banned = make(map[int]bool)
	s.resetRound()
}

// admit simulates the augmentation and checks every chain it touches with
// the range tracker. On failure the new edge closest before the failing
// link is banned.
func (s *solver) admit(p path) bool {
	next := append([]int(nil), s.next...)
	prev := append([]int(nil), s.prev...)
	nextEdge := append([]int(nil), s.nextEdge...)
	s.apply(p, next, prev, nextEdge)

	onPath := make(map[int]bool, len(p))
	for _, e := range p {
		onPath[e] = true
	}
	checked := make(map[int]bool)
	for _, e := range p {
		head := s.g.edges[e].from
		for prev[head] != -1 {
			head = prev[head]
		}
		if checked[head] {
			continue
		}
		checked[head] = true

		tail := head
		for next[tail] != -1 {
			tail = next[tail]
		}
		c := chainOf(s.g, prev, nextEdge, tail)
		plan, ok := s.rng.Plan(s.g.vehicleType, c.Trips, c.Links)
		if ok {
			continue
		}
		ban, first := -1, -1
		k := 0
		for i := head; next[i] != -1; i = next[i] {
			if onPath[nextEdge[i]] {
				if first == -1 {
					first = nextEdge[i]
				}
				if k <= plan.FailAt {
					ban = nextEdge[i]
				}
			}
			k++
		}
		if ban == -1 {
			ban = first
		}
		s.banned[ban] = true
		s.rejections++
		return false
	}
	return true
}

// rotations extracts one rotation per chain head, in trip order.
func (s *solver) rotations(log logger.Logger) []model.Rotation {
	var out []model.Rotation
	for h := range s.g.trips {
		if s.prev[h] != -1 {
			continue
		}
		r := model.Rotation{VehicleType: s.g.vehicleType}
		for i := h; i != -1; i = s.next[i] {
			r.Trips = append(r.Trips, s.g.trips[i])
			if s.next[i] != -1 {
				r.Links = append(r.Links, s.g.edges[s.nextEdge[i]].link)
			}
		}
		if s.rng != nil {
			plan, ok := s.rng.Plan(r.VehicleType, r.Trips, r.Links)
			if !ok {
				log.Warnf("rotation starting with trip %s is out of range", r.Trips[0].ID)
			}
			r.Events = plan.Events
		}
		out = append(out, r)
	}
	return out
}

// totalCost re-evaluates the cost function along the final chains.
func (s *solver) totalCost() float64 {
	total := 0.0
	for h := range s.g.trips {
		if s.prev[h] != -1 {
			continue
		}
		c := cost.Chain{Trips: []model.Trip{s.g.trips[h]}}
		for i := h; s.next[i] != -1; i = s.next[i] {
			ed := s.g.edges[s.nextEdge[i]]
			total += s.fn.Cost(c, s.g.trips[ed.to], ed.link)
			c = c.Extend(s.g.trips[ed.to], ed.link)
		}
	}
	return total
}
