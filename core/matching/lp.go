package matching

import (
	"context"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/kilianp07/rotaplan/core/model"
)

// ErrStateDependent is returned when a certificate is requested for a cost
// function whose edge costs depend on the chain built so far.
var ErrStateDependent = errors.New("lp certificate requires a pairwise cost function")

// Certificate compares the matching cost of a group with the optimum of its
// assignment LP relaxation at the same cardinality.
type Certificate struct {
	Group        string  `json:"group"`
	Trips        int     `json:"trips"`
	Pairs        int     `json:"pairs"`
	MatchingCost float64 `json:"matching_cost"`
	LPCost       float64 `json:"lp_cost"`
	Skipped      bool    `json:"skipped,omitempty"`
}

// Gap is the difference between the matching cost and the LP bound.
func (c Certificate) Gap() float64 { return c.MatchingCost - c.LPCost }

// solveAssignmentLP minimises c·x subject to at most one outgoing and one
// incoming edge per trip and exactly k selected edges.
func solveAssignmentLP(costs []float64, from, to []int, n, k int) ([]float64, error) {
	m := len(costs)
	g := mat.NewDense(2*n, m, nil)
	h := make([]float64, 2*n)
	for i := range h {
		h[i] = 1
	}
	for e := 0; e < m; e++ {
		g.Set(from[e], e, 1)
		g.Set(n+to[e], e, 1)
	}
	A := mat.NewDense(1, m, nil)
	for e := 0; e < m; e++ {
		A.Set(0, e, 1)
	}
	b := []float64{float64(k)}

	cStd, AStd, bStd := lp.Convert(costs, g, h, A, b)
	_, sol, err := lp.Simplex(cStd, AStd, bStd, 1e-7, nil)
	return sol, err
}

// lpSolve points to the function used to solve the LP. It can be overridden in
// tests to simulate solver failures.
var lpSolve = solveAssignmentLP

// Certify solves each group without range constraints and checks its cost
// against the LP relaxation. Groups larger than maxTrips are skipped.
func (e *Engine) Certify(ctx context.Context, trips []model.Trip, maxTrips int) ([]Certificate, error) {
	if e.fn.StateDependent() {
		return nil, ErrStateDependent
	}
	var out []Certificate
	for _, g := range partition(trips, e.feas.Mode) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		g.connect(e.feas, nil)
		n := len(g.trips)
		cert := Certificate{Group: g.key, Trips: n}
		if maxTrips > 0 && n > maxTrips {
			cert.Skipped = true
			out = append(out, cert)
			continue
		}
		s := newSolver(g, e.fn, nil)
		if err := s.successiveShortestPaths(ctx); err != nil {
			return nil, err
		}
		for i := range g.trips {
			if s.next[i] != -1 {
				cert.Pairs++
			}
		}
		cert.MatchingCost = s.totalCost()
		if cert.Pairs == 0 {
			out = append(out, cert)
			continue
		}

		costs := make([]float64, len(g.edges))
		from := make([]int, len(g.edges))
		to := make([]int, len(g.edges))
		for i, ed := range g.edges {
			costs[i] = s.fn.Cost(chainOf(g, fill(n), fill(n), ed.from), g.trips[ed.to], ed.link)
			from[i], to[i] = ed.from, ed.to
		}
		sol, err := lpSolve(costs, from, to, n, cert.Pairs)
		if err != nil {
			return nil, fmt.Errorf("group %s: lp: %w", g.key, err)
		}
		for i := range costs {
			cert.LPCost += costs[i] * sol[i]
		}
		out = append(out, cert)
	}
	return out, nil
}
