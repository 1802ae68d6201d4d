package matching

import "context"

// greedy walks trips in departure order and appends each one to the open
// rotation with the smallest idle gap, opening a new rotation otherwise.
func (s *solver) greedy(ctx context.Context) error {
	var tails []int
	for j := range s.g.trips {
		if err := ctx.Err(); err != nil {
			return err
		}
		best, bestEdge := -1, -1
		for k, tail := range tails {
			e := s.g.edgeBetween(tail, j)
			if e == -1 {
				continue
			}
			if bestEdge != -1 && s.g.edges[e].link.Idle >= s.g.edges[bestEdge].link.Idle {
				continue
			}
			if s.rng != nil {
				c := s.chainEndingAt(tail).Extend(s.g.trips[j], s.g.edges[e].link)
				if _, ok := s.rng.Plan(s.g.vehicleType, c.Trips, c.Links); !ok {
					s.rejections++
					continue
				}
			}
			best, bestEdge = k, e
		}
		if best == -1 {
			tails = append(tails, j)
			continue
		}
		s.apply(path{bestEdge}, s.next, s.prev, s.nextEdge)
		s.pushed[tails[best]] = s.edgeCost(bestEdge)
		tails[best] = j
		s.resetRound()
	}
	return nil
}
