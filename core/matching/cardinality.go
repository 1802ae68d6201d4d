package matching

import (
	"slices"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/traverse"
)

// MaxCardinality computes a maximum bipartite matching as a unit-capacity
// max flow: source to every left vertex, left to right along adj, every
// right vertex to sink. adj[u] lists the right vertices adjacent to left
// vertex u, right vertices are numbered 0..nRight-1. It returns the matching
// size and the right partner of every left vertex (-1 when unmatched).
func MaxCardinality(adj [][]int, nRight int) (int, []int) {
	nw := newUnitNetwork(adj, nRight)
	size := nw.maxFlow()

	match := make([]int, len(adj))
	for u := range match {
		match[u] = -1
	}
	for v := 0; v < nRight; v++ {
		// A matched pair leaves a residual edge from right back to left.
		it := nw.g.From(nw.right(v))
		for it.Next() {
			if id := it.Node().ID(); id != nw.source && id != nw.sink {
				match[id-1] = v
			}
		}
	}
	return size, match
}

// unitNetwork is the residual graph of a unit-capacity flow network. An edge
// is present while it has capacity left.
type unitNetwork struct {
	g            *simple.DirectedGraph
	nLeft        int
	source, sink int64
}

func newUnitNetwork(adj [][]int, nRight int) *unitNetwork {
	nw := &unitNetwork{
		g:      simple.NewDirectedGraph(),
		nLeft:  len(adj),
		source: 0,
		sink:   int64(len(adj) + nRight + 1),
	}
	for id := int64(0); id <= nw.sink; id++ {
		nw.g.AddNode(simple.Node(id))
	}
	for u, vs := range adj {
		nw.link(nw.source, nw.left(u))
		for _, v := range vs {
			nw.link(nw.left(u), nw.right(v))
		}
	}
	for v := 0; v < nRight; v++ {
		nw.link(nw.right(v), nw.sink)
	}
	return nw
}

func (nw *unitNetwork) left(u int) int64  { return int64(u + 1) }
func (nw *unitNetwork) right(v int) int64 { return int64(nw.nLeft + v + 1) }

func (nw *unitNetwork) link(from, to int64) {
	nw.g.SetEdge(simple.Edge{F: simple.Node(from), T: simple.Node(to)})
}

// maxFlow runs Dinic phases until the sink is unreachable and returns the
// flow value. On unit capacities this is Hopcroft-Karp.
func (nw *unitNetwork) maxFlow() int {
	flow := 0
	for {
		level := nw.levels()
		if _, ok := level[nw.sink]; !ok {
			return flow
		}
		next := nw.levelEdges(level)
		iter := make(map[int64]int, len(next))
		for nw.push(nw.source, next, iter) {
			flow++
		}
	}
}

// levels returns the BFS depth of every vertex reachable from the source.
func (nw *unitNetwork) levels() map[int64]int {
	level := make(map[int64]int)
	var bf traverse.BreadthFirst
	bf.Walk(nw.g, nw.g.Node(nw.source), func(n graph.Node, d int) bool {
		level[n.ID()] = d
		return false
	})
	return level
}

// levelEdges lists, per vertex, the successors one level deeper in ID order
// so that the blocking flow is deterministic.
func (nw *unitNetwork) levelEdges(level map[int64]int) map[int64][]int64 {
	next := make(map[int64][]int64, len(level))
	for id, d := range level {
		it := nw.g.From(id)
		for it.Next() {
			to := it.Node().ID()
			if l, ok := level[to]; ok && l == d+1 {
				next[id] = append(next[id], to)
			}
		}
		slices.Sort(next[id])
	}
	return next
}

// push sends one unit along a level path from u to the sink, reversing the
// used edges. iter remembers the exhausted successors of every vertex.
func (nw *unitNetwork) push(u int64, next map[int64][]int64, iter map[int64]int) bool {
	if u == nw.sink {
		return true
	}
	for ; iter[u] < len(next[u]); iter[u]++ {
		v := next[u][iter[u]]
		if !nw.g.HasEdgeFromTo(u, v) {
			continue
		}
		if nw.push(v, next, iter) {
			nw.g.RemoveEdge(u, v)
			nw.link(v, u)
			return true
		}
	}
	return false
}
