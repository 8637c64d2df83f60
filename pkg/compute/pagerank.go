// Package compute implements the graph and document analytics that feed
// the knowledge state: PageRank, degree centrality, label-propagation
// communities, k-means and DBSCAN clustering, multi-signal anomaly
// scoring, co-occurrence matrices, and trend statistics.
//
// Algorithms read a graph (or documents) and return pure data; none
// mutate the graph. Callers hold the graph's read lock for the duration
// of a call.
package compute

import (
	"log/slog"
	"math"

	"github.com/stupid-db/stupid-db/pkg/entity"
	"github.com/stupid-db/stupid-db/pkg/graph"
)

// Defaults for PageRank.
const (
	DefaultDamping       = 0.85
	DefaultMaxIterations = 20
	DefaultConvergence   = 1e-6
)

// PageRank computes scores with the iterative power method. Every node
// starts at 1/N; each step distributes score along incoming edges with
// the damping factor, the rest teleports uniformly. Nodes without
// outgoing edges contribute their full mass as teleport. Scores sum to 1
// on any non-empty graph.
func PageRank(g *graph.Store, damping float64, maxIterations int, convergence float64) map[entity.NodeID]float64 {
	n := g.NodeCount()
	if n == 0 {
		return map[entity.NodeID]float64{}
	}

	nodeIDs := g.NodeIDs()
	initial := 1.0 / float64(n)

	scores := make(map[entity.NodeID]float64, n)
	outDegree := make(map[entity.NodeID]int, n)
	for _, id := range nodeIDs {
		scores[id] = initial
		outDegree[id] = g.OutDegree(id)
	}

	base := (1.0 - damping) / float64(n)

	for iteration := 0; iteration < maxIterations; iteration++ {
		// Mass parked on dangling nodes is redistributed uniformly so the
		// total stays at 1.
		dangling := 0.0
		for _, id := range nodeIDs {
			if outDegree[id] == 0 {
				dangling += scores[id]
			}
		}
		danglingShare := damping * dangling / float64(n)

		newScores := make(map[entity.NodeID]float64, n)
		for _, id := range nodeIDs {
			sum := 0.0
			for _, eid := range g.Incoming(id) {
				edge, ok := g.Edge(eid)
				if !ok {
					continue
				}
				srcOut := outDegree[edge.Source]
				if srcOut == 0 {
					srcOut = 1
				}
				sum += scores[edge.Source] / float64(srcOut)
			}
			newScores[id] = base + danglingShare + damping*sum
		}

		diff := 0.0
		for _, id := range nodeIDs {
			diff += math.Abs(newScores[id] - scores[id])
		}
		scores = newScores

		if diff < convergence {
			slog.Info("pagerank converged", "iterations", iteration+1, "diff", diff)
			return scores
		}
	}

	slog.Info("pagerank hit iteration cap", "iterations", maxIterations)
	return scores
}

// PageRankDefault runs PageRank with damping 0.85, 20 iterations, and a
// 1e-6 convergence threshold.
func PageRankDefault(g *graph.Store) map[entity.NodeID]float64 {
	return PageRank(g, DefaultDamping, DefaultMaxIterations, DefaultConvergence)
}
