package compute

import (
	"log/slog"

	"github.com/stupid-db/stupid-db/pkg/entity"
	"github.com/stupid-db/stupid-db/pkg/graph"
	"github.com/stupid-db/stupid-db/pkg/knowledge"
)

// DefaultCommunityIterations bounds label propagation sweeps.
const DefaultCommunityIterations = 10

// LabelPropagation detects communities. Each node starts with a unique
// label; each sweep, every node adopts the most frequent label among all
// its neighbors (both directions), ties broken by the smallest label for
// determinism. Converges when a full sweep changes nothing.
func LabelPropagation(g *graph.Store, maxIterations int) map[entity.NodeID]uint64 {
	nodeIDs := g.NodeIDs()
	if len(nodeIDs) == 0 {
		return map[entity.NodeID]uint64{}
	}

	labels := make(map[entity.NodeID]uint64, len(nodeIDs))
	for i, id := range nodeIDs {
		labels[id] = uint64(i)
	}

	for iteration := 0; iteration < maxIterations; iteration++ {
		changed := false

		for _, id := range nodeIDs {
			counts := make(map[uint64]int)
			for _, eid := range g.Outgoing(id) {
				if edge, ok := g.Edge(eid); ok {
					counts[labels[edge.Target]]++
				}
			}
			for _, eid := range g.Incoming(id) {
				if edge, ok := g.Edge(eid); ok {
					counts[labels[edge.Source]]++
				}
			}
			if len(counts) == 0 {
				continue // isolated node keeps its label
			}

			best := labels[id]
			bestCount := -1
			for label, count := range counts {
				if count > bestCount || (count == bestCount && label < best) {
					best = label
					bestCount = count
				}
			}
			if labels[id] != best {
				labels[id] = best
				changed = true
			}
		}

		if !changed {
			slog.Info("label propagation converged", "iterations", iteration+1)
			return labels
		}
	}

	slog.Info("label propagation hit iteration cap", "iterations", maxIterations)
	return labels
}

// LabelPropagationDefault runs label propagation with the default sweep
// cap.
func LabelPropagationDefault(g *graph.Store) map[entity.NodeID]uint64 {
	return LabelPropagation(g, DefaultCommunityIterations)
}

// Degrees computes in/out/total degree for every node.
func Degrees(g *graph.Store) map[entity.NodeID]knowledge.Degree {
	out := make(map[entity.NodeID]knowledge.Degree, g.NodeCount())
	for _, id := range g.NodeIDs() {
		in := g.InDegree(id)
		o := g.OutDegree(id)
		out[id] = knowledge.Degree{In: in, Out: o, Total: in + o}
	}
	return out
}
