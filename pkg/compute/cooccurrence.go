package compute

import (
	"math"

	"github.com/stupid-db/stupid-db/pkg/graph"
	"github.com/stupid-db/stupid-db/pkg/knowledge"
)

// Cooccurrence counts how often each ordered (source type, target type)
// pair appears across graph edges.
func Cooccurrence(g *graph.Store) map[knowledge.CooccurrencePair]int {
	counts := make(map[knowledge.CooccurrencePair]int)
	g.ForEachEdge(func(e *graph.Edge) {
		src, ok := g.Node(e.Source)
		if !ok {
			return
		}
		dst, ok := g.Node(e.Target)
		if !ok {
			return
		}
		counts[knowledge.CooccurrencePair{A: src.EntityType, B: dst.EntityType}]++
	})
	return counts
}

// PMI computes pointwise mutual information for each co-occurring type
// pair: log(p(a,b) / (p(a)·p(b))), where marginals come from the pair
// counts themselves. Pairs with zero marginal mass are skipped.
func PMI(counts map[knowledge.CooccurrencePair]int) map[knowledge.CooccurrencePair]float64 {
	total := 0
	marginalA := make(map[string]int)
	marginalB := make(map[string]int)
	for pair, c := range counts {
		total += c
		marginalA[pair.A.String()] += c
		marginalB[pair.B.String()] += c
	}
	if total == 0 {
		return map[knowledge.CooccurrencePair]float64{}
	}

	out := make(map[knowledge.CooccurrencePair]float64, len(counts))
	for pair, c := range counts {
		pAB := float64(c) / float64(total)
		pA := float64(marginalA[pair.A.String()]) / float64(total)
		pB := float64(marginalB[pair.B.String()]) / float64(total)
		if pA == 0 || pB == 0 {
			continue
		}
		out[pair] = math.Log(pAB / (pA * pB))
	}
	return out
}
