package compute

import (
	"math"

	"github.com/stupid-db/stupid-db/pkg/entity"
	"github.com/stupid-db/stupid-db/pkg/graph"
	"github.com/stupid-db/stupid-db/pkg/knowledge"
)

// AnomalyClass buckets a combined anomaly score.
type AnomalyClass int

const (
	ClassNormal AnomalyClass = iota
	ClassMild
	ClassAnomalous
	ClassHighlyAnomalous
)

func (c AnomalyClass) String() string {
	switch c {
	case ClassMild:
		return "Mild"
	case ClassAnomalous:
		return "Anomalous"
	case ClassHighlyAnomalous:
		return "HighlyAnomalous"
	}
	return "Normal"
}

// ScoringParams holds the weights and thresholds driving multi-signal
// scoring. Values mirror the ScoringConfig rule kind.
type ScoringParams struct {
	// Signal weights; should sum to ~1.0.
	StatisticalWeight float64
	DBSCANNoiseWeight float64
	BehavioralWeight  float64
	GraphWeight       float64

	// Ascending classification boundaries.
	MildThreshold            float64
	AnomalousThreshold       float64
	HighlyAnomalousThreshold float64

	// Divisor normalizing the max z-score into [0, 1].
	ZScoreDivisor float64

	// Graph connectivity bonuses.
	NeighborMultiplier    float64
	HighConnectivityScore float64
	CommunityThreshold    uint64
	MultiCommunityScore   float64

	// DBSCAN parameters for the noise signal.
	Eps    float64
	MinPts int
}

// DefaultScoringParams returns the built-in scoring configuration used
// when no ScoringConfig rule is loaded.
func DefaultScoringParams() ScoringParams {
	return ScoringParams{
		StatisticalWeight:        0.3,
		DBSCANNoiseWeight:        0.25,
		BehavioralWeight:         0.25,
		GraphWeight:              0.2,
		MildThreshold:            0.4,
		AnomalousThreshold:       0.6,
		HighlyAnomalousThreshold: 0.8,
		ZScoreDivisor:            4.0,
		NeighborMultiplier:       3.0,
		HighConnectivityScore:    0.5,
		CommunityThreshold:       2,
		MultiCommunityScore:      0.5,
		Eps:                      0.8,
		MinPts:                   4,
	}
}

// Classify buckets a combined score by the ascending thresholds.
func (p ScoringParams) Classify(score float64) AnomalyClass {
	switch {
	case score >= p.HighlyAnomalousThreshold:
		return ClassHighlyAnomalous
	case score >= p.AnomalousThreshold:
		return ClassAnomalous
	case score >= p.MildThreshold:
		return ClassMild
	}
	return ClassNormal
}

// MultiSignalScore combines four signals into one anomaly score per
// point: population z-score, DBSCAN noise membership, behavioral
// distance from the assigned cluster centroid, and graph connectivity
// bonuses. The aggregate is the weighted sum; a point is anomalous when
// its class is Anomalous or above.
func MultiSignalScore(
	points []Point,
	clusters map[entity.NodeID]uint64,
	clusterInfo map[uint64]knowledge.ClusterInfo,
	g *graph.Store,
	communities map[entity.NodeID]uint64,
	params ScoringParams,
) map[entity.NodeID]knowledge.AnomalyScore {
	out := make(map[entity.NodeID]knowledge.AnomalyScore, len(points))
	if len(points) == 0 {
		return out
	}

	features := make([][]float64, len(points))
	for i, p := range points {
		features[i] = p.Features
	}
	means, stddevs := PopulationStats(features)

	noiseLabels := DBSCAN(points, params.Eps, params.MinPts)

	// Per-cluster deviation for behavioral distance normalization.
	clusterVectors := make(map[uint64][][]float64)
	for _, p := range points {
		if cid, ok := clusters[p.ID]; ok {
			clusterVectors[cid] = append(clusterVectors[cid], p.Features)
		}
	}

	avgNeighbors := 0.0
	if g != nil && g.NodeCount() > 0 {
		total := 0
		for _, id := range g.NodeIDs() {
			total += g.OutDegree(id) + g.InDegree(id)
		}
		avgNeighbors = float64(total) / float64(g.NodeCount())
	}

	for i, p := range points {
		statistical := statisticalSignal(p.Features, means, stddevs, params.ZScoreDivisor)

		noise := 0.0
		if noiseLabels[i] == DBSCANNoise {
			noise = 1.0
		}

		behavioral := 0.0
		if cid, ok := clusters[p.ID]; ok {
			if info, ok := clusterInfo[cid]; ok && len(info.Centroid) > 0 {
				stddev := ClusterStdDev(clusterVectors[cid], info.Centroid, len(info.Centroid))
				behavioral = behavioralSignal(p.Features, info.Centroid, stddev, params.ZScoreDivisor)
			}
		}

		graphBonus := 0.0
		if g != nil {
			graphBonus = graphSignal(g, p.ID, communities, avgNeighbors, params)
		}

		score := params.StatisticalWeight*statistical +
			params.DBSCANNoiseWeight*noise +
			params.BehavioralWeight*behavioral +
			params.GraphWeight*graphBonus

		class := params.Classify(score)
		out[p.ID] = knowledge.AnomalyScore{
			Score:       score,
			IsAnomalous: class >= ClassAnomalous,
			Signals: []knowledge.Signal{
				{Name: "statistical", Value: statistical},
				{Name: "dbscan_noise", Value: noise},
				{Name: "behavioral", Value: behavioral},
				{Name: "graph", Value: graphBonus},
			},
		}
	}
	return out
}

// statisticalSignal normalizes the max per-dimension z-score into [0, 1].
func statisticalSignal(features, means, stddevs []float64, divisor float64) float64 {
	maxZ := 0.0
	for i := 0; i < len(features) && i < len(means); i++ {
		z := math.Abs(features[i]-means[i]) / stddevs[i]
		if z > maxZ {
			maxZ = z
		}
	}
	if divisor <= 0 {
		divisor = 1
	}
	return math.Min(maxZ/divisor, 1.0)
}

// behavioralSignal normalizes the deviation-scaled distance from the
// cluster centroid into [0, 1].
func behavioralSignal(features, centroid, stddev []float64, divisor float64) float64 {
	maxZ := 0.0
	for i := 0; i < len(features) && i < len(centroid); i++ {
		z := math.Abs(features[i]-centroid[i]) / stddev[i]
		if z > maxZ {
			maxZ = z
		}
	}
	if divisor <= 0 {
		divisor = 1
	}
	return math.Min(maxZ/divisor, 1.0)
}

// graphSignal adds connectivity bonuses: unusually high neighbor counts
// and membership edges spanning multiple communities.
func graphSignal(g *graph.Store, id entity.NodeID, communities map[entity.NodeID]uint64, avgNeighbors float64, params ScoringParams) float64 {
	score := 0.0

	degree := float64(g.OutDegree(id) + g.InDegree(id))
	if avgNeighbors > 0 && degree > avgNeighbors*params.NeighborMultiplier {
		score += params.HighConnectivityScore
	}

	if len(communities) > 0 {
		seen := make(map[uint64]struct{})
		for _, n := range g.Neighbors(id) {
			if label, ok := communities[n.Node.ID]; ok {
				seen[label] = struct{}{}
			}
		}
		if uint64(len(seen)) > params.CommunityThreshold {
			score += params.MultiCommunityScore
		}
	}

	return math.Min(score, 1.0)
}
