package scheduler

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/stupid-db/stupid-db/pkg/compute"
	"github.com/stupid-db/stupid-db/pkg/graph"
	"github.com/stupid-db/stupid-db/pkg/knowledge"
)

// PageRankTask recomputes PageRank scores from the shared graph.
type PageRankTask struct {
	Graph    *graph.Shared
	Interval time.Duration
}

func (t *PageRankTask) Name() string                     { return "pagerank" }
func (t *PageRankTask) Priority() Priority               { return P2 }
func (t *PageRankTask) EstimatedDuration() time.Duration { return 5 * time.Second }

func (t *PageRankTask) Execute(state *knowledge.State) (Result, error) {
	start := time.Now()
	var result map[uuid.UUID]float64
	t.Graph.Read(func(g *graph.Store) {
		result = compute.PageRankDefault(g)
	})
	state.PageRank = result
	d := time.Since(start)
	slog.Info("pagerank computed", "nodes", len(result), "duration", d)
	return Result{
		TaskName:       t.Name(),
		Duration:       d,
		ItemsProcessed: len(result),
		Summary:        fmt.Sprintf("computed pagerank for %d nodes", len(result)),
	}, nil
}

func (t *PageRankTask) ShouldRun(lastRun time.Time, _ *knowledge.State) bool {
	return intervalDue(lastRun, t.Interval)
}

// DegreeTask recomputes degree centrality.
type DegreeTask struct {
	Graph    *graph.Shared
	Interval time.Duration
}

func (t *DegreeTask) Name() string                     { return "degrees" }
func (t *DegreeTask) Priority() Priority               { return P2 }
func (t *DegreeTask) EstimatedDuration() time.Duration { return time.Second }

func (t *DegreeTask) Execute(state *knowledge.State) (Result, error) {
	start := time.Now()
	var degrees map[uuid.UUID]knowledge.Degree
	t.Graph.Read(func(g *graph.Store) {
		degrees = compute.Degrees(g)
	})
	state.Degrees = degrees
	return Result{
		TaskName:       t.Name(),
		Duration:       time.Since(start),
		ItemsProcessed: len(degrees),
		Summary:        fmt.Sprintf("computed degrees for %d nodes", len(degrees)),
	}, nil
}

func (t *DegreeTask) ShouldRun(lastRun time.Time, _ *knowledge.State) bool {
	return intervalDue(lastRun, t.Interval)
}

// CommunityTask runs label-propagation community detection.
type CommunityTask struct {
	Graph    *graph.Shared
	Interval time.Duration
}

func (t *CommunityTask) Name() string                     { return "community_detection" }
func (t *CommunityTask) Priority() Priority               { return P2 }
func (t *CommunityTask) EstimatedDuration() time.Duration { return 3 * time.Second }

func (t *CommunityTask) Execute(state *knowledge.State) (Result, error) {
	start := time.Now()
	var communities map[uuid.UUID]uint64
	t.Graph.Read(func(g *graph.Store) {
		communities = compute.LabelPropagationDefault(g)
	})
	state.Communities = communities

	unique := make(map[uint64]struct{})
	for _, label := range communities {
		unique[label] = struct{}{}
	}
	d := time.Since(start)
	slog.Info("community detection finished",
		"nodes", len(communities), "communities", len(unique), "duration", d)
	return Result{
		TaskName:       t.Name(),
		Duration:       d,
		ItemsProcessed: len(communities),
		Summary:        fmt.Sprintf("detected %d communities across %d nodes", len(unique), len(communities)),
	}, nil
}

func (t *CommunityTask) ShouldRun(lastRun time.Time, _ *knowledge.State) bool {
	return intervalDue(lastRun, t.Interval)
}

// CooccurrenceTask rebuilds the entity-type co-occurrence matrices.
type CooccurrenceTask struct {
	Graph    *graph.Shared
	Interval time.Duration
}

func (t *CooccurrenceTask) Name() string                     { return "cooccurrence" }
func (t *CooccurrenceTask) Priority() Priority               { return P2 }
func (t *CooccurrenceTask) EstimatedDuration() time.Duration { return time.Second }

func (t *CooccurrenceTask) Execute(state *knowledge.State) (Result, error) {
	start := time.Now()
	var counts map[knowledge.CooccurrencePair]int
	t.Graph.Read(func(g *graph.Store) {
		counts = compute.Cooccurrence(g)
	})
	state.Cooccurrence = counts
	state.PMI = compute.PMI(counts)
	return Result{
		TaskName:       t.Name(),
		Duration:       time.Since(start),
		ItemsProcessed: len(counts),
		Summary:        fmt.Sprintf("%d co-occurring type pairs", len(counts)),
	}, nil
}

func (t *CooccurrenceTask) ShouldRun(lastRun time.Time, _ *knowledge.State) bool {
	return intervalDue(lastRun, t.Interval)
}

// AnomalyInsightTask scans anomaly scores already present in the state
// (written by AnomalyScoringTask) and turns anomalous members into
// insights, capping the insight queue.
type AnomalyInsightTask struct {
	Interval time.Duration
}

func (t *AnomalyInsightTask) Name() string                     { return "anomaly_detection" }
func (t *AnomalyInsightTask) Priority() Priority               { return P2 }
func (t *AnomalyInsightTask) EstimatedDuration() time.Duration { return 5 * time.Second }

func (t *AnomalyInsightTask) Execute(state *knowledge.State) (Result, error) {
	start := time.Now()

	anomalous := 0
	for nodeID, score := range state.Anomalies {
		if !score.IsAnomalous {
			continue
		}
		anomalous++

		severity := knowledge.SeverityInfo
		switch {
		case score.Score > 4.0:
			severity = knowledge.SeverityCritical
		case score.Score > 3.0:
			severity = knowledge.SeverityWarning
		}
		state.PushInsight(knowledge.Insight{
			ID:           uuid.NewString(),
			Title:        fmt.Sprintf("Anomaly detected (score=%.2f)", score.Score),
			Description:  fmt.Sprintf("Member %s flagged by anomaly detection with score %.2f", nodeID, score.Score),
			Severity:     severity,
			CreatedAt:    time.Now().UTC(),
			RelatedNodes: []uuid.UUID{nodeID},
		})
	}

	d := time.Since(start)
	slog.Info("anomaly insight scan",
		"scored", len(state.Anomalies), "anomalous", anomalous, "duration", d)
	return Result{
		TaskName:       t.Name(),
		Duration:       d,
		ItemsProcessed: len(state.Anomalies),
		Summary:        fmt.Sprintf("%d members scored, %d anomalous", len(state.Anomalies), anomalous),
	}, nil
}

func (t *AnomalyInsightTask) ShouldRun(lastRun time.Time, _ *knowledge.State) bool {
	return intervalDue(lastRun, t.Interval)
}

// FullKMeansTask reclusters from the existing cluster centroids with
// silhouette-selected K. Heavy batch work complementing the streaming
// path, hence P3.
type FullKMeansTask struct {
	Interval      time.Duration
	KLo, KHi      int
	MaxIterations int
}

// NewFullKMeansTask creates the task with the standard K range.
func NewFullKMeansTask(interval time.Duration) *FullKMeansTask {
	return &FullKMeansTask{Interval: interval, KLo: 2, KHi: 20, MaxIterations: 100}
}

func (t *FullKMeansTask) Name() string                     { return "full_kmeans" }
func (t *FullKMeansTask) Priority() Priority               { return P3 }
func (t *FullKMeansTask) EstimatedDuration() time.Duration { return time.Minute }

func (t *FullKMeansTask) Execute(state *knowledge.State) (Result, error) {
	start := time.Now()

	var points []compute.Point
	for _, info := range state.ClusterInfo {
		if len(info.Centroid) == 0 {
			continue
		}
		points = append(points, compute.Point{
			ID:       uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("cluster-%d", info.ID))),
			Features: append([]float64(nil), info.Centroid...),
		})
	}
	if len(points) < 2 {
		return Result{}, &SkippedError{Reason: fmt.Sprintf("not enough data points for k-means (%d found, need >= 2)", len(points))}
	}

	result := compute.OptimalKMeans(points, t.KLo, t.KHi, t.MaxIterations)

	state.Clusters = make(map[uuid.UUID]uint64, len(result.Assignments))
	state.ClusterInfo = make(map[uint64]knowledge.ClusterInfo, len(result.Centroids))
	for id, cid := range result.Assignments {
		state.Clusters[id] = cid
	}
	for idx, centroid := range result.Centroids {
		cid := uint64(idx)
		members := 0
		for _, assigned := range result.Assignments {
			if assigned == cid {
				members++
			}
		}
		state.ClusterInfo[cid] = knowledge.ClusterInfo{
			ID:          cid,
			Centroid:    append([]float64(nil), centroid...),
			MemberCount: members,
		}
	}

	d := time.Since(start)
	slog.Info("full k-means finished",
		"k", result.K, "points", len(points), "iterations", result.Iterations,
		"inertia", result.Inertia, "duration", d)
	return Result{
		TaskName:       t.Name(),
		Duration:       d,
		ItemsProcessed: len(points),
		Summary:        fmt.Sprintf("k-means converged: k=%d, %d points, %d iterations", result.K, len(points), result.Iterations),
	}, nil
}

func (t *FullKMeansTask) ShouldRun(lastRun time.Time, state *knowledge.State) bool {
	withCentroids := 0
	for _, info := range state.ClusterInfo {
		if len(info.Centroid) > 0 {
			withCentroids++
		}
	}
	if withCentroids < 2 {
		return false
	}
	return intervalDue(lastRun, t.Interval)
}
