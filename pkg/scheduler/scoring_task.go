package scheduler

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/stupid-db/stupid-db/pkg/compute"
	"github.com/stupid-db/stupid-db/pkg/eisenbahn"
	"github.com/stupid-db/stupid-db/pkg/entity"
	"github.com/stupid-db/stupid-db/pkg/graph"
	"github.com/stupid-db/stupid-db/pkg/knowledge"
)

// AnomalyPublisher receives anomaly events for the bus. Publish failures
// downgrade to log-and-drop.
type AnomalyPublisher interface {
	PublishEvent(topic string, payload any) error
}

// AnomalyScoringTask derives per-member behavioral features from the
// graph, runs multi-signal scoring against the current clusters, writes
// the scores into the knowledge state, and publishes AnomalyDetected
// for members that newly crossed the anomalous threshold.
type AnomalyScoringTask struct {
	Graph    *graph.Shared
	Interval time.Duration
	// Params holds the scoring weights and thresholds; zero value means
	// the built-in defaults.
	Params compute.ScoringParams
	// Bus is optional; nil disables event publication.
	Bus AnomalyPublisher
}

func (t *AnomalyScoringTask) Name() string                     { return "anomaly_scoring" }
func (t *AnomalyScoringTask) Priority() Priority               { return P2 }
func (t *AnomalyScoringTask) EstimatedDuration() time.Duration { return 10 * time.Second }

func (t *AnomalyScoringTask) params() compute.ScoringParams {
	zero := compute.ScoringParams{}
	if t.Params == zero {
		return compute.DefaultScoringParams()
	}
	return t.Params
}

func (t *AnomalyScoringTask) Execute(state *knowledge.State) (Result, error) {
	start := time.Now()

	var points []compute.Point
	var scores map[entity.NodeID]knowledge.AnomalyScore
	keys := make(map[entity.NodeID]string)

	t.Graph.Read(func(g *graph.Store) {
		points = memberFeaturePoints(g, keys)
		if len(points) == 0 {
			return
		}
		scores = compute.MultiSignalScore(
			points, state.Clusters, state.ClusterInfo, g, state.Communities, t.params())
	})

	if len(points) == 0 {
		return Result{}, &SkippedError{Reason: "no member nodes to score"}
	}

	anomalous := 0
	for id, score := range scores {
		if !score.IsAnomalous {
			continue
		}
		anomalous++
		// Announce only fresh crossings so repeated runs do not re-fire
		// the same members.
		if prev, ok := state.Anomalies[id]; ok && prev.IsAnomalous {
			continue
		}
		t.announce(keys[id], score.Score)
	}
	state.Anomalies = scores

	d := time.Since(start)
	slog.Info("anomaly scoring finished",
		"members", len(points), "anomalous", anomalous, "duration", d)
	return Result{
		TaskName:       t.Name(),
		Duration:       d,
		ItemsProcessed: len(points),
		Summary:        fmt.Sprintf("scored %d members, %d anomalous", len(points), anomalous),
	}, nil
}

func (t *AnomalyScoringTask) ShouldRun(lastRun time.Time, _ *knowledge.State) bool {
	return intervalDue(lastRun, t.Interval)
}

func (t *AnomalyScoringTask) announce(entityID string, score float64) {
	if t.Bus == nil {
		return
	}
	err := t.Bus.PublishEvent(eisenbahn.TopicAnomalyDetected, eisenbahn.AnomalyDetected{
		RuleID:   "multi_signal",
		EntityID: entityID,
		Score:    score,
	})
	if err != nil {
		slog.Warn("anomaly event publish failed", "entity", entityID, "err", err)
	}
}

// memberFeaturePoints builds one feature vector per member node:
// total degree, game-open weight, error weight, popup weight, and
// distinct login devices. keys receives the member natural keys for
// event payloads.
func memberFeaturePoints(g *graph.Store, keys map[entity.NodeID]string) []compute.Point {
	var points []compute.Point
	g.ForEachNode(func(n *graph.Node) {
		if n.EntityType != entity.Member {
			return
		}

		var gameWeight, errorWeight, popupWeight float64
		devices := 0
		for _, eid := range g.Outgoing(n.ID) {
			edge, ok := g.Edge(eid)
			if !ok {
				continue
			}
			switch edge.EdgeType {
			case entity.OpenedGame:
				gameWeight += edge.Weight
			case entity.HitError:
				errorWeight += edge.Weight
			case entity.SawPopup:
				popupWeight += edge.Weight
			case entity.LoggedInFrom:
				devices++
			}
		}

		keys[n.ID] = n.Key
		points = append(points, compute.Point{
			ID: n.ID,
			Features: []float64{
				float64(g.OutDegree(n.ID) + g.InDegree(n.ID)),
				gameWeight,
				errorWeight,
				popupWeight,
				float64(devices),
			},
		})
	})
	return points
}
