package scheduler

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/stupid-db/stupid-db/pkg/compute"
	"github.com/stupid-db/stupid-db/pkg/graph"
	"github.com/stupid-db/stupid-db/pkg/knowledge"
)

// TrendTask samples platform-level features each run, maintains their
// sliding windows, and writes z-score trend statistics into the
// knowledge state. Task executions serialize on the state write lock,
// so the task-local series need no locking of their own.
type TrendTask struct {
	Graph    *graph.Shared
	Interval time.Duration
	// Params holds the window and threshold configuration; zero value
	// means the built-in defaults.
	Params compute.TrendParams

	series map[string][]float64
}

func (t *TrendTask) Name() string                     { return "trends" }
func (t *TrendTask) Priority() Priority               { return P2 }
func (t *TrendTask) EstimatedDuration() time.Duration { return time.Second }

func (t *TrendTask) params() compute.TrendParams {
	zero := compute.TrendParams{}
	if t.Params == zero {
		return compute.DefaultTrendParams()
	}
	return t.Params
}

func (t *TrendTask) Execute(state *knowledge.State) (Result, error) {
	start := time.Now()
	params := t.params()
	if t.series == nil {
		t.series = make(map[string][]float64)
	}

	var nodeCount, edgeCount float64
	t.Graph.Read(func(g *graph.Store) {
		nodeCount = float64(g.NodeCount())
		edgeCount = float64(g.EdgeCount())
	})
	anomalous := 0
	for _, score := range state.Anomalies {
		if score.IsAnomalous {
			anomalous++
		}
	}

	samples := map[string]float64{
		"graph.node_count":   nodeCount,
		"graph.edge_count":   edgeCount,
		"members.anomalous":  float64(anomalous),
		"insights.queue_len": float64(len(state.Insights)),
	}

	computed := 0
	for feature, value := range samples {
		series := append(t.series[feature], value)
		if params.WindowSize > 0 && len(series) > params.WindowSize {
			series = series[len(series)-params.WindowSize:]
		}
		t.series[feature] = series

		stats, ok := compute.TrendFromSeries(feature, series, params)
		if !ok {
			continue
		}
		state.Trends[feature] = stats
		computed++
	}

	d := time.Since(start)
	slog.Info("trend sampling finished",
		"features", len(samples), "trends", computed, "duration", d)
	return Result{
		TaskName:       t.Name(),
		Duration:       d,
		ItemsProcessed: len(samples),
		Summary:        fmt.Sprintf("sampled %d features, %d trend windows ready", len(samples), computed),
	}, nil
}

func (t *TrendTask) ShouldRun(lastRun time.Time, _ *knowledge.State) bool {
	return intervalDue(lastRun, t.Interval)
}
