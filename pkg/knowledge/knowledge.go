// Package knowledge holds the shared mutable container of derived
// results written by scheduled compute tasks: centrality scores,
// communities, clusters, anomaly scores, trends, co-occurrence matrices,
// and a bounded insight queue.
package knowledge

import (
	"sync"
	"time"

	"github.com/stupid-db/stupid-db/pkg/entity"
)

// MaxInsights caps the insight queue; the oldest entry is evicted when a
// push would exceed it.
const MaxInsights = 10_000

// Degree holds a node's in/out/total degree.
type Degree struct {
	In    int
	Out   int
	Total int
}

// ClusterInfo describes one cluster produced by k-means.
type ClusterInfo struct {
	ID          uint64
	Centroid    []float64
	MemberCount int
	Label       string
}

// Signal is one named contribution to an anomaly score.
type Signal struct {
	Name  string
	Value float64
}

// AnomalyScore is the multi-signal anomaly result for one node.
type AnomalyScore struct {
	Score       float64
	IsAnomalous bool
	Signals     []Signal
}

// TrendDirection classifies the movement of a feature series.
type TrendDirection int

const (
	TrendStable TrendDirection = iota
	TrendUp
	TrendDown
)

func (d TrendDirection) String() string {
	switch d {
	case TrendUp:
		return "Up"
	case TrendDown:
		return "Down"
	}
	return "Stable"
}

// TrendStats summarizes a feature's sliding-window time series.
type TrendStats struct {
	Feature    string
	Mean       float64
	StdDev     float64
	Latest     float64
	ZScore     float64
	Direction  TrendDirection
	Samples    int
	ComputedAt time.Time
}

// CooccurrencePair keys the co-occurrence matrices.
type CooccurrencePair struct {
	A entity.EntityType
	B entity.EntityType
}

// InsightSeverity grades an insight.
type InsightSeverity int

const (
	SeverityInfo InsightSeverity = iota
	SeverityWarning
	SeverityCritical
)

func (s InsightSeverity) String() string {
	switch s {
	case SeverityWarning:
		return "Warning"
	case SeverityCritical:
		return "Critical"
	}
	return "Info"
}

// Insight is a derived, human-readable finding.
type Insight struct {
	ID           string
	Title        string
	Description  string
	Severity     InsightSeverity
	CreatedAt    time.Time
	RelatedNodes []entity.NodeID
}

// State is the process-wide record populated by scheduled tasks. It has
// no internal locking; access goes through Shared.
type State struct {
	PageRank     map[entity.NodeID]float64
	Degrees      map[entity.NodeID]Degree
	Communities  map[entity.NodeID]uint64
	Clusters     map[entity.NodeID]uint64
	ClusterInfo  map[uint64]ClusterInfo
	Anomalies    map[entity.NodeID]AnomalyScore
	Trends       map[string]TrendStats
	Cooccurrence map[CooccurrencePair]int
	PMI          map[CooccurrencePair]float64
	Insights     []Insight
}

// NewState creates an empty knowledge state.
func NewState() *State {
	return &State{
		PageRank:     make(map[entity.NodeID]float64),
		Degrees:      make(map[entity.NodeID]Degree),
		Communities:  make(map[entity.NodeID]uint64),
		Clusters:     make(map[entity.NodeID]uint64),
		ClusterInfo:  make(map[uint64]ClusterInfo),
		Anomalies:    make(map[entity.NodeID]AnomalyScore),
		Trends:       make(map[string]TrendStats),
		Cooccurrence: make(map[CooccurrencePair]int),
		PMI:          make(map[CooccurrencePair]float64),
	}
}

// PushInsight appends an insight, evicting the oldest entries beyond
// MaxInsights.
func (s *State) PushInsight(in Insight) {
	s.Insights = append(s.Insights, in)
	if overflow := len(s.Insights) - MaxInsights; overflow > 0 {
		s.Insights = append(s.Insights[:0:0], s.Insights[overflow:]...)
	}
}

// Shared wraps a State in a read/write lock. Reads may proceed in
// parallel; writes are exclusive. The container stays coarse-grained:
// splitting it into sharded locks would introduce cross-task invariants
// (clusters must match cluster info) without measured contention.
type Shared struct {
	mu    sync.RWMutex
	state *State
}

// NewShared creates a Shared wrapper around a fresh State.
func NewShared() *Shared {
	return &Shared{state: NewState()}
}

// Read runs fn with shared (read) access to the state.
func (s *Shared) Read(fn func(*State)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.state)
}

// Write runs fn with exclusive (write) access to the state.
func (s *Shared) Write(fn func(*State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.state)
}
