package scheduler

import (
	"maps"
	"sync"
	"time"
)

// Metrics is the scheduler's operational state exposed to dashboards.
type Metrics struct {
	TasksExecuted     map[string]uint64
	AvgTaskDuration   map[string]time.Duration
	LastRun           map[string]time.Time
	WorkerUtilization float64
	CurrentLoadLevel  LoadLevel
	IngestQueueDepth  int
}

// metricsStore is the lock-protected mutable backing for Metrics.
type metricsStore struct {
	mu sync.Mutex
	m  Metrics
}

func newMetricsStore() *metricsStore {
	return &metricsStore{m: Metrics{
		TasksExecuted:   make(map[string]uint64),
		AvgTaskDuration: make(map[string]time.Duration),
		LastRun:         make(map[string]time.Time),
	}}
}

// recordExecution bumps the execution counter and folds the duration
// into the rolling mean: avg += (d - avg) / count.
func (s *metricsStore) recordExecution(taskName string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.m.TasksExecuted[taskName]++
	s.m.LastRun[taskName] = time.Now().UTC()

	count := s.m.TasksExecuted[taskName]
	if count == 1 {
		s.m.AvgTaskDuration[taskName] = d
		return
	}
	prev := float64(s.m.AvgTaskDuration[taskName])
	s.m.AvgTaskDuration[taskName] = time.Duration(prev + (float64(d)-prev)/float64(count))
}

func (s *metricsStore) setLoad(level LoadLevel, queueDepth int, utilization float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m.CurrentLoadLevel = level
	s.m.IngestQueueDepth = queueDepth
	s.m.WorkerUtilization = utilization
}

// snapshot returns a deep copy safe to hand out.
func (s *metricsStore) snapshot() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Metrics{
		TasksExecuted:     maps.Clone(s.m.TasksExecuted),
		AvgTaskDuration:   maps.Clone(s.m.AvgTaskDuration),
		LastRun:           maps.Clone(s.m.LastRun),
		WorkerUtilization: s.m.WorkerUtilization,
		CurrentLoadLevel:  s.m.CurrentLoadLevel,
		IngestQueueDepth:  s.m.IngestQueueDepth,
	}
}
