package eisenbahn

// Domain event payloads carried inside Message envelopes on the PUB/SUB
// bus.

// IngestStarted is emitted when an ingest job begins processing a source.
type IngestStarted struct {
	Source string `msgpack:"source"`
}

// IngestComplete is emitted when an ingest batch finishes processing.
type IngestComplete struct {
	Source      string `msgpack:"source"`
	RecordCount uint64 `msgpack:"record_count"`
	DurationMS  uint64 `msgpack:"duration_ms"`
}

// SourceRegistered is emitted when a new ingestion source is registered.
type SourceRegistered struct {
	SourceID string `msgpack:"source_id"`
	Kind     string `msgpack:"kind"`
}

// AnomalyDetected is emitted when an anomaly rule fires above its
// threshold.
type AnomalyDetected struct {
	RuleID   string  `msgpack:"rule_id"`
	EntityID string  `msgpack:"entity_id"`
	Score    float64 `msgpack:"score"`
}

// RuleAction records what happened to a rule.
type RuleAction int

const (
	RuleCreated RuleAction = iota
	RuleUpdated
	RuleDeleted
)

func (a RuleAction) String() string {
	return [...]string{"Created", "Updated", "Deleted"}[a]
}

// RuleChanged is emitted when a rule is created, updated, or deleted.
type RuleChanged struct {
	RuleID string     `msgpack:"rule_id"`
	Action RuleAction `msgpack:"action"`
}

// ComputeComplete is emitted when a compute batch finishes feature
// extraction.
type ComputeComplete struct {
	BatchID          string `msgpack:"batch_id"`
	FeaturesComputed uint64 `msgpack:"features_computed"`
}

// WorkerStatus grades a worker's health.
type WorkerStatus int

const (
	WorkerHealthy WorkerStatus = iota
	WorkerDegraded
	WorkerUnhealthy
)

func (s WorkerStatus) String() string {
	return [...]string{"Healthy", "Degraded", "Unhealthy"}[s]
}

// WorkerHealth is the periodic heartbeat reporting worker health.
type WorkerHealth struct {
	WorkerID string       `msgpack:"worker_id"`
	Status   WorkerStatus `msgpack:"status"`
	CPUPct   float64      `msgpack:"cpu_pct"`
	MemBytes uint64       `msgpack:"mem_bytes"`
}
