package eisenbahn

// Pipeline payloads for PUSH/PULL work distribution: data flowing
// ingest → compute → graph. These are self-contained DTOs with no
// dependency on core domain types, keeping the messaging layer
// decoupled. In particular, ComputeResult here is distinct from the
// scheduler's task result type and the two must not be unified.

// Record is a single record flowing through the ingest pipeline.
type Record struct {
	ID     string            `msgpack:"id"`
	Fields map[string]string `msgpack:"fields"`
	// EventType names the telemetry event; Timestamp is RFC 3339.
	EventType string `msgpack:"event_type"`
	Timestamp string `msgpack:"timestamp"`
}

// IngestBatch is a batch of records pushed into the ingest pipeline.
type IngestBatch struct {
	Records []Record `msgpack:"records"`
}

// Feature is a single computed feature value.
type Feature struct {
	Name     string  `msgpack:"name"`
	EntityID string  `msgpack:"entity_id"`
	Value    float64 `msgpack:"value"`
}

// ComputeResult carries computed features out of the compute pipeline.
type ComputeResult struct {
	Features []Feature `msgpack:"features"`
}

// EntityUpdate is an entity upsert for the graph store.
type EntityUpdate struct {
	ID         string            `msgpack:"id"`
	EntityType string            `msgpack:"entity_type"`
	Properties map[string]string `msgpack:"properties"`
}

// EdgeUpdate is an edge upsert for the graph store.
type EdgeUpdate struct {
	SourceID string  `msgpack:"source_id"`
	TargetID string  `msgpack:"target_id"`
	EdgeType string  `msgpack:"edge_type"`
	Weight   float64 `msgpack:"weight"`
}

// GraphUpdate bundles entity and edge upserts flowing into the graph.
type GraphUpdate struct {
	Entities []EntityUpdate `msgpack:"entities"`
	Edges    []EdgeUpdate   `msgpack:"edges"`
}
