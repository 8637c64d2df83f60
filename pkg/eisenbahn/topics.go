package eisenbahn

// Topic constants for PUB/SUB routing. Topics follow the pattern
// eisenbahn.<domain>.<event> for namespace-qualified prefix filtering.
const (
	// Event topics.

	// TopicIngestStarted fires when an ingest job begins processing a source.
	TopicIngestStarted = "eisenbahn.ingest.started"
	// TopicIngestComplete fires when an ingest batch finishes writing to storage.
	TopicIngestComplete = "eisenbahn.ingest.complete"
	// TopicIngestRecordBatch fires after each record batch is processed.
	TopicIngestRecordBatch = "eisenbahn.ingest.record_batch"
	// TopicIngestSourceRegistered fires when a new ingestion source is registered.
	TopicIngestSourceRegistered = "eisenbahn.ingest.source_registered"
	// TopicAnomalyDetected fires when an anomaly rule triggers above its threshold.
	TopicAnomalyDetected = "eisenbahn.anomaly.detected"
	// TopicRuleChanged fires when a rule is created, updated, or deleted.
	TopicRuleChanged = "eisenbahn.rule.changed"
	// TopicComputeComplete fires when a compute batch finishes feature extraction.
	TopicComputeComplete = "eisenbahn.compute.complete"
	// TopicWorkerHealth is the periodic worker health heartbeat.
	TopicWorkerHealth = "eisenbahn.worker.health"

	// Pipeline topics.

	// TopicPipelineIngest carries raw records pushed into the ingest pipeline.
	TopicPipelineIngest = "eisenbahn.pipeline.ingest"
	// TopicPipelineCompute carries computed features out of the compute pipeline.
	TopicPipelineCompute = "eisenbahn.pipeline.compute"
	// TopicPipelineGraph carries entity/edge updates into the graph store.
	TopicPipelineGraph = "eisenbahn.pipeline.graph"

	// Service request/reply topics.

	TopicSvcQueryRequest    = "eisenbahn.svc.query.request"
	TopicSvcQueryResponse   = "eisenbahn.svc.query.response"
	TopicSvcAgentRequest    = "eisenbahn.svc.agent.request"
	TopicSvcAgentResponse   = "eisenbahn.svc.agent.response"
	TopicSvcAthenaRequest   = "eisenbahn.svc.athena.request"
	TopicSvcAthenaResponse  = "eisenbahn.svc.athena.response"
	TopicSvcAthenaStream    = "eisenbahn.svc.athena.stream"
	TopicSvcAthenaDone      = "eisenbahn.svc.athena.done"
	TopicSvcCatalogRequest  = "eisenbahn.svc.catalog.request"
	TopicSvcCatalogResponse = "eisenbahn.svc.catalog.response"
)
