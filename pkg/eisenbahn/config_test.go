package eisenbahn_test

import (
	"errors"
	"testing"

	"github.com/stupid-db/stupid-db/pkg/eisenbahn"
)

const sampleTOML = `
[broker]
frontend = "ipc:///tmp/stupid-db/broker-frontend.sock"
backend = "ipc:///tmp/stupid-db/broker-backend.sock"
metrics_port = 9464

[transport]
kind = "ipc"

[workers.segment]
binary = "segment-worker"
subscriptions = ["eisenbahn.ingest."]
pipelines = ["ingest"]

[workers.compute]
binary = "compute-worker"
subscriptions = ["eisenbahn.compute."]
pipelines = ["compute"]
instances = 2

[pipeline.stages.ingest]
concurrency = 2

[pipeline.stages.compute]
after = ["ingest"]

[pipeline.stages.graph]
after = ["compute"]

[services.query]
endpoint = "ipc:///tmp/stupid-db/svc-query.sock"
timeout_secs = 10
`

func TestConfigFromTOML(t *testing.T) {
	cfg, err := eisenbahn.ConfigFromTOML(sampleTOML)
	if err != nil {
		t.Fatalf("ConfigFromTOML: %v", err)
	}
	if cfg.Broker.MetricsPort != 9464 {
		t.Fatalf("MetricsPort = %d", cfg.Broker.MetricsPort)
	}
	if got := cfg.Workers["compute"].Instances; got != 2 {
		t.Fatalf("compute instances = %d", got)
	}
	if got := cfg.Workers["segment"].Instances; got != 1 {
		t.Fatalf("segment instances should default to 1, got %d", got)
	}
	if got := cfg.Pipeline.Stages["compute"].Concurrency; got != 1 {
		t.Fatalf("compute concurrency should default to 1, got %d", got)
	}
	if got := cfg.Services["query"].TimeoutSecs; got != 10 {
		t.Fatalf("query timeout = %d", got)
	}

	order, err := cfg.PipelineOrder()
	if err != nil {
		t.Fatalf("PipelineOrder: %v", err)
	}
	if len(order) != 3 || order[0] != "ingest" || order[2] != "graph" {
		t.Fatalf("order = %v, want [ingest compute graph]", order)
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg, err := eisenbahn.ConfigFromTOML("")
	if err != nil {
		t.Fatalf("ConfigFromTOML: %v", err)
	}
	if cfg.Broker.Frontend != "ipc:///tmp/stupid-db/broker-frontend.sock" {
		t.Fatalf("Frontend = %q", cfg.Broker.Frontend)
	}
	if cfg.Transport.Kind != "ipc" || cfg.Transport.BasePort != 5560 {
		t.Fatalf("transport = %+v", cfg.Transport)
	}
}

func TestConfigEnvOverrides(t *testing.T) {
	t.Setenv("EISENBAHN_BROKER_FRONTEND", "tcp://0.0.0.0:7000")
	t.Setenv("EISENBAHN_TRANSPORT_KIND", "tcp")
	t.Setenv("EISENBAHN_TRANSPORT_BASE_PORT", "7100")

	cfg, err := eisenbahn.ConfigFromTOML(sampleTOML)
	if err != nil {
		t.Fatalf("ConfigFromTOML: %v", err)
	}
	if cfg.Broker.Frontend != "tcp://0.0.0.0:7000" {
		t.Fatalf("Frontend = %q", cfg.Broker.Frontend)
	}
	if cfg.Transport.Kind != "tcp" || cfg.Transport.BasePort != 7100 {
		t.Fatalf("transport = %+v", cfg.Transport)
	}
	if got := cfg.BrokerFrontendTransport(); got != eisenbahn.TCP("0.0.0.0", 7000) {
		t.Fatalf("BrokerFrontendTransport = %+v", got)
	}
}

func TestConfigRejectsCycle(t *testing.T) {
	const cyclic = `
[pipeline.stages.a]
after = ["b"]
[pipeline.stages.b]
after = ["a"]
`
	_, err := eisenbahn.ConfigFromTOML(cyclic)
	var cd *eisenbahn.CircularDependencyError
	if !errors.As(err, &cd) {
		t.Fatalf("expected CircularDependencyError, got %v", err)
	}
	if len(cd.Stages) != 2 {
		t.Fatalf("cycle stages = %v", cd.Stages)
	}
}

func TestConfigRejectsUnknownStageRef(t *testing.T) {
	const bad = `
[pipeline.stages.a]
after = ["missing"]
`
	_, err := eisenbahn.ConfigFromTOML(bad)
	var ce *eisenbahn.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestConfigRejectsBadTransportKind(t *testing.T) {
	const bad = `
[transport]
kind = "pigeon"
`
	_, err := eisenbahn.ConfigFromTOML(bad)
	var ce *eisenbahn.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestServiceTransport(t *testing.T) {
	cfg, err := eisenbahn.ConfigFromTOML(sampleTOML)
	if err != nil {
		t.Fatalf("ConfigFromTOML: %v", err)
	}
	tr, ok := cfg.ServiceTransport("query")
	if !ok {
		t.Fatal("query service missing")
	}
	if tr != eisenbahn.IPC("svc-query") {
		t.Fatalf("transport = %+v", tr)
	}
	if _, ok := cfg.ServiceTransport("nope"); ok {
		t.Fatal("unknown service should not resolve")
	}
}
