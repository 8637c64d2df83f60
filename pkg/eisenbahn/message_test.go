package eisenbahn_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/stupid-db/stupid-db/pkg/eisenbahn"
)

func TestMessageRoundTrip(t *testing.T) {
	msg, err := eisenbahn.NewMessage("test.topic", "hello world")
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	if msg.Topic != "test.topic" {
		t.Fatalf("Topic = %q", msg.Topic)
	}
	if msg.Version != eisenbahn.CurrentVersion {
		t.Fatalf("Version = %d", msg.Version)
	}

	var payload string
	if err := msg.Decode(&payload); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if payload != "hello world" {
		t.Fatalf("payload = %q", payload)
	}
}

func TestEnvelopeBytesRoundTrip(t *testing.T) {
	msg, err := eisenbahn.NewMessage("events.entity", uint64(42))
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	b, err := msg.ToBytes()
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}
	decoded, err := eisenbahn.FromBytes(b)
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}

	if decoded.Topic != msg.Topic {
		t.Fatalf("Topic = %q, want %q", decoded.Topic, msg.Topic)
	}
	if decoded.CorrelationID != msg.CorrelationID {
		t.Fatalf("CorrelationID = %v, want %v", decoded.CorrelationID, msg.CorrelationID)
	}
	if !decoded.Timestamp.Equal(msg.Timestamp) {
		t.Fatalf("Timestamp = %v, want %v", decoded.Timestamp, msg.Timestamp)
	}
	var n uint64
	if err := decoded.Decode(&n); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if n != 42 {
		t.Fatalf("payload = %d", n)
	}
}

func TestWithCorrelationPreservesID(t *testing.T) {
	id := uuid.New()
	msg, err := eisenbahn.WithCorrelation("reply", true, id)
	if err != nil {
		t.Fatalf("WithCorrelation: %v", err)
	}
	if msg.CorrelationID != id {
		t.Fatalf("CorrelationID = %v, want %v", msg.CorrelationID, id)
	}
}

func TestFromBytesCorrupt(t *testing.T) {
	_, err := eisenbahn.FromBytes([]byte{0xc1, 0xff, 0x00})
	var de *eisenbahn.DeserializationError
	if !errors.As(err, &de) {
		t.Fatalf("expected DeserializationError, got %v", err)
	}
}

func TestEventPayloadRoundTrips(t *testing.T) {
	cases := []struct {
		topic   string
		payload any
	}{
		{eisenbahn.TopicIngestComplete, eisenbahn.IngestComplete{Source: "data/sample.ndjson", RecordCount: 42_000, DurationMS: 1234}},
		{eisenbahn.TopicAnomalyDetected, eisenbahn.AnomalyDetected{RuleID: "rule-001", EntityID: "entity-abc", Score: 0.95}},
		{eisenbahn.TopicRuleChanged, eisenbahn.RuleChanged{RuleID: "rule-002", Action: eisenbahn.RuleUpdated}},
		{eisenbahn.TopicComputeComplete, eisenbahn.ComputeComplete{BatchID: "batch-xyz", FeaturesComputed: 128}},
		{eisenbahn.TopicWorkerHealth, eisenbahn.WorkerHealth{WorkerID: "worker-01", Status: eisenbahn.WorkerHealthy, CPUPct: 42.5, MemBytes: 1 << 30}},
	}

	for _, c := range cases {
		msg, err := eisenbahn.NewMessage(c.topic, c.payload)
		if err != nil {
			t.Fatalf("NewMessage(%s): %v", c.topic, err)
		}
		b, err := msg.ToBytes()
		if err != nil {
			t.Fatalf("ToBytes(%s): %v", c.topic, err)
		}
		if _, err := eisenbahn.FromBytes(b); err != nil {
			t.Fatalf("FromBytes(%s): %v", c.topic, err)
		}
	}
}

func TestGraphUpdateRoundTrip(t *testing.T) {
	update := eisenbahn.GraphUpdate{
		Entities: []eisenbahn.EntityUpdate{{
			ID:         "user-1",
			EntityType: "Member",
			Properties: map[string]string{"name": "Alice"},
		}},
		Edges: []eisenbahn.EdgeUpdate{{
			SourceID: "user-1",
			TargetID: "device-1",
			EdgeType: "LoggedInFrom",
			Weight:   1.0,
		}},
	}
	msg, err := eisenbahn.NewMessage(eisenbahn.TopicPipelineGraph, update)
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	var got eisenbahn.GraphUpdate
	if err := msg.Decode(&got); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got.Entities) != 1 || got.Entities[0].ID != "user-1" {
		t.Fatalf("entities = %+v", got.Entities)
	}
	if len(got.Edges) != 1 || got.Edges[0].Weight != 1.0 {
		t.Fatalf("edges = %+v", got.Edges)
	}
}
