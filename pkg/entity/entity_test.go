package entity_test

import (
	"testing"
	"time"

	"github.com/stupid-db/stupid-db/pkg/entity"
)

func TestEntityTypeRoundTrip(t *testing.T) {
	for _, et := range entity.EntityTypes() {
		parsed, err := entity.ParseEntityType(et.String())
		if err != nil {
			t.Fatalf("ParseEntityType(%q): %v", et.String(), err)
		}
		if parsed != et {
			t.Fatalf("ParseEntityType(%q) = %v, want %v", et.String(), parsed, et)
		}
	}
}

func TestEdgeTypeRoundTrip(t *testing.T) {
	for _, et := range entity.EdgeTypes() {
		parsed, err := entity.ParseEdgeType(et.String())
		if err != nil {
			t.Fatalf("ParseEdgeType(%q): %v", et.String(), err)
		}
		if parsed != et {
			t.Fatalf("ParseEdgeType(%q) = %v, want %v", et.String(), parsed, et)
		}
	}
}

func TestParseUnknownType(t *testing.T) {
	if _, err := entity.ParseEntityType("Spaceship"); err == nil {
		t.Fatal("expected error for unknown entity type")
	}
	if _, err := entity.ParseEdgeType("FliesTo"); err == nil {
		t.Fatal("expected error for unknown edge type")
	}
}

func TestDocumentEncodeDecode(t *testing.T) {
	ts := time.Date(2025, 6, 14, 10, 0, 0, 0, time.UTC)
	doc := entity.NewDocument("Login", ts, map[string]entity.FieldValue{
		"memberId": entity.Text("alice"),
		"attempts": entity.Integer(3),
		"latency":  entity.Float(12.5),
		"success":  entity.Boolean(true),
	})

	b, err := doc.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := entity.DecodeDocument(b)
	if err != nil {
		t.Fatalf("DecodeDocument: %v", err)
	}

	if got.ID != doc.ID {
		t.Fatalf("ID = %v, want %v", got.ID, doc.ID)
	}
	if !got.Timestamp.Equal(doc.Timestamp) {
		t.Fatalf("Timestamp = %v, want %v", got.Timestamp, doc.Timestamp)
	}
	if got.EventType != "Login" {
		t.Fatalf("EventType = %q, want Login", got.EventType)
	}
	if len(got.Fields) != 4 {
		t.Fatalf("Fields len = %d, want 4", len(got.Fields))
	}
	if s, ok := got.Fields["memberId"].AsText(); !ok || s != "alice" {
		t.Fatalf("memberId = %q (%v), want alice", s, ok)
	}
	if n, ok := got.Fields["attempts"].AsInt(); !ok || n != 3 {
		t.Fatalf("attempts = %d (%v), want 3", n, ok)
	}
	if f, ok := got.Fields["latency"].AsFloat(); !ok || f != 12.5 {
		t.Fatalf("latency = %f (%v), want 12.5", f, ok)
	}
	if b, ok := got.Fields["success"].AsBool(); !ok || !b {
		t.Fatalf("success = %v (%v), want true", b, ok)
	}
}

func TestFieldValueWidening(t *testing.T) {
	if f, ok := entity.Integer(7).AsFloat(); !ok || f != 7.0 {
		t.Fatalf("Integer(7).AsFloat() = %f (%v), want 7.0", f, ok)
	}
	if _, ok := entity.Text("x").AsFloat(); ok {
		t.Fatal("Text.AsFloat should not succeed")
	}
}

func TestSegmentKey(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	// 2025-06-15 02:30 UTC+8 is 2025-06-14 18:30 UTC; the partition key is
	// the UTC calendar day.
	doc := entity.NewDocument("Login", time.Date(2025, 6, 15, 2, 30, 0, 0, loc), nil)
	if got := doc.SegmentKey(); got != "2025-06-14" {
		t.Fatalf("SegmentKey = %q, want 2025-06-14", got)
	}
}
