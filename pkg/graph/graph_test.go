package graph_test

import (
	"testing"
	"time"

	"github.com/stupid-db/stupid-db/pkg/entity"
	"github.com/stupid-db/stupid-db/pkg/graph"
)

func TestUpsertNodeDedup(t *testing.T) {
	g := graph.NewStore()

	id1 := g.UpsertNode(entity.Member, "alice", "s1")
	id2 := g.UpsertNode(entity.Member, "alice", "s2")
	if id1 != id2 {
		t.Fatalf("same (type, key) must return same ID: %v vs %v", id1, id2)
	}

	node, ok := g.Node(id1)
	if !ok {
		t.Fatal("node missing")
	}
	if node.EntityType != entity.Member || node.Key != "alice" {
		t.Fatalf("node = %v/%q, want Member/alice", node.EntityType, node.Key)
	}
	if len(node.SegmentRefs) != 2 {
		t.Fatalf("SegmentRefs len = %d, want 2", len(node.SegmentRefs))
	}
	for _, s := range []string{"s1", "s2"} {
		if _, ok := node.SegmentRefs[s]; !ok {
			t.Fatalf("SegmentRefs missing %q", s)
		}
	}

	// Different key or type allocates a new node.
	id3 := g.UpsertNode(entity.Member, "bob", "s1")
	if id3 == id1 {
		t.Fatal("distinct key must allocate a distinct node")
	}
	id4 := g.UpsertNode(entity.Device, "alice", "s1")
	if id4 == id1 {
		t.Fatal("distinct entity type must allocate a distinct node")
	}

	if byKey, ok := g.NodeByKey(entity.Member, "alice"); !ok || byKey.ID != id1 {
		t.Fatalf("NodeByKey = %v (%v), want %v", byKey, ok, id1)
	}
}

func TestAddEdgeDedup(t *testing.T) {
	g := graph.NewStore()
	a := g.UpsertNode(entity.Member, "alice", "s1")
	d := g.UpsertNode(entity.Device, "ios-123", "s1")

	e1 := g.AddEdge(a, d, entity.LoggedInFrom, "s1")
	e2 := g.AddEdge(a, d, entity.LoggedInFrom, "s1")
	if e1 != e2 {
		t.Fatalf("duplicate edge must return same ID: %v vs %v", e1, e2)
	}
	if g.EdgeCount() != 1 {
		t.Fatalf("EdgeCount = %d, want 1", g.EdgeCount())
	}

	edge, _ := g.Edge(e1)
	if edge.Weight != 2.0 {
		t.Fatalf("Weight = %f, want 2.0", edge.Weight)
	}
	if edge.SegmentID != "s1" {
		t.Fatalf("SegmentID = %q, want s1", edge.SegmentID)
	}

	// The edge appears exactly once in each adjacency index.
	if n := len(g.Outgoing(a)); n != 1 {
		t.Fatalf("Outgoing(a) len = %d, want 1", n)
	}
	if n := len(g.Incoming(d)); n != 1 {
		t.Fatalf("Incoming(d) len = %d, want 1", n)
	}
	if n := len(g.SegmentEdges("s1")); n != 1 {
		t.Fatalf("SegmentEdges(s1) len = %d, want 1", n)
	}

	// Reversed direction is a distinct edge.
	e3 := g.AddEdge(d, a, entity.LoggedInFrom, "s1")
	if e3 == e1 {
		t.Fatal("reversed edge must be distinct")
	}
}

func TestNeighborsBothDirections(t *testing.T) {
	g := graph.NewStore()
	a := g.UpsertNode(entity.Member, "alice", "s1")
	b := g.UpsertNode(entity.Game, "poker", "s1")
	c := g.UpsertNode(entity.Device, "and-1", "s1")

	g.AddEdge(a, b, entity.OpenedGame, "s1") // outgoing from a
	g.AddEdge(c, a, entity.LoggedInFrom, "s1")

	// AddEdge(c, a) makes c→a; the incoming neighbor of a is c.
	neighbors := g.Neighbors(a)
	if len(neighbors) != 2 {
		t.Fatalf("Neighbors len = %d, want 2", len(neighbors))
	}
	seen := map[string]bool{}
	for _, n := range neighbors {
		seen[n.Node.Key] = true
	}
	if !seen["poker"] || !seen["and-1"] {
		t.Fatalf("neighbors = %v, want poker and and-1", seen)
	}
}

func TestStats(t *testing.T) {
	g := graph.NewStore()
	a := g.UpsertNode(entity.Member, "alice", "s1")
	b := g.UpsertNode(entity.Member, "bob", "s1")
	d := g.UpsertNode(entity.Device, "ios-1", "s1")
	g.AddEdge(a, d, entity.LoggedInFrom, "s1")
	g.AddEdge(b, d, entity.LoggedInFrom, "s1")

	st := g.Stats()
	if st.NodeCount != 3 || st.EdgeCount != 2 {
		t.Fatalf("counts = %d/%d, want 3/2", st.NodeCount, st.EdgeCount)
	}
	if st.NodesByType["Member"] != 2 || st.NodesByType["Device"] != 1 {
		t.Fatalf("NodesByType = %v", st.NodesByType)
	}
	if st.EdgesByType["LoggedInFrom"] != 2 {
		t.Fatalf("EdgesByType = %v", st.EdgesByType)
	}
}

func TestProjector(t *testing.T) {
	g := graph.NewStore()
	p := graph.NewProjector(g)

	login := entity.NewDocument("Login", time.Now(), map[string]entity.FieldValue{
		"memberId": entity.Text("alice"),
		"deviceId": entity.Text("ios-123"),
		"currency": entity.Text("USD"),
		"platform": entity.Text("ios"),
	})
	game := entity.NewDocument("GameOpened", time.Now(), map[string]entity.FieldValue{
		"memberId": entity.Text("alice"),
		"game":     entity.Text("Starburst"),
		"provider": entity.Text("netent"),
	})
	apiErr := entity.NewDocument("API Error", time.Now(), map[string]entity.FieldValue{
		"memberId":   entity.Text("alice"),
		"statusCode": entity.Text("500"),
	})
	noMember := entity.NewDocument("Login", time.Now(), nil)

	n := p.ProjectBatch([]entity.Document{login, game, apiErr, noMember}, "2025-06-14")
	if n != 3 {
		t.Fatalf("projected = %d, want 3", n)
	}

	member, ok := g.NodeByKey(entity.Member, "alice")
	if !ok {
		t.Fatal("member node missing")
	}
	if _, ok := member.SegmentRefs["2025-06-14"]; !ok {
		t.Fatal("member missing segment back-ref")
	}

	for _, want := range []struct {
		et  entity.EntityType
		key string
	}{
		{entity.Device, "ios-123"},
		{entity.Game, "Starburst"},
		{entity.Provider, "netent"},
		{entity.ErrorEntity, "500"},
		{entity.Currency, "USD"},
		{entity.Platform, "ios"},
	} {
		if _, ok := g.NodeByKey(want.et, want.key); !ok {
			t.Fatalf("missing node %v/%q", want.et, want.key)
		}
	}

	// Member has edges to device, game, error, currency, platform.
	if deg := g.OutDegree(member.ID); deg != 5 {
		t.Fatalf("member OutDegree = %d, want 5", deg)
	}
}
