// Package graph implements the in-memory property graph: a deduplicated
// entity/edge store with segment back-references and adjacency indexes.
//
// The store does no internal locking. It is exclusively owned by an
// enclosing read/write lock: mutations (UpsertNode, AddEdge) require
// write access, reads (Neighbors, Stats, algorithm traversals) require
// read access.
package graph

import (
	"time"

	"github.com/stupid-db/stupid-db/pkg/entity"
)

// Node is a deduplicated entity with segment back-references.
type Node struct {
	ID          entity.NodeID
	EntityType  entity.EntityType
	Key         string
	SegmentRefs map[entity.SegmentID]struct{}
	CreatedAt   time.Time
	LastSeen    time.Time
}

// Edge is a typed directed relation owned by exactly one segment.
// Re-observations increment Weight instead of duplicating the edge.
type Edge struct {
	ID        entity.EdgeID
	Source    entity.NodeID
	Target    entity.NodeID
	EdgeType  entity.EdgeType
	Weight    float64
	FirstSeen time.Time
	LastSeen  time.Time
	SegmentID entity.SegmentID
}

// Stats aggregates node and edge counts by type.
type Stats struct {
	NodeCount   int
	EdgeCount   int
	NodesByType map[string]int
	EdgesByType map[string]int
}

type nodeKey struct {
	entityType entity.EntityType
	key        string
}

type edgeKey struct {
	source   entity.NodeID
	target   entity.NodeID
	edgeType entity.EdgeType
}

// Store holds the graph with its secondary indexes.
type Store struct {
	nodes        map[entity.NodeID]*Node
	edges        map[entity.EdgeID]*Edge
	keyIndex     map[nodeKey]entity.NodeID
	edgeDedup    map[edgeKey]entity.EdgeID
	outgoing     map[entity.NodeID][]entity.EdgeID
	incoming     map[entity.NodeID][]entity.EdgeID
	segmentEdges map[entity.SegmentID][]entity.EdgeID
}

// NewStore creates an empty graph.
func NewStore() *Store {
	return &Store{
		nodes:        make(map[entity.NodeID]*Node),
		edges:        make(map[entity.EdgeID]*Edge),
		keyIndex:     make(map[nodeKey]entity.NodeID),
		edgeDedup:    make(map[edgeKey]entity.EdgeID),
		outgoing:     make(map[entity.NodeID][]entity.EdgeID),
		incoming:     make(map[entity.NodeID][]entity.EdgeID),
		segmentEdges: make(map[entity.SegmentID][]entity.EdgeID),
	}
}

// UpsertNode deduplicates on (entityType, key). On a hit it refreshes
// LastSeen, adds the segment back-reference, and returns the existing ID;
// on a miss it allocates a new node with both timestamps set to now.
func (s *Store) UpsertNode(entityType entity.EntityType, key string, segmentID entity.SegmentID) entity.NodeID {
	lookup := nodeKey{entityType: entityType, key: key}
	if id, ok := s.keyIndex[lookup]; ok {
		node := s.nodes[id]
		node.LastSeen = time.Now().UTC()
		node.SegmentRefs[segmentID] = struct{}{}
		return id
	}

	id := entity.NewNodeID()
	now := time.Now().UTC()
	s.nodes[id] = &Node{
		ID:          id,
		EntityType:  entityType,
		Key:         key,
		SegmentRefs: map[entity.SegmentID]struct{}{segmentID: {}},
		CreatedAt:   now,
		LastSeen:    now,
	}
	s.keyIndex[lookup] = id
	return id
}

// AddEdge deduplicates on (source, target, edgeType). On a hit it bumps
// Weight by 1.0 and refreshes LastSeen; on a miss it creates the edge and
// installs it into the adjacency and segment indexes.
func (s *Store) AddEdge(source, target entity.NodeID, edgeType entity.EdgeType, segmentID entity.SegmentID) entity.EdgeID {
	dedup := edgeKey{source: source, target: target, edgeType: edgeType}
	if id, ok := s.edgeDedup[dedup]; ok {
		edge := s.edges[id]
		edge.Weight += 1.0
		edge.LastSeen = time.Now().UTC()
		return id
	}

	id := entity.NewEdgeID()
	now := time.Now().UTC()
	s.edges[id] = &Edge{
		ID:        id,
		Source:    source,
		Target:    target,
		EdgeType:  edgeType,
		Weight:    1.0,
		FirstSeen: now,
		LastSeen:  now,
		SegmentID: segmentID,
	}
	s.edgeDedup[dedup] = id
	s.outgoing[source] = append(s.outgoing[source], id)
	s.incoming[target] = append(s.incoming[target], id)
	s.segmentEdges[segmentID] = append(s.segmentEdges[segmentID], id)
	return id
}

// Neighbor pairs an adjacent edge with the node on its far end.
type Neighbor struct {
	Edge *Edge
	Node *Node
}

// Neighbors returns both outgoing and incoming adjacencies of the node,
// resolving the opposite endpoint for each edge.
func (s *Store) Neighbors(id entity.NodeID) []Neighbor {
	var result []Neighbor
	for _, eid := range s.outgoing[id] {
		edge := s.edges[eid]
		if target, ok := s.nodes[edge.Target]; ok {
			result = append(result, Neighbor{Edge: edge, Node: target})
		}
	}
	for _, eid := range s.incoming[id] {
		edge := s.edges[eid]
		if source, ok := s.nodes[edge.Source]; ok {
			result = append(result, Neighbor{Edge: edge, Node: source})
		}
	}
	return result
}

// Node returns the node with the given ID.
func (s *Store) Node(id entity.NodeID) (*Node, bool) {
	n, ok := s.nodes[id]
	return n, ok
}

// NodeByKey resolves a node through the deduplication index.
func (s *Store) NodeByKey(entityType entity.EntityType, key string) (*Node, bool) {
	id, ok := s.keyIndex[nodeKey{entityType: entityType, key: key}]
	if !ok {
		return nil, false
	}
	return s.nodes[id], true
}

// Edge returns the edge with the given ID.
func (s *Store) Edge(id entity.EdgeID) (*Edge, bool) {
	e, ok := s.edges[id]
	return e, ok
}

// NodeIDs returns every node ID (iteration order is map order).
func (s *Store) NodeIDs() []entity.NodeID {
	ids := make([]entity.NodeID, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	return ids
}

// NodeCount returns the number of nodes.
func (s *Store) NodeCount() int { return len(s.nodes) }

// EdgeCount returns the number of edges.
func (s *Store) EdgeCount() int { return len(s.edges) }

// ForEachNode visits every node.
func (s *Store) ForEachNode(fn func(*Node)) {
	for _, n := range s.nodes {
		fn(n)
	}
}

// ForEachEdge visits every edge.
func (s *Store) ForEachEdge(fn func(*Edge)) {
	for _, e := range s.edges {
		fn(e)
	}
}

// Outgoing returns the outgoing edge IDs of a node.
func (s *Store) Outgoing(id entity.NodeID) []entity.EdgeID { return s.outgoing[id] }

// Incoming returns the incoming edge IDs of a node.
func (s *Store) Incoming(id entity.NodeID) []entity.EdgeID { return s.incoming[id] }

// OutDegree returns the outgoing edge count of a node.
func (s *Store) OutDegree(id entity.NodeID) int { return len(s.outgoing[id]) }

// InDegree returns the incoming edge count of a node.
func (s *Store) InDegree(id entity.NodeID) int { return len(s.incoming[id]) }

// SegmentEdges returns the edge IDs owned by a segment.
func (s *Store) SegmentEdges(segmentID entity.SegmentID) []entity.EdgeID {
	return s.segmentEdges[segmentID]
}

// Stats aggregates counts by entity and edge type.
func (s *Store) Stats() Stats {
	st := Stats{
		NodeCount:   len(s.nodes),
		EdgeCount:   len(s.edges),
		NodesByType: make(map[string]int),
		EdgesByType: make(map[string]int),
	}
	for _, n := range s.nodes {
		st.NodesByType[n.EntityType.String()]++
	}
	for _, e := range s.edges {
		st.EdgesByType[e.EdgeType.String()]++
	}
	return st
}
