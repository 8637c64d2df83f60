// Package catalog derives and persists the schema catalog: per-segment
// partial catalogs extracted from the graph, merged into a global view of
// entity and edge types, with external SQL-queryable sources attached.
package catalog

import (
	"sort"

	"github.com/stupid-db/stupid-db/pkg/entity"
	"github.com/stupid-db/stupid-db/pkg/graph"
)

// maxSampleKeys caps the sample keys kept per entity type.
const maxSampleKeys = 5

// Entry describes a single entity type discovered in the graph.
type Entry struct {
	EntityType string   `json:"entity_type"`
	NodeCount  int      `json:"node_count"`
	SampleKeys []string `json:"sample_keys"`
}

// EdgeSummary describes an edge type discovered in the graph.
type EdgeSummary struct {
	EdgeType    string   `json:"edge_type"`
	Count       int      `json:"count"`
	SourceTypes []string `json:"source_types"`
	TargetTypes []string `json:"target_types"`
}

// PartialCatalog is one segment's contribution to the overall catalog,
// built by filtering the graph to the nodes and edges associated with
// that segment. Partials are the building block for incremental updates.
type PartialCatalog struct {
	SegmentID   string        `json:"segment_id"`
	EntityTypes []Entry       `json:"entity_types"`
	EdgeTypes   []EdgeSummary `json:"edge_types"`
	NodeCount   int           `json:"node_count"`
	EdgeCount   int           `json:"edge_count"`
}

// Catalog is the merged schema view across all segments, plus any
// configured external sources.
type Catalog struct {
	EntityTypes     []Entry          `json:"entity_types"`
	EdgeTypes       []EdgeSummary    `json:"edge_types"`
	TotalNodes      int              `json:"total_nodes"`
	TotalEdges      int              `json:"total_edges"`
	ExternalSources []ExternalSource `json:"external_sources,omitempty"`
}

// PartialFromGraph extracts one segment's contribution from the graph.
// Nodes are included when their segment back-references contain the
// segment; edges when their owning segment matches exactly.
func PartialFromGraph(g *graph.Store, segmentID entity.SegmentID) PartialCatalog {
	typeKeys := make(map[string][]string)
	nodeCount := 0
	g.ForEachNode(func(n *graph.Node) {
		if _, ok := n.SegmentRefs[segmentID]; !ok {
			return
		}
		nodeCount++
		name := n.EntityType.String()
		typeKeys[name] = append(typeKeys[name], n.Key)
	})

	entries := make([]Entry, 0, len(typeKeys))
	for name, keys := range typeKeys {
		samples := keys
		if len(samples) > maxSampleKeys {
			samples = samples[:maxSampleKeys]
		}
		samples = append([]string(nil), samples...)
		sort.Strings(samples)
		entries = append(entries, Entry{
			EntityType: name,
			NodeCount:  len(keys),
			SampleKeys: samples,
		})
	}
	sortEntries(entries)

	type edgeAgg struct {
		count   int
		sources map[string]struct{}
		targets map[string]struct{}
	}
	edgeInfo := make(map[string]*edgeAgg)
	edgeCount := 0
	g.ForEachEdge(func(e *graph.Edge) {
		if e.SegmentID != segmentID {
			return
		}
		edgeCount++
		name := e.EdgeType.String()
		agg, ok := edgeInfo[name]
		if !ok {
			agg = &edgeAgg{sources: make(map[string]struct{}), targets: make(map[string]struct{})}
			edgeInfo[name] = agg
		}
		agg.count++
		if src, ok := g.Node(e.Source); ok {
			agg.sources[src.EntityType.String()] = struct{}{}
		}
		if dst, ok := g.Node(e.Target); ok {
			agg.targets[dst.EntityType.String()] = struct{}{}
		}
	})

	summaries := make([]EdgeSummary, 0, len(edgeInfo))
	for name, agg := range edgeInfo {
		summaries = append(summaries, EdgeSummary{
			EdgeType:    name,
			Count:       agg.count,
			SourceTypes: sortedSet(agg.sources),
			TargetTypes: sortedSet(agg.targets),
		})
	}
	sortSummaries(summaries)

	return PartialCatalog{
		SegmentID:   segmentID,
		EntityTypes: entries,
		EdgeTypes:   summaries,
		NodeCount:   nodeCount,
		EdgeCount:   edgeCount,
	}
}

// FromPartials merges partial catalogs: per entity type, counts are
// summed and sample keys unioned (first 5 after union); per edge type,
// counts are summed and source/target type sets unioned.
func FromPartials(partials []PartialCatalog) Catalog {
	entryAgg := make(map[string]*Entry)
	type edgeAgg struct {
		count   int
		sources map[string]struct{}
		targets map[string]struct{}
	}
	edgeInfo := make(map[string]*edgeAgg)
	totalNodes, totalEdges := 0, 0

	for _, p := range partials {
		totalNodes += p.NodeCount
		totalEdges += p.EdgeCount
		for _, e := range p.EntityTypes {
			agg, ok := entryAgg[e.EntityType]
			if !ok {
				agg = &Entry{EntityType: e.EntityType}
				entryAgg[e.EntityType] = agg
			}
			agg.NodeCount += e.NodeCount
			agg.SampleKeys = unionSamples(agg.SampleKeys, e.SampleKeys)
		}
		for _, e := range p.EdgeTypes {
			agg, ok := edgeInfo[e.EdgeType]
			if !ok {
				agg = &edgeAgg{sources: make(map[string]struct{}), targets: make(map[string]struct{})}
				edgeInfo[e.EdgeType] = agg
			}
			agg.count += e.Count
			for _, s := range e.SourceTypes {
				agg.sources[s] = struct{}{}
			}
			for _, t := range e.TargetTypes {
				agg.targets[t] = struct{}{}
			}
		}
	}

	entries := make([]Entry, 0, len(entryAgg))
	for _, e := range entryAgg {
		entries = append(entries, *e)
	}
	sortEntries(entries)

	summaries := make([]EdgeSummary, 0, len(edgeInfo))
	for name, agg := range edgeInfo {
		summaries = append(summaries, EdgeSummary{
			EdgeType:    name,
			Count:       agg.count,
			SourceTypes: sortedSet(agg.sources),
			TargetTypes: sortedSet(agg.targets),
		})
	}
	sortSummaries(summaries)

	return Catalog{
		EntityTypes: entries,
		EdgeTypes:   summaries,
		TotalNodes:  totalNodes,
		TotalEdges:  totalEdges,
	}
}

// unionSamples merges two sample-key lists, deduplicating and keeping at
// most maxSampleKeys sorted entries.
func unionSamples(a, b []string) []string {
	set := make(map[string]struct{}, len(a)+len(b))
	for _, s := range a {
		set[s] = struct{}{}
	}
	for _, s := range b {
		set[s] = struct{}{}
	}
	out := sortedSet(set)
	if len(out) > maxSampleKeys {
		out = out[:maxSampleKeys]
	}
	return out
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// sortEntries orders by node count descending, name ascending for ties.
func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].NodeCount != entries[j].NodeCount {
			return entries[i].NodeCount > entries[j].NodeCount
		}
		return entries[i].EntityType < entries[j].EntityType
	})
}

// sortSummaries orders by edge count descending, name ascending for ties.
func sortSummaries(summaries []EdgeSummary) {
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Count != summaries[j].Count {
			return summaries[i].Count > summaries[j].Count
		}
		return summaries[i].EdgeType < summaries[j].EdgeType
	})
}
