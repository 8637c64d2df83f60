package ingest

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/stupid-db/stupid-db/pkg/catalog"
	"github.com/stupid-db/stupid-db/pkg/eisenbahn"
	"github.com/stupid-db/stupid-db/pkg/entity"
	"github.com/stupid-db/stupid-db/pkg/graph"
	"github.com/stupid-db/stupid-db/pkg/segment"
)

// EventPublisher is the slice of the bus the pipeline needs. A nil
// publisher disables event announcements.
type EventPublisher interface {
	PublishEvent(topic string, payload any) error
}

// QueueDepthSetter receives the ingest-queue-depth backpressure signal;
// the compute scheduler satisfies it.
type QueueDepthSetter interface {
	SetIngestQueueDepth(depth int)
}

// Pipeline applies ingest batches: documents into the segment store,
// entities and edges into the graph, partial catalogs into the catalog
// store.
type Pipeline struct {
	store    *segment.Store
	graph    *graph.Shared
	catalog  *catalog.FSStore
	bus      EventPublisher
	depth    atomic.Int64
	throttle QueueDepthSetter
}

// NewPipeline wires the pipeline. catalog, bus, and throttle may each
// be nil to disable the corresponding side effect.
func NewPipeline(store *segment.Store, g *graph.Shared, cat *catalog.FSStore, bus EventPublisher, throttle QueueDepthSetter) *Pipeline {
	return &Pipeline{
		store:    store,
		graph:    g,
		catalog:  cat,
		bus:      bus,
		throttle: throttle,
	}
}

// QueueDepth returns the current backlog estimate.
func (p *Pipeline) QueueDepth() int { return int(p.depth.Load()) }

// Enqueue accounts records as pending before ApplyBatch picks them up.
func (p *Pipeline) Enqueue(n int) {
	depth := p.depth.Add(int64(n))
	if p.throttle != nil {
		p.throttle.SetIngestQueueDepth(int(depth))
	}
}

func (p *Pipeline) dequeue(n int) {
	depth := p.depth.Add(int64(-n))
	if depth < 0 {
		p.depth.Store(0)
		depth = 0
	}
	if p.throttle != nil {
		p.throttle.SetIngestQueueDepth(int(depth))
	}
}

// ApplyBatch converts records to documents, stores them, projects them
// into the graph, and publishes progress events. Individual bad records
// are skipped with a warning; storage failures abort the batch.
func (p *Pipeline) ApplyBatch(source string, batch eisenbahn.IngestBatch) error {
	start := time.Now()
	defer p.dequeue(len(batch.Records))

	p.announce(eisenbahn.TopicIngestStarted, eisenbahn.IngestStarted{Source: source})

	docs := make([]entity.Document, 0, len(batch.Records))
	for _, rec := range batch.Records {
		doc, err := DocumentFromRecord(rec)
		if err != nil {
			slog.Warn("skipping bad record", "record", rec.ID, "err", err)
			continue
		}
		docs = append(docs, doc)
	}

	segments := make(map[entity.SegmentID][]entity.Document)
	for _, doc := range docs {
		if err := p.store.Insert(doc); err != nil {
			return fmt.Errorf("insert: %w", err)
		}
		segID := doc.SegmentKey()
		segments[segID] = append(segments[segID], doc)
	}

	p.graph.Write(func(g *graph.Store) {
		projector := graph.NewProjector(g)
		for segID, segDocs := range segments {
			projector.ProjectBatch(segDocs, segID)
		}
	})

	p.announce(eisenbahn.TopicIngestRecordBatch, eisenbahn.IngestComplete{
		Source:      source,
		RecordCount: uint64(len(docs)),
		DurationMS:  uint64(time.Since(start).Milliseconds()),
	})
	return nil
}

// SealAndCatalog flushes open segments and refreshes the catalog with a
// partial for each sealed segment whose manifest entry is stale.
func (p *Pipeline) SealAndCatalog() error {
	if err := p.store.Flush(); err != nil {
		return err
	}
	if p.catalog == nil {
		return nil
	}

	segmentIDs := p.store.ListSegments()
	manifest, ok, err := p.catalog.LoadManifest()
	if err != nil {
		return err
	}
	if ok && manifest.IsFresh(segmentIDs) {
		return nil
	}

	// Re-derive every partial and rebuild rather than merging
	// incrementally: segments already in the catalog would be
	// double-counted by a second merge.
	var saveErr error
	p.graph.Read(func(g *graph.Store) {
		for _, segID := range segmentIDs {
			partial := catalog.PartialFromGraph(g, segID)
			if err := p.catalog.SavePartial(segID, partial); err != nil {
				saveErr = err
				return
			}
		}
	})
	if saveErr != nil {
		return saveErr
	}
	_, err = p.catalog.RebuildFromPartials()
	return err
}

// Complete announces the end of an ingest job.
func (p *Pipeline) Complete(source string, records uint64, elapsed time.Duration) {
	p.announce(eisenbahn.TopicIngestComplete, eisenbahn.IngestComplete{
		Source:      source,
		RecordCount: records,
		DurationMS:  uint64(elapsed.Milliseconds()),
	})
}

func (p *Pipeline) announce(topic string, payload any) {
	if p.bus == nil {
		return
	}
	if err := p.bus.PublishEvent(topic, payload); err != nil {
		slog.Warn("ingest event publish failed", "topic", topic, "err", err)
	}
}

// DocumentFromRecord converts a pipeline record into a document. The
// record's timestamp must be RFC 3339; an empty timestamp means now.
// String fields that parse as integers, floats, or booleans become the
// corresponding typed values.
func DocumentFromRecord(rec eisenbahn.Record) (entity.Document, error) {
	ts := time.Now().UTC()
	if rec.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, rec.Timestamp)
		if err != nil {
			return entity.Document{}, fmt.Errorf("record %s: bad timestamp: %w", rec.ID, err)
		}
		ts = parsed
	}

	fields := make(map[string]entity.FieldValue, len(rec.Fields))
	for name, raw := range rec.Fields {
		fields[name] = coerceField(raw)
	}
	return entity.NewDocument(rec.EventType, ts, fields), nil
}

// coerceField maps a raw string into the narrowest FieldValue variant.
func coerceField(raw string) entity.FieldValue {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return entity.Integer(n)
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return entity.Float(f)
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return entity.Boolean(b)
	}
	return entity.Text(raw)
}
