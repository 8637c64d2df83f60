package segment

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/stupid-db/stupid-db/pkg/entity"
)

// StoreConfig configures a document Store.
type StoreConfig struct {
	// DataDir is the root data directory; segments live under
	// DataDir/segments/{YYYY-MM-DD}/.
	DataDir string

	// RetentionDays is the eviction horizon. Segments whose calendar day
	// is older than this many days from now are deleted by EvictExpired.
	// Zero disables eviction.
	RetentionDays int
}

// docLocation records where a document lives.
type docLocation struct {
	segmentID entity.SegmentID
	offset    uint64
}

// Stats summarizes the store contents.
type Stats struct {
	SegmentCount  int
	DocumentCount int
}

// Store is the day-partitioned document store. Insert routes each
// document to the writer for its calendar day; Flush finalizes all open
// writers. The store keeps an in-memory doc-id index built from the
// per-segment index files.
//
// Store is not safe for concurrent use; callers serialize access.
type Store struct {
	cfg     StoreConfig
	writers map[entity.SegmentID]*Writer
	sealed  map[entity.SegmentID]struct{}
	index   map[entity.NodeID]docLocation
}

// OpenStore opens (or creates) a store rooted at cfg.DataDir, loading the
// offset indexes of every finalized segment. Segment directories without
// a meta.json (abandoned before Finalize) are skipped.
func OpenStore(cfg StoreConfig) (*Store, error) {
	s := &Store{
		cfg:     cfg,
		writers: make(map[entity.SegmentID]*Writer),
		sealed:  make(map[entity.SegmentID]struct{}),
		index:   make(map[entity.NodeID]docLocation),
	}

	segRoot := filepath.Join(cfg.DataDir, "segments")
	if err := os.MkdirAll(segRoot, 0o755); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(segRoot)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		segID := e.Name()
		segDir := filepath.Join(segRoot, segID)
		if _, err := os.Stat(filepath.Join(segDir, metaFile)); err != nil {
			slog.Warn("skipping unfinalized segment", "segment", segID)
			continue
		}
		s.sealed[segID] = struct{}{}
		idx, err := ReadIndex(filepath.Join(segDir, indexFile))
		if err != nil {
			slog.Warn("segment has no readable index", "segment", segID, "err", err)
			continue
		}
		for _, ie := range idx {
			s.index[ie.DocID] = docLocation{segmentID: segID, offset: ie.Offset}
		}
	}
	return s, nil
}

// DataDir returns the root data directory the store was opened with.
func (s *Store) DataDir() string { return s.cfg.DataDir }

// Insert appends doc to the segment for its calendar day, opening a new
// writer when the day has no open segment yet.
func (s *Store) Insert(doc entity.Document) error {
	segID := doc.SegmentKey()
	w, ok := s.writers[segID]
	if !ok {
		var err error
		w, err = NewWriter(s.cfg.DataDir, segID)
		if err != nil {
			return err
		}
		s.writers[segID] = w
	}
	offset, err := w.Append(doc)
	if err != nil {
		return err
	}
	s.index[doc.ID] = docLocation{segmentID: segID, offset: offset}
	return nil
}

// Flush finalizes every open writer, sealing their segments.
func (s *Store) Flush() error {
	for segID, w := range s.writers {
		if err := w.Finalize(); err != nil {
			return fmt.Errorf("finalize %s: %w", segID, err)
		}
		s.sealed[segID] = struct{}{}
		delete(s.writers, segID)
	}
	return nil
}

// GetByID reads a document by its identifier. Documents in segments that
// have not been flushed yet are not readable.
func (s *Store) GetByID(id entity.NodeID) (entity.Document, error) {
	loc, ok := s.index[id]
	if !ok {
		return entity.Document{}, &DocumentNotFoundError{}
	}
	if _, open := s.writers[loc.segmentID]; open {
		return entity.Document{}, fmt.Errorf("segment %s: %w", loc.segmentID, ErrSegmentNotFound)
	}
	r, err := OpenReader(s.cfg.DataDir, loc.segmentID)
	if err != nil {
		return entity.Document{}, err
	}
	defer r.Close()
	return r.ReadAt(loc.offset)
}

// ListSegments returns the IDs of all sealed segments, sorted.
func (s *Store) ListSegments() []entity.SegmentID {
	out := make([]entity.SegmentID, 0, len(s.sealed))
	for id := range s.sealed {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Stats reports segment and document counts. Document counts include
// index entries for evicted segments until the store is reopened.
func (s *Store) Stats() Stats {
	return Stats{
		SegmentCount:  len(s.sealed) + len(s.writers),
		DocumentCount: len(s.index),
	}
}

// EvictExpired deletes sealed segments whose calendar day is older than
// the retention horizon. It returns the evicted segment IDs. Eviction
// removes directory trees only; in-memory index entries for evicted
// documents linger until the store is reopened, and graph nodes whose
// only back-ref was an evicted segment disappear on the next full
// graph rebuild.
func (s *Store) EvictExpired() ([]entity.SegmentID, error) {
	if s.cfg.RetentionDays <= 0 {
		return nil, nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -s.cfg.RetentionDays)

	var evicted []entity.SegmentID
	for segID := range s.sealed {
		day, err := time.Parse("2006-01-02", segID)
		if err != nil {
			continue
		}
		if day.Before(cutoff.Truncate(24 * time.Hour)) {
			dir := filepath.Join(s.cfg.DataDir, "segments", segID)
			if err := os.RemoveAll(dir); err != nil {
				return evicted, err
			}
			delete(s.sealed, segID)
			evicted = append(evicted, segID)
			slog.Info("evicted segment", "segment", segID)
		}
	}
	sort.Strings(evicted)
	return evicted, nil
}
