package catalog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FSStore is filesystem-backed catalog persistence managing the
// data/catalog/ directory:
//
//	catalog/
//	  current.json            merged catalog
//	  manifest.json           segment IDs + hash + timestamp
//	  segments/{id}.json      per-segment partials (/ flattened to __)
//	  snapshots/{ts}.json     historical catalogs
//	  external/{kind}-{conn}/metadata.json
//	  external/{kind}-{conn}/{db}/{table}.json
type FSStore struct {
	baseDir string
}

// NewFSStore creates the store, ensuring the directory structure exists.
func NewFSStore(baseDir string) (*FSStore, error) {
	for _, sub := range []string{"segments", "external", "snapshots"} {
		if err := os.MkdirAll(filepath.Join(baseDir, sub), 0o755); err != nil {
			return nil, err
		}
	}
	return &FSStore{baseDir: baseDir}, nil
}

// BaseDir returns the store root.
func (s *FSStore) BaseDir() string { return s.baseDir }

// segmentFilename flattens a segment ID into a safe filename. Segment IDs
// may contain '/', replaced by "__".
func segmentFilename(segmentID string) string {
	return strings.ReplaceAll(segmentID, "/", "__") + ".json"
}

func (s *FSStore) writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// SaveCurrent persists the merged catalog as current.json.
func (s *FSStore) SaveCurrent(c Catalog) error {
	return s.writeJSON(filepath.Join(s.baseDir, "current.json"), c)
}

// LoadCurrent loads current.json, returning ok=false when absent.
func (s *FSStore) LoadCurrent() (Catalog, bool, error) {
	b, err := os.ReadFile(filepath.Join(s.baseDir, "current.json"))
	if os.IsNotExist(err) {
		return Catalog{}, false, nil
	}
	if err != nil {
		return Catalog{}, false, err
	}
	var c Catalog
	if err := json.Unmarshal(b, &c); err != nil {
		return Catalog{}, false, err
	}
	return c, true, nil
}

// SavePartial persists a segment's partial catalog.
func (s *FSStore) SavePartial(segmentID string, p PartialCatalog) error {
	return s.writeJSON(filepath.Join(s.baseDir, "segments", segmentFilename(segmentID)), p)
}

// LoadPartial loads a segment's partial catalog, returning ok=false when
// absent.
func (s *FSStore) LoadPartial(segmentID string) (PartialCatalog, bool, error) {
	b, err := os.ReadFile(filepath.Join(s.baseDir, "segments", segmentFilename(segmentID)))
	if os.IsNotExist(err) {
		return PartialCatalog{}, false, nil
	}
	if err != nil {
		return PartialCatalog{}, false, err
	}
	var p PartialCatalog
	if err := json.Unmarshal(b, &p); err != nil {
		return PartialCatalog{}, false, err
	}
	return p, true, nil
}

// ListPartials returns all persisted partial segment IDs, sorted.
func (s *FSStore) ListPartials() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.baseDir, "segments"))
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if stem, ok := strings.CutSuffix(name, ".json"); ok {
			ids = append(ids, strings.ReplaceAll(stem, "__", "/"))
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// RemovePartial deletes a segment's partial catalog file (idempotent).
func (s *FSStore) RemovePartial(segmentID string) error {
	err := os.Remove(filepath.Join(s.baseDir, "segments", segmentFilename(segmentID)))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// SaveManifest persists the catalog manifest.
func (s *FSStore) SaveManifest(m Manifest) error {
	return s.writeJSON(filepath.Join(s.baseDir, "manifest.json"), m)
}

// LoadManifest loads the catalog manifest, returning ok=false when absent.
func (s *FSStore) LoadManifest() (Manifest, bool, error) {
	b, err := os.ReadFile(filepath.Join(s.baseDir, "manifest.json"))
	if os.IsNotExist(err) {
		return Manifest{}, false, nil
	}
	if err != nil {
		return Manifest{}, false, err
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return Manifest{}, false, err
	}
	return m, true, nil
}

// SaveSnapshot writes a timestamped historical copy of the catalog and
// returns the snapshot filename.
func (s *FSStore) SaveSnapshot(c Catalog) (string, error) {
	name := time.Now().UTC().Format("2006-01-02T15-04-05") + ".json"
	if err := s.writeJSON(filepath.Join(s.baseDir, "snapshots", name), c); err != nil {
		return "", err
	}
	return name, nil
}

// RebuildFromPartials loads every persisted partial, merges them, and
// persists current.json, the manifest, and a snapshot.
func (s *FSStore) RebuildFromPartials() (Catalog, error) {
	segmentIDs, err := s.ListPartials()
	if err != nil {
		return Catalog{}, err
	}
	partials := make([]PartialCatalog, 0, len(segmentIDs))
	for _, id := range segmentIDs {
		p, ok, err := s.LoadPartial(id)
		if err != nil {
			return Catalog{}, err
		}
		if ok {
			partials = append(partials, p)
		}
	}

	merged := FromPartials(partials)
	if err := s.persist(merged, segmentIDs); err != nil {
		return Catalog{}, err
	}
	slog.Info("catalog rebuilt",
		"partials", len(partials),
		"nodes", merged.TotalNodes,
		"edges", merged.TotalEdges)
	return merged, nil
}

// AddSegment incrementally merges a new segment's partial into the
// current catalog: the existing merged view is treated as one partial
// and combined with the new one, so the cost is proportional to the
// number of types, not the number of segments.
func (s *FSStore) AddSegment(segmentID string, partial PartialCatalog) (Catalog, error) {
	if err := s.SavePartial(segmentID, partial); err != nil {
		return Catalog{}, err
	}

	existing, ok, err := s.LoadCurrent()
	if err != nil {
		return Catalog{}, err
	}
	var merged Catalog
	if ok {
		existingAsPartial := PartialCatalog{
			SegmentID:   "__existing__",
			EntityTypes: existing.EntityTypes,
			EdgeTypes:   existing.EdgeTypes,
			NodeCount:   existing.TotalNodes,
			EdgeCount:   existing.TotalEdges,
		}
		merged = FromPartials([]PartialCatalog{existingAsPartial, partial})
	} else {
		merged = FromPartials([]PartialCatalog{partial})
	}
	merged.ExternalSources = existing.ExternalSources

	segmentIDs, err := s.ListPartials()
	if err != nil {
		return Catalog{}, err
	}
	if err := s.persist(merged, segmentIDs); err != nil {
		return Catalog{}, err
	}
	slog.Info("catalog updated",
		"segment", segmentID,
		"nodes", merged.TotalNodes,
		"edges", merged.TotalEdges)
	return merged, nil
}

// RemoveSegment deletes the segment's partial and rebuilds the catalog
// from the remaining partials. Removal requires a full re-merge: sample
// key unions and source/target type sets cannot be inverted, so
// subtracting counts from the merged totals would be unsafe.
func (s *FSStore) RemoveSegment(segmentID string) (Catalog, error) {
	if err := s.RemovePartial(segmentID); err != nil {
		return Catalog{}, err
	}
	slog.Info("removed partial, rebuilding catalog", "segment", segmentID)
	return s.RebuildFromPartials()
}

func (s *FSStore) persist(c Catalog, segmentIDs []string) error {
	if err := s.SaveCurrent(c); err != nil {
		return err
	}
	if err := s.SaveManifest(NewManifest(segmentIDs)); err != nil {
		return err
	}
	_, err := s.SaveSnapshot(c)
	return err
}

// SaveExternalSource persists an external source's metadata and one JSON
// file per table under external/{kind}-{connection_id}/{db}/{table}.json.
func (s *FSStore) SaveExternalSource(src ExternalSource) error {
	connDir := filepath.Join(s.baseDir, "external", fmt.Sprintf("%s-%s", src.Kind, src.ConnectionID))
	if err := os.MkdirAll(connDir, 0o755); err != nil {
		return err
	}
	meta := externalMetadata{Name: src.Name, Kind: src.Kind, ConnectionID: src.ConnectionID}
	if err := s.writeJSON(filepath.Join(connDir, "metadata.json"), meta); err != nil {
		return err
	}
	for _, db := range src.Databases {
		dbDir := filepath.Join(connDir, db.Name)
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			return err
		}
		for _, table := range db.Tables {
			if err := s.writeJSON(filepath.Join(dbDir, table.Name+".json"), table); err != nil {
				return err
			}
		}
	}
	return nil
}

// LoadExternalSources reads back all persisted external sources.
func (s *FSStore) LoadExternalSources() ([]ExternalSource, error) {
	extDir := filepath.Join(s.baseDir, "external")
	conns, err := os.ReadDir(extDir)
	if err != nil {
		return nil, err
	}

	var sources []ExternalSource
	for _, conn := range conns {
		if !conn.IsDir() {
			continue
		}
		connDir := filepath.Join(extDir, conn.Name())
		metaBytes, err := os.ReadFile(filepath.Join(connDir, "metadata.json"))
		if err != nil {
			continue
		}
		var meta externalMetadata
		if err := json.Unmarshal(metaBytes, &meta); err != nil {
			continue
		}
		src := ExternalSource{Name: meta.Name, Kind: meta.Kind, ConnectionID: meta.ConnectionID}

		dbs, err := os.ReadDir(connDir)
		if err != nil {
			return nil, err
		}
		for _, db := range dbs {
			if !db.IsDir() {
				continue
			}
			extDB := ExternalDatabase{Name: db.Name()}
			tables, err := os.ReadDir(filepath.Join(connDir, db.Name()))
			if err != nil {
				return nil, err
			}
			for _, tf := range tables {
				name := tf.Name()
				if !strings.HasSuffix(name, ".json") {
					continue
				}
				b, err := os.ReadFile(filepath.Join(connDir, db.Name(), name))
				if err != nil {
					return nil, err
				}
				var table ExternalTable
				if err := json.Unmarshal(b, &table); err != nil {
					continue
				}
				extDB.Tables = append(extDB.Tables, table)
			}
			src.Databases = append(src.Databases, extDB)
		}
		sources = append(sources, src)
	}

	sort.Slice(sources, func(i, j int) bool { return sources[i].ConnectionID < sources[j].ConnectionID })
	return sources, nil
}
