package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// segmentFiles are the members of a sealed segment directory, in upload
// order. meta.json goes last so a segment only becomes discoverable once
// its data and index are in place.
var segmentFiles = []string{"documents.dat", "documents.idx", "meta.json"}

// Archiver copies sealed segment directories into a FileStore and
// discovers previously archived segments. Keys follow the on-disk
// layout: segments/{segment_id}/{file}.
type Archiver struct {
	store FileStore
}

// NewArchiver creates an archiver over the given backend.
func NewArchiver(store FileStore) *Archiver {
	return &Archiver{store: store}
}

// ArchiveSegment uploads one sealed segment from the local data
// directory. The segment must be finalized; a missing meta.json is an
// error.
func (a *Archiver) ArchiveSegment(ctx context.Context, dataDir, segmentID string) error {
	srcDir := filepath.Join(dataDir, "segments", segmentID)
	for _, name := range segmentFiles {
		src, err := os.Open(filepath.Join(srcDir, name))
		if err != nil {
			return fmt.Errorf("archive %s: %w", segmentID, err)
		}

		dst, err := a.store.Write(ctx, objectKey(segmentID, name))
		if err != nil {
			src.Close()
			return err
		}
		_, copyErr := io.Copy(dst, src)
		src.Close()
		closeErr := dst.Close()
		if copyErr != nil {
			return copyErr
		}
		if closeErr != nil {
			return closeErr
		}
	}
	slog.Info("segment archived", "segment", segmentID)
	return nil
}

// RestoreSegment downloads an archived segment into the local data
// directory.
func (a *Archiver) RestoreSegment(ctx context.Context, dataDir, segmentID string) error {
	dstDir := filepath.Join(dataDir, "segments", segmentID)
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return err
	}
	for _, name := range segmentFiles {
		src, err := a.store.Read(ctx, objectKey(segmentID, name))
		if err != nil {
			return fmt.Errorf("restore %s: %w", segmentID, err)
		}
		dst, err := os.Create(filepath.Join(dstDir, name))
		if err != nil {
			src.Close()
			return err
		}
		_, copyErr := io.Copy(dst, src)
		src.Close()
		closeErr := dst.Close()
		if copyErr != nil {
			return copyErr
		}
		if closeErr != nil {
			return closeErr
		}
	}
	slog.Info("segment restored", "segment", segmentID)
	return nil
}

// DiscoverSegments lists archived segment IDs, identified by the
// presence of their meta.json object.
func (a *Archiver) DiscoverSegments(ctx context.Context) ([]string, error) {
	paths, err := a.store.List(ctx, "segments")
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for _, p := range paths {
		rest, ok := strings.CutPrefix(p, "segments/")
		if !ok {
			continue
		}
		segID, ok := strings.CutSuffix(rest, "/meta.json")
		if !ok || segID == "" {
			continue
		}
		seen[segID] = struct{}{}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func objectKey(segmentID, name string) string {
	return "segments/" + segmentID + "/" + name
}
