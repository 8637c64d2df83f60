// Package segment implements the append-only, compressed, day-partitioned
// document store. A segment is one calendar day of documents persisted as
// a zstd-compressed stream of length-prefixed MessagePack records, plus a
// meta.json descriptor and an offset index.
//
// Segments are immutable after finalization. Offsets always refer to the
// uncompressed stream; readers decompress into memory (or map the raw file
// when uncompressed) and seek by offset.
package segment

import (
	"errors"
	"fmt"
)

// File names inside a segment directory.
const (
	dataFile  = "documents.dat"
	metaFile  = "meta.json"
	indexFile = "documents.idx"
)

// ErrSegmentNotFound is returned when opening a segment that does not
// exist (or was never finalized).
var ErrSegmentNotFound = errors.New("segment: not found")

// DocumentNotFoundError reports a read at an offset that is past the end
// of the stream or inside a truncated frame.
type DocumentNotFoundError struct {
	Offset uint64
}

func (e *DocumentNotFoundError) Error() string {
	return fmt.Sprintf("segment: no document at offset %d", e.Offset)
}

// Meta is the segment descriptor persisted as meta.json.
type Meta struct {
	SegmentID     string `json:"segment_id"`
	DocumentCount int    `json:"document_count"`
	SizeBytes     uint64 `json:"size_bytes"`
	RawBytes      uint64 `json:"raw_bytes"`
	Compression   string `json:"compression"`
}
