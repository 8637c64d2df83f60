package segment

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/stupid-db/stupid-db/pkg/entity"
)

// Writer appends documents to a new segment. Append returns the raw
// (uncompressed) byte offset of each document so callers can index them.
// A segment only becomes durable and readable after Finalize; a writer
// that is abandoned without Finalize leaves no meta.json behind and the
// partial segment is ignored on the next open.
type Writer struct {
	segmentID  entity.SegmentID
	segmentDir string
	file       *os.File
	buf        *bufio.Writer
	enc        *zstd.Encoder
	rawBytes   uint64
	docCount   int
	index      Index
}

// NewWriter creates data/segments/{segmentID}/ under dataDir and opens a
// zstd level-3 stream for documents.dat.
func NewWriter(dataDir string, segmentID entity.SegmentID) (*Writer, error) {
	segmentDir := filepath.Join(dataDir, "segments", segmentID)
	if err := os.MkdirAll(segmentDir, 0o755); err != nil {
		return nil, err
	}

	f, err := os.Create(filepath.Join(segmentDir, dataFile))
	if err != nil {
		return nil, err
	}
	buf := bufio.NewWriter(f)
	enc, err := zstd.NewWriter(buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		f.Close()
		return nil, err
	}

	return &Writer{
		segmentID:  segmentID,
		segmentDir: segmentDir,
		file:       f,
		buf:        buf,
		enc:        enc,
	}, nil
}

// SegmentID returns the identifier of the segment being written.
func (w *Writer) SegmentID() entity.SegmentID { return w.segmentID }

// DocumentCount returns the number of documents appended so far.
func (w *Writer) DocumentCount() int { return w.docCount }

// Append encodes doc with MessagePack and writes a u32 little-endian
// length prefix followed by the encoded bytes into the compressed stream.
// It returns the raw byte offset at which the frame begins.
func (w *Writer) Append(doc entity.Document) (uint64, error) {
	offset := w.rawBytes

	encoded, err := doc.Encode()
	if err != nil {
		return 0, err
	}

	var lenbuf [4]byte
	binary.LittleEndian.PutUint32(lenbuf[:], uint32(len(encoded)))
	if _, err := w.enc.Write(lenbuf[:]); err != nil {
		return 0, err
	}
	if _, err := w.enc.Write(encoded); err != nil {
		return 0, err
	}

	w.rawBytes += 4 + uint64(len(encoded))
	w.docCount++
	w.index = append(w.index, IndexEntry{DocID: doc.ID, Offset: offset})
	return offset, nil
}

// Finalize closes the compressed stream and writes meta.json and the
// offset index. After Finalize returns successfully the segment is
// durable and immutable.
func (w *Writer) Finalize() error {
	if err := w.enc.Close(); err != nil {
		return err
	}
	if err := w.buf.Flush(); err != nil {
		return err
	}
	if err := w.file.Sync(); err != nil {
		return err
	}
	info, err := w.file.Stat()
	if err != nil {
		return err
	}
	if err := w.file.Close(); err != nil {
		return err
	}
	compressedSize := uint64(info.Size())

	meta := Meta{
		SegmentID:     w.segmentID,
		DocumentCount: w.docCount,
		SizeBytes:     compressedSize,
		RawBytes:      w.rawBytes,
		Compression:   "zstd",
	}
	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	if err := w.index.WriteFile(filepath.Join(w.segmentDir, indexFile)); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(w.segmentDir, metaFile), metaJSON, 0o644); err != nil {
		return err
	}

	ratio := uint64(100)
	if w.rawBytes > 0 {
		ratio = compressedSize * 100 / w.rawBytes
	}
	slog.Info("segment finalized",
		"segment", w.segmentID,
		"docs", w.docCount,
		"bytes", compressedSize,
		"ratio_pct", ratio,
		"raw_bytes", w.rawBytes)
	return nil
}
