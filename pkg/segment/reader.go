package segment

import (
	"encoding/binary"
	"encoding/json"
	"iter"
	"os"
	"path/filepath"

	"github.com/edsrzf/mmap-go"
	"github.com/klauspost/compress/zstd"

	"github.com/stupid-db/stupid-db/pkg/entity"
)

// Reader provides random and sequential access to a finalized segment.
//
// documents.dat is memory-mapped. When meta.json declares zstd
// compression the whole file is decoded into a heap buffer up front,
// trading memory for random-access speed; otherwise the mapping is used
// directly and offsets address it without copying.
type Reader struct {
	segmentID entity.SegmentID
	mapping   mmap.MMap
	file      *os.File
	data      []byte
	meta      Meta
}

// OpenReader opens data/segments/{segmentID} under dataDir. It returns
// ErrSegmentNotFound when the segment directory or its data file is
// missing. A segment abandoned before Finalize still has its data file
// and no meta.json; it opens with a zero Meta and its bytes are read as
// an uncompressed stream.
func OpenReader(dataDir string, segmentID entity.SegmentID) (*Reader, error) {
	segDir := filepath.Join(dataDir, "segments", segmentID)
	docPath := filepath.Join(segDir, dataFile)

	f, err := os.Open(docPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSegmentNotFound
		}
		return nil, err
	}

	meta := readMeta(segDir)

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		// Zero-length files cannot be mapped; treat them as empty.
		if info, statErr := f.Stat(); statErr == nil && info.Size() == 0 {
			return &Reader{segmentID: segmentID, file: f, meta: meta}, nil
		}
		f.Close()
		return nil, err
	}

	r := &Reader{segmentID: segmentID, mapping: m, file: f, meta: meta}
	if meta.Compression == "zstd" {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			r.Close()
			return nil, err
		}
		defer dec.Close()
		raw, err := dec.DecodeAll(m, nil)
		if err != nil {
			r.Close()
			return nil, err
		}
		r.data = raw
	} else {
		r.data = m
	}
	return r, nil
}

// readMeta loads meta.json, tolerating its absence (uncompressed legacy
// segments carry no descriptor).
func readMeta(segDir string) Meta {
	b, err := os.ReadFile(filepath.Join(segDir, metaFile))
	if err != nil {
		return Meta{}
	}
	var m Meta
	if json.Unmarshal(b, &m) != nil {
		return Meta{}
	}
	return m
}

// SegmentID returns the segment identifier.
func (r *Reader) SegmentID() entity.SegmentID { return r.segmentID }

// Meta returns the segment descriptor (zero value when meta.json was
// absent).
func (r *Reader) Meta() Meta { return r.meta }

// Len returns the uncompressed stream length in bytes.
func (r *Reader) Len() int { return len(r.data) }

// ReadAt decodes the document whose frame begins at the given raw offset.
func (r *Reader) ReadAt(offset uint64) (entity.Document, error) {
	off := int(offset)
	if off+4 > len(r.data) {
		return entity.Document{}, &DocumentNotFoundError{Offset: offset}
	}
	n := int(binary.LittleEndian.Uint32(r.data[off : off+4]))
	if off+4+n > len(r.data) {
		return entity.Document{}, &DocumentNotFoundError{Offset: offset}
	}
	return entity.DecodeDocument(r.data[off+4 : off+4+n])
}

// Iter yields all documents in file order. A corrupt frame (length prefix
// exceeding the remaining bytes) ends the iteration; a failed decode
// yields the error and stops.
func (r *Reader) Iter() iter.Seq2[entity.Document, error] {
	return func(yield func(entity.Document, error) bool) {
		pos := 0
		for {
			if pos+4 > len(r.data) {
				return
			}
			n := int(binary.LittleEndian.Uint32(r.data[pos : pos+4]))
			if pos+4+n > len(r.data) {
				return
			}
			doc, err := entity.DecodeDocument(r.data[pos+4 : pos+4+n])
			if !yield(doc, err) || err != nil {
				return
			}
			pos += 4 + n
		}
	}
}

// Documents reads every document in file order into a slice.
func (r *Reader) Documents() ([]entity.Document, error) {
	var docs []entity.Document
	for doc, err := range r.Iter() {
		if err != nil {
			return docs, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Close unmaps the data file and releases the handle.
func (r *Reader) Close() error {
	var first error
	if r.mapping != nil {
		if err := r.mapping.Unmap(); err != nil {
			first = err
		}
		r.mapping = nil
	}
	if r.file != nil {
		if err := r.file.Close(); err != nil && first == nil {
			first = err
		}
		r.file = nil
	}
	return first
}
