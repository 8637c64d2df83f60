package segment

import (
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/stupid-db/stupid-db/pkg/entity"
)

// IndexEntry maps one document ID to its raw (uncompressed) byte offset
// inside the segment stream.
type IndexEntry struct {
	DocID  entity.NodeID `msgpack:"doc_id"`
	Offset uint64        `msgpack:"offset"`
}

// Index is the ordered offset index for a segment, persisted as
// documents.idx in MessagePack.
type Index []IndexEntry

// WriteFile persists the index.
func (idx Index) WriteFile(path string) error {
	b, err := msgpack.Marshal(idx)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// ReadIndex loads an index file.
func ReadIndex(path string) (Index, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var idx Index
	if err := msgpack.Unmarshal(b, &idx); err != nil {
		return nil, err
	}
	return idx, nil
}

// Lookup returns the offset recorded for the given document ID.
func (idx Index) Lookup(id entity.NodeID) (uint64, bool) {
	for _, e := range idx {
		if e.DocID == id {
			return e.Offset, true
		}
	}
	return 0, false
}
