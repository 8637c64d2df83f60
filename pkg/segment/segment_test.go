package segment_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stupid-db/stupid-db/pkg/entity"
	"github.com/stupid-db/stupid-db/pkg/segment"
)

func makeDoc(t *testing.T, eventType string, ts time.Time) entity.Document {
	t.Helper()
	return entity.NewDocument(eventType, ts, map[string]entity.FieldValue{
		"memberId": entity.Text("alice"),
	})
}

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	docs := []entity.Document{
		makeDoc(t, "Login", time.Date(2025, 6, 14, 10, 0, 0, 0, time.UTC)),
		makeDoc(t, "GameOpened", time.Date(2025, 6, 14, 11, 0, 0, 0, time.UTC)),
		makeDoc(t, "Login", time.Date(2025, 6, 14, 12, 0, 0, 0, time.UTC)),
	}

	w, err := segment.NewWriter(dir, "2025-06-14")
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	var offsets []uint64
	for _, d := range docs {
		off, err := w.Append(d)
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		offsets = append(offsets, off)
	}
	if err := w.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	r, err := segment.OpenReader(dir, "2025-06-14")
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()

	meta := r.Meta()
	if meta.DocumentCount != 3 {
		t.Fatalf("meta.DocumentCount = %d, want 3", meta.DocumentCount)
	}
	if meta.Compression != "zstd" {
		t.Fatalf("meta.Compression = %q, want zstd", meta.Compression)
	}

	got, err := r.Documents()
	if err != nil {
		t.Fatalf("Documents: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Documents len = %d, want 3", len(got))
	}
	for i, d := range got {
		if d.ID != docs[i].ID {
			t.Fatalf("doc %d: ID = %v, want %v", i, d.ID, docs[i].ID)
		}
		if d.EventType != docs[i].EventType {
			t.Fatalf("doc %d: EventType = %q, want %q", i, d.EventType, docs[i].EventType)
		}
	}

	// ReadAt(offset_i) must yield the same document as the i-th iteration.
	for i, off := range offsets {
		d, err := r.ReadAt(off)
		if err != nil {
			t.Fatalf("ReadAt(%d): %v", off, err)
		}
		if d.ID != docs[i].ID {
			t.Fatalf("ReadAt(%d): ID = %v, want %v", off, d.ID, docs[i].ID)
		}
	}
}

func TestReadAtOutOfRange(t *testing.T) {
	dir := t.TempDir()
	w, err := segment.NewWriter(dir, "2025-06-14")
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if _, err := w.Append(makeDoc(t, "Login", time.Now())); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	r, err := segment.OpenReader(dir, "2025-06-14")
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()

	_, err = r.ReadAt(uint64(r.Len()) + 100)
	var nf *segment.DocumentNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected DocumentNotFoundError, got %v", err)
	}

	// An offset inside the stream whose "length prefix" exceeds the
	// remaining bytes must also be a DocumentNotFoundError, not a panic.
	_, err = r.ReadAt(uint64(r.Len() - 2))
	if !errors.As(err, &nf) {
		t.Fatalf("expected DocumentNotFoundError for truncated frame, got %v", err)
	}
}

func TestOpenMissingSegment(t *testing.T) {
	_, err := segment.OpenReader(t.TempDir(), "1999-01-01")
	if !errors.Is(err, segment.ErrSegmentNotFound) {
		t.Fatalf("expected ErrSegmentNotFound, got %v", err)
	}
}

func TestIndexRoundTrip(t *testing.T) {
	dir := t.TempDir()
	doc := makeDoc(t, "Login", time.Date(2025, 6, 14, 10, 0, 0, 0, time.UTC))

	w, err := segment.NewWriter(dir, "2025-06-14")
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	off, err := w.Append(doc)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	idx, err := segment.ReadIndex(dir + "/segments/2025-06-14/documents.idx")
	if err != nil {
		t.Fatalf("ReadIndex: %v", err)
	}
	got, ok := idx.Lookup(doc.ID)
	if !ok || got != off {
		t.Fatalf("Lookup = %d (%v), want %d", got, ok, off)
	}
}
