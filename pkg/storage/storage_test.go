package storage_test

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/stupid-db/stupid-db/pkg/storage"
)

func TestLocalReadWriteDeleteExists(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	// Missing file reads report os.ErrNotExist.
	if _, err := store.Read(ctx, "nope.txt"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}

	w, err := store.Write(ctx, "segments/2025-06-14/meta.json")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := w.Write([]byte(`{"segment_id":"2025-06-14"}`)); err != nil {
		t.Fatalf("write bytes: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	ok, err := store.Exists(ctx, "segments/2025-06-14/meta.json")
	if err != nil || !ok {
		t.Fatalf("Exists = %v, %v", ok, err)
	}

	r, err := store.Read(ctx, "segments/2025-06-14/meta.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	data, err := io.ReadAll(r)
	r.Close()
	if err != nil || string(data) != `{"segment_id":"2025-06-14"}` {
		t.Fatalf("read = %q, %v", data, err)
	}

	if err := store.Delete(ctx, "segments/2025-06-14/meta.json"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	// Idempotent delete.
	if err := store.Delete(ctx, "segments/2025-06-14/meta.json"); err != nil {
		t.Fatalf("Delete again: %v", err)
	}
}

func TestLocalList(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	for _, p := range []string{
		"segments/2025-06-14/documents.dat",
		"segments/2025-06-14/meta.json",
		"segments/2025-06-15/documents.dat",
		"other/file.bin",
	} {
		w, err := store.Write(ctx, p)
		if err != nil {
			t.Fatalf("Write %s: %v", p, err)
		}
		w.Write([]byte("x"))
		w.Close()
	}

	paths, err := store.List(ctx, "segments")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(paths) != 3 {
		t.Fatalf("List = %v, want 3 entries", paths)
	}
	if paths[0] != "segments/2025-06-14/documents.dat" {
		t.Fatalf("List[0] = %q", paths[0])
	}

	empty, err := store.List(ctx, "missing")
	if err != nil || len(empty) != 0 {
		t.Fatalf("List missing = %v, %v", empty, err)
	}
}

func TestArchiverRoundTrip(t *testing.T) {
	ctx := context.Background()

	// A sealed segment on local disk.
	dataDir := t.TempDir()
	segDir := dataDir + "/segments/2025-06-14"
	if err := os.MkdirAll(segDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	files := map[string]string{
		"documents.dat": "compressed-bytes",
		"documents.idx": "index-bytes",
		"meta.json":     `{"segment_id":"2025-06-14"}`,
	}
	for name, content := range files {
		if err := os.WriteFile(segDir+"/"+name, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	backend, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	archiver := storage.NewArchiver(backend)

	if err := archiver.ArchiveSegment(ctx, dataDir, "2025-06-14"); err != nil {
		t.Fatalf("ArchiveSegment: %v", err)
	}

	ids, err := archiver.DiscoverSegments(ctx)
	if err != nil {
		t.Fatalf("DiscoverSegments: %v", err)
	}
	if len(ids) != 1 || ids[0] != "2025-06-14" {
		t.Fatalf("DiscoverSegments = %v", ids)
	}

	// Restore into a fresh data dir and compare contents.
	restoreDir := t.TempDir()
	if err := archiver.RestoreSegment(ctx, restoreDir, "2025-06-14"); err != nil {
		t.Fatalf("RestoreSegment: %v", err)
	}
	for name, content := range files {
		got, err := os.ReadFile(restoreDir + "/segments/2025-06-14/" + name)
		if err != nil || string(got) != content {
			t.Fatalf("restored %s = %q, %v", name, got, err)
		}
	}
}

func TestArchiverRejectsUnsealedSegment(t *testing.T) {
	dataDir := t.TempDir()
	segDir := dataDir + "/segments/2025-06-14"
	os.MkdirAll(segDir, 0o755)
	// documents.dat exists but the segment was never finalized.
	os.WriteFile(segDir+"/documents.dat", []byte("partial"), 0o644)

	backend, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	if err := storage.NewArchiver(backend).ArchiveSegment(context.Background(), dataDir, "2025-06-14"); err == nil {
		t.Fatal("archiving an unsealed segment must fail")
	}
}
