package kv_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stupid-db/stupid-db/pkg/kv"
)

// backends enumerates the Store implementations under test; the same
// assertions run against each.
func backends(t *testing.T) map[string]kv.Store {
	t.Helper()
	badgerStore, err := kv.NewBadger(kv.BadgerOptions{InMemory: true})
	if err != nil {
		t.Fatalf("NewBadger: %v", err)
	}
	stores := map[string]kv.Store{
		"memory": kv.NewMemory(nil),
		"badger": badgerStore,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func TestGetSetDelete(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			key := kv.Key{"rules", "anomaly", "rule-001"}
			val := []byte("spec")

			if _, err := s.Get(ctx, key); !errors.Is(err, kv.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}

			if err := s.Set(ctx, key, val); err != nil {
				t.Fatalf("Set: %v", err)
			}
			got, err := s.Get(ctx, key)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if string(got) != "spec" {
				t.Fatalf("Get = %q, want spec", got)
			}

			if err := s.Set(ctx, key, []byte("spec-v2")); err != nil {
				t.Fatalf("Set overwrite: %v", err)
			}
			got, _ = s.Get(ctx, key)
			if string(got) != "spec-v2" {
				t.Fatalf("Get after overwrite = %q", got)
			}

			if err := s.Delete(ctx, key); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, err := s.Get(ctx, key); !errors.Is(err, kv.ErrNotFound) {
				t.Fatalf("expected ErrNotFound after delete, got %v", err)
			}
			// Deleting again is idempotent.
			if err := s.Delete(ctx, key); err != nil {
				t.Fatalf("Delete again: %v", err)
			}
		})
	}
}

func TestListPrefix(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			entries := map[string]kv.Key{
				"a": {"rules", "anomaly", "a"},
				"b": {"rules", "anomaly", "b"},
				"x": {"rules", "pattern", "x"},
				// Shares the string prefix but not the segment path.
				"odd": {"rulesx", "a"},
			}
			for v, k := range entries {
				if err := s.Set(ctx, k, []byte(v)); err != nil {
					t.Fatalf("Set: %v", err)
				}
			}

			var got []string
			for entry, err := range s.List(ctx, kv.Key{"rules", "anomaly"}) {
				if err != nil {
					t.Fatalf("List: %v", err)
				}
				got = append(got, string(entry.Value))
			}
			if len(got) != 2 || got[0] != "a" || got[1] != "b" {
				t.Fatalf("List = %v, want [a b]", got)
			}

			var all []string
			for entry, err := range s.List(ctx, kv.Key{"rules"}) {
				if err != nil {
					t.Fatalf("List rules: %v", err)
				}
				all = append(all, string(entry.Value))
			}
			if len(all) != 3 {
				t.Fatalf("List rules = %v, want 3 entries", all)
			}
		})
	}
}
