package kv

import (
	"bytes"
	"context"
	"iter"
	"sort"
	"sync"
)

// Memory is an in-memory Store backed by a map. Safe for concurrent use;
// intended for tests.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
	opts *Options
}

// NewMemory creates an in-memory Store. Pass nil for default options.
func NewMemory(opts *Options) *Memory {
	return &Memory{data: make(map[string][]byte), opts: opts}
}

func (m *Memory) Get(_ context.Context, key Key) ([]byte, error) {
	k := string(m.opts.encode(key))
	m.mu.RLock()
	v, ok := m.data[k]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *Memory) Set(_ context.Context, key Key, value []byte) error {
	k := string(m.opts.encode(key))
	cp := append([]byte(nil), value...)
	m.mu.Lock()
	m.data[k] = cp
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, key Key) error {
	k := string(m.opts.encode(key))
	m.mu.Lock()
	delete(m.data, k)
	m.mu.Unlock()
	return nil
}

func (m *Memory) List(_ context.Context, prefix Key) iter.Seq2[Entry, error] {
	p := m.opts.encode(prefix)
	// Append the separator so prefix "a:b" does not match key "a:bc".
	var prefixBytes []byte
	if len(p) > 0 {
		prefixBytes = append(p, m.opts.sep())
	}

	m.mu.RLock()
	type pair struct {
		key string
		val []byte
	}
	var matches []pair
	for k, v := range m.data {
		if len(prefixBytes) == 0 || bytes.HasPrefix([]byte(k), prefixBytes) {
			matches = append(matches, pair{k, append([]byte(nil), v...)})
		}
	}
	m.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool { return matches[i].key < matches[j].key })

	return func(yield func(Entry, error) bool) {
		for _, kv := range matches {
			if !yield(Entry{Key: m.opts.decode([]byte(kv.key)), Value: kv.val}, nil) {
				return
			}
		}
	}
}

func (m *Memory) Close() error { return nil }
