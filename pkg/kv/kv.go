// Package kv provides the key-value persistence used for divergence records
// and filter state.
//
// Three backends are available:
//   - [Memory]: process-local, used in tests and simulations.
//   - [File]: one file per key in a directory, written atomically.
//   - [NATS]: a JetStream key-value bucket shared between processes.
package kv

import (
	"context"
	"errors"
	"maps"
	"sync"
)

// ErrNotFound is returned by [Store.Get] when the key has no value.
var ErrNotFound = errors.New("key not found")

// Store reads and writes raw values by key. Put replaces the whole value.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

var (
	_ Store = (*Memory)(nil)
	_ Store = (*File)(nil)
	_ Store = (*NATS)(nil)
)

// Memory is an in-memory [Store].
type Memory struct {
	data map[string][]byte
	mu   sync.RWMutex
}

// NewMemory creates a [Memory] store, optionally seeded with values.
func NewMemory(seed map[string][]byte) *Memory {
	m := &Memory{data: make(map[string][]byte, len(seed))}
	maps.Copy(m.data, seed)

	return m
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}

	return append([]byte(nil), v...), nil
}

func (m *Memory) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = append([]byte(nil), value...)

	return nil
}
