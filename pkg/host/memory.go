package host

import (
	"context"
	"slices"
	"sync"
)

// Memory is an in-memory rule engine. Like the real engine, it keeps at most
// a fixed number of static rulesets enabled and silently drops the rest.
type Memory struct {
	err         error
	enabled     []string
	available   int
	maxRulesets int
	mu          sync.RWMutex
}

// MemoryOpt configures a [Memory] host.
type MemoryOpt func(*Memory)

// WithMaxEnabledRulesets sets how many static rulesets [Memory.Apply] keeps.
func WithMaxEnabledRulesets(n int) MemoryOpt {
	return func(m *Memory) {
		m.maxRulesets = n
	}
}

// WithAvailable sets the initial available static rule count.
func WithAvailable(n int) MemoryOpt {
	return func(m *Memory) {
		m.available = n
	}
}

// WithEnabled sets the initially enabled rulesets, bypassing the cap.
func WithEnabled(names ...string) MemoryOpt {
	return func(m *Memory) {
		m.enabled = slices.Clone(names)
	}
}

// NewMemory creates a [Memory] host.
func NewMemory(opts ...MemoryOpt) *Memory {
	m := &Memory{maxRulesets: DefaultMaxEnabledStaticRulesets}
	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Apply replaces the enabled rulesets with names, keeping at most the
// configured maximum in request order. It returns the rulesets that were
// actually enabled.
func (m *Memory) Apply(names []string) []string {
	kept := make([]string, 0, min(len(names), m.maxRulesets))
	for _, name := range names {
		if len(kept) == m.maxRulesets {
			break
		}
		if !slices.Contains(kept, name) {
			kept = append(kept, name)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.enabled = kept

	return slices.Clone(kept)
}

// SetAvailable sets the available static rule count.
func (m *Memory) SetAvailable(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.available = n
}

// SetErr makes every subsequent query fail with err. A nil err restores
// normal operation.
func (m *Memory) SetErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.err = err
}

func (m *Memory) AvailableStaticRuleCount(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.err != nil {
		return 0, m.err
	}

	return m.available, nil
}

func (m *Memory) EnabledRulesets(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.err != nil {
		return nil, m.err
	}

	return slices.Clone(m.enabled), nil
}
