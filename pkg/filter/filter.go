// Package filter tracks which filter lists the policy layer wants enabled.
package filter

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/macropower/rulelimits/pkg/kv"
	"github.com/macropower/rulelimits/pkg/log"
)

// DefaultCustomFiltersStartID is the first identifier (and group boundary)
// reserved for user-supplied filters.
const DefaultCustomFiltersStartID uint32 = 1000

// StateKey is the KV key the [Registry] persists filter state under.
const StateKey = "filters-state"

// Metadata describes one filter list.
type Metadata struct {
	// FilterID is the filter identifier.
	FilterID uint32 `json:"filterId" jsonschema:"title=Filter ID"`
	// GroupID is the identifier of the group that owns the filter.
	GroupID uint32 `json:"groupId" jsonschema:"title=Group ID"`
	// Enabled is the initial enablement state.
	Enabled bool `json:"enabled,omitempty" jsonschema:"title=Enabled"`
}

// Source lists the enabled filters along with their metadata.
type Source interface {
	EnabledWithMetadata() []Metadata
}

// StateWriter aligns filter enablement with what the host actually runs.
// The context bounds any persistence the change triggers.
type StateWriter interface {
	EnableFilters(ctx context.Context, ids []uint32)
	DisableFilters(ctx context.Context, ids []uint32)
}

// Registry is an in-memory filter catalog with enablement state. When a
// [kv.Store] is attached, state changes are persisted.
type Registry struct {
	store   kv.Store
	meta    map[uint32]Metadata
	enabled map[uint32]bool
	mu      sync.RWMutex
}

// RegistryOpt configures a [Registry].
type RegistryOpt func(*Registry)

// WithStore persists state changes to the given [kv.Store].
func WithStore(s kv.Store) RegistryOpt {
	return func(r *Registry) {
		r.store = s
	}
}

// NewRegistry creates a [Registry] from the catalog.
func NewRegistry(catalog []Metadata, opts ...RegistryOpt) *Registry {
	r := &Registry{
		meta:    make(map[uint32]Metadata, len(catalog)),
		enabled: make(map[uint32]bool, len(catalog)),
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, m := range catalog {
		r.meta[m.FilterID] = m
		r.enabled[m.FilterID] = m.Enabled
	}

	return r
}

// Load restores persisted state from the attached store. Unknown filters are
// ignored and a missing or unreadable record leaves the catalog defaults.
func (r *Registry) Load(ctx context.Context) error {
	if r.store == nil {
		return nil
	}

	data, err := r.store.Get(ctx, StateKey)
	if errors.Is(err, kv.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read filter state: %w", err)
	}

	var state map[uint32]bool

	err = json.Unmarshal(data, &state)
	if err != nil {
		slog.WarnContext(ctx, "cannot parse filter state, keeping defaults",
			slog.String("key", StateKey),
			slog.Any("err", err),
		)

		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for id, on := range state {
		if _, ok := r.meta[id]; ok {
			r.enabled[id] = on
		}
	}

	return nil
}

// EnabledWithMetadata returns the enabled filters sorted by identifier.
func (r *Registry) EnabledWithMetadata() []Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Metadata, 0, len(r.meta))
	for id, m := range r.meta {
		if r.enabled[id] {
			m.Enabled = true
			out = append(out, m)
		}
	}

	slices.SortFunc(out, func(a, b Metadata) int {
		return cmp.Compare(a.FilterID, b.FilterID)
	})

	return out
}

// IsEnabled reports whether the filter is enabled.
func (r *Registry) IsEnabled(id uint32) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.enabled[id]
}

// EnableFilters marks the given filters as enabled.
func (r *Registry) EnableFilters(ctx context.Context, ids []uint32) {
	r.set(ctx, ids, true)
}

// DisableFilters marks the given filters as disabled.
func (r *Registry) DisableFilters(ctx context.Context, ids []uint32) {
	r.set(ctx, ids, false)
}

func (r *Registry) set(ctx context.Context, ids []uint32, on bool) {
	if len(ids) == 0 {
		return
	}

	r.mu.Lock()
	for _, id := range ids {
		if _, ok := r.meta[id]; !ok {
			log.WithContext(ctx).DebugContext(ctx, "ignoring unknown filter", slog.Uint64("filter_id", uint64(id)))
			continue
		}

		r.enabled[id] = on
	}
	state := make(map[uint32]bool, len(r.enabled))
	for id, v := range r.enabled {
		state[id] = v
	}
	r.mu.Unlock()

	r.persist(ctx, state)
}

func (r *Registry) persist(ctx context.Context, state map[uint32]bool) {
	if r.store == nil {
		return
	}

	logger := log.WithContext(ctx).With(slog.String("key", StateKey))

	data, err := json.Marshal(state)
	if err != nil {
		logger.ErrorContext(ctx, "marshal filter state", slog.Any("err", err))
		return
	}

	// Best effort: StateWriter has no error path.
	err = r.store.Put(ctx, StateKey, data)
	if err != nil {
		logger.ErrorContext(ctx, "persist filter state", slog.Any("err", err))
	}
}

// IDs returns the identifiers of the given filters in the same order.
func IDs(filters []Metadata) []uint32 {
	ids := make([]uint32, 0, len(filters))
	for _, f := range filters {
		ids = append(ids, f.FilterID)
	}

	return ids
}
