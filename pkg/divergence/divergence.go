// Package divergence persists the list of filters that were expected to be
// enabled when the rule engine last diverged from the requested
// configuration.
//
// A non-empty record means the user should be warned. Reads never fail. An
// absent, unreadable or malformed record reads as empty; [Store.Load] also
// replaces it in the store, [Store.Peek] leaves the store untouched.
package divergence

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/macropower/rulelimits/pkg/kv"
	"github.com/macropower/rulelimits/pkg/log"
	"github.com/macropower/rulelimits/pkg/yaml"
)

// DefaultKey is the KV key the record is stored under.
const DefaultKey = "rules-limits"

var (
	//go:embed record.v1.json
	recordSchema []byte

	// ErrInvalidRecord is returned by [ParseRecord] for data that is not a
	// list of filter identifiers.
	ErrInvalidRecord = errors.New("invalid divergence record")

	validator = sync.OnceValue(func() *yaml.Validator {
		return yaml.MustNewValidator("record.v1.json", recordSchema)
	})

	emptyRecord = []byte("[]")
)

// ParseRecord decodes a stored record.
func ParseRecord(data []byte) ([]uint32, error) {
	err := validator().ValidateJSON(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	var ids []uint32

	err = json.Unmarshal(data, &ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	if ids == nil {
		ids = []uint32{}
	}

	return ids, nil
}

// Store reads and writes the divergence record.
type Store struct {
	kv  kv.Store
	key string
}

// StoreOpt configures a [Store].
type StoreOpt func(*Store)

// WithKey overrides [DefaultKey].
func WithKey(key string) StoreOpt {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// NewStore creates a [Store] on top of a [kv.Store].
func NewStore(store kv.Store, opts ...StoreOpt) *Store {
	s := &Store{kv: store, key: DefaultKey}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Key returns the KV key of the record.
func (s *Store) Key() string {
	return s.key
}

// Peek returns the stored record without writing to the store. Any failure
// to read or parse it yields an empty list. Use it outside reconciliation
// passes, where a reset could overwrite a record a pass just saved.
func (s *Store) Peek(ctx context.Context) []uint32 {
	ids, err := s.read(ctx)
	if err != nil {
		log.WithContext(ctx).DebugContext(ctx, "cannot read divergence record",
			slog.String("key", s.key),
			slog.Any("err", err),
		)

		return []uint32{}
	}

	return ids
}

func (s *Store) read(ctx context.Context) ([]uint32, error) {
	data, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return nil, err //nolint:wrapcheck // Logged by callers.
	}

	return ParseRecord(data)
}

// Load returns the stored record. Any failure to read or parse it is logged,
// the record is reset to empty, and an empty list is returned.
func (s *Store) Load(ctx context.Context) []uint32 {
	logger := log.WithContext(ctx).With(slog.String("key", s.key))

	ids, err := s.read(ctx)
	if err == nil {
		return ids
	}

	logger.WarnContext(ctx, "cannot read divergence record, resetting",
		slog.Any("err", err),
	)

	err = s.kv.Put(ctx, s.key, emptyRecord)
	if err != nil {
		logger.WarnContext(ctx, "cannot reset divergence record", slog.Any("err", err))
	}

	return []uint32{}
}

// Save replaces the record with ids.
func (s *Store) Save(ctx context.Context, ids []uint32) error {
	if ids == nil {
		ids = []uint32{}
	}

	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode divergence record: %w", err)
	}

	err = s.kv.Put(ctx, s.key, data)
	if err != nil {
		return fmt.Errorf("write divergence record: %w", err)
	}

	return nil
}

// Clear replaces the record with an empty list.
func (s *Store) Clear(ctx context.Context) error {
	return s.Save(ctx, nil)
}
