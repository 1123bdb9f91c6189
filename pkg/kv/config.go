package kv

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/macropower/rulelimits/api"
)

// Backend names.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendNATS   = "nats"
)

// ErrUnknownBackend is returned by [Config.Open] for unsupported backends.
var ErrUnknownBackend = errors.New("unknown storage backend")

// Config selects and configures a [Store] backend.
type Config struct {
	// Backend is one of memory, file or nats.
	Backend string `json:"backend,omitempty" jsonschema:"title=Backend,enum=memory,enum=file,enum=nats"`
	// Path is the directory used by the file backend.
	Path string `json:"path,omitempty" jsonschema:"title=Path"`
	// Key is the key of the divergence record.
	Key string `json:"key,omitempty" jsonschema:"title=Key"`
	// NATSURL is the server URL used by the nats backend.
	NATSURL string `json:"natsUrl,omitempty" jsonschema:"title=NATS URL"`
	// Bucket is the key-value bucket used by the nats backend.
	Bucket string `json:"bucket,omitempty" jsonschema:"title=Bucket"`
}

// NewConfig returns a [Config] with default values.
func NewConfig() *Config {
	c := &Config{}
	c.EnsureDefaults()

	return c
}

// EnsureDefaults sets unset fields to their default values.
func (c *Config) EnsureDefaults() {
	if c.Backend == "" {
		c.Backend = BackendFile
	}
	if c.Path == "" {
		c.Path = api.GetStatePath("store")
	}
	if c.Bucket == "" {
		c.Bucket = DefaultBucket
	}
}

// Open creates the configured [Store]. The returned closer releases any
// connection the store holds.
func (c *Config) Open(ctx context.Context) (Store, io.Closer, error) {
	switch c.Backend {
	case BackendMemory:
		return NewMemory(nil), io.NopCloser(nil), nil

	case BackendFile:
		f, err := NewFile(c.Path)
		if err != nil {
			return nil, nil, err
		}

		return f, io.NopCloser(nil), nil

	case BackendNATS:
		n, err := DialNATS(ctx, c.NATSURL, WithBucket(c.Bucket))
		if err != nil {
			return nil, nil, err
		}

		return n, n, nil
	}

	return nil, nil, fmt.Errorf("%w: %q", ErrUnknownBackend, c.Backend)
}
