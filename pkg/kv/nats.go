package kv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// DefaultBucket is the JetStream key-value bucket used by [NATS].
const DefaultBucket = "RULES_LIMITS"

// NATS is a [Store] backed by a JetStream key-value bucket.
type NATS struct {
	conn   *nats.Conn
	bucket jetstream.KeyValue
}

// NATSOpt configures [DialNATS].
type NATSOpt func(*natsOptions)

type natsOptions struct {
	bucket      string
	description string
	natsOpts    []nats.Option
}

// WithBucket sets the bucket name.
func WithBucket(name string) NATSOpt {
	return func(o *natsOptions) {
		if name != "" {
			o.bucket = name
		}
	}
}

// WithNATSOptions passes connection options to [nats.Connect].
func WithNATSOptions(opts ...nats.Option) NATSOpt {
	return func(o *natsOptions) {
		o.natsOpts = append(o.natsOpts, opts...)
	}
}

// DialNATS connects to the server at url and opens (creating if needed) the
// key-value bucket.
func DialNATS(ctx context.Context, url string, opts ...NATSOpt) (*NATS, error) {
	o := &natsOptions{
		bucket:      DefaultBucket,
		description: "Rule quota divergence records",
		natsOpts:    []nats.Option{nats.Name("rulelimits")},
	}
	for _, opt := range opts {
		opt(o)
	}

	nc, err := nats.Connect(url, o.natsOpts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %q: %w", url, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("get jetstream: %w", err)
	}

	// CreateOrUpdateKeyValue is idempotent across concurrent starts.
	bucket, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      o.bucket,
		Description: o.description,
		History:     1,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("open bucket %s: %w", o.bucket, err)
	}

	slog.DebugContext(ctx, "opened nats key-value bucket",
		slog.String("url", url),
		slog.String("bucket", o.bucket),
	)

	return &NATS{conn: nc, bucket: bucket}, nil
}

// NewNATS wraps an existing bucket. The caller owns the connection.
func NewNATS(bucket jetstream.KeyValue) *NATS {
	return &NATS{bucket: bucket}
}

func (n *NATS) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := n.bucket.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}

	return entry.Value(), nil
}

func (n *NATS) Put(ctx context.Context, key string, value []byte) error {
	_, err := n.bucket.Put(ctx, key, value)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}

	return nil
}

// Close drains the connection opened by [DialNATS].
func (n *NATS) Close() error {
	if n.conn == nil {
		return nil
	}

	err := n.conn.Drain()
	if err != nil {
		return fmt.Errorf("drain nats connection: %w", err)
	}

	return nil
}
