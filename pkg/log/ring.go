package log

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
)

// DefaultRingCapacity is used when [NewRing] is given a non-positive capacity.
const DefaultRingCapacity = 256

// Ring keeps the most recent log records in memory so they can be served as
// diagnostics. It implements [io.Writer]; each Write is one record.
type Ring struct {
	records [][]byte
	next    int
	count   int
	mu      sync.RWMutex
}

// NewRing creates a [Ring] holding up to capacity records.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultRingCapacity
	}

	return &Ring{records: make([][]byte, capacity)}
}

func (r *Ring) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[r.next] = bytes.Clone(p)
	r.next = (r.next + 1) % len(r.records)

	if r.count < len(r.records) {
		r.count++
	}

	return len(p), nil
}

// Records returns copies of the retained records, oldest first.
func (r *Ring) Records() [][]byte {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.count == 0 {
		return nil
	}

	out := make([][]byte, 0, r.count)
	start := (r.next - r.count + len(r.records)) % len(r.records)

	for i := range r.count {
		out = append(out, bytes.Clone(r.records[(start+i)%len(r.records)]))
	}

	return out
}

// Tail returns up to n of the newest records as trimmed lines, oldest first.
// A non-positive n returns all records.
func (r *Ring) Tail(n int) []string {
	records := r.Records()
	if n > 0 && len(records) > n {
		records = records[len(records)-n:]
	}

	lines := make([]string, 0, len(records))
	for _, rec := range records {
		lines = append(lines, strings.TrimRight(string(rec), "\n"))
	}

	return lines
}

// Len returns the number of retained records.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.count
}

// Cap returns the maximum number of retained records.
func (r *Ring) Cap() int {
	return len(r.records)
}

// Reset drops all records.
func (r *Ring) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	clear(r.records)
	r.next = 0
	r.count = 0
}

// WriteTo writes the retained records to w, oldest first.
func (r *Ring) WriteTo(w io.Writer) (int64, error) {
	var total int64

	for _, rec := range r.Records() {
		n, err := w.Write(rec)
		total += int64(n)

		if err != nil {
			return total, fmt.Errorf("write record: %w", err)
		}
	}

	return total, nil
}
