// Package dedupe guards the (race, driver) grain of the feature table.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Deduper records seen row keys so that each key is emitted at most once.
type Deduper interface {
	// SeenAndRecord atomically checks if key was seen and records it if not.
	// Returns true if key was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, key string) bool

	// Size is the number of distinct keys recorded.
	Size() int64

	// Duplicates is the number of rejected repeats.
	Duplicates() int64
}

// inMemoryDeduper never evicts: a forgotten key would let a duplicate row through.
type inMemoryDeduper struct {
	mu          sync.Mutex
	seen        map[string]struct{}
	capacity    int
	onDuplicate func(ctx context.Context, key string)
	size        atomic.Int64
	duplicates  atomic.Int64
}

// NewInMemoryDeduper creates a goroutine-safe grain guard.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]struct{}, d.capacity)
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(ctx context.Context, key string) bool {
	d.mu.Lock()
	_, exists := d.seen[key]
	if !exists {
		d.seen[key] = struct{}{}
	}
	d.mu.Unlock()

	if exists {
		d.duplicates.Add(1)
		if d.onDuplicate != nil {
			d.onDuplicate(ctx, key)
		}
		return true
	}
	d.size.Add(1)
	return false
}

func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}

func (d *inMemoryDeduper) Duplicates() int64 {
	return d.duplicates.Load()
}
