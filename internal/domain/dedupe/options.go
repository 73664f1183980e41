package dedupe

import "context"

// Option applies a configuration option to the in-memory deduper.
type Option func(*inMemoryDeduper)

// WithCapacity pre-sizes the key set.
func WithCapacity(n int) Option {
	return func(d *inMemoryDeduper) {
		if n > 0 {
			d.capacity = n
		}
	}
}

// WithOnDuplicate registers a hook called, outside the lock, for every rejected repeat.
func WithOnDuplicate(fn func(ctx context.Context, key string)) Option {
	return func(d *inMemoryDeduper) {
		d.onDuplicate = fn
	}
}
