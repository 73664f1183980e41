package weather

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/pkg/metrics"
)

// DateLayout is the calendar date format used in cache keys and API requests.
const DateLayout = "2006-01-02"

// Fetcher returns the daily aggregate for a location and date.
type Fetcher interface {
	FetchDaily(ctx context.Context, lat, lon float64, date time.Time) (model.Weather, error)
}

// Upstream returns the hourly series for a location and date.
type Upstream interface {
	FetchHourly(ctx context.Context, lat, lon float64, date time.Time) (Hourly, error)
}

// Cache stores daily aggregates indefinitely.
type Cache interface {
	Get(ctx context.Context, key string) (model.Weather, bool, error)
	Put(ctx context.Context, key string, w model.Weather) error
}

// Key is the cache key of a lookup.
func Key(lat, lon float64, date time.Time) string {
	return strconv.FormatFloat(lat, 'f', -1, 64) + "," +
		strconv.FormatFloat(lon, 'f', -1, 64) + "," +
		date.Format(DateLayout)
}

// CachedFetcher consults the cache, then the upstream within the call budget.
// Only successful fetches are cached; entries never expire. Concurrent misses
// on one key share a single upstream call.
type CachedFetcher struct {
	upstream Upstream
	cache    Cache
	budget   int64 // 0 means unlimited
	calls    atomic.Int64
	flight   singleflight.Group
}

// FetcherOption configures a CachedFetcher.
type FetcherOption func(*CachedFetcher)

// WithCache sets the cache. Without one every lookup goes upstream.
func WithCache(c Cache) FetcherOption {
	return func(f *CachedFetcher) {
		f.cache = c
	}
}

// WithCallBudget caps upstream calls. Cache hits do not count.
func WithCallBudget(n int) FetcherOption {
	return func(f *CachedFetcher) {
		if n > 0 {
			f.budget = int64(n)
		}
	}
}

// NewCachedFetcher wraps an upstream.
func NewCachedFetcher(up Upstream, opts ...FetcherOption) *CachedFetcher {
	f := &CachedFetcher{upstream: up}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Calls is the number of upstream calls made so far.
func (f *CachedFetcher) Calls() int64 { return f.calls.Load() }

func (f *CachedFetcher) FetchDaily(ctx context.Context, lat, lon float64, date time.Time) (model.Weather, error) {
	key := Key(lat, lon, date)
	if w, ok := f.cached(ctx, key); ok {
		return w, nil
	}
	v, err, _ := f.flight.Do(key, func() (interface{}, error) {
		// A flight that finished between the lookup above and this one has
		// already filled the cache.
		if w, ok := f.cached(ctx, key); ok {
			return w, nil
		}
		return f.fetch(ctx, key, lat, lon, date)
	})
	if err != nil {
		return model.Weather{}, err
	}
	return v.(model.Weather), nil
}

func (f *CachedFetcher) cached(ctx context.Context, key string) (model.Weather, bool) {
	if f.cache == nil {
		return model.Weather{}, false
	}
	w, ok, err := f.cache.Get(ctx, key)
	if err != nil {
		metrics.RecordErrorByComponent("weather_cache", "get")
		return model.Weather{}, false
	}
	if ok {
		metrics.RecordWeatherCacheHit()
	}
	return w, ok
}

func (f *CachedFetcher) fetch(ctx context.Context, key string, lat, lon float64, date time.Time) (model.Weather, error) {
	if n := f.calls.Add(1); f.budget > 0 && n > f.budget {
		f.calls.Add(-1)
		return model.Weather{}, fmt.Errorf("%w: %s", ErrBudgetExhausted, key)
	}

	start := time.Now()
	h, err := f.upstream.FetchHourly(ctx, lat, lon, date)
	metrics.RecordWeatherFetchLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		return model.Weather{}, fmt.Errorf("fetch %s: %w", key, err)
	}

	w, ok := Aggregate(h)
	if !ok {
		return model.Weather{}, fmt.Errorf("%w: %s", ErrNoData, key)
	}

	if f.cache != nil {
		if err := f.cache.Put(ctx, key, w); err != nil {
			metrics.RecordErrorByComponent("weather_cache", "put")
		}
	}
	return w, nil
}
