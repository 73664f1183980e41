// Package repository persists daily weather aggregates in a local SQLite file
// so that repeated runs do not query the upstream API again.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang/snappy"
	_ "modernc.org/sqlite"

	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/pkg/logger"
)

const schema = `CREATE TABLE IF NOT EXISTS weather_cache (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
)`

// WeatherCache implements weather.Cache. Values are snappy-compressed JSON.
// Entries never expire.
type WeatherCache struct {
	db     *sql.DB
	logger logger.Logger
}

// OpenWeatherCache opens or creates the cache file at path.
func OpenWeatherCache(ctx context.Context, path string, opts ...Option) (*WeatherCache, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrOpen, err)
		}
	}
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}
	// A single connection serializes writers from concurrent race workers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: create schema: %v", ErrOpen, err)
	}

	c := &WeatherCache{db: db, logger: logger.Get().Named("weather_cache")}
	for _, opt := range opts {
		opt(c)
	}
	c.logger.Debug(ctx, "weather cache opened", logger.String("path", path))
	return c, nil
}

// Get returns the cached aggregate for key.
func (c *WeatherCache) Get(ctx context.Context, key string) (model.Weather, bool, error) {
	var blob []byte
	err := c.db.QueryRowContext(ctx, `SELECT value FROM weather_cache WHERE key = ?`, key).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Weather{}, false, nil
	}
	if err != nil {
		return model.Weather{}, false, fmt.Errorf("get %s: %w", key, err)
	}

	raw, err := snappy.Decode(nil, blob)
	if err != nil {
		return model.Weather{}, false, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	var w model.Weather
	if err := json.Unmarshal(raw, &w); err != nil {
		return model.Weather{}, false, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	return w, true, nil
}

// Put stores w under key, replacing any previous value.
func (c *WeatherCache) Put(ctx context.Context, key string, w model.Weather) error {
	raw, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO weather_cache (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, snappy.Encode(nil, raw))
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Len is the number of cached entries.
func (c *WeatherCache) Len(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM weather_cache`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// Close releases the database.
func (c *WeatherCache) Close() error {
	return c.db.Close()
}
