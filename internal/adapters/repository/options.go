package repository

import "github.com/okian/pitwall/pkg/logger"

// Option applies a configuration option to the WeatherCache.
type Option func(*WeatherCache)

// WithLogger sets a custom logger for the cache.
func WithLogger(l logger.Logger) Option {
	return func(c *WeatherCache) {
		if l != nil {
			c.logger = l
		}
	}
}
