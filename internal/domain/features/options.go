package features

import (
	"github.com/okian/pitwall/internal/domain/weather"
	"github.com/okian/pitwall/pkg/logger"
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithCutoff sets the first season of the timeline index.
func WithCutoff(season int) Option {
	return func(e *Engine) {
		if season > 0 {
			e.cutoff = season
		}
	}
}

// WithDefaultLapsRace sets LAPS RACE when no previous winner is known.
func WithDefaultLapsRace(laps int) Option {
	return func(e *Engine) {
		if laps > 0 {
			e.defaultLaps = laps
		}
	}
}

// WithWeather sets the weather source. The default has no data.
func WithWeather(src weather.Source) Option {
	return func(e *Engine) {
		if src != nil {
			e.weather = src
		}
	}
}

// WithLogger sets a custom logger for the engine.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}
