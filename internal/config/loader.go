package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvConfigFile names the environment variable holding the YAML config path.
const EnvConfigFile = "PITWALL_CONFIG"

// Override adjusts a loaded Config before validation, e.g. from command-line flags.
type Override func(*Config)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if PITWALL_CONFIG is set
//  3. env (prefix PITWALL_)
//  4. overrides, in order
func Load(_ context.Context, overrides ...Override) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
		}
	}

	// PITWALL_RACE_ID -> race_id (flat keys, underscores preserved).
	envProvider := env.Provider("PITWALL_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "pitwall_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}
	for _, o := range overrides {
		o(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.DataDir) == "":
		return fmt.Errorf("%w: data_dir must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.Output) == "":
		return fmt.Errorf("%w: output must not be empty", ErrInvalidConfig)
	}

	switch c.Mode {
	case ModeTraining:
	case ModeWeather:
		if c.WeatherAPIURL == "" {
			return fmt.Errorf("%w: weather_api_url is required in weather mode", ErrInvalidConfig)
		}
	case ModePrediction:
		if c.RaceID <= 0 {
			return fmt.Errorf("%w: race_id is required in prediction mode", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, c.Mode)
	}

	switch c.WeatherSource {
	case WeatherNone, WeatherTable:
	case WeatherAPI:
		if c.WeatherAPIURL == "" {
			return fmt.Errorf("%w: weather_api_url must not be empty", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown weather_source %q", ErrInvalidConfig, c.WeatherSource)
	}

	if c.WeatherCallBudget < 0 {
		return fmt.Errorf("%w: weather_call_budget must not be negative", ErrInvalidConfig)
	}
	return nil
}
