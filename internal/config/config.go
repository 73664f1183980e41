// Package config defines pipeline configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults, Load(ctx) to layer file and env.
// - Validation failures wrap ErrInvalidConfig; loader failures wrap ErrLoadConfig.
package config

import (
	"runtime"
)

// Run modes.
const (
	ModeTraining   = "training"
	ModePrediction = "prediction"
	// ModeWeather fetches the weather of every selected race from the API and
	// writes the table that weather_source=table reads.
	ModeWeather = "weather"
)

// Weather sources.
const (
	WeatherNone  = "none"
	WeatherTable = "table"
	WeatherAPI   = "api"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// DataDir is the directory holding the archive tables (races.csv, results.csv, ...).
	DataDir string `koanf:"data_dir"`

	// Output is a local path or an s3://bucket/key destination for the feature table.
	Output string `koanf:"output"`

	// S3Endpoint points s3:// destinations at an S3-compatible service. Empty uses AWS.
	S3Endpoint string `koanf:"s3_endpoint"`

	// Manifest is where the YAML run manifest goes. Empty means "<output>.manifest.yaml".
	Manifest string `koanf:"manifest"`

	// Mode selects training (many races, MS RACE column), prediction (one race)
	// or weather (the weather table, written to DataDir/WeatherTable).
	Mode string `koanf:"mode"`

	// RaceID is the target race in prediction mode.
	RaceID int `koanf:"race_id"`

	// ProcessFromYear is the season cutoff for the timeline index.
	ProcessFromYear int `koanf:"process_from_year"`

	// MinYear filters the seasons emitted in training and weather mode.
	MinYear int `koanf:"min_year"`

	// WorkerCount bounds the per-race worker pool.
	WorkerCount int `koanf:"worker_count"`

	// DefaultLapsRace is used in prediction mode when the previous race has no winner.
	DefaultLapsRace int `koanf:"default_laps_race"`

	// WeatherSource is one of none, table, api.
	WeatherSource string `koanf:"weather_source"`

	// WeatherTable is the aggregate weather file name inside DataDir.
	WeatherTable string `koanf:"weather_table"`

	// WeatherAPIURL is the Open-Meteo archive endpoint.
	WeatherAPIURL string `koanf:"weather_api_url"`

	// WeatherCachePath is the SQLite file backing the indefinite weather cache.
	WeatherCachePath string `koanf:"weather_cache_path"`

	// WeatherRetries and WeatherBackoffMS configure the upstream retry policy.
	WeatherRetries   int `koanf:"weather_retries"`
	WeatherBackoffMS int `koanf:"weather_backoff_ms"`

	// WeatherCallBudget caps upstream calls per run; 0 means unlimited.
	WeatherCallBudget int `koanf:"weather_call_budget"`

	// MetricsAddr serves /metrics while the run is in progress when set.
	MetricsAddr string `koanf:"metrics_addr"`

	// MetricsTextfile receives a Prometheus text dump at the end of the run when set.
	MetricsTextfile string `koanf:"metrics_textfile"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		DataDir:          "f1_data",
		Output:           "f1_features.csv",
		Mode:             ModeTraining,
		ProcessFromYear:  2001,
		MinYear:          2016,
		WorkerCount:      runtime.NumCPU(),
		DefaultLapsRace:  58,
		WeatherSource:    WeatherTable,
		WeatherTable:     "f1_weather_data.csv",
		WeatherAPIURL:    "https://archive-api.open-meteo.com/v1/archive",
		WeatherCachePath: ".cache/weather.sqlite",
		WeatherRetries:   5,
		WeatherBackoffMS: 200,
	}
}
