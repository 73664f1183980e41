// Package service runs the feature pipeline: it loads the archive, builds
// the indices, assembles the selected races on the worker pool and writes the
// feature table with its run manifest. In weather mode it instead fetches the
// weather of the selected races and writes the weather table.
package service

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/pitwall/internal/adapters/mq/worker"
	"github.com/okian/pitwall/internal/adapters/openmeteo"
	"github.com/okian/pitwall/internal/adapters/repository"
	"github.com/okian/pitwall/internal/adapters/sink"
	"github.com/okian/pitwall/internal/adapters/source"
	"github.com/okian/pitwall/internal/config"
	"github.com/okian/pitwall/internal/domain/dedupe"
	"github.com/okian/pitwall/internal/domain/features"
	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/internal/domain/timeline"
	"github.com/okian/pitwall/internal/domain/types"
	"github.com/okian/pitwall/internal/domain/weather"
	"github.com/okian/pitwall/pkg/logger"
	"github.com/okian/pitwall/pkg/metrics"
)

// Service executes one pipeline run per call to Run.
type Service struct {
	cfg     *config.Config
	writer  *sink.Writer
	weather weather.Source
	logger  logger.Logger
}

// Result summarizes a completed run.
type Result struct {
	Manifest     sink.Manifest
	ManifestPath string
}

// New constructs a Service for cfg.
func New(cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		cfg:    cfg,
		logger: logger.Get().Named("service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.writer == nil {
		s.writer = sink.NewWriter(sink.WithS3Endpoint(cfg.S3Endpoint))
	}
	return s
}

// Run executes the pipeline. Any schema violation aborts the run before
// output is written.
func (s *Service) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	defer func() {
		metrics.UpdateRunDuration(float64(time.Since(start).Milliseconds()))
	}()

	if err := s.cfg.Validate(); err != nil {
		return Result{}, err
	}
	if s.cfg.Mode == config.ModeWeather {
		return s.runWeather(ctx, start)
	}
	mode := features.Mode(s.cfg.Mode)
	s.logger.Info(ctx, "run started",
		logger.String("mode", s.cfg.Mode),
		logger.String("data_dir", s.cfg.DataDir),
		logger.String("weather", s.cfg.WeatherSource))

	var loaderOpts []source.Option
	if s.weather == nil && s.cfg.WeatherSource == config.WeatherTable {
		loaderOpts = append(loaderOpts, source.WithWeatherTable(s.cfg.WeatherTable))
	}
	archive, err := source.NewLoader(s.cfg.DataDir, loaderOpts...).Load(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load archive: %w", err)
	}

	src, closeWeather, err := s.weatherSource(ctx, archive.Weather)
	if err != nil {
		return Result{}, err
	}
	defer closeWeather()

	engine, err := features.NewEngine(archive,
		features.WithCutoff(s.cfg.ProcessFromYear),
		features.WithDefaultLapsRace(s.cfg.DefaultLapsRace),
		features.WithWeather(src),
	)
	if err != nil {
		return Result{}, fmt.Errorf("build indices: %w", err)
	}

	races, err := s.selectRaces(engine)
	if err != nil {
		return Result{}, err
	}

	pool := worker.NewPool(s.cfg.WorkerCount)
	batches, err := pool.Run(ctx, races, engine, mode)
	if err != nil {
		return Result{}, fmt.Errorf("assemble: %w", err)
	}
	rows := s.flatten(ctx, batches)

	data, err := sink.EncodeCSV(rows, mode.WithRaceTime())
	if err != nil {
		return Result{}, fmt.Errorf("encode output: %w", err)
	}
	if err := s.writer.Write(ctx, s.cfg.Output, data); err != nil {
		return Result{}, err
	}

	m := sink.NewManifest(s.cfg.Mode, s.cfg.Output, types.Columns(mode.WithRaceTime()), len(rows), len(races), data)
	if mode == features.Prediction {
		m.RaceID = s.cfg.RaceID
	}
	manifestPath, err := s.writeManifest(ctx, m)
	if err != nil {
		return Result{}, err
	}

	s.logger.Info(ctx, "run finished",
		logger.String("run_id", m.RunID),
		logger.Int("races", len(races)),
		logger.Int("rows", len(rows)),
		logger.String("output", s.cfg.Output),
		logger.String("elapsed", time.Since(start).String()))
	return Result{Manifest: m, ManifestPath: manifestPath}, nil
}

// writeManifest stores m at the configured manifest path, or next to its output.
func (s *Service) writeManifest(ctx context.Context, m sink.Manifest) (string, error) {
	path := s.cfg.Manifest
	if path == "" {
		path = m.Output + ".manifest.yaml"
	}
	encoded, err := m.Encode()
	if err != nil {
		return "", err
	}
	if err := s.writer.Write(ctx, path, encoded); err != nil {
		return "", err
	}
	return path, nil
}

// runWeather looks up the weather of every indexed race from season MinYear
// and writes one row per race to DataDir/WeatherTable. Races without a
// circuit or without data keep blank aggregates.
func (s *Service) runWeather(ctx context.Context, start time.Time) (Result, error) {
	archive, err := source.NewLoader(s.cfg.DataDir).Load(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load archive: %w", err)
	}
	idx, err := timeline.Build(archive.Races, s.cfg.ProcessFromYear)
	if err != nil {
		return Result{}, fmt.Errorf("build indices: %w", err)
	}
	var races []model.RaceEvent
	for _, r := range idx.Races() {
		if r.Season >= s.cfg.MinYear {
			races = append(races, r)
		}
	}
	if len(races) == 0 {
		return Result{}, fmt.Errorf("%w: no race from season %d", ErrNoRaces, s.cfg.MinYear)
	}
	circuits := make(map[int]model.Circuit, len(archive.Circuits))
	for _, c := range archive.Circuits {
		if _, dup := circuits[c.CircuitID]; !dup {
			circuits[c.CircuitID] = c
		}
	}

	src, closeWeather, err := s.liveSource(ctx)
	if err != nil {
		return Result{}, err
	}
	defer closeWeather()

	rows := make([]types.WeatherRow, len(races))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, s.cfg.WorkerCount))
	for i, race := range races {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c, ok := circuits[race.CircuitID]
			row := types.WeatherRow{
				RaceID: race.RaceID, CircuitID: race.CircuitID,
				Latitude: c.Latitude, Longitude: c.Longitude, Absent: true,
			}
			if ok {
				if w, found := src.RaceWeather(gctx, race, c); found {
					row.Weather, row.Absent = w, false
				}
			}
			rows[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("fetch weather: %w", err)
	}

	absent := 0
	for _, r := range rows {
		if r.Absent {
			absent++
		}
	}
	data, err := sink.EncodeWeatherCSV(rows)
	if err != nil {
		return Result{}, fmt.Errorf("encode output: %w", err)
	}
	dest := filepath.Join(s.cfg.DataDir, s.cfg.WeatherTable)
	if err := s.writer.Write(ctx, dest, data); err != nil {
		return Result{}, err
	}
	m := sink.NewManifest(s.cfg.Mode, dest, types.WeatherColumns, len(rows), len(races), data)
	manifestPath, err := s.writeManifest(ctx, m)
	if err != nil {
		return Result{}, err
	}

	s.logger.Info(ctx, "weather table written",
		logger.String("run_id", m.RunID),
		logger.Int("races", len(races)),
		logger.Int("absent", absent),
		logger.String("output", dest),
		logger.String("elapsed", time.Since(start).String()))
	return Result{Manifest: m, ManifestPath: manifestPath}, nil
}

func (s *Service) selectRaces(engine *features.Engine) ([]int, error) {
	if s.cfg.Mode == config.ModePrediction {
		if _, err := engine.Timeline().MustSequence(s.cfg.RaceID); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTargetRace, err)
		}
		return []int{s.cfg.RaceID}, nil
	}
	races := engine.TrainingRaces(s.cfg.MinYear)
	if len(races) == 0 {
		return nil, fmt.Errorf("%w: no qualifying data from season %d", ErrNoRaces, s.cfg.MinYear)
	}
	return races, nil
}

// flatten concatenates the per-race batches, which are already in sequence
// order, and drops any row whose (race, driver) was already emitted.
func (s *Service) flatten(ctx context.Context, batches [][]types.FeatureRow) []types.FeatureRow {
	n := 0
	for _, b := range batches {
		n += len(b)
	}
	grain := dedupe.NewInMemoryDeduper(
		dedupe.WithCapacity(n),
		dedupe.WithOnDuplicate(func(ctx context.Context, key string) {
			metrics.RecordRowDropped("duplicate_row")
			s.logger.Warn(ctx, "duplicate output row dropped", logger.String("key", key))
		}),
	)
	out := make([]types.FeatureRow, 0, n)
	for _, b := range batches {
		for _, r := range b {
			if grain.SeenAndRecord(ctx, r.Key()) {
				continue
			}
			out = append(out, r)
		}
	}
	return out
}

// weatherSource builds the configured source. The returned func releases
// any resource it opened.
func (s *Service) weatherSource(ctx context.Context, table []model.WeatherRecord) (weather.Source, func(), error) {
	nop := func() {}
	if s.weather != nil {
		return s.weather, nop, nil
	}
	switch s.cfg.WeatherSource {
	case config.WeatherTable:
		return weather.NewTable(table), nop, nil
	case config.WeatherAPI:
		return s.liveSource(ctx)
	default:
		return weather.None{}, nop, nil
	}
}

// liveSource queries the weather API through the indefinite cache and the
// call budget. An injected source takes precedence.
func (s *Service) liveSource(ctx context.Context) (weather.Source, func(), error) {
	nop := func() {}
	if s.weather != nil {
		return s.weather, nop, nil
	}
	client := openmeteo.NewClient(s.cfg.WeatherAPIURL,
		openmeteo.WithRetries(s.cfg.WeatherRetries),
		openmeteo.WithBackoff(time.Duration(s.cfg.WeatherBackoffMS)*time.Millisecond))
	fetcherOpts := []weather.FetcherOption{weather.WithCallBudget(s.cfg.WeatherCallBudget)}
	closer := nop
	if s.cfg.WeatherCachePath != "" {
		cache, err := repository.OpenWeatherCache(ctx, s.cfg.WeatherCachePath)
		if err != nil {
			return nil, nil, err
		}
		fetcherOpts = append(fetcherOpts, weather.WithCache(cache))
		closer = func() {
			if err := cache.Close(); err != nil {
				s.logger.Warn(ctx, "weather cache close failed", logger.Error(err))
			}
		}
	}
	return weather.NewLive(weather.NewCachedFetcher(client, fetcherOpts...), s.logger), closer, nil
}
