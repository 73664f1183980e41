// Package source reads the archive tables from a directory of CSV files.
//
// Every table is addressed by header name. A missing file or required column
// is a schema violation. Rows whose identity columns cannot be parsed are
// dropped and counted; other unparsable values read as null.
package source

import (
	"context"
	"path/filepath"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/pkg/logger"
	"github.com/okian/pitwall/pkg/metrics"
)

// Table file names.
const (
	RacesFile                = "races.csv"
	CircuitsFile             = "circuits.csv"
	DriversFile              = "drivers.csv"
	ConstructorsFile         = "constructors.csv"
	ResultsFile              = "results.csv"
	SprintResultsFile        = "sprint_results.csv"
	QualifyingFile           = "qualifying.csv"
	DriverStandingsFile      = "driver_standings.csv"
	ConstructorStandingsFile = "constructor_standings.csv"
	StatusFile               = "status.csv"
)

// Loader reads one archive directory.
type Loader struct {
	dir          string
	weatherTable string
	logger       logger.Logger
}

// Option applies a configuration option to the Loader.
type Option func(*Loader)

// WithWeatherTable also loads the pre-computed weather table with this file name.
func WithWeatherTable(name string) Option {
	return func(l *Loader) {
		l.weatherTable = name
	}
}

// WithLogger sets a custom logger for the loader.
func WithLogger(log logger.Logger) Option {
	return func(l *Loader) {
		if log != nil {
			l.logger = log
		}
	}
}

// NewLoader creates a loader for dir.
func NewLoader(dir string, opts ...Option) *Loader {
	l := &Loader{
		dir:    dir,
		logger: logger.Get().Named("source"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type tableDef struct {
	file     string
	required []string
	parse    func(t *table, a *model.Archive, dropped *atomic.Int64)
}

func (l *Loader) tables() []tableDef {
	defs := []tableDef{
		{RacesFile, []string{"raceId", "year", "round", "circuitId", "date"}, parseRaces},
		{CircuitsFile, []string{"circuitId", "lat", "lng"}, parseCircuits},
		{DriversFile, []string{"driverId", "dob"}, parseDrivers},
		{ConstructorsFile, []string{"constructorId"}, parseConstructors},
		{ResultsFile, resultColumns, func(t *table, a *model.Archive, d *atomic.Int64) {
			a.Results = parseResults(t, d)
		}},
		{SprintResultsFile, []string{"raceId", "driverId", "constructorId"}, func(t *table, a *model.Archive, d *atomic.Int64) {
			a.SprintResults = parseResults(t, d)
		}},
		{QualifyingFile, []string{"raceId", "driverId", "constructorId", "q1", "q2", "q3"}, parseQualifying},
		{DriverStandingsFile, []string{"raceId", "driverId", "points", "position"}, func(t *table, a *model.Archive, d *atomic.Int64) {
			a.DriverStandings = parseStandings(t, "driverId", d)
		}},
		{ConstructorStandingsFile, []string{"raceId", "constructorId", "points"}, func(t *table, a *model.Archive, d *atomic.Int64) {
			a.ConstructorStandings = parseStandings(t, "constructorId", d)
		}},
		{StatusFile, []string{"statusId", "status"}, parseStatus},
	}
	if l.weatherTable != "" {
		defs = append(defs, tableDef{l.weatherTable, weatherColumns, parseWeather})
	}
	return defs
}

// Load reads every table concurrently. The first schema violation cancels the rest.
func (l *Loader) Load(ctx context.Context) (*model.Archive, error) {
	defs := l.tables()
	tables := make([]*table, len(defs))

	g, gctx := errgroup.WithContext(ctx)
	for i, s := range defs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			t, err := readTable(filepath.Join(l.dir, s.file), s.file, s.required)
			if err != nil {
				metrics.RecordErrorByComponent("source", "schema")
				return err
			}
			tables[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	a := &model.Archive{}
	for i, s := range defs {
		var dropped atomic.Int64
		s.parse(tables[i], a, &dropped)
		if n := dropped.Load(); n > 0 {
			metrics.RecordRowsDropped("unparsable_key", int(n))
			l.logger.Warn(ctx, "rows with unparsable keys dropped",
				logger.String("table", s.file), logger.Int("rows", int(n)))
		}
		l.logger.Debug(ctx, "table loaded", logger.String("table", s.file), logger.Int("rows", len(tables[i].rows)))
	}

	l.logger.Info(ctx, "archive loaded",
		logger.String("dir", l.dir),
		logger.Int("races", len(a.Races)),
		logger.Int("results", len(a.Results)),
		logger.Int("qualifying", len(a.Qualifying)))
	return a, nil
}

var resultColumns = []string{"raceId", "driverId", "constructorId", "grid", "position", "laps", "milliseconds", "statusId"}

var weatherColumns = []string{
	"raceId", "avg_wind_speed_100m", "max_wind_speed_100m", "avg_temperature_2m",
	"min_temperature_2m", "max_temperature_2m", "avg_humidity", "total_precipitation",
	"avg_pressure_msl", "avg_surface_pressure",
}

func parseRaces(t *table, a *model.Archive, dropped *atomic.Int64) {
	t.each(func(r row) {
		k, ok := r.keys("raceId", "circuitId", "year")
		if !ok {
			dropped.Add(1)
			return
		}
		round, _ := r.intVal("round")
		a.Races = append(a.Races, model.RaceEvent{
			RaceID: k[0], CircuitID: k[1], Season: k[2], Round: round, Date: r.date("date"),
		})
	})
}

func parseCircuits(t *table, a *model.Archive, dropped *atomic.Int64) {
	curated := t.has("urban")
	t.each(func(r row) {
		id, ok := r.intVal("circuitId")
		if !ok {
			dropped.Add(1)
			return
		}
		urban := IsStreetCircuit(id)
		if curated {
			urban = r.flag("urban")
		}
		a.Circuits = append(a.Circuits, model.Circuit{
			CircuitID:     id,
			Latitude:      r.floatVal("lat"),
			Longitude:     r.floatVal("lng"),
			LapDistanceKM: r.floatVal("lap_distance_km"),
			Urban:         urban,
		})
	})
}

func parseDrivers(t *table, a *model.Archive, dropped *atomic.Int64) {
	t.each(func(r row) {
		id, ok := r.intVal("driverId")
		if !ok {
			dropped.Add(1)
			return
		}
		a.Drivers = append(a.Drivers, model.Driver{DriverID: id, DateOfBirth: r.date("dob")})
	})
}

func parseConstructors(t *table, a *model.Archive, dropped *atomic.Int64) {
	t.each(func(r row) {
		id, ok := r.intVal("constructorId")
		if !ok {
			dropped.Add(1)
			return
		}
		a.Constructors = append(a.Constructors, model.Constructor{ConstructorID: id})
	})
}

func parseResults(t *table, dropped *atomic.Int64) []model.ResultRecord {
	out := make([]model.ResultRecord, 0, len(t.rows))
	t.each(func(r row) {
		k, ok := r.keys("raceId", "driverId", "constructorId")
		if !ok {
			dropped.Add(1)
			return
		}
		laps, _ := r.intVal("laps")
		status, _ := r.intVal("statusId")
		out = append(out, model.ResultRecord{
			RaceID:        k[0],
			DriverID:      k[1],
			ConstructorID: k[2],
			Grid:          r.intPtr("grid"),
			Position:      r.intPtr("position"),
			Laps:          laps,
			Milliseconds:  r.int64Ptr("milliseconds"),
			StatusID:      status,
		})
	})
	return out
}

func parseQualifying(t *table, a *model.Archive, dropped *atomic.Int64) {
	a.Qualifying = make([]model.QualifyingRecord, 0, len(t.rows))
	t.each(func(r row) {
		k, ok := r.keys("raceId", "driverId", "constructorId")
		if !ok {
			dropped.Add(1)
			return
		}
		a.Qualifying = append(a.Qualifying, model.QualifyingRecord{
			RaceID: k[0], DriverID: k[1], ConstructorID: k[2],
			Q1: r.str("q1"), Q2: r.str("q2"), Q3: r.str("q3"),
		})
	})
}

func parseStandings(t *table, entityCol string, dropped *atomic.Int64) []model.StandingSnapshot {
	out := make([]model.StandingSnapshot, 0, len(t.rows))
	t.each(func(r row) {
		k, ok := r.keys("raceId", entityCol)
		if !ok {
			dropped.Add(1)
			return
		}
		out = append(out, model.StandingSnapshot{
			RaceID: k[0], EntityID: k[1], Points: r.floatVal("points"), Position: r.intPtr("position"),
		})
	})
	return out
}

func parseStatus(t *table, a *model.Archive, dropped *atomic.Int64) {
	a.Statuses = make(map[int]string, len(t.rows))
	t.each(func(r row) {
		id, ok := r.intVal("statusId")
		if !ok {
			dropped.Add(1)
			return
		}
		a.Statuses[id] = r.str("status")
	})
}

// parseWeather skips rows whose aggregates are all empty; such races read
// as having no weather.
func parseWeather(t *table, a *model.Archive, dropped *atomic.Int64) {
	t.each(func(r row) {
		id, ok := r.intVal("raceId")
		if !ok {
			dropped.Add(1)
			return
		}
		if r.blank(weatherColumns[1:]...) {
			return
		}
		a.Weather = append(a.Weather, model.WeatherRecord{
			RaceID: id,
			Weather: model.Weather{
				AvgWindSpeed:       r.floatVal("avg_wind_speed_100m"),
				MaxWindSpeed:       r.floatVal("max_wind_speed_100m"),
				AvgTemperature:     r.floatVal("avg_temperature_2m"),
				MinTemperature:     r.floatVal("min_temperature_2m"),
				MaxTemperature:     r.floatVal("max_temperature_2m"),
				AvgHumidity:        r.floatVal("avg_humidity"),
				TotalPrecipitation: r.floatVal("total_precipitation"),
				AvgPressureMSL:     r.floatVal("avg_pressure_msl"),
				AvgSurfacePressure: r.floatVal("avg_surface_pressure"),
			},
		})
	})
}
