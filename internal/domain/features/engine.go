// Package features assembles one feature row per (race, driver) from the
// archive, using only information available before the race.
//
// NewEngine builds every lookup index once; AssembleRace only reads them and
// may be called concurrently for different races.
package features

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/okian/pitwall/internal/domain/dedupe"
	"github.com/okian/pitwall/internal/domain/history"
	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/internal/domain/prevrace"
	"github.com/okian/pitwall/internal/domain/qualifying"
	"github.com/okian/pitwall/internal/domain/racetime"
	"github.com/okian/pitwall/internal/domain/registry"
	"github.com/okian/pitwall/internal/domain/standings"
	"github.com/okian/pitwall/internal/domain/timeline"
	"github.com/okian/pitwall/internal/domain/types"
	"github.com/okian/pitwall/internal/domain/weather"
	"github.com/okian/pitwall/pkg/logger"
	"github.com/okian/pitwall/pkg/metrics"
)

// Mode selects which columns come from the target race itself.
type Mode string

const (
	// Training reads the target race's classification for GRID, LAPS RACE and MS RACE.
	Training Mode = "training"
	// Prediction never reads the target race's results.
	Prediction Mode = "prediction"
)

// WithRaceTime reports whether the mode emits MS RACE.
func (m Mode) WithRaceTime() bool { return m == Training }

const (
	defaultCutoff   = 2001
	defaultLapsRace = 58
	daysPerYear     = 365.25
)

// Engine holds the immutable indices of one archive.
type Engine struct {
	cutoff      int
	defaultLaps int
	weather     weather.Source
	logger      logger.Logger

	idx                  *timeline.Index
	registry             *registry.Registry
	driverStandings      *standings.Resolver
	constructorStandings *standings.Resolver
	wins                 *history.Aggregator
	results              *prevrace.Index

	circuits   map[int]model.Circuit
	qualifying map[int][]model.QualifyingRecord
	sprints    map[int]struct{}
	statuses   map[int]string
}

// NewEngine builds the indices. It fails only on structurally broken input.
func NewEngine(a *model.Archive, opts ...Option) (*Engine, error) {
	e := &Engine{
		cutoff:      defaultCutoff,
		defaultLaps: defaultLapsRace,
		weather:     weather.None{},
		logger:      logger.Get().Named("features"),
	}
	for _, opt := range opts {
		opt(e)
	}

	start := time.Now()
	idx, err := timeline.Build(a.Races, e.cutoff)
	if err != nil {
		return nil, fmt.Errorf("build timeline: %w", err)
	}
	e.idx = idx
	e.registry = registry.New(idx, a.Drivers, a.Constructors, a.Results)
	e.driverStandings = standings.New(idx, a.DriverStandings)
	e.constructorStandings = standings.New(idx, a.ConstructorStandings)
	e.wins = history.New(idx, a.Results)
	e.results = prevrace.New(idx, a.Results)

	e.circuits = make(map[int]model.Circuit, len(a.Circuits))
	for _, c := range a.Circuits {
		if _, dup := e.circuits[c.CircuitID]; !dup {
			e.circuits[c.CircuitID] = c
		}
	}
	e.qualifying = make(map[int][]model.QualifyingRecord)
	for _, q := range a.Qualifying {
		if idx.Contains(q.RaceID) {
			e.qualifying[q.RaceID] = append(e.qualifying[q.RaceID], q)
		}
	}
	e.sprints = make(map[int]struct{})
	for _, s := range a.SprintResults {
		e.sprints[s.RaceID] = struct{}{}
	}
	e.statuses = a.Statuses
	if e.statuses == nil {
		e.statuses = map[int]string{}
	}

	elapsed := time.Since(start)
	metrics.RecordIndexBuild(float64(elapsed.Milliseconds()))
	e.logger.Info(context.Background(), "indices built",
		logger.Int("races", idx.Len()),
		logger.Int("cutoff", idx.Cutoff()),
		logger.String("elapsed", elapsed.String()))
	return e, nil
}

// Timeline exposes the race index.
func (e *Engine) Timeline() *timeline.Index { return e.idx }

// TrainingRaces lists indexed races of season >= minSeason that have
// qualifying rows, in sequence order.
func (e *Engine) TrainingRaces(minSeason int) []int {
	var out []int
	for _, r := range e.idx.Races() {
		if r.Season < minSeason || len(e.qualifying[r.RaceID]) == 0 {
			continue
		}
		out = append(out, r.RaceID)
	}
	return out
}

// raceContext holds the per-race values shared by every row.
type raceContext struct {
	mode     Mode
	seq      int
	race     model.RaceEvent
	circuit  model.Circuit
	weather  model.Weather
	lapsRace int
	sprint   int
	winnerMS *int64
}

// AssembleRace builds the rows of one race, ordered by driverId.
func (e *Engine) AssembleRace(ctx context.Context, raceID int, mode Mode) ([]types.FeatureRow, error) {
	if mode != Training && mode != Prediction {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	seq, ok := e.idx.Sequence(raceID)
	if !ok {
		return nil, fmt.Errorf("%w: raceId %d (cutoff %d)", ErrUnknownRace, raceID, e.idx.Cutoff())
	}

	rc := e.raceContext(ctx, seq, mode)
	entries := e.entries(ctx, raceID)

	best := make([]int64, len(entries))
	times := make([]qualifying.Times, len(entries))
	for i, q := range entries {
		times[i] = qualifying.Normalize(q)
		best[i] = times[i].Best
	}
	ranks := qualifying.GridRanks(best)

	rows := make([]types.FeatureRow, 0, len(entries))
	for i, q := range entries {
		rows = append(rows, e.row(ctx, rc, q, times[i], ranks[i]))
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].DriverID < rows[j].DriverID })

	metrics.RecordRaceAssembled(len(rows))
	return rows, nil
}

func (e *Engine) raceContext(ctx context.Context, seq int, mode Mode) raceContext {
	race, _ := e.idx.Race(seq)
	rc := raceContext{mode: mode, seq: seq, race: race}

	circuit, ok := e.circuits[race.CircuitID]
	if !ok {
		e.note(ctx, "circuit_missing", logger.Int("race_id", race.RaceID), logger.Int("circuit_id", race.CircuitID))
		circuit = model.Circuit{CircuitID: race.CircuitID}
	}
	rc.circuit = circuit

	if w, ok := e.weather.RaceWeather(ctx, race, circuit); ok {
		rc.weather = w
	}

	if _, ok := e.sprints[race.RaceID]; ok {
		rc.sprint = 1
	}

	if mode == Training {
		if !e.results.HasResults(seq) {
			e.note(ctx, "results_missing", logger.Int("race_id", race.RaceID))
		}
		if w, ok := e.results.Winner(seq); ok {
			rc.winnerMS = w.Milliseconds
			rc.lapsRace = w.Laps
		}
	}
	if rc.lapsRace <= 0 {
		if w, ok := e.results.Winner(seq - 1); ok && w.Laps > 0 {
			rc.lapsRace = w.Laps
		} else {
			rc.lapsRace = e.defaultLaps
			metrics.RecordSentinel("LAPS RACE")
		}
	}
	return rc
}

// entries returns the race's qualifying rows with repeated drivers dropped,
// keeping the first occurrence. Entrants missing from the driver or
// constructor tables are kept and noted.
func (e *Engine) entries(ctx context.Context, raceID int) []model.QualifyingRecord {
	all := e.qualifying[raceID]
	grain := dedupe.NewInMemoryDeduper(
		dedupe.WithCapacity(len(all)),
		dedupe.WithOnDuplicate(func(ctx context.Context, key string) {
			metrics.RecordRowDropped("duplicate_qualifying")
			e.logger.Warn(ctx, "duplicate qualifying row dropped", logger.String("key", key))
		}),
	)
	out := make([]model.QualifyingRecord, 0, len(all))
	for _, q := range all {
		if grain.SeenAndRecord(ctx, model.RowKey(q.RaceID, q.DriverID)) {
			continue
		}
		if !e.registry.HasDriver(q.DriverID) {
			e.note(ctx, "unknown_driver", logger.Int("race_id", raceID), logger.Int("driver_id", q.DriverID))
		}
		if !e.registry.HasConstructor(q.ConstructorID) {
			e.note(ctx, "unknown_constructor", logger.Int("race_id", raceID), logger.Int("constructor_id", q.ConstructorID))
		}
		out = append(out, q)
	}
	return out
}

func (e *Engine) row(ctx context.Context, rc raceContext, q model.QualifyingRecord, t qualifying.Times, rank int) types.FeatureRow {
	season := rc.race.Season
	driver, constructor := q.DriverID, q.ConstructorID

	row := types.FeatureRow{
		RaceID:        rc.race.RaceID,
		DriverID:      driver,
		ConstructorID: constructor,
		CircuitID:     rc.race.CircuitID,
		Round:         rc.race.Round,
		Year:          season,
		LapDistanceKM: rc.circuit.LapDistanceKM,
		LapsRace:      rc.lapsRace,
		Weather:       rc.weather,
		Sprint:        rc.sprint,

		DriverLastPosition:    e.results.DriverLastPosition(driver, rc.seq),
		WinsSeason:            e.wins.WinsSeason(driver, rc.seq, season),
		WinsCareer:            e.wins.WinsCareer(driver, rc.seq),
		PointsBeforeGP:        e.driverStandings.Before(driver, rc.seq).Points,
		YearsOfExperience:     e.experience(driver, rc.seq, season),
		Age:                   e.age(driver, rc.race.Date),
		ConstructorWinsSeason: e.wins.ConstructorWinsSeason(constructor, rc.seq, season),

		ConstructorPointsBeforeGP: e.constructorStandings.Before(constructor, rc.seq).Points,

		Q1:    t.Q1,
		Q2:    t.Q2,
		Q3:    t.Q3,
		BestQ: t.Best,
	}
	if rc.circuit.Urban {
		row.Urban = 1
	}
	row.Q1Valid, row.Q2Valid, row.Q3Valid = t.Flags()

	mate := e.results.TeammateLastPosition(driver, constructor, rc.seq)
	if mate.Ambiguous() {
		e.note(ctx, "teammate_ambiguous",
			logger.Int("race_id", row.RaceID),
			logger.Int("driver_id", driver),
			logger.Int("constructor_id", constructor),
			logger.Int("candidates", mate.Candidates),
			logger.Int("chosen", mate.DriverID))
	}
	row.MateLastPosition = mate.Position

	switch rc.mode {
	case Training:
		res, ok := e.results.Result(rc.seq, driver)
		var classified *int
		if ok {
			classified = res.Grid
		}
		row.Grid = qualifying.ResolveGrid(classified, rank)
		row.MSRace = e.raceTime(res, ok, rc.winnerMS, t)
		row.RaceValid = 0
		if racetime.Valid(row.MSRace) {
			row.RaceValid = 1
		}
	case Prediction:
		row.Grid = qualifying.ResolveGrid(nil, rank)
		row.RaceValid = 1
	}

	recordSentinels(row)
	return row
}

func (e *Engine) raceTime(res model.ResultRecord, ok bool, winnerMS *int64, t qualifying.Times) int64 {
	if !ok {
		return racetime.UnusableMS
	}
	ms, outcome := racetime.Resolve(racetime.Input{
		Recorded: res.Milliseconds,
		Status:   e.statuses[res.StatusID],
		WinnerMS: winnerMS,
		BestQ:    t.Best,
		HasQPace: t.HasTime(),
	})
	if outcome == racetime.Imputed {
		metrics.RecordDataQuality("race_time_imputed")
	}
	return ms
}

// experience counts seasons since debut, only when the debut precedes the race.
func (e *Engine) experience(driverID, seq, season int) int {
	debutSeq, debutSeason, ok := e.registry.Debut(driverID)
	if !ok || debutSeq >= seq {
		return 0
	}
	return season - debutSeason
}

func (e *Engine) age(driverID int, raceDate time.Time) int {
	dob, ok := e.registry.DateOfBirth(driverID)
	if !ok || raceDate.IsZero() {
		return 0
	}
	days := int(raceDate.Sub(dob).Hours() / 24)
	if days <= 0 {
		return 0
	}
	return int(math.Floor(float64(days) / daysPerYear))
}

func (e *Engine) note(ctx context.Context, kind string, fields ...logger.Field) {
	metrics.RecordDataQuality(kind)
	e.logger.Debug(ctx, "data quality note", append(fields, logger.String("kind", kind))...)
}

func recordSentinels(row types.FeatureRow) {
	if row.DriverLastPosition == prevrace.NoPosition {
		metrics.RecordSentinel("DRIVER LAST POSITION")
	}
	if row.MateLastPosition == prevrace.NoPosition {
		metrics.RecordSentinel("MATE LAST POSITION")
	}
	if row.Grid == qualifying.FallbackGrid {
		metrics.RecordSentinel("GRID")
	}
	if row.Q1Valid == 0 {
		metrics.RecordSentinel("Q1")
	}
	if row.Q2Valid == 0 {
		metrics.RecordSentinel("Q2")
	}
	if row.Q3Valid == 0 {
		metrics.RecordSentinel("Q3")
	}
	if row.RaceValid == 0 {
		metrics.RecordSentinel("MS RACE")
	}
}
