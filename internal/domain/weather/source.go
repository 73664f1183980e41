package weather

import (
	"context"
	"errors"

	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/pkg/logger"
	"github.com/okian/pitwall/pkg/metrics"
)

// Source provides the weather of a race. ok is false when no data is
// available, in which case every weather column is 0.
type Source interface {
	RaceWeather(ctx context.Context, race model.RaceEvent, circuit model.Circuit) (w model.Weather, ok bool)
}

// None never has data.
type None struct{}

func (None) RaceWeather(context.Context, model.RaceEvent, model.Circuit) (model.Weather, bool) {
	return model.Weather{}, false
}

// Table serves the pre-computed weather table keyed by raceId.
type Table struct {
	byRace map[int]model.Weather
}

// NewTable indexes the records; a repeated raceId keeps the first row.
// Values are rounded to two decimals.
func NewTable(records []model.WeatherRecord) *Table {
	t := &Table{byRace: make(map[int]model.Weather, len(records))}
	for _, r := range records {
		if _, dup := t.byRace[r.RaceID]; dup {
			continue
		}
		w := r.Weather
		t.byRace[r.RaceID] = model.Weather{
			AvgWindSpeed:       round2(w.AvgWindSpeed),
			MaxWindSpeed:       round2(w.MaxWindSpeed),
			AvgTemperature:     round2(w.AvgTemperature),
			MinTemperature:     round2(w.MinTemperature),
			MaxTemperature:     round2(w.MaxTemperature),
			AvgHumidity:        round2(w.AvgHumidity),
			TotalPrecipitation: round2(w.TotalPrecipitation),
			AvgPressureMSL:     round2(w.AvgPressureMSL),
			AvgSurfacePressure: round2(w.AvgSurfacePressure),
		}
	}
	return t
}

func (t *Table) RaceWeather(_ context.Context, race model.RaceEvent, _ model.Circuit) (model.Weather, bool) {
	w, ok := t.byRace[race.RaceID]
	if ok {
		metrics.RecordWeatherFetch("ok")
	} else {
		metrics.RecordWeatherFetch("absent")
	}
	return w, ok
}

// Live looks weather up by circuit coordinates and race date. Errors are
// logged and reported as absent data.
type Live struct {
	fetcher Fetcher
	log     logger.Logger
}

// NewLive wraps a fetcher.
func NewLive(f Fetcher, log logger.Logger) *Live {
	if log == nil {
		log = logger.Nop()
	}
	return &Live{fetcher: f, log: log.Named("weather")}
}

func (l *Live) RaceWeather(ctx context.Context, race model.RaceEvent, circuit model.Circuit) (model.Weather, bool) {
	w, err := l.fetcher.FetchDaily(ctx, circuit.Latitude, circuit.Longitude, race.Date)
	switch {
	case err == nil:
		metrics.RecordWeatherFetch("ok")
		return w, true
	case errors.Is(err, ErrBudgetExhausted):
		metrics.RecordWeatherFetch("budget_exhausted")
	case errors.Is(err, ErrNoData):
		metrics.RecordWeatherFetch("absent")
	default:
		metrics.RecordWeatherFetch("error")
		metrics.RecordErrorByComponent("weather", "fetch")
	}
	l.log.Warn(ctx, "weather unavailable, defaulting to zero",
		logger.Int("race_id", race.RaceID),
		logger.Int("circuit_id", circuit.CircuitID),
		logger.Error(err))
	return model.Weather{}, false
}
