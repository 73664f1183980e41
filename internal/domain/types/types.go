// Package types contains the assembled output record and its published schema.
package types

import (
	"strconv"

	"github.com/okian/pitwall/internal/domain/model"
)

// Published column names, in output order.
var baseColumns = []string{
	"RACEID", "DRIVERID", "CONSTRUCTORID", "CIRCUITID", "ROUND", "YEAR",
	"LAP DISTANCE KM", "LAPS RACE", "URBAN",
	"AVG WIND SPEED", "MAX WIND SPEED", "AVG TEMPERATURE", "MIN TEMPERATURE", "MAX TEMPERATURE",
	"AVG HUMIDITY", "PRECIPITATION", "AVG PRESSURE MSL", "AVG SURFACE PRESSURE",
	"DRIVER LAST POSITION", "WINS SEASON", "WINS CAREER", "POINTS BEFORE GP",
	"YEARS OF EXPERIENCE", "AGE", "MATE LAST POSITION",
	"CONSTRUCTOR POINTS BEFORE GP", "CONSTRUCTOR WINS SEASON",
	"Q1", "Q2", "Q3", "BEST Q", "GRID",
	"Q1 VALID", "Q2 VALID", "Q3 VALID", "RACE VALID", "SPRINT Y/N",
}

// RaceTimeColumn is appended in training mode.
const RaceTimeColumn = "MS RACE"

// Columns returns the output header. The slice is a fresh copy.
func Columns(withRaceTime bool) []string {
	out := make([]string, 0, len(baseColumns)+1)
	out = append(out, baseColumns...)
	if withRaceTime {
		out = append(out, RaceTimeColumn)
	}
	return out
}

// FeatureRow is one (race, driver) feature vector.
type FeatureRow struct {
	RaceID        int
	DriverID      int
	ConstructorID int
	CircuitID     int
	Round         int
	Year          int
	LapDistanceKM float64
	LapsRace      int
	Urban         int

	Weather model.Weather

	DriverLastPosition        int
	WinsSeason                int
	WinsCareer                int
	PointsBeforeGP            float64
	YearsOfExperience         int
	Age                       int
	MateLastPosition          int
	ConstructorPointsBeforeGP float64
	ConstructorWinsSeason     int

	Q1    int64
	Q2    int64
	Q3    int64
	BestQ int64
	Grid  int

	Q1Valid   int
	Q2Valid   int
	Q3Valid   int
	RaceValid int
	Sprint    int

	// MSRace is only emitted in training mode.
	MSRace int64
}

// Key is the grain key of the row.
func (r FeatureRow) Key() string {
	return model.RowKey(r.RaceID, r.DriverID)
}

// Record renders the row in column order. Floats use the shortest exact
// representation so repeated runs produce identical bytes.
func (r FeatureRow) Record(withRaceTime bool) []string {
	w := r.Weather
	out := []string{
		itoa(r.RaceID), itoa(r.DriverID), itoa(r.ConstructorID), itoa(r.CircuitID),
		itoa(r.Round), itoa(r.Year), ftoa(r.LapDistanceKM), itoa(r.LapsRace), itoa(r.Urban),
		ftoa(w.AvgWindSpeed), ftoa(w.MaxWindSpeed), ftoa(w.AvgTemperature),
		ftoa(w.MinTemperature), ftoa(w.MaxTemperature), ftoa(w.AvgHumidity),
		ftoa(w.TotalPrecipitation), ftoa(w.AvgPressureMSL), ftoa(w.AvgSurfacePressure),
		itoa(r.DriverLastPosition), itoa(r.WinsSeason), itoa(r.WinsCareer), ftoa(r.PointsBeforeGP),
		itoa(r.YearsOfExperience), itoa(r.Age), itoa(r.MateLastPosition),
		ftoa(r.ConstructorPointsBeforeGP), itoa(r.ConstructorWinsSeason),
		i64toa(r.Q1), i64toa(r.Q2), i64toa(r.Q3), i64toa(r.BestQ), itoa(r.Grid),
		itoa(r.Q1Valid), itoa(r.Q2Valid), itoa(r.Q3Valid), itoa(r.RaceValid), itoa(r.Sprint),
	}
	if withRaceTime {
		out = append(out, i64toa(r.MSRace))
	}
	return out
}

// WeatherColumns is the header of the per-race weather table.
var WeatherColumns = []string{
	"raceId", "circuitId", "latitude", "longitude",
	"avg_wind_speed_100m", "max_wind_speed_100m", "avg_temperature_2m",
	"min_temperature_2m", "max_temperature_2m", "avg_humidity", "total_precipitation",
	"avg_pressure_msl", "avg_surface_pressure",
}

// WeatherRow is one race of the weather table. Absent rows leave the
// aggregate cells empty.
type WeatherRow struct {
	RaceID    int
	CircuitID int
	Latitude  float64
	Longitude float64
	Weather   model.Weather
	Absent    bool
}

// Record renders the row in WeatherColumns order.
func (r WeatherRow) Record() []string {
	out := []string{itoa(r.RaceID), itoa(r.CircuitID), ftoa(r.Latitude), ftoa(r.Longitude)}
	if r.Absent {
		return append(out, make([]string, len(WeatherColumns)-len(out))...)
	}
	w := r.Weather
	return append(out,
		ftoa(w.AvgWindSpeed), ftoa(w.MaxWindSpeed), ftoa(w.AvgTemperature),
		ftoa(w.MinTemperature), ftoa(w.MaxTemperature), ftoa(w.AvgHumidity),
		ftoa(w.TotalPrecipitation), ftoa(w.AvgPressureMSL), ftoa(w.AvgSurfacePressure))
}

func itoa(v int) string     { return strconv.Itoa(v) }
func i64toa(v int64) string { return strconv.FormatInt(v, 10) }
func ftoa(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
