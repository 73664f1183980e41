// Package model contains the archive records passed between layers.
//
// All records are read-only views over the historical tables. Nullable
// columns are pointers; a nil pointer is the table's `\N`.
package model

import (
	"strconv"
	"time"
)

// RaceEvent is one entry of the race calendar.
type RaceEvent struct {
	RaceID    int
	CircuitID int
	Season    int
	Round     int
	Date      time.Time
}

// Circuit carries the static attributes joined into every row of a race.
type Circuit struct {
	CircuitID     int
	Latitude      float64
	Longitude     float64
	LapDistanceKM float64
	Urban         bool
}

// Driver is the biographical record. A zero DateOfBirth means unknown.
type Driver struct {
	DriverID    int
	DateOfBirth time.Time
}

// Constructor is a grouping key with no further attributes.
type Constructor struct {
	ConstructorID int
}

// ResultRecord is one classified or unclassified starter of a race or sprint.
type ResultRecord struct {
	RaceID        int
	DriverID      int
	ConstructorID int
	Grid          *int   // starting slot, nil when not recorded
	Position      *int   // finishing position, nil when not classified
	Laps          int    // laps completed
	Milliseconds  *int64 // completion duration, nil when not finished on the lead lap
	StatusID      int
}

// Won reports whether the record is a race win.
func (r ResultRecord) Won() bool {
	return r.Position != nil && *r.Position == 1
}

// QualifyingRecord holds the raw session texts; an empty string is an absent session.
type QualifyingRecord struct {
	RaceID        int
	DriverID      int
	ConstructorID int
	Q1            string
	Q2            string
	Q3            string
}

// StandingSnapshot is the championship table of one entity as posted after a race.
// EntityID is a driverId or a constructorId depending on the table.
type StandingSnapshot struct {
	RaceID   int
	EntityID int
	Points   float64
	Position *int
}

// Weather is the daily aggregate joined into each row of a race.
type Weather struct {
	AvgWindSpeed       float64 `json:"avg_wind_speed_100m"`
	MaxWindSpeed       float64 `json:"max_wind_speed_100m"`
	AvgTemperature     float64 `json:"avg_temperature_2m"`
	MinTemperature     float64 `json:"min_temperature_2m"`
	MaxTemperature     float64 `json:"max_temperature_2m"`
	AvgHumidity        float64 `json:"avg_humidity"`
	TotalPrecipitation float64 `json:"total_precipitation"`
	AvgPressureMSL     float64 `json:"avg_pressure_msl"`
	AvgSurfacePressure float64 `json:"avg_surface_pressure"`
}

// WeatherRecord is one row of the pre-computed weather table.
type WeatherRecord struct {
	RaceID int
	Weather
}

// Archive is the full set of parsed input tables.
type Archive struct {
	Races                []RaceEvent
	Circuits             []Circuit
	Drivers              []Driver
	Constructors         []Constructor
	Results              []ResultRecord
	SprintResults        []ResultRecord
	Qualifying           []QualifyingRecord
	DriverStandings      []StandingSnapshot
	ConstructorStandings []StandingSnapshot
	Statuses             map[int]string
	Weather              []WeatherRecord // optional table
}

// RowKey is the grain key of a feature row.
func RowKey(raceID, driverID int) string {
	return strconv.Itoa(raceID) + ":" + strconv.Itoa(driverID)
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 { return &v }
