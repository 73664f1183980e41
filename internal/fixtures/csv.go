package fixtures

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/okian/pitwall/internal/domain/model"
)

// WeatherFile is the weather table name written by WriteCSV.
const WeatherFile = "f1_weather_data.csv"

const null = `\N`

// WriteCSV writes the archive as the CSV tables the source loader reads.
// Extra columns of the public dataset are included so that lookups by
// header name are exercised.
func WriteCSV(dir string, a *model.Archive) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tables := map[string][][]string{
		"races.csv":                 races(a),
		"circuits.csv":              circuits(a),
		"drivers.csv":               drivers(a),
		"constructors.csv":          constructors(a),
		"results.csv":               results(a.Results),
		"sprint_results.csv":        results(a.SprintResults),
		"qualifying.csv":            qualifying(a),
		"driver_standings.csv":      standings("driverId", a.DriverStandings),
		"constructor_standings.csv": standings("constructorId", a.ConstructorStandings),
		"status.csv":                status(a),
		WeatherFile:                 weather(a),
	}
	for name, rows := range tables {
		if err := writeFile(filepath.Join(dir, name), rows); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func itoa(v int) string { return strconv.Itoa(v) }

func ftoa(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func optInt(p *int) string {
	if p == nil {
		return null
	}
	return strconv.Itoa(*p)
}

func optInt64(p *int64) string {
	if p == nil {
		return null
	}
	return strconv.FormatInt(*p, 10)
}

func optText(s string) string {
	if s == "" {
		return null
	}
	return s
}

func races(a *model.Archive) [][]string {
	out := [][]string{{"raceId", "year", "round", "circuitId", "name", "date", "time"}}
	for _, r := range a.Races {
		out = append(out, []string{
			itoa(r.RaceID), itoa(r.Season), itoa(r.Round), itoa(r.CircuitID),
			"Grand Prix " + itoa(r.Round), r.Date.Format("2006-01-02"), null,
		})
	}
	return out
}

func circuits(a *model.Archive) [][]string {
	out := [][]string{{"circuitId", "circuitRef", "name", "lat", "lng", "alt", "lap_distance_km", "urban"}}
	for _, c := range a.Circuits {
		urban := "0"
		if c.Urban {
			urban = "1"
		}
		out = append(out, []string{
			itoa(c.CircuitID), "c" + itoa(c.CircuitID), "Circuit " + itoa(c.CircuitID),
			ftoa(c.Latitude), ftoa(c.Longitude), "10", ftoa(c.LapDistanceKM), urban,
		})
	}
	return out
}

func drivers(a *model.Archive) [][]string {
	out := [][]string{{"driverId", "driverRef", "number", "code", "forename", "surname", "dob", "nationality"}}
	for _, d := range a.Drivers {
		dob := null
		if !d.DateOfBirth.IsZero() {
			dob = d.DateOfBirth.Format("2006-01-02")
		}
		out = append(out, []string{itoa(d.DriverID), "d" + itoa(d.DriverID), null, null, "F", "S", dob, "X"})
	}
	return out
}

func constructors(a *model.Archive) [][]string {
	out := [][]string{{"constructorId", "constructorRef", "name", "nationality"}}
	for _, c := range a.Constructors {
		out = append(out, []string{itoa(c.ConstructorID), "t" + itoa(c.ConstructorID), "Team", "X"})
	}
	return out
}

func results(rs []model.ResultRecord) [][]string {
	out := [][]string{{
		"resultId", "raceId", "driverId", "constructorId", "number", "grid", "position",
		"positionText", "positionOrder", "points", "laps", "time", "milliseconds", "statusId",
	}}
	for i, r := range rs {
		text := "R"
		if r.Position != nil {
			text = itoa(*r.Position)
		}
		out = append(out, []string{
			itoa(i + 1), itoa(r.RaceID), itoa(r.DriverID), itoa(r.ConstructorID), null,
			optInt(r.Grid), optInt(r.Position), text, itoa(i + 1), "0", itoa(r.Laps), null,
			optInt64(r.Milliseconds), itoa(r.StatusID),
		})
	}
	return out
}

func qualifying(a *model.Archive) [][]string {
	out := [][]string{{"qualifyId", "raceId", "driverId", "constructorId", "number", "position", "q1", "q2", "q3"}}
	for i, q := range a.Qualifying {
		out = append(out, []string{
			itoa(i + 1), itoa(q.RaceID), itoa(q.DriverID), itoa(q.ConstructorID), "0", itoa(i + 1),
			optText(q.Q1), optText(q.Q2), optText(q.Q3),
		})
	}
	return out
}

func standings(entityCol string, ss []model.StandingSnapshot) [][]string {
	out := [][]string{{"standingsId", "raceId", entityCol, "points", "position", "positionText", "wins"}}
	for i, s := range ss {
		out = append(out, []string{
			itoa(i + 1), itoa(s.RaceID), itoa(s.EntityID), ftoa(s.Points), optInt(s.Position), optInt(s.Position), "0",
		})
	}
	return out
}

func status(a *model.Archive) [][]string {
	ids := make([]int, 0, len(a.Statuses))
	for id := range a.Statuses {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := [][]string{{"statusId", "status"}}
	for _, id := range ids {
		out = append(out, []string{itoa(id), a.Statuses[id]})
	}
	return out
}

func weather(a *model.Archive) [][]string {
	out := [][]string{{
		"raceId", "circuitId", "latitude", "longitude",
		"avg_wind_speed_100m", "max_wind_speed_100m", "avg_temperature_2m", "min_temperature_2m",
		"max_temperature_2m", "avg_humidity", "total_precipitation", "avg_pressure_msl", "avg_surface_pressure",
	}}
	for _, r := range a.Weather {
		w := r.Weather
		out = append(out, []string{
			itoa(r.RaceID), null, null, null,
			ftoa(w.AvgWindSpeed), ftoa(w.MaxWindSpeed), ftoa(w.AvgTemperature), ftoa(w.MinTemperature),
			ftoa(w.MaxTemperature), ftoa(w.AvgHumidity), ftoa(w.TotalPrecipitation), ftoa(w.AvgPressureMSL),
			ftoa(w.AvgSurfacePressure),
		})
	}
	return out
}
