// Package fixtures generates deterministic synthetic archives for tests.
//
// The generated seasons exercise the awkward corners of real data: lapped
// finishers, retirements, pit-lane starts, missing and malformed qualifying
// times, three-car entries, repeated qualifying rows, gaps in the posted
// standings and a final race that has qualifying but no results yet.
package fixtures

import (
	"math/rand"
	"sort"
	"strconv"
	"time"

	"github.com/okian/pitwall/internal/domain/model"
)

// Status ids of the generated status table.
const (
	StatusFinished  = 1
	StatusCollision = 4
	StatusEngine    = 5
	StatusPlusOne   = 11 // +1 Lap .. +5 Laps are 11..15
)

var pointsTable = []float64{25, 18, 15, 12, 10, 8, 6, 4, 2, 1}

// Options shape the generated archive.
type Options struct {
	Seed           int64
	FirstSeason    int
	Seasons        int
	RacesPerSeason int
	Constructors   int
	BaseRaceID     int
	SprintEvery    int  // every n-th round has a sprint; 0 disables sprints
	PendingLast    bool // the last race has qualifying but no results or standings
}

// DefaultOptions is a small but varied archive.
func DefaultOptions() Options {
	return Options{
		Seed:           1,
		FirstSeason:    2015,
		Seasons:        4,
		RacesPerSeason: 6,
		Constructors:   5,
		BaseRaceID:     900,
		SprintEvery:    3,
		PendingLast:    true,
	}
}

type entrant struct {
	driver      int
	constructor int
	pace        int64
}

type generator struct {
	o   Options
	rng *rand.Rand
	a   *model.Archive
}

// Generate builds an archive. The same options always produce the same archive.
func Generate(o Options) *model.Archive {
	g := &generator{
		o:   o,
		rng: rand.New(rand.NewSource(o.Seed)),
		a:   &model.Archive{Statuses: statuses()},
	}
	g.reference()

	total := o.Seasons * o.RacesPerSeason
	n := 0
	for s := 0; s < o.Seasons; s++ {
		season := o.FirstSeason + s
		lineup := g.lineup()
		driverPts := map[int]float64{}
		constructorPts := map[int]float64{}
		for round := 1; round <= o.RacesPerSeason; round++ {
			n++
			race := model.RaceEvent{
				RaceID:    o.BaseRaceID + n,
				CircuitID: 1 + (round-1)%o.RacesPerSeason,
				Season:    season,
				Round:     round,
				Date:      time.Date(season, time.March, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 14*(round-1)),
			}
			g.a.Races = append(g.a.Races, race)

			field := g.field(lineup)
			g.qualifying(race, field)

			if o.PendingLast && n == total {
				continue
			}
			finish := g.results(race, field)
			if o.SprintEvery > 0 && round%o.SprintEvery == 0 {
				g.sprint(race, field)
			}
			g.standings(race, finish, driverPts, constructorPts)
			if g.rng.Intn(7) != 0 {
				g.weather(race)
			}
		}
	}
	return g.a
}

func statuses() map[int]string {
	m := map[int]string{
		StatusFinished:  "Finished",
		StatusCollision: "Collision",
		StatusEngine:    "Engine",
		StatusPlusOne:   "+1 Lap",
	}
	for laps := 2; laps <= 5; laps++ {
		m[StatusPlusOne+laps-1] = "+" + strconv.Itoa(laps) + " Laps"
	}
	return m
}

func (g *generator) drivers() int { return 2*g.o.Constructors + 2 }

func (g *generator) reference() {
	for c := 1; c <= g.o.RacesPerSeason; c++ {
		g.a.Circuits = append(g.a.Circuits, model.Circuit{
			CircuitID:     c,
			Latitude:      float64(c*7%90) + 0.25,
			Longitude:     float64(c*13%180) - 0.5,
			LapDistanceKM: 4 + float64(c%5)*0.3,
			Urban:         c == 3,
		})
	}
	for c := 1; c <= g.o.Constructors; c++ {
		g.a.Constructors = append(g.a.Constructors, model.Constructor{ConstructorID: c})
	}
	birth := time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)
	for d := 1; d <= g.drivers(); d++ {
		dob := birth.AddDate(0, 0, 211*d)
		if d == g.drivers() {
			dob = time.Time{}
		}
		g.a.Drivers = append(g.a.Drivers, model.Driver{DriverID: d, DateOfBirth: dob})
	}
}

// lineup assigns two seats per constructor for a season; the rest are reserves.
func (g *generator) lineup() []entrant {
	ids := g.rng.Perm(g.drivers())
	out := make([]entrant, 0, len(ids))
	for i, id := range ids {
		c := 0
		if i < 2*g.o.Constructors {
			c = 1 + i/2
		}
		out = append(out, entrant{driver: id + 1, constructor: c})
	}
	return out
}

// field picks the race entrants: the seated drivers, sometimes one reserve
// standing in, and sometimes a reserve running a third car.
func (g *generator) field(lineup []entrant) []entrant {
	var seated, reserves []entrant
	for _, e := range lineup {
		if e.constructor == 0 {
			reserves = append(reserves, e)
			continue
		}
		seated = append(seated, e)
	}
	out := append([]entrant(nil), seated...)
	if len(reserves) > 0 && g.rng.Intn(6) == 0 {
		i := g.rng.Intn(len(out))
		out[i].driver = reserves[0].driver
	}
	if len(reserves) > 1 && g.rng.Intn(8) == 0 {
		out = append(out, entrant{driver: reserves[1].driver, constructor: 1 + g.rng.Intn(g.o.Constructors)})
	}
	for i := range out {
		out[i].pace = 80_000 + int64(out[i].constructor)*150 + g.rng.Int63n(2_000)
	}
	return out
}

func lapText(ms int64) string {
	return strconv.FormatInt(ms/60_000, 10) + ":" +
		pad(ms%60_000/1000, 2) + "." + pad(ms%1000, 3)
}

func pad(v int64, width int) string {
	s := strconv.FormatInt(v, 10)
	for len(s) < width {
		s = "0" + s
	}
	return s
}

func (g *generator) qualifying(race model.RaceEvent, field []entrant) {
	order := append([]entrant(nil), field...)
	sort.SliceStable(order, func(i, j int) bool { return order[i].pace < order[j].pace })
	for pos, e := range order {
		q := model.QualifyingRecord{RaceID: race.RaceID, DriverID: e.driver, ConstructorID: e.constructor}
		if g.rng.Intn(20) != 0 {
			q.Q1 = lapText(e.pace + 600)
		}
		if pos < 15 {
			q.Q2 = lapText(e.pace + 300)
		}
		if pos < 10 {
			q.Q3 = lapText(e.pace)
		}
		if g.rng.Intn(30) == 0 {
			q.Q2 = "DNF"
		}
		g.a.Qualifying = append(g.a.Qualifying, q)
	}
	if len(order) > 0 && g.rng.Intn(4) == 0 {
		dup := model.QualifyingRecord{RaceID: race.RaceID, DriverID: order[0].driver, ConstructorID: order[0].constructor, Q1: "9:59.999"}
		g.a.Qualifying = append(g.a.Qualifying, dup)
	}
}

// results classifies the field and returns the finishers in order.
func (g *generator) results(race model.RaceEvent, field []entrant) []entrant {
	order := append([]entrant(nil), field...)
	for i := range order {
		order[i].pace += g.rng.Int63n(1_500)
	}
	sort.SliceStable(order, func(i, j int) bool { return order[i].pace < order[j].pace })

	grid := append([]entrant(nil), field...)
	sort.SliceStable(grid, func(i, j int) bool { return grid[i].pace < grid[j].pace })
	slot := map[int]int{}
	for i, e := range grid {
		slot[e.driver] = i + 1
	}

	raceLaps := 50 + race.CircuitID*2
	winnerMS := int64(5_400_000 + g.rng.Intn(200_000))
	var finishers []entrant
	pos := 0
	for i, e := range order {
		r := model.ResultRecord{
			RaceID: race.RaceID, DriverID: e.driver, ConstructorID: e.constructor,
			Grid: model.IntPtr(slot[e.driver]),
		}
		if g.rng.Intn(30) == 0 {
			r.Grid = model.IntPtr(0)
		}
		switch {
		case i > 0 && g.rng.Intn(10) == 0:
			r.Laps = g.rng.Intn(raceLaps)
			r.StatusID = StatusCollision
			if g.rng.Intn(2) == 0 {
				r.StatusID = StatusEngine
			}
		case i < len(order)/2:
			pos++
			r.Position = model.IntPtr(pos)
			r.Laps = raceLaps
			r.StatusID = StatusFinished
			r.Milliseconds = model.Int64Ptr(winnerMS + int64(i)*int64(1_000+g.rng.Intn(9_000)))
			finishers = append(finishers, e)
		default:
			pos++
			behind := 1 + g.rng.Intn(5)
			r.Position = model.IntPtr(pos)
			r.Laps = raceLaps - behind
			r.StatusID = StatusPlusOne + behind - 1
			finishers = append(finishers, e)
		}
		g.a.Results = append(g.a.Results, r)
	}
	return finishers
}

func (g *generator) sprint(race model.RaceEvent, field []entrant) {
	for i, e := range field {
		g.a.SprintResults = append(g.a.SprintResults, model.ResultRecord{
			RaceID: race.RaceID, DriverID: e.driver, ConstructorID: e.constructor,
			Position: model.IntPtr(i + 1), Laps: 20, StatusID: StatusFinished,
		})
	}
}

func (g *generator) standings(race model.RaceEvent, finish []entrant, driverPts, constructorPts map[int]float64) {
	for i, e := range finish {
		if i >= len(pointsTable) {
			break
		}
		driverPts[e.driver] += pointsTable[i]
		constructorPts[e.constructor] += pointsTable[i]
	}
	for _, e := range finish {
		if _, ok := driverPts[e.driver]; !ok {
			driverPts[e.driver] = 0
		}
		if _, ok := constructorPts[e.constructor]; !ok {
			constructorPts[e.constructor] = 0
		}
	}
	if g.rng.Intn(12) == 0 {
		return // standings not posted for this race
	}
	g.a.DriverStandings = append(g.a.DriverStandings, table(race.RaceID, driverPts)...)
	g.a.ConstructorStandings = append(g.a.ConstructorStandings, table(race.RaceID, constructorPts)...)
}

func table(raceID int, pts map[int]float64) []model.StandingSnapshot {
	ids := make([]int, 0, len(pts))
	for id := range pts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if pts[ids[i]] != pts[ids[j]] {
			return pts[ids[i]] > pts[ids[j]]
		}
		return ids[i] < ids[j]
	})
	out := make([]model.StandingSnapshot, 0, len(ids))
	for i, id := range ids {
		s := model.StandingSnapshot{RaceID: raceID, EntityID: id, Points: pts[id], Position: model.IntPtr(i + 1)}
		if pts[id] == 0 && i%2 == 1 {
			s.Position = nil
		}
		out = append(out, s)
	}
	return out
}

func (g *generator) weather(race model.RaceEvent) {
	f := func(base, spread float64) float64 { return base + g.rng.Float64()*spread }
	g.a.Weather = append(g.a.Weather, model.WeatherRecord{
		RaceID: race.RaceID,
		Weather: model.Weather{
			AvgWindSpeed:       f(8, 10),
			MaxWindSpeed:       f(20, 15),
			AvgTemperature:     f(15, 15),
			MinTemperature:     f(8, 6),
			MaxTemperature:     f(25, 10),
			AvgHumidity:        f(40, 40),
			TotalPrecipitation: f(0, 3),
			AvgPressureMSL:     f(1005, 15),
			AvgSurfacePressure: f(990, 20),
		},
	})
}
