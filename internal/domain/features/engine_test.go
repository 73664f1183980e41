package features_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/pitwall/internal/domain/features"
	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/internal/domain/prevrace"
	"github.com/okian/pitwall/internal/domain/qualifying"
	"github.com/okian/pitwall/internal/domain/racetime"
	"github.com/okian/pitwall/internal/domain/types"
	"github.com/okian/pitwall/internal/domain/weather"
	"github.com/okian/pitwall/internal/fixtures"
	"github.com/okian/pitwall/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func result(race, driver, constructor int, grid, pos *int, laps int, ms *int64, status int) model.ResultRecord {
	return model.ResultRecord{
		RaceID: race, DriverID: driver, ConstructorID: constructor,
		Grid: grid, Position: pos, Laps: laps, Milliseconds: ms, StatusID: status,
	}
}

// scenarioArchive is two races in 2020 and a pending race in 2021.
func scenarioArchive() *model.Archive {
	ip, lp := model.IntPtr, model.Int64Ptr
	return &model.Archive{
		Races: []model.RaceEvent{
			{RaceID: 103, CircuitID: 1, Season: 2021, Round: 1, Date: date(2021, time.March, 28)},
			{RaceID: 101, CircuitID: 1, Season: 2020, Round: 1, Date: date(2020, time.July, 5)},
			{RaceID: 102, CircuitID: 2, Season: 2020, Round: 2, Date: date(2020, time.July, 19)},
			{RaceID: 50, CircuitID: 1, Season: 1999, Round: 1, Date: date(1999, time.March, 7)},
		},
		Circuits: []model.Circuit{
			{CircuitID: 1, LapDistanceKM: 5.3},
			{CircuitID: 2, LapDistanceKM: 4.1, Urban: true},
		},
		Drivers: []model.Driver{
			{DriverID: 1, DateOfBirth: date(1990, time.January, 1)},
			{DriverID: 2, DateOfBirth: date(1995, time.June, 15)},
			{DriverID: 3, DateOfBirth: date(2000, time.January, 1)},
		},
		Constructors: []model.Constructor{{ConstructorID: 10}, {ConstructorID: 20}},
		Results: []model.ResultRecord{
			result(101, 1, 10, ip(1), ip(1), 58, lp(5_400_000), 1),
			result(101, 2, 10, ip(2), ip(2), 57, nil, 11),
			result(101, 3, 20, ip(3), nil, 10, nil, 5),
			result(102, 2, 10, ip(1), ip(1), 70, lp(6_000_000), 1),
			result(102, 1, 10, ip(0), ip(2), 70, lp(6_010_000), 1),
			result(102, 3, 20, ip(3), ip(3), 69, nil, 11),
		},
		SprintResults: []model.ResultRecord{
			result(102, 2, 10, nil, ip(1), 20, nil, 1),
		},
		Qualifying: []model.QualifyingRecord{
			{RaceID: 101, DriverID: 1, ConstructorID: 10, Q1: "1:30.000", Q2: "1:29.500", Q3: "1:29.000"},
			{RaceID: 101, DriverID: 2, ConstructorID: 10, Q1: "1:31.000", Q2: "1:30.000"},
			{RaceID: 101, DriverID: 3, ConstructorID: 20, Q1: "1:32.000"},
			{RaceID: 102, DriverID: 1, ConstructorID: 10, Q1: "1:40.000"},
			{RaceID: 102, DriverID: 2, ConstructorID: 10, Q1: "1:39.000"},
			{RaceID: 102, DriverID: 3, ConstructorID: 20, Q1: "DNF"},
			{RaceID: 102, DriverID: 2, ConstructorID: 10, Q1: "1:20.000"},
			{RaceID: 103, DriverID: 1, ConstructorID: 10, Q1: "1:35.000"},
			{RaceID: 103, DriverID: 2, ConstructorID: 10, Q1: "1:36.000"},
			{RaceID: 103, DriverID: 3, ConstructorID: 10, Q1: "1:34.000"},
		},
		DriverStandings: []model.StandingSnapshot{
			{RaceID: 101, EntityID: 1, Points: 25, Position: ip(1)},
			{RaceID: 101, EntityID: 2, Points: 18, Position: ip(2)},
			{RaceID: 101, EntityID: 3, Points: 0},
			{RaceID: 102, EntityID: 1, Points: 43, Position: ip(1)},
			{RaceID: 102, EntityID: 2, Points: 43, Position: ip(2)},
			{RaceID: 102, EntityID: 3, Points: 15, Position: ip(3)},
		},
		ConstructorStandings: []model.StandingSnapshot{
			{RaceID: 101, EntityID: 10, Points: 43, Position: ip(1)},
			{RaceID: 101, EntityID: 20, Points: 0, Position: ip(2)},
			{RaceID: 102, EntityID: 10, Points: 86, Position: ip(1)},
			{RaceID: 102, EntityID: 20, Points: 15, Position: ip(2)},
		},
		Statuses: map[int]string{1: "Finished", 5: "Engine", 11: "+1 Lap"},
		Weather: []model.WeatherRecord{
			{RaceID: 102, Weather: model.Weather{AvgTemperature: 31.5, TotalPrecipitation: 0.2}},
		},
	}
}

func byDriver(rows []types.FeatureRow) map[int]types.FeatureRow {
	out := make(map[int]types.FeatureRow, len(rows))
	for _, r := range rows {
		out[r.DriverID] = r
	}
	return out
}

func TestAssembleRaceScenario(t *testing.T) {
	Convey("Given an engine over a small archive", t, func() {
		a := scenarioArchive()
		e, err := features.NewEngine(a, features.WithWeather(weather.NewTable(a.Weather)))
		So(err, ShouldBeNil)
		ctx := context.Background()

		Convey("Then races before the cutoff are not indexed", func() {
			So(e.Timeline().Len(), ShouldEqual, 3)
			_, err := e.AssembleRace(ctx, 50, features.Training)
			So(errors.Is(err, features.ErrUnknownRace), ShouldBeTrue)
		})

		Convey("Then an unknown race is rejected", func() {
			_, err := e.AssembleRace(ctx, 999, features.Prediction)
			So(errors.Is(err, features.ErrUnknownRace), ShouldBeTrue)
		})

		Convey("Then an unknown mode is rejected", func() {
			_, err := e.AssembleRace(ctx, 101, features.Mode("replay"))
			So(errors.Is(err, features.ErrUnknownMode), ShouldBeTrue)
		})

		Convey("Then training races are listed in sequence order", func() {
			So(e.TrainingRaces(2020), ShouldResemble, []int{101, 102, 103})
			So(e.TrainingRaces(2021), ShouldResemble, []int{103})
		})

		Convey("When assembling the first indexed race in training mode", func() {
			rows, err := e.AssembleRace(ctx, 101, features.Training)
			So(err, ShouldBeNil)
			So(len(rows), ShouldEqual, 3)
			got := byDriver(rows)

			Convey("Then history columns hold their defaults", func() {
				for _, r := range rows {
					So(r.WinsSeason, ShouldEqual, 0)
					So(r.WinsCareer, ShouldEqual, 0)
					So(r.PointsBeforeGP, ShouldEqual, 0)
					So(r.ConstructorPointsBeforeGP, ShouldEqual, 0)
					So(r.DriverLastPosition, ShouldEqual, prevrace.NoPosition)
					So(r.MateLastPosition, ShouldEqual, prevrace.NoPosition)
					So(r.YearsOfExperience, ShouldEqual, 0)
					So(r.LapsRace, ShouldEqual, 58)
					So(r.Sprint, ShouldEqual, 0)
					So(r.Weather, ShouldResemble, model.Weather{})
				}
			})

			Convey("Then the winner keeps the recorded time", func() {
				So(got[1].MSRace, ShouldEqual, 5_400_000)
				So(got[1].RaceValid, ShouldEqual, 1)
				So(got[1].Grid, ShouldEqual, 1)
				So(got[1].BestQ, ShouldEqual, 89_000)
				So(got[1].Age, ShouldEqual, 30)
			})

			Convey("Then the lapped finisher is imputed from the winner and qualifying pace", func() {
				So(got[2].MSRace, ShouldEqual, 5_400_000+(90_000+racetime.LapPaceAllowanceMS))
				So(got[2].RaceValid, ShouldEqual, 1)
				So(got[2].Q3, ShouldEqual, qualifying.PenaltyMS)
				So(got[2].Q3Valid, ShouldEqual, 0)
			})

			Convey("Then the retirement is unusable", func() {
				So(got[3].MSRace, ShouldEqual, racetime.UnusableMS)
				So(got[3].RaceValid, ShouldEqual, 0)
				So(got[3].Q1Valid, ShouldEqual, 1)
				So(got[3].Q2Valid, ShouldEqual, 0)
			})
		})

		Convey("When assembling the second race in training mode", func() {
			rows, err := e.AssembleRace(ctx, 102, features.Training)
			So(err, ShouldBeNil)

			Convey("Then the repeated qualifying row is dropped keeping the first", func() {
				So(len(rows), ShouldEqual, 3)
				got := byDriver(rows)
				So(got[2].BestQ, ShouldEqual, 99_000)
			})

			Convey("Then history reads only the previous race", func() {
				got := byDriver(rows)
				d1 := got[1]
				So(d1.DriverLastPosition, ShouldEqual, 1)
				So(d1.WinsCareer, ShouldEqual, 1)
				So(d1.WinsSeason, ShouldEqual, 1)
				So(d1.PointsBeforeGP, ShouldEqual, 25)
				So(d1.MateLastPosition, ShouldEqual, 2)
				So(d1.ConstructorPointsBeforeGP, ShouldEqual, 43)
				So(d1.ConstructorWinsSeason, ShouldEqual, 1)
				So(d1.YearsOfExperience, ShouldEqual, 0)

				So(got[2].MateLastPosition, ShouldEqual, 1)
				So(got[3].DriverLastPosition, ShouldEqual, prevrace.NoPosition)
				So(got[3].MateLastPosition, ShouldEqual, prevrace.NoPosition)
			})

			Convey("Then race-level columns describe the target race", func() {
				for _, r := range rows {
					So(r.Urban, ShouldEqual, 1)
					So(r.Sprint, ShouldEqual, 1)
					So(r.LapsRace, ShouldEqual, 70)
					So(r.LapDistanceKM, ShouldEqual, 4.1)
					So(r.Weather.AvgTemperature, ShouldEqual, 31.5)
				}
			})

			Convey("Then a classified grid of zero falls back", func() {
				got := byDriver(rows)
				So(got[1].Grid, ShouldEqual, qualifying.FallbackGrid)
				So(got[2].Grid, ShouldEqual, 1)
			})

			Convey("Then a lapped finisher without qualifying pace is unusable", func() {
				got := byDriver(rows)
				So(got[3].BestQ, ShouldEqual, qualifying.PenaltyMS)
				So(got[3].MSRace, ShouldEqual, racetime.UnusableMS)
				So(got[3].RaceValid, ShouldEqual, 0)
			})
		})

		Convey("When assembling the pending race in prediction mode", func() {
			rows, err := e.AssembleRace(ctx, 103, features.Prediction)
			So(err, ShouldBeNil)
			got := byDriver(rows)

			Convey("Then the grid is the qualifying rank and the race is valid", func() {
				So(got[3].Grid, ShouldEqual, 1)
				So(got[1].Grid, ShouldEqual, 2)
				So(got[2].Grid, ShouldEqual, 3)
				for _, r := range rows {
					So(r.RaceValid, ShouldEqual, 1)
					So(r.MSRace, ShouldEqual, 0)
					So(r.LapsRace, ShouldEqual, 70)
				}
			})

			Convey("Then season counters reset and career counters carry over", func() {
				So(got[1].WinsSeason, ShouldEqual, 0)
				So(got[1].WinsCareer, ShouldEqual, 1)
				So(got[1].ConstructorWinsSeason, ShouldEqual, 0)
				So(got[1].YearsOfExperience, ShouldEqual, 1)
				So(got[1].PointsBeforeGP, ShouldEqual, 43)
				So(got[1].ConstructorPointsBeforeGP, ShouldEqual, 86)
			})

			Convey("Then a driver joining a two-car team takes the lowest teammate", func() {
				So(got[3].MateLastPosition, ShouldEqual, 2)
			})
		})

		Convey("When assembling the pending race in training mode", func() {
			rows, err := e.AssembleRace(ctx, 103, features.Training)
			So(err, ShouldBeNil)

			Convey("Then no starter has a usable time", func() {
				for _, r := range rows {
					So(r.RaceValid, ShouldEqual, 0)
					So(r.MSRace, ShouldEqual, racetime.UnusableMS)
					So(r.LapsRace, ShouldEqual, 70)
				}
			})
		})
	})

	Convey("Given an archive with a repeated race id", t, func() {
		a := scenarioArchive()
		a.Races = append(a.Races, model.RaceEvent{RaceID: 101, CircuitID: 2, Season: 2022, Round: 1})

		Convey("Then the engine cannot be built", func() {
			_, err := features.NewEngine(a)
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given results for drivers without qualifying rows", t, func() {
		a := scenarioArchive()
		a.Results = append(a.Results, result(102, 7, 20, model.IntPtr(4), model.IntPtr(4), 70, model.Int64Ptr(6_100_000), 1))
		e, err := features.NewEngine(a)
		So(err, ShouldBeNil)

		Convey("Then they produce no rows", func() {
			rows, err := e.AssembleRace(context.Background(), 102, features.Training)
			So(err, ShouldBeNil)
			So(byDriver(rows), ShouldNotContainKey, 7)
			So(len(rows), ShouldEqual, 3)
		})
	})
}

// truncate keeps only what was known before race seq: results and standings
// of earlier races and sprints up to the race itself.
func truncate(a *model.Archive, seqOf func(int) (int, bool), seq int) *model.Archive {
	before := func(raceID int, inclusive bool) bool {
		s, ok := seqOf(raceID)
		if !ok {
			return true
		}
		if inclusive {
			return s <= seq
		}
		return s < seq
	}
	out := *a
	out.Results = nil
	for _, r := range a.Results {
		if before(r.RaceID, false) {
			out.Results = append(out.Results, r)
		}
	}
	out.SprintResults = nil
	for _, r := range a.SprintResults {
		if before(r.RaceID, true) {
			out.SprintResults = append(out.SprintResults, r)
		}
	}
	keep := func(ss []model.StandingSnapshot) []model.StandingSnapshot {
		var kept []model.StandingSnapshot
		for _, s := range ss {
			if before(s.RaceID, false) {
				kept = append(kept, s)
			}
		}
		return kept
	}
	out.DriverStandings = keep(a.DriverStandings)
	out.ConstructorStandings = keep(a.ConstructorStandings)
	return &out
}

// noteLogger records the kind of every data-quality note.
type noteLogger struct {
	mu    sync.Mutex
	kinds []string
}

func (l *noteLogger) Debug(_ context.Context, _ string, fields ...logger.Field) {
	for _, f := range fields {
		if f.Key == "kind" {
			l.mu.Lock()
			l.kinds = append(l.kinds, f.Value.(string))
			l.mu.Unlock()
		}
	}
}

func (l *noteLogger) Info(context.Context, string, ...logger.Field)  {}
func (l *noteLogger) Warn(context.Context, string, ...logger.Field)  {}
func (l *noteLogger) Error(context.Context, string, ...logger.Field) {}
func (l *noteLogger) Fatal(context.Context, string, ...logger.Field) {}
func (l *noteLogger) Named(string) logger.Logger                     { return l }

func (l *noteLogger) count(kind string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, k := range l.kinds {
		if k == kind {
			n++
		}
	}
	return n
}

func TestAssembleRaceNotes(t *testing.T) {
	Convey("Given qualifying entrants missing from the driver and constructor tables", t, func() {
		a := scenarioArchive()
		a.Qualifying = append(a.Qualifying,
			model.QualifyingRecord{RaceID: 103, DriverID: 8, ConstructorID: 10, Q1: "1:37.000"},
			model.QualifyingRecord{RaceID: 103, DriverID: 2, ConstructorID: 30, Q1: "1:38.000"},
			model.QualifyingRecord{RaceID: 102, DriverID: 9, ConstructorID: 40, Q1: "1:41.000"},
		)
		notes := &noteLogger{}
		e, err := features.NewEngine(a, features.WithLogger(notes))
		So(err, ShouldBeNil)
		ctx := context.Background()

		Convey("When predicting the pending race", func() {
			rows, err := e.AssembleRace(ctx, 103, features.Prediction)
			So(err, ShouldBeNil)

			Convey("Then the unknown driver keeps a row and is noted once", func() {
				So(byDriver(rows), ShouldContainKey, 8)
				So(byDriver(rows)[8].Age, ShouldEqual, 0)
				So(notes.count("unknown_driver"), ShouldEqual, 1)
			})

			Convey("Then the repeated entrant is dropped before any note", func() {
				So(rows, ShouldHaveLength, 4)
				So(notes.count("unknown_constructor"), ShouldEqual, 0)
			})
		})

		Convey("When assembling training rows", func() {
			_, err := e.AssembleRace(ctx, 102, features.Training)
			So(err, ShouldBeNil)
			_, err = e.AssembleRace(ctx, 103, features.Training)
			So(err, ShouldBeNil)

			Convey("Then every unknown entrant is noted per race", func() {
				So(notes.count("unknown_driver"), ShouldEqual, 2)
				So(notes.count("unknown_constructor"), ShouldEqual, 1)
			})

			Convey("Then only the race without results is noted as such", func() {
				So(notes.count("results_missing"), ShouldEqual, 1)
			})
		})
	})
}

func TestAssembleRaceProperties(t *testing.T) {
	Convey("Given an engine over a generated archive", t, func() {
		a := fixtures.Generate(fixtures.DefaultOptions())
		e, err := features.NewEngine(a)
		So(err, ShouldBeNil)
		ctx := context.Background()
		races := e.TrainingRaces(0)
		So(len(races), ShouldEqual, 24)

		Convey("When every race is assembled twice", func() {
			Convey("Then the rows are identical", func() {
				for _, id := range races {
					first, err := e.AssembleRace(ctx, id, features.Training)
					So(err, ShouldBeNil)
					second, err := e.AssembleRace(ctx, id, features.Training)
					So(err, ShouldBeNil)
					So(second, ShouldResemble, first)
				}
			})
		})

		Convey("When assembling every race in both modes", func() {
			Convey("Then each row is well formed", func() {
				for _, id := range races {
					for _, mode := range []features.Mode{features.Training, features.Prediction} {
						rows, err := e.AssembleRace(ctx, id, mode)
						So(err, ShouldBeNil)
						So(rows, ShouldNotBeEmpty)
						seen := map[int]bool{}
						for i, r := range rows {
							So(seen[r.DriverID], ShouldBeFalse)
							seen[r.DriverID] = true
							if i > 0 {
								So(r.DriverID, ShouldBeGreaterThan, rows[i-1].DriverID)
							}
							So(r.Grid, ShouldBeBetweenOrEqual, 1, qualifying.FallbackGrid)
							So(r.DriverLastPosition, ShouldBeBetweenOrEqual, 1, prevrace.NoPosition)
							So(r.MateLastPosition, ShouldBeBetweenOrEqual, 1, prevrace.NoPosition)
							So(r.BestQ, ShouldBeLessThanOrEqualTo, qualifying.PenaltyMS)
							So(r.LapsRace, ShouldBeGreaterThan, 0)
							So(r.Record(mode.WithRaceTime()), ShouldHaveLength, len(types.Columns(mode.WithRaceTime())))
							if mode == features.Prediction {
								So(r.RaceValid, ShouldEqual, 1)
							} else {
								So(r.RaceValid == 1, ShouldEqual, racetime.Valid(r.MSRace))
							}
						}
					}
				}
			})
		})

		Convey("When later results and standings are removed", func() {
			Convey("Then prediction rows do not change", func() {
				for _, id := range races {
					seq, _ := e.Timeline().Sequence(id)
					cut, err := features.NewEngine(truncate(a, e.Timeline().Sequence, seq))
					So(err, ShouldBeNil)

					full, err := e.AssembleRace(ctx, id, features.Prediction)
					So(err, ShouldBeNil)
					past, err := cut.AssembleRace(ctx, id, features.Prediction)
					So(err, ShouldBeNil)
					So(past, ShouldResemble, full)
				}
			})
		})
	})
}
