package registry_test

import (
	"testing"
	"time"

	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/internal/domain/registry"
	"github.com/okian/pitwall/internal/domain/timeline"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRegistry(t *testing.T) {
	Convey("Given an indexed calendar and results listed out of order", t, func() {
		idx, err := timeline.Build([]model.RaceEvent{
			{RaceID: 10, Season: 2000},
			{RaceID: 11, Season: 2001},
			{RaceID: 12, Season: 2002},
			{RaceID: 13, Season: 2002},
		}, 2001)
		So(err, ShouldBeNil)

		dob := time.Date(1997, 9, 30, 0, 0, 0, 0, time.UTC)
		reg := registry.New(idx,
			[]model.Driver{{DriverID: 1, DateOfBirth: dob}, {DriverID: 2}},
			[]model.Constructor{{ConstructorID: 9}},
			[]model.ResultRecord{
				{RaceID: 13, DriverID: 1},
				{RaceID: 10, DriverID: 1}, // before the cutoff
				{RaceID: 12, DriverID: 1},
				{RaceID: 13, DriverID: 2},
			})

		Convey("When asking for debut seasons", func() {
			Convey("Then the earliest indexed race wins regardless of input order", func() {
				seq, season, ok := reg.Debut(1)
				So(ok, ShouldBeTrue)
				So(seq, ShouldEqual, 1)
				So(season, ShouldEqual, 2002)
				So(reg.DebutSeason(2), ShouldEqual, 2002)
			})

			Convey("Then a driver without results is unknown", func() {
				_, _, ok := reg.Debut(3)
				So(ok, ShouldBeFalse)
				So(reg.DebutSeason(3), ShouldEqual, 0)
			})
		})

		Convey("When looking up identities", func() {
			Convey("Then known ids resolve and unknown dates of birth are reported", func() {
				got, ok := reg.DateOfBirth(1)
				So(ok, ShouldBeTrue)
				So(got, ShouldEqual, dob)
				_, ok = reg.DateOfBirth(2)
				So(ok, ShouldBeFalse)
				So(reg.HasDriver(2), ShouldBeTrue)
				So(reg.HasDriver(7), ShouldBeFalse)
				So(reg.HasConstructor(9), ShouldBeTrue)
				So(reg.HasConstructor(3), ShouldBeFalse)
			})
		})
	})
}
