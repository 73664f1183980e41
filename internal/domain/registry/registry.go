// Package registry tracks driver identity, debut season and constructor identity.
package registry

import (
	"time"

	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/internal/domain/timeline"
)

type debut struct {
	seq    int
	season int
}

// Registry is immutable after New.
type Registry struct {
	drivers      map[int]model.Driver
	constructors map[int]struct{}
	debuts       map[int]debut
}

// New scans results once. A driver's debut is the earliest indexed race, by
// sequence order, at which they have a result.
func New(idx *timeline.Index, drivers []model.Driver, constructors []model.Constructor, results []model.ResultRecord) *Registry {
	r := &Registry{
		drivers:      make(map[int]model.Driver, len(drivers)),
		constructors: make(map[int]struct{}, len(constructors)),
		debuts:       make(map[int]debut),
	}
	for _, d := range drivers {
		r.drivers[d.DriverID] = d
	}
	for _, c := range constructors {
		r.constructors[c.ConstructorID] = struct{}{}
	}
	for _, res := range results {
		s, ok := idx.Sequence(res.RaceID)
		if !ok {
			continue
		}
		if cur, ok := r.debuts[res.DriverID]; ok && cur.seq <= s {
			continue
		}
		race, _ := idx.Race(s)
		r.debuts[res.DriverID] = debut{seq: s, season: race.Season}
	}
	return r
}

// DebutSeason returns the debut season, or 0 when the driver has no indexed result.
func (r *Registry) DebutSeason(driverID int) int {
	return r.debuts[driverID].season
}

// Debut returns the sequence order and season of the debut race.
func (r *Registry) Debut(driverID int) (seq, season int, ok bool) {
	d, ok := r.debuts[driverID]
	return d.seq, d.season, ok
}

// DateOfBirth returns the driver's date of birth when known.
func (r *Registry) DateOfBirth(driverID int) (time.Time, bool) {
	d, ok := r.drivers[driverID]
	if !ok || d.DateOfBirth.IsZero() {
		return time.Time{}, false
	}
	return d.DateOfBirth, true
}

// HasDriver reports whether the driver table lists driverID.
func (r *Registry) HasDriver(driverID int) bool {
	_, ok := r.drivers[driverID]
	return ok
}

// HasConstructor reports whether the constructor table lists constructorID.
func (r *Registry) HasConstructor(constructorID int) bool {
	_, ok := r.constructors[constructorID]
	return ok
}
