// Package history computes strictly causal win counts.
//
// Wins are grouped per key and sorted by sequence order once; a query is a
// binary search for the number of wins strictly before the target race.
package history

import (
	"sort"

	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/internal/domain/timeline"
)

type seasonKey struct {
	id     int
	season int
}

// Aggregator is immutable after New.
type Aggregator struct {
	driverCareer      map[int][]int
	driverSeason      map[seasonKey][]int
	constructorSeason map[seasonKey][]int
}

// New indexes every winning result of an indexed race.
func New(idx *timeline.Index, results []model.ResultRecord) *Aggregator {
	a := &Aggregator{
		driverCareer:      make(map[int][]int),
		driverSeason:      make(map[seasonKey][]int),
		constructorSeason: make(map[seasonKey][]int),
	}
	for _, r := range results {
		if !r.Won() {
			continue
		}
		seq, ok := idx.Sequence(r.RaceID)
		if !ok {
			continue
		}
		race, _ := idx.Race(seq)
		a.driverCareer[r.DriverID] = append(a.driverCareer[r.DriverID], seq)
		dk := seasonKey{id: r.DriverID, season: race.Season}
		a.driverSeason[dk] = append(a.driverSeason[dk], seq)
		ck := seasonKey{id: r.ConstructorID, season: race.Season}
		a.constructorSeason[ck] = append(a.constructorSeason[ck], seq)
	}
	for _, s := range a.driverCareer {
		sort.Ints(s)
	}
	for _, s := range a.driverSeason {
		sort.Ints(s)
	}
	for _, s := range a.constructorSeason {
		sort.Ints(s)
	}
	return a
}

// WinsCareer counts the driver's wins at sequence order < seq.
func (a *Aggregator) WinsCareer(driverID, seq int) int {
	return countBefore(a.driverCareer[driverID], seq)
}

// WinsSeason counts the driver's wins in season at sequence order < seq.
func (a *Aggregator) WinsSeason(driverID, seq, season int) int {
	return countBefore(a.driverSeason[seasonKey{id: driverID, season: season}], seq)
}

// ConstructorWinsSeason counts the constructor's wins in season at sequence order < seq.
func (a *Aggregator) ConstructorWinsSeason(constructorID, seq, season int) int {
	return countBefore(a.constructorSeason[seasonKey{id: constructorID, season: season}], seq)
}

func countBefore(sorted []int, seq int) int {
	return sort.SearchInts(sorted, seq)
}
