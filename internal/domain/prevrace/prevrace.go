// Package prevrace indexes results by sequence order and answers questions
// about the race immediately preceding a target race: the driver's own
// finish, the teammate's finish and the winner.
package prevrace

import (
	"sort"

	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/internal/domain/timeline"
)

// NoPosition is reported when there is no prior record or the driver was not
// classified. It exceeds every real finishing position.
const NoPosition = 21

type slot struct {
	seq    int
	driver int
}

// Index is immutable after New and safe for concurrent reads.
type Index struct {
	bySeq  map[int][]model.ResultRecord
	bySlot map[slot]model.ResultRecord
}

// New groups results of indexed races by sequence order. Within a race the
// records are ordered by driverId; a repeated (race, driver) keeps the first row.
func New(idx *timeline.Index, results []model.ResultRecord) *Index {
	x := &Index{
		bySeq:  make(map[int][]model.ResultRecord),
		bySlot: make(map[slot]model.ResultRecord, len(results)),
	}
	for _, r := range results {
		seq, ok := idx.Sequence(r.RaceID)
		if !ok {
			continue
		}
		k := slot{seq: seq, driver: r.DriverID}
		if _, dup := x.bySlot[k]; dup {
			continue
		}
		x.bySlot[k] = r
		x.bySeq[seq] = append(x.bySeq[seq], r)
	}
	for _, rs := range x.bySeq {
		sort.SliceStable(rs, func(i, j int) bool { return rs[i].DriverID < rs[j].DriverID })
	}
	return x
}

// Result returns the driver's record at sequence order seq.
func (x *Index) Result(seq, driverID int) (model.ResultRecord, bool) {
	r, ok := x.bySlot[slot{seq: seq, driver: driverID}]
	return r, ok
}

// HasResults reports whether race seq has any recorded result.
func (x *Index) HasResults(seq int) bool {
	return len(x.bySeq[seq]) > 0
}

// Winner returns the classified winner of race seq.
func (x *Index) Winner(seq int) (model.ResultRecord, bool) {
	for _, r := range x.bySeq[seq] {
		if r.Won() {
			return r, true
		}
	}
	return model.ResultRecord{}, false
}

// DriverLastPosition is the driver's finishing position at seq-1, or NoPosition.
func (x *Index) DriverLastPosition(driverID, seq int) int {
	r, ok := x.Result(seq-1, driverID)
	if !ok || r.Position == nil {
		return NoPosition
	}
	return *r.Position
}

// Teammate is the outcome of a teammate lookup.
type Teammate struct {
	Position   int
	DriverID   int
	Found      bool
	Candidates int
}

// Ambiguous reports whether more than one driver qualified as the teammate.
func (t Teammate) Ambiguous() bool { return t.Candidates > 1 }

// TeammateLastPosition looks at the race at seq-1. The driver must have a
// record there, with any constructor. Another driver of constructorID in that
// race is the teammate; with several candidates the lowest driverId is taken.
// Position is NoPosition when the driver or teammate is missing or the
// teammate was not classified.
func (x *Index) TeammateLastPosition(driverID, constructorID, seq int) Teammate {
	out := Teammate{Position: NoPosition}
	if _, ok := x.Result(seq-1, driverID); !ok {
		return out
	}
	for _, r := range x.bySeq[seq-1] {
		if r.ConstructorID != constructorID || r.DriverID == driverID {
			continue
		}
		out.Candidates++
		if out.Found {
			continue
		}
		out.Found = true
		out.DriverID = r.DriverID
		if r.Position != nil {
			out.Position = *r.Position
		}
	}
	return out
}
