// Package standings resolves championship standings as posted after the race
// immediately preceding a target race.
package standings

import (
	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/internal/domain/timeline"
)

// Snapshot is the resolved standing. Position stays nil when unranked.
type Snapshot struct {
	Points   float64
	Position *int
	Found    bool
}

type key struct {
	seq    int
	entity int
}

// Resolver answers "standings before race S" for one standings table.
type Resolver struct {
	byKey map[key]model.StandingSnapshot
}

// New indexes snapshots by (sequence order, entity). Snapshots of races
// outside the index are ignored; a repeated pair keeps the first row.
func New(idx *timeline.Index, snapshots []model.StandingSnapshot) *Resolver {
	r := &Resolver{byKey: make(map[key]model.StandingSnapshot, len(snapshots))}
	for _, s := range snapshots {
		seq, ok := idx.Sequence(s.RaceID)
		if !ok {
			continue
		}
		k := key{seq: seq, entity: s.EntityID}
		if _, dup := r.byKey[k]; dup {
			continue
		}
		r.byKey[k] = s
	}
	return r
}

// Before returns the entity's snapshot at sequence order seq-1. There is no
// search further back: a gap at the previous race yields zero points.
func (r *Resolver) Before(entityID, seq int) Snapshot {
	if seq <= 0 {
		return Snapshot{}
	}
	s, ok := r.byKey[key{seq: seq - 1, entity: entityID}]
	if !ok {
		return Snapshot{}
	}
	return Snapshot{Points: s.Points, Position: s.Position, Found: true}
}
