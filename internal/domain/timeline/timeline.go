// Package timeline assigns every race a dense sequence order used for all
// before/after comparisons.
//
// The order is a rank by raceId over races whose season is at or after the
// cutoff. Wall-clock dates are never compared.
package timeline

import (
	"fmt"
	"sort"

	"github.com/okian/pitwall/internal/domain/model"
)

// Index is immutable after Build and safe for concurrent reads.
type Index struct {
	cutoff int
	races  []model.RaceEvent // position == sequence order
	seq    map[int]int       // raceId -> sequence order
}

// Build filters races to season >= cutoff and ranks them by raceId.
func Build(races []model.RaceEvent, cutoff int) (*Index, error) {
	kept := make([]model.RaceEvent, 0, len(races))
	seen := make(map[int]struct{}, len(races))
	for _, r := range races {
		if _, dup := seen[r.RaceID]; dup {
			return nil, fmt.Errorf("%w: raceId %d", ErrDuplicateRace, r.RaceID)
		}
		seen[r.RaceID] = struct{}{}
		if r.Season >= cutoff {
			kept = append(kept, r)
		}
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].RaceID < kept[j].RaceID })

	idx := &Index{
		cutoff: cutoff,
		races:  kept,
		seq:    make(map[int]int, len(kept)),
	}
	for i, r := range kept {
		idx.seq[r.RaceID] = i
	}
	return idx, nil
}

// Len is the number of indexed races.
func (x *Index) Len() int { return len(x.races) }

// Cutoff is the first indexed season.
func (x *Index) Cutoff() int { return x.cutoff }

// Contains reports whether raceID is inside the indexed window.
func (x *Index) Contains(raceID int) bool {
	_, ok := x.seq[raceID]
	return ok
}

// Sequence returns the sequence order of raceID.
func (x *Index) Sequence(raceID int) (int, bool) {
	s, ok := x.seq[raceID]
	return s, ok
}

// MustSequence is Sequence with ErrNotIndexed for absent races.
func (x *Index) MustSequence(raceID int) (int, error) {
	s, ok := x.seq[raceID]
	if !ok {
		return 0, fmt.Errorf("%w: raceId %d", ErrNotIndexed, raceID)
	}
	return s, nil
}

// Race returns the race at sequence order s.
func (x *Index) Race(s int) (model.RaceEvent, bool) {
	if s < 0 || s >= len(x.races) {
		return model.RaceEvent{}, false
	}
	return x.races[s], true
}

// Before returns the races with sequence order strictly below s, oldest first.
// The returned slice aliases the index and must not be modified.
func (x *Index) Before(s int) []model.RaceEvent {
	switch {
	case s <= 0:
		return nil
	case s > len(x.races):
		s = len(x.races)
	}
	return x.races[:s:s]
}

// Races returns every indexed race in sequence order. The slice must not be modified.
func (x *Index) Races() []model.RaceEvent {
	return x.races
}
