package timeline

import "errors"

var (
	// ErrDuplicateRace is returned when the calendar lists a raceId twice.
	ErrDuplicateRace = errors.New("duplicate race in calendar")
	// ErrNotIndexed is returned when a race is outside the indexed window.
	ErrNotIndexed = errors.New("race not in timeline index")
)
